package extract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Run("plain text passes through", func(t *testing.T) {
		got, err := Normalize([]byte("hello\nworld"))
		if err != nil {
			t.Fatalf("Normalize failed: %v", err)
		}
		if got != "hello\nworld" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("bom stripped", func(t *testing.T) {
		got, err := Normalize([]byte{0xEF, 0xBB, 0xBF, 'h', 'i'})
		if err != nil {
			t.Fatalf("Normalize failed: %v", err)
		}
		if got != "hi" {
			t.Errorf("expected BOM stripped, got %q", got)
		}
	})

	t.Run("empty is legal", func(t *testing.T) {
		got, err := Normalize(nil)
		if err != nil || got != "" {
			t.Errorf("expected empty text, got %q err %v", got, err)
		}
	})

	t.Run("crlf normalized", func(t *testing.T) {
		got, err := Normalize([]byte("a\r\nb\rc"))
		if err != nil {
			t.Fatalf("Normalize failed: %v", err)
		}
		if got != "a\nb\nc" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("nul byte is binary", func(t *testing.T) {
		_, err := Normalize([]byte("he\x00llo"))
		if !errors.Is(err, ErrBinaryContent) {
			t.Errorf("expected ErrBinaryContent, got %v", err)
		}
	})

	t.Run("invalid utf8 is binary", func(t *testing.T) {
		_, err := Normalize([]byte{0xff, 0xfe, 0xfd})
		if !errors.Is(err, ErrBinaryContent) {
			t.Errorf("expected ErrBinaryContent, got %v", err)
		}
	})

	t.Run("control-heavy content is binary", func(t *testing.T) {
		_, err := Normalize([]byte("\x01\x02\x03\x04ab"))
		if !errors.Is(err, ErrBinaryContent) {
			t.Errorf("expected ErrBinaryContent, got %v", err)
		}
	})
}

func TestExtensionClassification(t *testing.T) {
	if !IsTextual(".md") || !IsTextual(".GO") {
		t.Error("expected textual extensions recognized case-insensitively")
	}
	if IsTextual(".docx") {
		t.Error(".docx is not textual")
	}
	if !NeedsConversion(".pdf") || !NeedsConversion(".DOCX") {
		t.Error("expected convertible extensions recognized")
	}
	if NeedsConversion(".txt") {
		t.Error(".txt needs no conversion")
	}
}

func TestConverter(t *testing.T) {
	t.Run("successful conversion", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/convert/text" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("expected multipart form: %v", err)
			}
			w.Write([]byte("converted text content"))
		}))
		defer srv.Close()

		c := NewConverter(srv.URL, 0)
		got, err := c.Convert(context.Background(), "report.pdf", []byte("%PDF-1.4"))
		if err != nil {
			t.Fatalf("Convert failed: %v", err)
		}
		if got != "converted text content" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("service error propagates", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unsupported format", http.StatusUnprocessableEntity)
		}))
		defer srv.Close()

		c := NewConverter(srv.URL, 0)
		_, err := c.Convert(context.Background(), "odd.xyz", []byte("data"))
		if err == nil || !strings.Contains(err.Error(), "422") {
			t.Errorf("expected 422 error, got %v", err)
		}
	})

	t.Run("unconfigured converter fails cleanly", func(t *testing.T) {
		c := NewConverter("", 0)
		if _, err := c.Convert(context.Background(), "a.pdf", nil); err == nil {
			t.Error("expected error for unconfigured converter")
		}
	})
}
