package object

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestGenerateStorageKey(t *testing.T) {
	tests := []struct {
		name     string
		dirPath  string
		filename string
		version  int
		want     string
	}{
		{
			name:     "root file",
			dirPath:  "/",
			filename: "report.pdf",
			version:  1,
			want:     "lib-1/report.pdf_v1",
		},
		{
			name:     "nested file",
			dirPath:  "/docs/2024",
			filename: "report.pdf",
			version:  3,
			want:     "lib-1/docs/2024/report.pdf_v3",
		},
		{
			name:     "empty dir path",
			dirPath:  "",
			filename: "readme.md",
			version:  1,
			want:     "lib-1/readme.md_v1",
		},
		{
			name:     "trailing slash trimmed",
			dirPath:  "/docs/",
			filename: "a.txt",
			version:  12,
			want:     "lib-1/docs/a.txt_v12",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateStorageKey("lib-1", tt.dirPath, tt.filename, tt.version)
			if got != tt.want {
				t.Errorf("GenerateStorageKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBucketName(t *testing.T) {
	got := BucketName("shelfd", "A1B2C3D4-E5F6-7890-ABCD-EF0123456789")
	want := "shelfd-a1b2c3d4e5f67890"
	if got != want {
		t.Errorf("BucketName() = %q, want %q", got, want)
	}

	// Short IDs are used as-is.
	if got := BucketName("shelfd", "abc"); got != "shelfd-abc" {
		t.Errorf("BucketName() = %q, want shelfd-abc", got)
	}
}

func TestUploadPart_RejectsInvalidPartNumber(t *testing.T) {
	s := NewWithClient(nil, Config{})
	ctx := context.Background()

	for _, n := range []int{0, -1, 10001} {
		_, err := s.UploadPart(ctx, "bucket", "key", "upload", n, []byte("data"))
		if !errors.Is(err, ErrInvalidPartNumber) {
			t.Errorf("part %d: expected ErrInvalidPartNumber, got %v", n, err)
		}
	}
}

func TestContentDisposition(t *testing.T) {
	t.Run("ascii filename", func(t *testing.T) {
		got := contentDisposition("report.pdf")
		want := `attachment; filename="report.pdf"; filename*=UTF-8''report.pdf`
		if got != want {
			t.Errorf("contentDisposition() = %q, want %q", got, want)
		}
	})

	t.Run("non-ascii filename carries both forms", func(t *testing.T) {
		got := contentDisposition("bericht ü.pdf")
		if !strings.Contains(got, `filename="bericht _.pdf"`) {
			t.Errorf("missing ASCII fallback in %q", got)
		}
		if !strings.Contains(got, "filename*=UTF-8''bericht%20%C3%BC.pdf") {
			t.Errorf("missing RFC 5987 form in %q", got)
		}
	})

	t.Run("quotes stripped from fallback", func(t *testing.T) {
		got := contentDisposition(`my "file".txt`)
		if !strings.Contains(got, `filename="my file.txt"`) {
			t.Errorf("expected quotes dropped from fallback, got %q", got)
		}
	})
}

func TestRFC5987Encode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain.txt", "plain.txt"},
		{"with space.txt", "with%20space.txt"},
		{"ü.txt", "%C3%BC.txt"},
		{"100%.txt", "100%25.txt"},
	}

	for _, tt := range tests {
		if got := rfc5987Encode(tt.in); got != tt.want {
			t.Errorf("rfc5987Encode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsRetryableError(t *testing.T) {
	if isRetryableError(nil) {
		t.Error("nil must not be retryable")
	}
	if isRetryableError(context.Canceled) {
		t.Error("context cancellation must not be retryable")
	}
	if !isRetryableError(errors.New("read tcp: connection reset by peer")) {
		t.Error("connection reset should be retryable")
	}
	if isRetryableError(errors.New("some application error")) {
		t.Error("unknown errors should not be retryable")
	}
}
