package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newTestClient(url string) *Client {
	return New(Config{Endpoint: url, Model: "nomic-embed-text", MaxRetries: 1})
}

func TestEmbed(t *testing.T) {
	t.Run("returns vector", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/embeddings" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			var req embedRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("bad request body: %v", err)
			}
			if req.Model != "nomic-embed-text" || req.Prompt != "hello" {
				t.Errorf("unexpected request %+v", req)
			}
			json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
		}))
		defer srv.Close()

		vec, err := newTestClient(srv.URL).Embed(context.Background(), "hello")
		if err != nil {
			t.Fatalf("Embed failed: %v", err)
		}
		if len(vec) != 3 || vec[0] != 0.1 {
			t.Errorf("unexpected vector %v", vec)
		}
	})

	t.Run("retries transient failure", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				http.Error(w, "busy", http.StatusServiceUnavailable)
				return
			}
			json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{1}})
		}))
		defer srv.Close()

		vec, err := newTestClient(srv.URL).Embed(context.Background(), "retry me")
		if err != nil {
			t.Fatalf("expected retry to succeed: %v", err)
		}
		if len(vec) != 1 {
			t.Errorf("unexpected vector %v", vec)
		}
		if calls.Load() != 2 {
			t.Errorf("expected 2 calls, got %d", calls.Load())
		}
	})

	t.Run("empty vector is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(embedResponse{})
		}))
		defer srv.Close()

		if _, err := newTestClient(srv.URL).Embed(context.Background(), "x"); err == nil {
			t.Error("expected error for empty embedding")
		}
	})
}

func TestEmbedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Prompt == "bad" {
			http.Error(w, "model error", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{float32(len(req.Prompt))}})
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL, MaxRetries: 1})
	vectors, err := c.EmbedBatch(context.Background(), []string{"one", "bad", "three"})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(vectors) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vectors))
	}
	if len(vectors[0]) != 1 || len(vectors[2]) != 1 {
		t.Errorf("expected vectors for good items, got %v", vectors)
	}
	if len(vectors[1]) != 0 {
		t.Errorf("expected empty vector for failed item, got %v", vectors[1])
	}
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"models":[{"name":"nomic-embed-text:latest"},{"name":"llama3:8b"}]}`))
	}))
	defer srv.Close()

	ok, err := newTestClient(srv.URL).HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck failed: %v", err)
	}
	if !ok {
		t.Error("expected model to be reported available")
	}

	missing := New(Config{Endpoint: srv.URL, Model: "other-model"})
	ok, err = missing.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck failed: %v", err)
	}
	if ok {
		t.Error("expected missing model to be reported unavailable")
	}
}

func TestPullModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/pull" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["name"] != "nomic-embed-text" {
			t.Errorf("unexpected pull request %v", req)
		}
		w.Write([]byte(`{"status":"success"}`))
	}))
	defer srv.Close()

	if err := newTestClient(srv.URL).PullModel(context.Background()); err != nil {
		t.Fatalf("PullModel failed: %v", err)
	}
}
