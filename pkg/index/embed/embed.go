// Package embed provides the embedding client for semantic indexing.
//
// It speaks the Ollama-style HTTP API: /api/embeddings for single
// prompts, /api/tags to list available models, /api/pull to fetch a
// missing one. Batch embedding is sequential and degrades per item:
// failed items yield empty vectors so the caller decides per-item
// policy instead of losing the batch.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/shelfd/shelfd/internal/logger"
)

// Client calls an embedding inference endpoint.
type Client struct {
	endpoint   string
	model      string
	httpClient *http.Client
	maxRetries uint
}

// Config configures the embedding client.
type Config struct {
	// Endpoint is the inference server base URL
	// (default: http://localhost:11434).
	Endpoint string

	// Model is the embedding model name
	// (default: nomic-embed-text).
	Model string

	// Timeout bounds each request (default: 30s).
	Timeout time.Duration

	// MaxRetries bounds retries for transient failures (default: 2).
	MaxRetries uint
}

// New creates an embedding client.
func New(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}

	return &Client{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns the embedding vector for one text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var result embedResponse

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = 0

	err := backoff.Retry(func() error {
		err := c.post(ctx, "/api/embeddings", embedRequest{Model: c.model, Prompt: text}, &result)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.maxRetries)), ctx))
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}

	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("embedding service returned an empty vector for model %s", c.model)
	}
	return result.Embedding, nil
}

// EmbedBatch embeds texts sequentially. A failed item produces an
// empty vector at its position; the batch itself never fails once the
// context is alive.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return vectors, err
		}

		vec, err := c.Embed(ctx, text)
		if err != nil {
			logger.Warn("embedding failed for batch item", "index", i, "error", err)
			vectors[i] = []float32{}
			continue
		}
		vectors[i] = vec
	}
	return vectors, nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// HealthCheck probes the model registry and reports whether the
// configured model is available.
func (c *Client) HealthCheck(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/api/tags", nil)
	if err != nil {
		return false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("embedding service unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("embedding service returned %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false, fmt.Errorf("failed to decode model list: %w", err)
	}

	for _, m := range tags.Models {
		if m.Name == c.model || strings.TrimSuffix(m.Name, ":latest") == c.model {
			return true, nil
		}
	}
	return false, nil
}

// PullModel asks the inference server to fetch the configured model.
// The pull can take minutes on first use; the caller's context bounds
// it.
func (c *Client) PullModel(ctx context.Context) error {
	body, err := json.Marshal(map[string]any{"name": c.model, "stream": false})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	// Pulls exceed the per-request embedding timeout.
	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("model pull failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("model pull returned %d: %s", resp.StatusCode, msg)
	}
	return nil
}

// post sends a JSON request and decodes the JSON response.
func (c *Client) post(ctx context.Context, path string, payload, result any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("embedding service returned %d: %s", resp.StatusCode, msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
