package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Converter calls the external document conversion service to turn
// office and PDF formats into plain text.
type Converter struct {
	baseURL    string
	httpClient *http.Client
}

// NewConverter creates a conversion client. An empty baseURL disables
// conversion; Convert then reports the service as unavailable.
func NewConverter(baseURL string, timeout time.Duration) *Converter {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Converter{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Convert submits the file and returns the extracted text.
func (c *Converter) Convert(ctx context.Context, filename string, data []byte) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("conversion service not configured")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to write upload form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finish upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/convert/text", &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("conversion request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("conversion service returned %d: %s", resp.StatusCode, msg)
	}

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read converted text: %w", err)
	}

	normalized, err := Normalize(text)
	if err != nil {
		return "", fmt.Errorf("converted output is not text: %w", err)
	}
	return normalized, nil
}
