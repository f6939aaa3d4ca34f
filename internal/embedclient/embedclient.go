// Package embedclient is the HTTP client for the external embedding
// provider: health/info probes and the batch embed call the embedding
// job worker (internal/embedjob) drives (spec.md §4.J).
//
// Grounded on the teacher's internal/service/llm package (ClaudeLLM,
// OllamaLLM): a small struct wrapping an *http.Client with a fixed
// timeout, request/response structs marshaled straight to/from JSON,
// and fmt.Errorf("...: %w", err) wrapping throughout. The embedding
// provider here is treated like the teacher's Ollama client — a local
// or self-hosted HTTP service speaking a simple JSON protocol — rather
// than a hosted vendor API like Claude's, since spec.md's embedding
// provider is a fixed internal dependency, not a pluggable LLM vendor.
package embedclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Client talks to the embedding provider's HTTP surface.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	logger  *zap.Logger
	client  *http.Client
}

func NewClient(baseURL, apiKey, model string, timeoutSeconds int, logger *zap.Logger) *Client {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 30
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		logger:  logger,
		client:  &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second},
	}
}

// Info describes the provider's active model, returned by GET /info.
type Info struct {
	Model     string `json:"model"`
	Version   string `json:"version"`
	Dimension int    `json:"dimension"`
}

// Health returns nil when the provider answers GET /health with 2xx.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to build health request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("embedding provider health check failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("embedding provider unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// GetInfo fetches the provider's active model metadata via GET /info,
// used to detect a model/dimension mismatch before a batch embed call.
func (c *Client) GetInfo(ctx context.Context) (*Info, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/info", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build info request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding provider info request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read info response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embedding provider info request returned status %d: %s", resp.StatusCode, string(body))
	}

	var info Info
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to decode info response: %w", err)
	}
	return &info, nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Model     string      `json:"model"`
	Dimension int         `json:"dimension"`
	Vectors   [][]float32 `json:"vectors"`
	Error     string      `json:"error,omitempty"`
}

// TransientError wraps a failure the caller should retry (network error,
// 5xx, timeout); anything else (4xx) is treated as fatal for the batch.
type TransientError struct{ err error }

func (e *TransientError) Error() string { return e.err.Error() }
func (e *TransientError) Unwrap() error { return e.err }

// Embed requests vectors for a batch of texts in one call. A transport
// failure or 5xx response is wrapped in TransientError so the job
// worker's retry/backoff logic (spec.md §4.J) can distinguish it from a
// fatal 4xx (bad request, unknown model).
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, int, error) {
	if len(texts) == 0 {
		return nil, 0, nil
	}

	body, err := json.Marshal(embedRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, &TransientError{fmt.Errorf("embed request failed: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &TransientError{fmt.Errorf("failed to read embed response: %w", err)}
	}

	if resp.StatusCode >= 500 {
		return nil, 0, &TransientError{fmt.Errorf("embedding provider returned status %d: %s", resp.StatusCode, string(respBody))}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, 0, fmt.Errorf("embedding provider rejected request with status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed embedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, 0, fmt.Errorf("failed to decode embed response: %w", err)
	}
	if parsed.Error != "" {
		return nil, 0, fmt.Errorf("embedding provider error: %s", parsed.Error)
	}
	if len(parsed.Vectors) != len(texts) {
		return nil, 0, fmt.Errorf("embedding provider returned %d vectors for %d inputs", len(parsed.Vectors), len(texts))
	}

	return parsed.Vectors, parsed.Dimension, nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// IsTransient reports whether err (or a wrapped cause) is a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
