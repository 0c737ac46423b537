// internal/common/genai/client.go
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	ErrLLMTimeout    = errors.New("LLM_TIMEOUT")
	ErrLLMCallFailed = errors.New("LLM_CALL_FAILED")
)

// Config holds the GenAI HTTP client settings.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// Request is a single generation call. When ResponseMIMEType is
// "application/json" the backend is instructed to emit raw JSON.
type Request struct {
	Model            string `json:"model"`
	Contents         string `json:"contents"`
	ResponseMIMEType string `json:"responseMimeType,omitempty"`
}

// Response carries the generated text.
type Response struct {
	Text string `json:"text"`
}

// ContentGenerator is the contract consumed by the refinement pipeline.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, req Request) (*Response, error)
}

type Client struct {
	config *Config
	client *http.Client
}

func NewClient(config *Config) *Client {
	return &Client{
		config: config,
		// No client-level timeout, the per-call context bounds each request.
		client: &http.Client{},
	}
}

// GenerateContent posts the request, retrying transient failures with
// exponential backoff. Context expiry surfaces as ErrLLMTimeout.
func (c *Client) GenerateContent(ctx context.Context, req Request) (*Response, error) {
	if req.Model == "" {
		req.Model = c.config.Model
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLLMCallFailed, err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ErrLLMTimeout
			}
		}

		resp, err := c.doOnce(ctx, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ErrLLMTimeout
		}
	}

	if ctx.Err() == context.DeadlineExceeded {
		return nil, ErrLLMTimeout
	}
	return nil, fmt.Errorf("%w: %v", ErrLLMCallFailed, lastErr)
}

func (c *Client) doOnce(ctx context.Context, body []byte) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/v1/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode error: %v", err)
	}
	return &out, nil
}
