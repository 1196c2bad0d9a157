// Package llm scores candidate papers against a user's library using the
// Anthropic Messages API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kshitijsachan/papers/internal/observability"
)

const (
	// anthropicAPIVersion is the Anthropic API version header value.
	anthropicAPIVersion = "2023-06-01"

	// defaultMaxTokens is the default max tokens for the Messages API response.
	defaultMaxTokens = 2000
)

// messagesRequest is the request body for the Anthropic Messages API.
type messagesRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

// anthropicMessage represents a single message in the Anthropic Messages API.
type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// contentBlock represents a content block in the Messages API response.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// messagesResponse is the response body from the Anthropic Messages API.
type messagesResponse struct {
	ID         string         `json:"id"`
	Content    []contentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      anthropicUsage `json:"usage"`
}

// anthropicUsage contains token usage information from the API.
type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// anthropicAPIErrorDetail is the nested error object in an API error response.
type anthropicAPIErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// anthropicErrorResponse wraps the error payload from the API.
type anthropicErrorResponse struct {
	Type  string                  `json:"type"`
	Error anthropicAPIErrorDetail `json:"error"`
}

// CompletionResult holds the text and token usage of a single completion.
type CompletionResult struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// AnthropicConfig holds the parameters needed to create an Anthropic client.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key.
	APIKey string
	// Model is the model identifier.
	Model string
	// BaseURL is the API base URL.
	BaseURL string
	// Timeout is the HTTP client timeout for API calls.
	Timeout time.Duration
	// MaxRetries controls how many times transient errors are retried.
	MaxRetries int
	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration
	// MaxTokens caps the response length.
	MaxTokens int
}

// AnthropicClient sends completion requests to the Anthropic Messages API
// with retries on transient failures.
type AnthropicClient struct {
	httpClient *http.Client
	cfg        AnthropicConfig
	metrics    *observability.Metrics
}

// NewAnthropicClient creates a new AnthropicClient with the given configuration.
func NewAnthropicClient(cfg AnthropicConfig, metrics *observability.Metrics) *AnthropicClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	return &AnthropicClient{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		cfg:     cfg,
		metrics: metrics,
	}
}

// Model returns the model identifier being used.
func (c *AnthropicClient) Model() string {
	return c.cfg.Model
}

// Complete sends a single-turn user prompt to the Messages API and returns
// the text of the first text content block.
//
// Transient errors (status 429 and 5xx, and network failures) are retried
// up to MaxRetries times with exponential backoff. Context cancellation is
// respected between retries.
func (c *AnthropicClient) Complete(ctx context.Context, prompt string) (*CompletionResult, error) {
	apiReq := messagesRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
	}

	var resp *messagesResponse
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.cfg.RetryDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("anthropic: context cancelled during retry: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		start := time.Now()
		resp, lastErr = c.sendRequest(ctx, apiReq)
		if lastErr == nil {
			c.metrics.RecordLLMRequest(c.cfg.Model, time.Since(start).Seconds(),
				resp.Usage.InputTokens, resp.Usage.OutputTokens)
			break
		}
		c.metrics.RecordLLMRequestFailed(c.cfg.Model)

		if !isTransientError(lastErr) {
			return nil, lastErr
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("anthropic: all %d retries exhausted: %w", c.cfg.MaxRetries, lastErr)
	}

	return parseCompletion(resp)
}

// sendRequest sends a single request to the Messages API.
func (c *AnthropicClient) sendRequest(ctx context.Context, apiReq messagesRequest) (*messagesResponse, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: failed to marshal request: %w", err)
	}

	endpoint := c.cfg.BaseURL + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Network errors are transient and eligible for retry.
		return nil, &APIError{
			StatusCode: 0,
			Message:    fmt.Sprintf("request failed: %v", err),
			Type:       "network_error",
		}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 10<<20))
	if err != nil {
		return nil, &APIError{
			StatusCode: 0,
			Message:    fmt.Sprintf("failed to read response body: %v", err),
			Type:       "network_error",
		}
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, parseAnthropicAPIError(httpResp.StatusCode, respBody)
	}

	var resp messagesResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("anthropic: failed to unmarshal response: %w", err)
	}

	return &resp, nil
}

// parseCompletion extracts the first text content block from the response.
func parseCompletion(resp *messagesResponse) (*CompletionResult, error) {
	var textContent string
	for _, block := range resp.Content {
		if block.Type == "text" {
			textContent = block.Text
			break
		}
	}
	if textContent == "" {
		return nil, fmt.Errorf("anthropic: response contains no text content blocks")
	}

	return &CompletionResult{
		Text:         textContent,
		Model:        resp.Model,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}

// parseAnthropicAPIError parses an API error from the status code and body.
func parseAnthropicAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: statusCode,
		Message:    string(body),
	}

	var errResp anthropicErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		apiErr.Message = errResp.Error.Message
		apiErr.Type = errResp.Error.Type
	}

	return apiErr
}
