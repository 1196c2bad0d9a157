// Package semanticscholar queries the Semantic Scholar graph and
// recommendations APIs.
package semanticscholar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/kshitijsachan/papers/internal/domain"
	"github.com/kshitijsachan/papers/internal/observability"
	"github.com/kshitijsachan/papers/internal/sources"
)

const (
	sourceName   = "semantic_scholar"
	apiKeyHeader = "x-api-key"

	resolveFields   = "title,authors,abstract,year,citationCount,url,externalIds"
	recommendFields = "title,authors,abstract,year,publicationDate,citationCount,url,externalIds"
)

// Config holds settings for the Semantic Scholar client.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RateLimit  float64
	BurstSize  int
	RetryDelay time.Duration
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.semanticscholar.org"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 1.0
	}
	if c.BurstSize <= 0 {
		c.BurstSize = 1
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 500 * time.Millisecond
	}
}

// Client resolves arXiv papers to Semantic Scholar IDs and fetches
// citation-graph recommendations.
type Client struct {
	cfg     Config
	http    *sources.HTTPClient
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// New creates a Semantic Scholar client with a rate-limited HTTP client
// that retries once on 429 responses.
func New(cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Client {
	cfg.applyDefaults()
	httpClient := sources.NewHTTPClient(sources.HTTPClientConfig{
		Timeout:      cfg.Timeout,
		RateLimit:    cfg.RateLimit,
		BurstSize:    cfg.BurstSize,
		MaxRetries:   1,
		RetryDelay:   cfg.RetryDelay,
		APIKey:       cfg.APIKey,
		APIKeyHeader: apiKeyHeader,
	})
	return NewWithHTTPClient(cfg, httpClient, logger, metrics)
}

// NewWithHTTPClient creates a client using the given HTTP client.
// Used by tests to point the client at a local server.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient, logger zerolog.Logger, metrics *observability.Metrics) *Client {
	cfg.applyDefaults()
	return &Client{
		cfg:     cfg,
		http:    httpClient,
		logger:  observability.WithSourceContext(logger, sourceName),
		metrics: metrics,
	}
}

// ResolveID looks up the Semantic Scholar paper ID for an arXiv ID.
func (c *Client) ResolveID(ctx context.Context, arxivID string) (string, error) {
	endpoint := fmt.Sprintf("%s/graph/v1/paper/arXiv:%s?fields=%s",
		c.cfg.BaseURL, url.PathEscape(arxivID), resolveFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	var paper Paper
	if err := c.doJSON(req, "resolve", &paper); err != nil {
		return "", err
	}
	if paper.PaperID == "" {
		return "", domain.NewExternalAPIError(sourceName, http.StatusOK, "paper has no id", nil)
	}
	return paper.PaperID, nil
}

// Recommend returns papers related to the given seed Semantic Scholar IDs,
// drawn from the citation graph.
func (c *Client) Recommend(ctx context.Context, seedIDs []string, limit int) ([]Paper, error) {
	if len(seedIDs) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 30
	}

	body, err := json.Marshal(recommendationsRequest{PositivePaperIDs: seedIDs})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/recommendations/v1/papers/?limit=%d&fields=%s",
		c.cfg.BaseURL, limit, recommendFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var result recommendationsResponse
	if err := c.doJSON(req, "recommend", &result); err != nil {
		return nil, err
	}

	c.logger.Debug().
		Int("seeds", len(seedIDs)).
		Int("recommendations", len(result.RecommendedPapers)).
		Msg("fetched recommendations")
	return result.RecommendedPapers, nil
}

func (c *Client) doJSON(req *http.Request, endpoint string, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordSourceRequestFailed(sourceName, endpoint)
		var exhausted *sources.RetriesExhaustedError
		if errors.As(err, &exhausted) {
			c.metrics.RecordSourceRateLimited(sourceName)
			return domain.NewRateLimitError(sourceName, c.cfg.RetryDelay)
		}
		return domain.NewExternalAPIError(sourceName, 0, "request failed", err)
	}
	defer resp.Body.Close()
	c.metrics.RecordSourceRequest(sourceName, endpoint, time.Since(start).Seconds())

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		c.metrics.RecordSourceRequestFailed(sourceName, endpoint)
		return domain.NewNotFoundError("paper", req.URL.Path)
	case resp.StatusCode == http.StatusTooManyRequests:
		c.metrics.RecordSourceRateLimited(sourceName)
		c.metrics.RecordSourceRequestFailed(sourceName, endpoint)
		return domain.NewRateLimitError(sourceName, c.cfg.RetryDelay)
	default:
		c.metrics.RecordSourceRequestFailed(sourceName, endpoint)
		return domain.NewExternalAPIError(sourceName, resp.StatusCode,
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewExternalAPIError(sourceName, resp.StatusCode, "malformed response", err)
	}
	return nil
}
