// Package arxiv fetches paper metadata from the arXiv Atom API.
package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kshitijsachan/papers/internal/domain"
	"github.com/kshitijsachan/papers/internal/observability"
	"github.com/kshitijsachan/papers/internal/sources"
)

const sourceName = "arxiv"

// SupportedCategories lists the arXiv categories the recency feed accepts.
// Categories outside this list are silently dropped.
var SupportedCategories = []string{"cs.LG", "cs.CL", "cs.AI", "stat.ML"}

// Config holds settings for the arXiv client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RateLimit  float64
	BurstSize  int
	RetryDelay time.Duration
	MaxResults int
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://export.arxiv.org/api/query"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 3.0
	}
	if c.BurstSize <= 0 {
		c.BurstSize = 1
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 20
	}
}

// Client queries the arXiv API for recent and searched papers.
type Client struct {
	cfg     Config
	http    *sources.HTTPClient
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// New creates an arXiv client with a rate-limited HTTP client.
func New(cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Client {
	cfg.applyDefaults()
	httpClient := sources.NewHTTPClient(sources.HTTPClientConfig{
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		BurstSize:  cfg.BurstSize,
		RetryDelay: cfg.RetryDelay,
	})
	return NewWithHTTPClient(cfg, httpClient, logger, metrics)
}

// NewWithHTTPClient creates an arXiv client using the given HTTP client.
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

// FetchRecent returns papers submitted within the last days in the given
// categories, newest first. Unsupported categories are dropped; if none
// remain the call returns immediately without touching the network.
func (c *Client) FetchRecent(ctx context.Context, categories []string, days, maxResults int) ([]domain.CandidatePaper, error) {
	valid := filterCategories(categories)
	if len(valid) == 0 {
		c.logger.Warn().Strs("categories", categories).Msg("no supported categories requested")
		return nil, nil
	}
	if maxResults <= 0 {
		maxResults = c.cfg.MaxResults
	}

	terms := make([]string, len(valid))
	for i, cat := range valid {
		terms[i] = "cat:" + cat
	}
	params := url.Values{}
	params.Set("search_query", strings.Join(terms, " OR "))
	params.Set("start", "0")
	// Over-fetch so the date cutoff below still leaves enough papers.
	params.Set("max_results", fmt.Sprintf("%d", maxResults*2))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")

	feed, err := c.fetchFeed(ctx, "recent", params)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	papers := make([]domain.CandidatePaper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		published, perr := time.Parse(time.RFC3339, entry.Published)
		if perr != nil || published.Before(cutoff) {
			continue
		}
		papers = append(papers, entryToPaper(entry))
		if len(papers) >= maxResults {
			break
		}
	}

	c.logger.Debug().
		Int("fetched", len(feed.Entries)).
		Int("returned", len(papers)).
		Int("days", days).
		Msg("fetched recent papers")
	return papers, nil
}

// Search runs a full-text relevance search against arXiv.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]domain.CandidatePaper, error) {
	if maxResults <= 0 {
		maxResults = 20
	}
	params := url.Values{}
	params.Set("search_query", "all:"+query)
	params.Set("start", "0")
	params.Set("max_results", fmt.Sprintf("%d", maxResults))
	params.Set("sortBy", "relevance")

	feed, err := c.fetchFeed(ctx, "search", params)
	if err != nil {
		return nil, err
	}

	papers := make([]domain.CandidatePaper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		papers = append(papers, entryToPaper(entry))
	}
	return papers, nil
}

func (c *Client) fetchFeed(ctx context.Context, endpoint string, params url.Values) (*Feed, error) {
	reqURL := c.cfg.BaseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordSourceRequestFailed(sourceName, endpoint)
		return nil, domain.NewExternalAPIError(sourceName, 0, "request failed", err)
	}
	defer resp.Body.Close()
	c.metrics.RecordSourceRequest(sourceName, endpoint, time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		c.metrics.RecordSourceRequestFailed(sourceName, endpoint)
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode,
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	var feed Feed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, "malformed feed", err)
	}
	return &feed, nil
}

func filterCategories(categories []string) []string {
	valid := make([]string, 0, len(categories))
	for _, cat := range categories {
		for _, supported := range SupportedCategories {
			if cat == supported {
				valid = append(valid, cat)
				break
			}
		}
	}
	return valid
}

func entryToPaper(entry Entry) domain.CandidatePaper {
	names := make([]string, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		names = append(names, a.Name)
	}

	arxivID := domain.ExtractArxivID(entry.ID)
	pageURL := entry.ID
	for _, link := range entry.Links {
		if link.Rel == "alternate" {
			pageURL = link.Href
			break
		}
	}

	var published string
	if _, err := time.Parse(time.RFC3339, entry.Published); err == nil {
		published = entry.Published
	}

	return domain.CandidatePaper{
		Title:         normalizeWhitespace(entry.Title),
		Authors:       strings.Join(names, ", "),
		Abstract:      normalizeWhitespace(entry.Summary),
		ArxivID:       arxivID,
		URL:           pageURL,
		PublishedDate: published,
	}
}

// normalizeWhitespace collapses runs of whitespace, including the newlines
// arXiv embeds in long titles and abstracts, into single spaces.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
