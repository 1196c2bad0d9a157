package recommend

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/kshitijsachan/papers/internal/domain"
)

// Cache stores the latest recommendation result between refreshes.
type Cache interface {
	// Get returns the cached result, or false if none is valid.
	Get() (*domain.RecommendationResult, bool)
	// Set replaces the cached result.
	Set(result *domain.RecommendationResult) error
	// Clear removes the cached result.
	Clear() error
}

// FileCache persists one recommendation result as JSON on disk with a TTL
// anchored to the result's GeneratedAt timestamp. A missing, malformed, or
// expired file is treated as a cache miss.
type FileCache struct {
	path   string
	ttl    time.Duration
	logger zerolog.Logger
}

var _ Cache = (*FileCache)(nil)

// NewFileCache creates a file-backed cache at path with the given TTL.
func NewFileCache(path string, ttl time.Duration, logger zerolog.Logger) *FileCache {
	return &FileCache{
		path:   path,
		ttl:    ttl,
		logger: logger.With().Str("component", "recommendation_cache").Logger(),
	}
}

// Get implements Cache.
func (c *FileCache) Get() (*domain.RecommendationResult, bool) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, false
	}

	var result domain.RecommendationResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Warn().Err(err).Str("path", c.path).Msg("discarding malformed cache file")
		return nil, false
	}
	if result.GeneratedAt.IsZero() || time.Since(result.GeneratedAt) >= c.ttl {
		return nil, false
	}
	return &result, true
}

// Set implements Cache. The file is written to a temp path and renamed so a
// crash mid-write never leaves a truncated cache.
func (c *FileCache) Set(result *domain.RecommendationResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating cache dir: %w", err)
		}
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replacing cache: %w", err)
	}
	return nil
}

// Clear implements Cache.
func (c *FileCache) Clear() error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing cache: %w", err)
	}
	return nil
}
