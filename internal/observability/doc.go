// Package observability provides logging and metrics support for the paper
// tracker.
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("arxiv_id", id).Msg("candidate fetched")
//
// # Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics("papers")
//
// Record metrics:
//
//	metrics.RecordPaperCreated()
//	metrics.RecordCandidatesFetched("arxiv_daily", 42)
//	metrics.RecordRecommendationRefresh(duration.Seconds())
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - request_id: HTTP request identifier
//   - source: Candidate source (arxiv_daily, semantic_scholar)
//   - paper_id: Library paper identifier
//   - arxiv_id: arXiv identifier
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
