package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the paper tracker.
// Metrics are organized by subsystem: library, recommendations, sources,
// LLM scoring, and backups. All counters and histograms are registered via
// promauto for automatic registration with the default Prometheus registry.
type Metrics struct {
	// PapersCreated counts the total number of papers added to the library.
	PapersCreated prometheus.Counter

	// PapersDeleted counts the total number of papers removed from the library.
	PapersDeleted prometheus.Counter

	// RecommendationRefreshes counts full recommendation pipeline runs.
	RecommendationRefreshes prometheus.Counter

	// RecommendationCacheHits counts recommendation requests served from cache.
	RecommendationCacheHits prometheus.Counter

	// RecommendationDuration observes the end-to-end duration of pipeline runs in seconds.
	RecommendationDuration prometheus.Histogram

	// CandidatesFetched counts candidate papers fetched, labeled by source.
	CandidatesFetched *prometheus.CounterVec

	// SourceRequestsTotal counts HTTP requests to paper source APIs, labeled by source and endpoint.
	SourceRequestsTotal *prometheus.CounterVec

	// SourceRequestsFailed counts failed HTTP requests to paper source APIs, labeled by source and endpoint.
	SourceRequestsFailed *prometheus.CounterVec

	// SourceRequestDuration observes HTTP request duration to paper source APIs in seconds.
	SourceRequestDuration *prometheus.HistogramVec

	// SourceRateLimited counts rate-limited responses from paper source APIs, labeled by source.
	SourceRateLimited *prometheus.CounterVec

	// SearchesTotal counts arXiv search requests.
	SearchesTotal prometheus.Counter

	// SearchesFailed counts failed arXiv search requests.
	SearchesFailed prometheus.Counter

	// LLMRequestsTotal counts LLM API requests, labeled by model.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMRequestsFailed counts failed LLM API requests, labeled by model.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMRequestDuration observes LLM API request duration in seconds, labeled by model.
	LLMRequestDuration *prometheus.HistogramVec

	// LLMTokensUsed counts tokens consumed by scoring calls, labeled by model and token type.
	LLMTokensUsed *prometheus.CounterVec

	// LLMFallbacks counts scoring calls that fell back to neutral ordering.
	LLMFallbacks prometheus.Counter

	// BackupsTriggered counts debounced backup triggers.
	BackupsTriggered prometheus.Counter

	// BackupsCompleted counts backups that finished successfully.
	BackupsCompleted prometheus.Counter

	// BackupsFailed counts backups that ended in failure.
	BackupsFailed prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Library
		PapersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_created_total",
			Help:      "Total number of papers added to the library",
		}),
		PapersDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_deleted_total",
			Help:      "Total number of papers removed from the library",
		}),

		// Recommendations
		RecommendationRefreshes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendation_refreshes_total",
			Help:      "Total number of full recommendation pipeline runs",
		}),
		RecommendationCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendation_cache_hits_total",
			Help:      "Total number of recommendation requests served from cache",
		}),
		RecommendationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recommendation_duration_seconds",
			Help:      "Duration of recommendation pipeline runs in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
		CandidatesFetched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_fetched_total",
			Help:      "Total number of candidate papers fetched by source",
		}, []string{"source"}),

		// Paper sources
		SourceRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Total number of HTTP requests to paper source APIs",
		}, []string{"source", "endpoint"}),
		SourceRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_failed_total",
			Help:      "Total number of failed HTTP requests to paper source APIs",
		}, []string{"source", "endpoint"}),
		SourceRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Duration of HTTP requests to paper source APIs in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source", "endpoint"}),
		SourceRateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rate_limited_total",
			Help:      "Total number of rate-limited responses from paper source APIs",
		}, []string{"source"}),

		// Search
		SearchesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Total number of arXiv search requests",
		}),
		SearchesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_failed_total",
			Help:      "Total number of failed arXiv search requests",
		}),

		// LLM scoring
		LLMRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM API requests",
		}, []string{"model"}),
		LLMRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_failed_total",
			Help:      "Total number of failed LLM API requests",
		}, []string{"model"}),
		LLMRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of LLM API requests in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"model"}),
		LLMTokensUsed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens consumed by scoring calls",
		}, []string{"model", "type"}),
		LLMFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_fallbacks_total",
			Help:      "Total number of scoring calls that fell back to neutral ordering",
		}),

		// Backups
		BackupsTriggered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backups_triggered_total",
			Help:      "Total number of debounced backup triggers",
		}),
		BackupsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backups_completed_total",
			Help:      "Total number of backups that finished successfully",
		}),
		BackupsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backups_failed_total",
			Help:      "Total number of backups that failed",
		}),
	}
}

// RecordPaperCreated records a paper added to the library.
func (m *Metrics) RecordPaperCreated() {
	m.PapersCreated.Inc()
}

// RecordPaperDeleted records a paper removed from the library.
func (m *Metrics) RecordPaperDeleted() {
	m.PapersDeleted.Inc()
}

// RecordRecommendationRefresh records a full pipeline run.
func (m *Metrics) RecordRecommendationRefresh(durationSeconds float64) {
	m.RecommendationRefreshes.Inc()
	m.RecommendationDuration.Observe(durationSeconds)
}

// RecordRecommendationCacheHit records a request served from cache.
func (m *Metrics) RecordRecommendationCacheHit() {
	m.RecommendationCacheHits.Inc()
}

// RecordCandidatesFetched records candidate papers fetched from a source.
func (m *Metrics) RecordCandidatesFetched(source string, count int) {
	m.CandidatesFetched.WithLabelValues(source).Add(float64(count))
}

// RecordSourceRequest records a request to a paper source.
func (m *Metrics) RecordSourceRequest(source, endpoint string, durationSeconds float64) {
	m.SourceRequestsTotal.WithLabelValues(source, endpoint).Inc()
	m.SourceRequestDuration.WithLabelValues(source, endpoint).Observe(durationSeconds)
}

// RecordSourceRequestFailed records a failed request to a paper source.
func (m *Metrics) RecordSourceRequestFailed(source, endpoint string) {
	m.SourceRequestsFailed.WithLabelValues(source, endpoint).Inc()
}

// RecordSourceRateLimited records a rate limit response from a source.
func (m *Metrics) RecordSourceRateLimited(source string) {
	m.SourceRateLimited.WithLabelValues(source).Inc()
}

// RecordSearch records an arXiv search request.
func (m *Metrics) RecordSearch() {
	m.SearchesTotal.Inc()
}

// RecordSearchFailed records a failed arXiv search request.
func (m *Metrics) RecordSearchFailed() {
	m.SearchesFailed.Inc()
}

// RecordLLMRequest records an LLM scoring request.
func (m *Metrics) RecordLLMRequest(model string, durationSeconds float64, inputTokens, outputTokens int) {
	m.LLMRequestsTotal.WithLabelValues(model).Inc()
	m.LLMRequestDuration.WithLabelValues(model).Observe(durationSeconds)
	m.LLMTokensUsed.WithLabelValues(model, "input").Add(float64(inputTokens))
	m.LLMTokensUsed.WithLabelValues(model, "output").Add(float64(outputTokens))
}

// RecordLLMRequestFailed records a failed LLM scoring request.
func (m *Metrics) RecordLLMRequestFailed(model string) {
	m.LLMRequestsFailed.WithLabelValues(model).Inc()
}

// RecordLLMFallback records a scoring call served by the neutral fallback.
func (m *Metrics) RecordLLMFallback() {
	m.LLMFallbacks.Inc()
}

// RecordBackupTriggered records a debounced backup trigger.
func (m *Metrics) RecordBackupTriggered() {
	m.BackupsTriggered.Inc()
}

// RecordBackupCompleted records a successful backup.
func (m *Metrics) RecordBackupCompleted() {
	m.BackupsCompleted.Inc()
}

// RecordBackupFailed records a failed backup.
func (m *Metrics) RecordBackupFailed() {
	m.BackupsFailed.Inc()
}
