// Package httpserver provides the HTTP REST API server for the paper tracker.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/kshitijsachan/papers/internal/backup"
	"github.com/kshitijsachan/papers/internal/database"
	"github.com/kshitijsachan/papers/internal/domain"
	"github.com/kshitijsachan/papers/internal/observability"
	"github.com/kshitijsachan/papers/internal/repository"
)

// Recommender produces the aggregated recommendation feed.
type Recommender interface {
	Get(ctx context.Context, forceRefresh bool) (*domain.RecommendationResult, error)
}

// Searcher runs ad-hoc queries against an external paper index.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]domain.CandidatePaper, error)
}

// BackupService schedules library backups and reports sync state.
type BackupService interface {
	Trigger()
	SyncStatus() backup.SyncStatus
}

// HealthChecker reports database connectivity for the health endpoints.
type HealthChecker interface {
	Health(ctx context.Context) database.HealthStatus
}

// Server is the HTTP REST API server.
type Server struct {
	router      chi.Router
	httpServer  *http.Server
	papers      repository.PaperRepository
	tags        repository.TagRepository
	recommender Recommender
	searcher    Searcher
	backups     BackupService
	db          HealthChecker
	validate    *validator.Validate
	logger      zerolog.Logger
	metrics     *observability.Metrics
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer creates a new HTTP server with all dependencies.
func NewServer(
	cfg Config,
	papers repository.PaperRepository,
	tags repository.TagRepository,
	recommender Recommender,
	searcher Searcher,
	backups BackupService,
	db HealthChecker,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Server {
	s := &Server{
		papers:      papers,
		tags:        tags,
		recommender: recommender,
		searcher:    searcher,
		backups:     backups,
		db:          db,
		validate:    validator.New(),
		logger:      logger.With().Str("component", "http-server").Logger(),
		metrics:     metrics,
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(s.requestLoggerMiddleware)
	r.Use(corsMiddleware)
	r.Use(jsonContentTypeMiddleware)

	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Route("/papers", func(r chi.Router) {
		r.Get("/", s.listPapers)
		r.Post("/", s.createPaper)
		r.Post("/code-urls", s.batchCodeURLs)

		r.Route("/{paperID}", func(r chi.Router) {
			r.Get("/", s.getPaper)
			r.Patch("/", s.updatePaper)
			r.Delete("/", s.deletePaper)
			r.Get("/notes", s.getNotes)
			r.Put("/notes", s.updateNotes)
			r.Get("/code-url", s.getCodeURL)
			r.Put("/tags", s.setPaperTags)
		})
	})

	r.Get("/tags", s.listTags)
	r.Post("/tags", s.createTag)
	r.Get("/search", s.searchPapers)
	r.Get("/recommendations", s.getRecommendations)
	r.Get("/sync-status", s.syncStatus)

	return r
}

// Handler exposes the router for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := s.db.Health(r.Context())
	if health.Status == "healthy" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": health.Status})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status":   "unhealthy",
		"database": health.Status,
		"error":    health.Error,
	})
}

// readinessHandler returns readiness status.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	health := s.db.Health(r.Context())
	if health.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": "healthy",
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort log; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
