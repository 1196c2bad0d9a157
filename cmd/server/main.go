// Package main provides the entry point for the paper tracker API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kshitijsachan/papers/internal/backup"
	"github.com/kshitijsachan/papers/internal/config"
	"github.com/kshitijsachan/papers/internal/database"
	"github.com/kshitijsachan/papers/internal/llm"
	"github.com/kshitijsachan/papers/internal/observability"
	"github.com/kshitijsachan/papers/internal/recommend"
	"github.com/kshitijsachan/papers/internal/repository"
	httpserver "github.com/kshitijsachan/papers/internal/server/http"
	"github.com/kshitijsachan/papers/internal/sources/arxiv"
	"github.com/kshitijsachan/papers/internal/sources/semanticscholar"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("paper tracker server starting")

	metrics := observability.NewMetrics("papers")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	// Run migrations if configured.
	if cfg.Database.MigrationAutoRun {
		migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		defer func() {
			if closeErr := migrator.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close migrator")
			}
		}()

		if err := migrator.Up(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	// Create repositories.
	paperRepo := repository.NewPgPaperRepository(db)
	tagRepo := repository.NewPgTagRepository(db)

	// Create external source clients.
	arxivClient := arxiv.New(arxiv.Config{
		BaseURL:    cfg.Sources.ArXiv.BaseURL,
		Timeout:    cfg.Sources.ArXiv.Timeout,
		RateLimit:  cfg.Sources.ArXiv.RateLimit,
		RetryDelay: cfg.Sources.ArXiv.RetryDelay,
	}, logger, metrics)

	scholarClient := semanticscholar.New(semanticscholar.Config{
		BaseURL:    cfg.Sources.SemanticScholar.BaseURL,
		APIKey:     cfg.Sources.SemanticScholar.APIKey,
		Timeout:    cfg.Sources.SemanticScholar.Timeout,
		RateLimit:  cfg.Sources.SemanticScholar.RateLimit,
		RetryDelay: cfg.Sources.SemanticScholar.RetryDelay,
	}, logger, metrics)

	// Create the Claude relevance scorer. Without an API key the scorer
	// falls back to neutral ordering.
	scorer := llm.NewClaudeScorer(llm.AnthropicConfig{
		APIKey:     cfg.LLM.Anthropic.APIKey,
		Model:      cfg.LLM.Anthropic.Model,
		BaseURL:    cfg.LLM.Anthropic.BaseURL,
		Timeout:    cfg.LLM.Timeout,
		MaxRetries: cfg.LLM.MaxRetries,
		RetryDelay: cfg.LLM.RetryDelay,
		MaxTokens:  cfg.LLM.MaxTokens,
	}, logger, metrics)

	// Assemble the recommendation pipeline.
	cache := recommend.NewFileCache(cfg.Recommendations.CachePath, cfg.Recommendations.CacheTTL, logger)
	recommender := recommend.New(paperRepo, arxivClient, scholarClient, scorer, cache, recommend.Options{
		Categories:       cfg.Recommendations.Categories,
		Days:             cfg.Recommendations.Days,
		MaxNewPapers:     cfg.Recommendations.MaxNewPapers,
		MaxSeedPapers:    cfg.Recommendations.MaxSeedPapers,
		MaxRelatedPapers: cfg.Recommendations.MaxRelatedPapers,
	}, logger, metrics)

	// Set up the debounced backup runner.
	backups := backup.NewRunner(backup.Config{
		Script:    cfg.Backup.Script,
		Debounce:  cfg.Backup.Debounce,
		DumpPath:  cfg.Backup.DumpPath,
		StatePath: cfg.Backup.StatePath,
	}, logger, metrics)
	defer backups.Stop()

	// Create the HTTP API server.
	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	httpSrv := httpserver.NewServer(
		httpCfg,
		paperRepo,
		tagRepo,
		recommender,
		arxivClient,
		backups,
		db,
		logger,
		metrics,
	)

	// Set up Prometheus metrics handler on a separate port if configured.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
	}

	// Channel to collect server errors.
	errCh := make(chan error, 2)

	// Start HTTP API server in background.
	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Start metrics server if configured.
	if metricsServer != nil {
		go func() {
			logger.Info().
				Str("address", metricsServer.Addr).
				Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	readyLog := logger.Info().Str("http_address", httpCfg.Address)
	if metricsServer != nil {
		readyLog = readyLog.Str("metrics_address", metricsServer.Addr)
	}
	readyLog.Msg("paper tracker is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	// Graceful shutdown.
	logger.Info().Msg("shutting down paper tracker")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	logger.Info().Msg("shutdown complete")
	return nil
}
