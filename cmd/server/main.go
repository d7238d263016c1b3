package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dandantas/tablescout/internal/broadcast"
	"github.com/dandantas/tablescout/internal/config"
	"github.com/dandantas/tablescout/internal/database"
	"github.com/dandantas/tablescout/internal/evaluator"
	"github.com/dandantas/tablescout/internal/extraction"
	"github.com/dandantas/tablescout/internal/files"
	"github.com/dandantas/tablescout/internal/handler"
	"github.com/dandantas/tablescout/internal/metrics"
	"github.com/dandantas/tablescout/internal/model"
	"github.com/dandantas/tablescout/internal/scheduler"
	"github.com/dandantas/tablescout/internal/service"
	"github.com/dandantas/tablescout/internal/source"
	"github.com/dandantas/tablescout/internal/webhook"
	"github.com/dandantas/tablescout/internal/worker"
	"github.com/dandantas/tablescout/pkg/middleware"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	config.InitLogger(cfg)
	metrics.MustRegister()

	slog.Info("Starting TableScout service", "version", version)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The archive is optional; interfaces stay nil when it is disabled
	var (
		db         *database.MongoDB
		jobArchive *database.JobArchive
		pinger     handler.Pinger
		archive    service.Archive
		lister     handler.ArchiveLister
	)
	if cfg.Mongo.URI != "" {
		db, err = database.Connect(ctx, database.Options{
			URI:         cfg.Mongo.URI,
			Database:    cfg.Mongo.Database,
			Collection:  cfg.Mongo.Collection,
			Timeout:     cfg.Mongo.Timeout,
			MaxPoolSize: cfg.Mongo.MaxPoolSize,
			MinPoolSize: cfg.Mongo.MinPoolSize,
			Compressors: cfg.Mongo.Compressors,
		})
		if err != nil {
			slog.Error("Failed to connect to MongoDB", "error", err)
			os.Exit(1)
		}
		if err := database.CreateIndexes(ctx, db); err != nil {
			slog.Error("Failed to create indexes", "error", err)
			os.Exit(1)
		}
		jobArchive = database.NewJobArchive(db)
		pinger, archive, lister = db, jobArchive, jobArchive
	} else {
		slog.Info("MongoDB disabled, jobs are kept in memory only")
	}

	// Document source
	httpClient := source.NewHTTPClient(cfg.Research.FetchTimeout)
	provider, err := newProvider(cfg, httpClient)
	if err != nil {
		slog.Error("Failed to configure discovery", "error", err)
		os.Exit(1)
	}
	documents := source.New(
		source.NewBreakerProvider(provider, cfg.Discovery.BreakerFailures, cfg.Discovery.BreakerTimeout),
		httpClient,
		source.Config{
			UserAgent:        cfg.Research.UserAgent,
			MaxQueries:       cfg.Research.MaxQueries,
			SearchDelay:      cfg.Research.SearchDelay,
			FetchDelay:       cfg.Research.FetchDelay,
			ValidateDelay:    cfg.Research.ValidateDelay,
			Validate:         cfg.Research.Validate,
			MaxDocumentBytes: cfg.Research.MaxDocumentBytes,
		},
	)

	// Extraction adapter
	adapter := extraction.NewAdapter(
		newTableExtractor(cfg.Extraction),
		newTableAnalyzer(cfg.Extraction),
		cfg.Extraction.Timeout,
		cfg.Extraction.PreviewRows,
	)

	fileManager, err := files.NewManager(cfg.Storage.DownloadDir, cfg.Storage.UploadDir, cfg.Storage.ResultsDir)
	if err != nil {
		slog.Error("Failed to prepare storage directories", "error", err)
		os.Exit(1)
	}

	store := model.NewJobStore()
	hub := broadcast.NewHub(cfg.Broadcast.QueueSize)

	pool := worker.NewPool(cfg.Workers.PoolSize, cfg.Workers.QueueSize)
	pool.Start()

	var notifier service.Notifier
	if cfg.Webhook.URL != "" {
		notifier = webhook.NewDispatcher(
			cfg.Webhook.URL,
			cfg.Webhook.Timeout,
			webhook.RetryConfig{
				MaxAttempts:  cfg.Webhook.MaxAttempts,
				InitialDelay: cfg.Webhook.InitialBackoff,
			},
			cfg.Webhook.BreakerFailures,
			cfg.Webhook.BreakerTimeout,
		)
	}

	pipeline := service.NewPipeline(service.Dependencies{
		Store:     store,
		Source:    documents,
		Extractor: adapter,
		Publisher: hub,
		Files:     fileManager,
		Runner:    pool,
		Archive:   archive,
		Notifier:  notifier,
	}, service.Config{
		DefaultDocuments: cfg.Research.DefaultDocuments,
		MaxDocuments:     cfg.Research.MaxDocuments,
	})

	// Initialize janitor
	var janitor *scheduler.Janitor
	if cfg.Janitor.Enabled {
		janitor, err = scheduler.NewJanitor(scheduler.JanitorConfig{
			Schedule:         cfg.Janitor.Schedule,
			FileRetention:    cfg.Janitor.FileRetention,
			JobRetention:     cfg.Janitor.JobRetention,
			ArchiveRetention: cfg.Janitor.ArchiveRetention,
		}, fileManager, store)
		if err != nil {
			slog.Error("Failed to configure janitor", "error", err)
			os.Exit(1)
		}
		if jobArchive != nil {
			janitor.WithArchive(jobArchive)
		}
		janitor.Start(ctx)
	}

	// Initialize handlers
	researchHandler := handler.NewResearchHandler(pipeline)
	documentHandler := handler.NewDocumentHandler(pipeline, cfg.HTTP.MaxUploadMB)
	jobHandler := handler.NewJobHandler(pipeline, lister)
	webSocketHandler := handler.NewWebSocketHandler(hub, pipeline, cfg.Broadcast.WriteTimeout)
	healthHandler := handler.NewHealthHandler(pinger, pool, hub, version)

	// Create CORS config
	corsConfig := middleware.CORSConfig{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	}

	// Create router
	router := handler.NewRouter(
		researchHandler,
		documentHandler,
		jobHandler,
		webSocketHandler,
		healthHandler,
		corsConfig,
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router.Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		slog.Info("Starting HTTP server", "port", cfg.HTTP.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	slog.Info("Received shutdown signal, initiating graceful shutdown")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop accepting requests first so no new jobs are queued
	slog.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if janitor != nil {
		janitor.Stop()
	}

	slog.Info("Stopping worker pool...")
	if err := pool.Stop(shutdownCtx); err != nil {
		slog.Warn("Worker pool did not drain before the deadline", "error", err)
	}
	if err := pipeline.Wait(shutdownCtx); err != nil {
		slog.Warn("Pending notifications abandoned", "error", err)
	}

	// Live connections are closed after the last job update was queued
	hub.Close()

	if db != nil {
		if err := db.Disconnect(context.Background()); err != nil {
			slog.Error("Failed to disconnect from MongoDB", "error", err)
		}
	}

	slog.Info("TableScout service stopped")
}

// newProvider selects the discovery provider
func newProvider(cfg *config.Config, httpClient *http.Client) (source.Provider, error) {
	d := cfg.Discovery
	switch strings.ToLower(d.Provider) {
	case "perplexity":
		if d.PerplexityAPIKey == "" {
			return nil, errors.New("PERPLEXITY_API_KEY is required for the perplexity provider")
		}
		return source.NewPerplexityProvider(source.PerplexityConfig{
			APIKey:    d.PerplexityAPIKey,
			BaseURL:   d.PerplexityURL,
			Model:     d.PerplexityModel,
			MaxTokens: int(d.PerplexityTokens),
		}, httpClient), nil
	case "searchapi":
		filters, err := evaluator.ParseRules(d.SearchFilters)
		if err != nil {
			return nil, fmt.Errorf("invalid SEARCH_API_FILTERS: %w", err)
		}
		return source.NewSearchAPIProvider(source.SearchAPIConfig{
			Endpoint:    d.SearchURL,
			APIKey:      d.SearchAPIKey,
			APIKeyParam: d.SearchKeyParam,
			ResultsPath: d.SearchResults,
			URLField:    d.SearchURLField,
			TitleField:  d.SearchTitleField,
			ScoreField:  d.SearchScoreField,
			UserAgent:   cfg.Research.UserAgent,
			Filters:     filters,
		}, httpClient), nil
	default:
		return source.NewStaticProvider(d.StaticURLs), nil
	}
}

func newTableExtractor(cfg config.ExtractionConfig) extraction.TableExtractor {
	if strings.EqualFold(cfg.Mode, "service") {
		return &extraction.ServiceExtractor{
			URL:        cfg.ServiceURL,
			HTTPClient: &http.Client{Timeout: cfg.Timeout},
		}
	}
	return &extraction.CommandExtractor{Command: cfg.Command, Args: cfg.Args}
}

// newTableAnalyzer returns nil when no analyzer is configured, so the adapter
// falls back to keyword categories.
func newTableAnalyzer(cfg config.ExtractionConfig) extraction.TableAnalyzer {
	if cfg.AnalyzerCommand == "" {
		return nil
	}
	return &extraction.CommandAnalyzer{Command: cfg.AnalyzerCommand, Args: cfg.AnalyzerArgs}
}
