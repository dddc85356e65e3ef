package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"knowledge-graph-service/internal/app"
	"knowledge-graph-service/internal/config"
	"knowledge-graph-service/internal/http"
	"knowledge-graph-service/internal/ingest"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Neo4j, schema and embedding dimension must be verified before serving.
	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}
	defer a.Close()
	slog.Info("Neo4j schema verified", "uri", cfg.Neo4jURI, "dimension", cfg.EmbeddingDimension)

	orchestrator, err := a.Orchestrator()
	if err != nil {
		log.Fatalf("Failed to create search orchestrator: %v", err)
	}
	defer orchestrator.Release()
	slog.Info("Search orchestrator initialized", "top_k", cfg.TopK, "search_limit", cfg.SearchLimit)

	failures, err := a.FailureStore()
	if err != nil {
		log.Fatalf("Failed to open failure ledger: %v", err)
	}

	deps := &http.Deps{
		Notes:        a.Notes,
		Searcher:     orchestrator,
		Graph:        a.GraphSvc,
		Failures:     failures,
		HealthChecks: a.HealthChecks(),
		Metrics:      a.Metrics,
	}

	// The broker is optional for the API: without it only async creation and replay are off.
	publisher, closePublisher, err := ingest.DialPublisher(cfg.RabbitMQURL(), ingest.DefaultTopology())
	if err != nil {
		slog.Warn("RabbitMQ unavailable, asynchronous ingestion disabled", "error", err)
	} else {
		defer func() {
			_ = closePublisher()
		}()
		deps.Publisher = publisher
		deps.Replayer = publisher
		slog.Info("Event publisher ready", "exchange", ingest.DefaultTopology().Exchange)
	}

	server := &nethttp.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           http.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Graceful shutdown failed", "error", err)
		}
	}()

	slog.Info("Starting API server", "addr", server.Addr)
	slog.Debug("LLM configuration", "base_url", cfg.OpenAIBaseURL, "model", cfg.OpenAIModel)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		log.Fatalf("API server failed to start: %v", err)
	}
	slog.Info("API server stopped")
}
