package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"knowledge-graph-service/internal/app"
	"knowledge-graph-service/internal/config"
	"knowledge-graph-service/internal/contextutil"
	"knowledge-graph-service/internal/handlers"
	"knowledge-graph-service/internal/ingest"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := app.NewLogger(cfg).With("component", "ingest_worker")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = contextutil.WithLogger(ctx, logger)

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}
	defer a.Close()

	failures, err := a.FailureStore()
	if err != nil {
		log.Fatalf("Failed to open failure ledger: %v", err)
	}

	consumer := ingest.NewConsumer(
		ingest.NewHandler(a.Notes),
		nil,
		failures,
		ingest.ConsumerConfig{Topology: ingest.DefaultTopology(), MaxAttempts: cfg.IngestMaxAttempts},
		a.Metrics,
	)

	metricsServer := &nethttp.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           opsRouter(a),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("Serving worker metrics", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			slog.Error("Metrics server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	hostname, _ := os.Hostname()
	tag := fmt.Sprintf("kg-worker-%s-%d", hostname, os.Getpid())
	slog.Info("Starting ingestion worker", "consumer_tag", tag, "max_attempts", cfg.IngestMaxAttempts)
	if err := consumer.Serve(ctx, cfg.RabbitMQURL(), tag); err != nil {
		slog.Error("Ingestion worker stopped", "error", err)
	}
	slog.Info("Ingestion worker stopped")
}

func opsRouter(a *app.App) nethttp.Handler {
	r := chi.NewRouter()
	r.Method(nethttp.MethodGet, "/metrics", a.Metrics.Handler())
	r.Method(nethttp.MethodGet, "/health", handlers.NewHealthHandler(a.HealthChecks()...))
	return r
}
