// Package app wires the shared services of the API, the worker and kgctl
// from a loaded Config.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"knowledge-graph-service/internal/config"
	"knowledge-graph-service/internal/graphstore"
	"knowledge-graph-service/internal/handlers"
	"knowledge-graph-service/internal/llm"
	"knowledge-graph-service/internal/markdown"
	"knowledge-graph-service/internal/metrics"
	"knowledge-graph-service/internal/planner"
	"knowledge-graph-service/internal/search"
	"knowledge-graph-service/internal/service"
	"knowledge-graph-service/internal/similarity"
	"knowledge-graph-service/internal/storage"
	"knowledge-graph-service/internal/vectorstore"
)

// MetricsNamespace prefixes every exported metric.
const MetricsNamespace = "knowledge_graph"

// NewLogger builds the process logger from the configured level and format.
func NewLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// App holds the long-lived clients and services.
type App struct {
	Config   *config.Config
	Graph    *graphstore.Client
	Store    *graphstore.Store
	Qdrant   *vectorstore.QdrantStore
	Embedder *llm.EmbeddingsClient
	Engine   *similarity.Engine
	Notes    *service.NoteService
	GraphSvc *service.GraphService
	Metrics  *metrics.Collector

	failureDB *sql.DB
	closers   []func() error
}

// New connects to Neo4j, applies the schema, checks the embedding dimension
// and builds the note services. Any error here must stop the process before
// it takes traffic or deliveries.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, Metrics: metrics.NewCollector(MetricsNamespace)}

	client, err := graphstore.NewClient(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase)
	if err != nil {
		return nil, err
	}
	a.Graph = client
	a.closers = append(a.closers, func() error { return client.Close(context.Background()) })

	p := planner.New()
	if err := graphstore.EnsureSchema(ctx, client, p.IndexName, cfg.EmbeddingDimension); err != nil {
		a.Close()
		return nil, err
	}
	a.Store = graphstore.NewStore(client, p)

	a.Embedder = llm.NewEmbeddingsClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimension,
		llm.WithTokenizer(llm.NewTiktokenTokenizer(cfg.EmbeddingModel)))
	probe, _, err := a.Embedder.Embed(ctx, "test")
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to validate embedding client: %w", err)
	}
	slog.InfoContext(ctx, "Embedding client validated", "model", cfg.EmbeddingModel, "vector_size", len(probe))

	var source similarity.CandidateSource = a.Store
	noteOpts := []service.NoteOption{service.WithExtractor(markdown.NewExtractor())}
	if cfg.VectorBackend == config.VectorBackendQdrant {
		qs, err := vectorstore.NewQdrantStore(cfg.QdrantURL, cfg.QdrantCollection)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Qdrant = qs
		a.closers = append(a.closers, qs.Close)
		if err := qs.EnsureCollection(ctx, cfg.EmbeddingDimension); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to ensure Qdrant collection: %w", err)
		}
		source = qs
		noteOpts = append(noteOpts, service.WithMirror(qs))
	}
	slog.InfoContext(ctx, "Vector backend ready", "backend", cfg.VectorBackend)

	a.Engine = similarity.NewEngine(source, a.Store, similarity.Config{
		Threshold:        cfg.SimilarityThreshold,
		MaxRelationships: cfg.MaxRelationships,
	})
	a.Notes = service.NewNoteService(a.Store, a.Embedder, a.Engine, noteOpts...)
	a.GraphSvc = service.NewGraphService(a.Store)
	return a, nil
}

// FailureStore opens the dead-letter ledger, creating its tables if needed.
func (a *App) FailureStore() (*storage.FailureRepo, error) {
	if a.failureDB == nil {
		db, err := storage.New(a.Config.FailureDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open failure ledger: %w", err)
		}
		if err := storage.Migrate(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to migrate failure ledger: %w", err)
		}
		a.failureDB = db
		a.closers = append(a.closers, db.Close)
	}
	return storage.NewFailureRepo(a.failureDB), nil
}

// Orchestrator builds the search pipeline behind a circuit breaker. The
// caller releases it.
func (a *App) Orchestrator() (*search.Orchestrator, error) {
	cfg := a.Config
	chat := llm.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel).WithTemperature(cfg.SearchAgentTemperature)
	breaker := llm.NewCircuitBreakerClient(chat, llm.DefaultBreakerConfig("search_agent"))
	if err := a.Metrics.RegisterBreaker(MetricsNamespace, "search_agent", breaker); err != nil {
		return nil, fmt.Errorf("failed to register breaker metric: %w", err)
	}

	return search.NewOrchestrator(breaker, a.Embedder, a.Store, search.Config{
		TopK:                 cfg.TopK,
		SearchLimit:          cfg.SearchLimit,
		RelevanceConcurrency: cfg.RelevanceConcurrency,
		Temperature:          cfg.SearchAgentTemperature,
	}, search.WithRecorder(a.Metrics))
}

// HealthChecks lists the dependencies probed by the health endpoint.
func (a *App) HealthChecks() []handlers.Check {
	checks := []handlers.Check{{Name: "neo4j", Pinger: a.Graph, Critical: true}}
	if a.Qdrant != nil {
		checks = append(checks, handlers.Check{Name: "qdrant", Pinger: a.Qdrant})
	}
	return checks
}

// Close releases every client in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("failed to close resource", "error", err)
		}
	}
	a.closers = nil
}
