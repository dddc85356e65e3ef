package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"knowledge-graph-service/internal/handlers"
	"knowledge-graph-service/internal/ingest"
	"knowledge-graph-service/internal/metrics"
	"knowledge-graph-service/internal/storage"
)

const (
	apiPrefix   = "/ai/api/v1"
	healthPath  = "/ai/health"
	metricsPath = "/metrics"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Notes    handlers.NoteService
	Searcher handlers.Searcher
	Graph    handlers.GraphService
	// Publisher enables POST /notes/async. Optional.
	Publisher handlers.EventPublisher
	// Failures enables the ingestion failure ledger routes. Optional.
	Failures storage.FailureStore
	// Replayer enables replaying ledger entries. Optional.
	Replayer     ingest.EventPublisher
	HealthChecks []handlers.Check
	// Metrics instruments requests and serves /metrics. Optional.
	Metrics *metrics.Collector
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(CORS)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	noteHandler := handlers.NewNoteHandler(deps.Notes, deps.Publisher)
	searchHandler := handlers.NewSearchHandler(deps.Searcher)
	graphHandler := handlers.NewGraphHandler(deps.Graph)

	r.Route(apiPrefix, func(r chi.Router) {
		r.Route("/notes", func(r chi.Router) {
			r.Post("/", noteHandler.Create)
			r.Get("/", noteHandler.List)
			r.Post("/async", noteHandler.CreateAsync)
			r.Get("/{noteID}", noteHandler.Get)
			r.Patch("/{noteID}", noteHandler.Update)
			r.Delete("/{noteID}", noteHandler.Delete)
		})

		r.Method(http.MethodGet, "/agents/search", searchHandler)
		r.Get("/search/by-title", noteHandler.SearchByTitle)

		r.Get("/stats", graphHandler.Stats)
		r.Get("/graph/visualization", graphHandler.Visualization)
		r.Get("/graph/neighbors/{noteID}", graphHandler.Neighbors)

		if deps.Failures != nil {
			failureHandler := handlers.NewFailureHandler(deps.Failures, deps.Replayer)
			r.Get("/ingestion/failures", failureHandler.List)
			r.Post("/ingestion/failures/{failureID}/replay", failureHandler.Replay)
		}
	})

	r.Method(http.MethodGet, healthPath, handlers.NewHealthHandler(deps.HealthChecks...))
	if deps.Metrics != nil {
		r.Method(http.MethodGet, metricsPath, deps.Metrics.Handler())
	}

	return r
}
