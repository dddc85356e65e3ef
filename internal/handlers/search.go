package handlers

import (
	"context"
	"net/http"
	"strings"

	"knowledge-graph-service/internal/search"
)

// Searcher answers natural-language queries over a user's notes.
type Searcher interface {
	Search(ctx context.Context, userID int64, query string) search.Result
}

// SearchHandler handles agent search requests.
type SearchHandler struct {
	searcher Searcher
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(searcher Searcher) *SearchHandler {
	return &SearchHandler{searcher: searcher}
}

// SearchResponse represents the HTTP response payload for agent search.
type SearchResponse struct {
	Success   bool              `json:"success"`
	Response  string            `json:"response"`
	Documents []search.Document `json:"documents"`
}

type searchQuery struct {
	Query string `query:"query" validate:"required,min=1,max=500"`
}

// ServeHTTP runs the search pipeline for the query parameter.
func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	uid, err := userID(r)
	if err != nil {
		handleServiceError(w, ctx, err, "")
		return
	}

	q := searchQuery{Query: strings.TrimSpace(r.URL.Query().Get("query"))}
	if err := validateRequest(q); err != nil {
		handleServiceError(w, ctx, err, "")
		return
	}

	result := h.searcher.Search(ctx, uid, q.Query)
	writeJSON(ctx, w, http.StatusOK, SearchResponse{
		Success:   true,
		Response:  result.ResponseText,
		Documents: result.Documents,
	})
}
