package search

import (
	"context"
	"time"

	"knowledge-graph-service/internal/graphstore"
	"knowledge-graph-service/internal/planner"
)

// Type is the route PreFilter picks for a query.
type Type string

const (
	TypeDirectAnswer Type = "direct_answer"
	TypeSimpleLookup Type = "simple_lookup"
	TypeSimilarity   Type = "similarity"
)

// parseType maps the model's label to a route. Unknown labels search by similarity.
func parseType(s string) Type {
	switch Type(s) {
	case TypeDirectAnswer, TypeSimpleLookup, TypeSimilarity:
		return Type(s)
	default:
		return TypeSimilarity
	}
}

// Document is a note returned to the caller.
type Document struct {
	NoteID          int64     `json:"note_id"`
	Title           string    `json:"title"`
	CreatedAt       time.Time `json:"created_at,omitzero"`
	UpdatedAt       time.Time `json:"updated_at,omitzero"`
	SimilarityScore *float64  `json:"similarity_score,omitempty"`
}

// State accumulates one query as it moves through the stages.
type State struct {
	UserID         int64
	OriginalQuery  string
	RewrittenQuery string
	TimeFilter     *planner.TimeSpan
	SearchType     Type
	Documents      []Document
	ResponseText   string
}

// Result is what Search returns.
type Result struct {
	ResponseText string     `json:"response"`
	Documents    []Document `json:"documents"`
}

// Embedder turns query text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, int, error)
}

// NoteFinder runs the planner's retrieval queries.
type NoteFinder interface {
	FindByTime(ctx context.Context, userID int64, span *planner.TimeSpan, limit int) ([]graphstore.Note, error)
	FindBySimilarity(ctx context.Context, userID int64, embedding []float32, span *planner.TimeSpan, limit int) ([]graphstore.ScoredNote, error)
}

// Recorder observes completed searches.
type Recorder interface {
	RecordSearch(searchType string, documents int, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordSearch(string, int, time.Duration) {}
