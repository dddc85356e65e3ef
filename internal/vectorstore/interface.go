package vectorstore

import (
	"context"
	"time"

	"knowledge-graph-service/internal/similarity"
)

// Point is one note embedding mirrored into the vector store.
type Point struct {
	NoteID    int64
	UserID    int64
	Title     string
	CreatedAt time.Time
	Vec       []float32
}

// VectorStore mirrors note embeddings and answers nearest-neighbour queries.
type VectorStore interface {
	similarity.CandidateSource

	// Upsert inserts or replaces the point for a note.
	Upsert(ctx context.Context, point Point) error

	// SetTitle rewrites the title stored alongside a note's vector.
	SetTitle(ctx context.Context, noteID int64, title string) error

	// Delete removes the point for a note. Deleting a missing point is not an error.
	Delete(ctx context.Context, noteID int64) error
}
