// Package similarity maintains the SIMILAR_TO graph between a user's notes.
package similarity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"knowledge-graph-service/internal/contextutil"
)

const (
	// DefaultLimit is used when FindSimilar is called without a positive limit.
	DefaultLimit = 10
	// MaxLimit caps the number of neighbours FindSimilar returns.
	MaxLimit = 50
)

// ErrStorage marks failures of the underlying graph or vector store.
var ErrStorage = errors.New("similarity storage error")

// Candidate is a neighbouring note and its similarity to the query note.
type Candidate struct {
	NoteID    int64     `json:"note_id"`
	UserID    int64     `json:"-"`
	Title     string    `json:"title"`
	Score     float64   `json:"similarity_score"`
	CreatedAt time.Time `json:"created_at"`
}

// CandidateSource answers nearest-neighbour queries over note embeddings.
// Results should already be narrowed to userID and threshold, but the engine
// does not rely on it.
type CandidateSource interface {
	Nearest(ctx context.Context, userID, noteID int64, embedding []float32, threshold float64, limit int) ([]Candidate, error)
}

// EdgeStore persists SIMILAR_TO relationships between notes of one user.
type EdgeStore interface {
	// MergeEdge creates or rescores the single edge between two notes.
	MergeEdge(ctx context.Context, userID, noteID, otherID int64, score float64) error
	// DeleteEdges removes every edge touching the note and returns how many were removed.
	DeleteEdges(ctx context.Context, userID, noteID int64) (int, error)
	// PruneEdges deletes the note's lowest scored edges beyond keep.
	PruneEdges(ctx context.Context, userID, noteID int64, keep int) (int, error)
}

// Config tunes the engine.
type Config struct {
	// Threshold is the minimum score for a neighbour, in [0,1].
	Threshold float64
	// MaxRelationships caps the edges held by any one note.
	MaxRelationships int
}

// Engine finds, links and unlinks similar notes.
type Engine struct {
	source CandidateSource
	edges  EdgeStore
	cfg    Config
}

// NewEngine creates an Engine.
func NewEngine(source CandidateSource, edges EdgeStore, cfg Config) *Engine {
	if cfg.MaxRelationships <= 0 {
		cfg.MaxRelationships = DefaultLimit
	}
	return &Engine{source: source, edges: edges, cfg: cfg}
}

// FindSimilar returns up to limit notes of userID most similar to embedding,
// excluding noteID itself and anything below the threshold. Results are sorted
// by score descending, ties by note id ascending.
func (e *Engine) FindSimilar(ctx context.Context, userID, noteID int64, embedding []float32, limit int) ([]Candidate, error) {
	logger := contextutil.LoggerFromContext(ctx)

	limit = clampLimit(limit)
	if len(embedding) == 0 {
		return nil, fmt.Errorf("embedding cannot be empty")
	}

	raw, err := e.source.Nearest(ctx, userID, noteID, embedding, e.cfg.Threshold, limit)
	if err != nil {
		logger.ErrorContext(ctx, "failed to query similar notes", "user_id", userID, "note_id", noteID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	out := make([]Candidate, 0, len(raw))
	seen := make(map[int64]bool, len(raw))
	for _, c := range raw {
		if c.UserID != userID || c.NoteID == noteID || seen[c.NoteID] {
			continue
		}
		c.Score = clampScore(c.Score)
		if c.Score < e.cfg.Threshold {
			continue
		}
		seen[c.NoteID] = true
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].NoteID < out[j].NoteID
	})
	if len(out) > limit {
		out = out[:limit]
	}

	logger.DebugContext(ctx, "similar notes found", "user_id", userID, "note_id", noteID, "count", len(out), "threshold", e.cfg.Threshold)
	return out, nil
}

// LinkSimilar links noteID to its nearest neighbours, at most MaxRelationships
// of them. Running it again with the same embedding yields the same edge set.
// A failed edge is logged and skipped; the count of edges written is returned.
func (e *Engine) LinkSimilar(ctx context.Context, userID, noteID int64, embedding []float32) (int, error) {
	logger := contextutil.LoggerFromContext(ctx)

	neighbours, err := e.FindSimilar(ctx, userID, noteID, embedding, e.cfg.MaxRelationships)
	if err != nil {
		return 0, err
	}
	if len(neighbours) == 0 {
		logger.InfoContext(ctx, "no similar notes to link", "user_id", userID, "note_id", noteID)
		return 0, nil
	}

	linked := 0
	for _, n := range neighbours {
		if err := e.edges.MergeEdge(ctx, userID, noteID, n.NoteID, n.Score); err != nil {
			logger.WarnContext(ctx, "failed to link similar note", "note_id", noteID, "similar_note_id", n.NoteID, "error", err)
			continue
		}
		linked++

		// Keep the neighbour within its own cap.
		if pruned, err := e.edges.PruneEdges(ctx, userID, n.NoteID, e.cfg.MaxRelationships); err != nil {
			logger.WarnContext(ctx, "failed to prune neighbour edges", "note_id", n.NoteID, "error", err)
		} else if pruned > 0 {
			logger.DebugContext(ctx, "pruned neighbour edges", "note_id", n.NoteID, "pruned", pruned)
		}
	}

	// Concurrent links from other notes may have pushed this note past its cap.
	if _, err := e.edges.PruneEdges(ctx, userID, noteID, e.cfg.MaxRelationships); err != nil {
		logger.WarnContext(ctx, "failed to prune note edges", "note_id", noteID, "error", err)
	}

	logger.InfoContext(ctx, "linked similar notes", "user_id", userID, "note_id", noteID, "linked", linked, "candidates", len(neighbours))
	return linked, nil
}

// UnlinkAll removes every SIMILAR_TO edge touching noteID.
func (e *Engine) UnlinkAll(ctx context.Context, userID, noteID int64) (int, error) {
	logger := contextutil.LoggerFromContext(ctx)

	deleted, err := e.edges.DeleteEdges(ctx, userID, noteID)
	if err != nil {
		logger.ErrorContext(ctx, "failed to unlink note", "user_id", userID, "note_id", noteID, "error", err)
		return 0, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	logger.InfoContext(ctx, "unlinked note", "user_id", userID, "note_id", noteID, "deleted", deleted)
	return deleted, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func clampScore(s float64) float64 {
	if math.IsNaN(s) {
		return 0
	}
	return math.Max(0, math.Min(1, s))
}
