// Package planner builds the Cypher queries behind note retrieval. It performs
// no I/O; every builder returns query text and its parameter map.
//
// Ordering: time lookups sort by created_at descending, then note_id
// descending. Similarity rankings sort by score descending, then note_id
// ascending.
package planner

import (
	"errors"
	"strings"
)

const (
	// DefaultIndexName is the Neo4j vector index over Note.embedding.
	DefaultIndexName = "note_embeddings"
	// DefaultCandidatePool is how many nearest nodes the vector index is asked for
	// before user and threshold filtering.
	DefaultCandidatePool = 100
)

var (
	// ErrInvalidLimit is returned for a non-positive limit.
	ErrInvalidLimit = errors.New("limit must be greater than 0")
	// ErrEmptyEmbedding is returned when a similarity query has no vector.
	ErrEmptyEmbedding = errors.New("embedding cannot be empty")
)

// Query is a parameterized Cypher statement.
type Query struct {
	Cypher string
	Params map[string]any
}

// TimeSpan bounds note creation time. Start and End are RFC 3339 timestamps;
// either may be empty to leave that side open.
type TimeSpan struct {
	Start       string `json:"start,omitempty"`
	End         string `json:"end,omitempty"`
	Description string `json:"description,omitempty"`
}

// IsZero reports whether the span bounds nothing.
func (t *TimeSpan) IsZero() bool {
	return t == nil || (t.Start == "" && t.End == "")
}

// Planner builds queries against a configured vector index.
type Planner struct {
	IndexName     string
	CandidatePool int
}

// New returns a Planner with the default index name and candidate pool.
func New() Planner {
	return Planner{IndexName: DefaultIndexName, CandidatePool: DefaultCandidatePool}
}

// TimeFilter returns the user's notes created within span, newest first.
func (p Planner) TimeFilter(userID int64, span *TimeSpan, limit int) (Query, error) {
	if limit <= 0 {
		return Query{}, ErrInvalidLimit
	}

	params := map[string]any{
		"user_id": userID,
		"limit":   int64(limit),
	}

	var b strings.Builder
	b.WriteString("MATCH (n:Note)\nWHERE n.user_id = $user_id")
	writeTimeBounds(&b, span, "n", params)
	b.WriteString(`
RETURN n.note_id AS note_id,
       n.title AS title,
       n.created_at AS created_at,
       n.updated_at AS updated_at
ORDER BY n.created_at DESC, n.note_id DESC
LIMIT $limit`)

	return Query{Cypher: b.String(), Params: params}, nil
}

// Similarity ranks the user's notes by cosine similarity to embedding.
//
// With a time span, the user and time filtered set is matched first and
// scored. Without one, the vector index is queried for CandidatePool nodes and
// narrowed to the user afterwards, so fewer than limit rows may come back.
func (p Planner) Similarity(embedding []float32, userID int64, span *TimeSpan, limit int) (Query, error) {
	if limit <= 0 {
		return Query{}, ErrInvalidLimit
	}
	if len(embedding) == 0 {
		return Query{}, ErrEmptyEmbedding
	}

	params := map[string]any{
		"user_id":   userID,
		"embedding": Float64s(embedding),
		"limit":     int64(limit),
	}

	var b strings.Builder
	if span.IsZero() {
		params["index_name"] = p.indexName()
		params["vector_limit"] = int64(p.candidatePool(limit))
		b.WriteString(`CALL db.index.vector.queryNodes($index_name, $vector_limit, $embedding)
YIELD node AS n, score
WHERE n.user_id = $user_id`)
	} else {
		b.WriteString("MATCH (n:Note)\nWHERE n.user_id = $user_id")
		writeTimeBounds(&b, span, "n", params)
		b.WriteString("\nWITH n, vector.similarity.cosine(n.embedding, $embedding) AS score")
	}
	b.WriteString(`
RETURN n.note_id AS note_id,
       n.title AS title,
       n.created_at AS created_at,
       n.updated_at AS updated_at,
       score AS similarity_score
ORDER BY score DESC, n.note_id ASC
LIMIT $limit`)

	return Query{Cypher: b.String(), Params: params}, nil
}

// SimilarNotes returns the nearest neighbours of a note through the vector
// index: same user, the note itself excluded, score at least threshold.
func (p Planner) SimilarNotes(userID, noteID int64, embedding []float32, threshold float64, limit int) (Query, error) {
	if limit <= 0 {
		return Query{}, ErrInvalidLimit
	}
	if len(embedding) == 0 {
		return Query{}, ErrEmptyEmbedding
	}

	return Query{
		Cypher: `CALL db.index.vector.queryNodes($index_name, $vector_limit, $embedding)
YIELD node AS similar, score
WHERE similar.user_id = $user_id
  AND similar.note_id <> $note_id
  AND score >= $threshold
RETURN similar.note_id AS note_id,
       similar.user_id AS user_id,
       similar.title AS title,
       score AS similarity_score,
       similar.created_at AS created_at
ORDER BY score DESC, similar.note_id ASC
LIMIT $limit`,
		Params: map[string]any{
			"index_name":   p.indexName(),
			"vector_limit": int64(p.candidatePool(limit)),
			"embedding":    Float64s(embedding),
			"user_id":      userID,
			"note_id":      noteID,
			"threshold":    threshold,
			"limit":        int64(limit),
		},
	}, nil
}

func writeTimeBounds(b *strings.Builder, span *TimeSpan, alias string, params map[string]any) {
	if span == nil {
		return
	}
	if span.Start != "" {
		b.WriteString("\n  AND " + alias + ".created_at >= datetime($start)")
		params["start"] = span.Start
	}
	if span.End != "" {
		b.WriteString("\n  AND " + alias + ".created_at <= datetime($end)")
		params["end"] = span.End
	}
}

func (p Planner) indexName() string {
	if p.IndexName == "" {
		return DefaultIndexName
	}
	return p.IndexName
}

// candidatePool never asks the index for fewer nodes than the caller wants back.
func (p Planner) candidatePool(limit int) int {
	pool := p.CandidatePool
	if pool <= 0 {
		pool = DefaultCandidatePool
	}
	if pool < limit {
		pool = limit
	}
	return pool
}

// Float64s widens an embedding for the Bolt driver, which stores lists of floats as doubles.
func Float64s(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
