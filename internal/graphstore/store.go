package graphstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"knowledge-graph-service/internal/contextutil"
	"knowledge-graph-service/internal/planner"
	"knowledge-graph-service/internal/similarity"
)

// Note is a stored note without its embedding.
type Note struct {
	NoteID    int64     `json:"note_id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScoredNote is a note ranked against a query or linked by an edge.
type ScoredNote struct {
	Note
	Score float64 `json:"similarity_score"`
}

// Stats summarizes a user's graph.
type Stats struct {
	TotalNotes         int64   `json:"total_notes"`
	TotalRelationships int64   `json:"total_relationships"`
	AvgConnections     float64 `json:"avg_connections"`
}

// GraphNode is a note in the visualization graph.
type GraphNode struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"created_at"`
	Connections int64     `json:"connections"`
}

// GraphLink is one SIMILAR_TO edge in the visualization graph.
type GraphLink struct {
	Source int64   `json:"source"`
	Target int64   `json:"target"`
	Score  float64 `json:"score"`
}

// Graph is the visualization payload.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Links []GraphLink `json:"links"`
}

// Neighbor is a note reachable from a center note.
type Neighbor struct {
	NoteID   int64  `json:"note_id"`
	Title    string `json:"title"`
	Distance int64  `json:"distance"`
}

// Store implements note persistence, the SIMILAR_TO edge store and the
// native vector-index candidate source.
type Store struct {
	run     Runner
	planner planner.Planner
}

// NewStore creates a Store.
func NewStore(run Runner, p planner.Planner) *Store {
	return &Store{run: run, planner: p}
}

// CreateNote inserts a note. ErrDuplicateNote is returned when the note id is taken.
func (s *Store) CreateNote(ctx context.Context, noteID, userID int64, title string, embedding []float32) (Note, error) {
	logger := contextutil.LoggerFromContext(ctx)

	rows, err := s.run.Write(ctx, `
CREATE (n:Note {
    note_id: $note_id,
    user_id: $user_id,
    title: $title,
    embedding: $embedding,
    created_at: datetime(),
    updated_at: datetime()
})
RETURN n.note_id AS note_id, n.user_id AS user_id, n.title AS title,
       n.created_at AS created_at, n.updated_at AS updated_at`,
		map[string]any{
			"note_id":   noteID,
			"user_id":   userID,
			"title":     title,
			"embedding": planner.Float64s(embedding),
		})
	if err != nil {
		if isConstraintViolation(err) {
			return Note{}, fmt.Errorf("%w: %d", ErrDuplicateNote, noteID)
		}
		logger.ErrorContext(ctx, "failed to create note", "note_id", noteID, "user_id", userID, "error", err)
		return Note{}, fmt.Errorf("failed to create note: %w", err)
	}
	if len(rows) == 0 {
		return Note{}, fmt.Errorf("failed to create note: no record returned")
	}

	logger.InfoContext(ctx, "note created", "note_id", noteID, "user_id", userID)
	return noteFromRow(rows[0]), nil
}

// UpdateNote sets the title and/or embedding. A nil title or empty embedding
// leaves that property unchanged.
func (s *Store) UpdateNote(ctx context.Context, userID, noteID int64, title *string, embedding []float32) error {
	sets := []string{"n.updated_at = datetime()"}
	params := map[string]any{"note_id": noteID, "user_id": userID}
	if title != nil {
		sets = append(sets, "n.title = $title")
		params["title"] = *title
	}
	if len(embedding) > 0 {
		sets = append(sets, "n.embedding = $embedding")
		params["embedding"] = planner.Float64s(embedding)
	}

	rows, err := s.run.Write(ctx, `
MATCH (n:Note {note_id: $note_id, user_id: $user_id})
SET `+strings.Join(sets, ", ")+`
RETURN count(n) AS updated`, params)
	if err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}
	if len(rows) == 0 || asInt64(rows[0]["updated"]) == 0 {
		return ErrNoteNotFound
	}
	return nil
}

// DeleteNote detaches and deletes the note, removing its edges with it.
func (s *Store) DeleteNote(ctx context.Context, userID, noteID int64) error {
	rows, err := s.run.Write(ctx, `
MATCH (n:Note {note_id: $note_id, user_id: $user_id})
DETACH DELETE n
RETURN count(n) AS deleted`, map[string]any{"note_id": noteID, "user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	if len(rows) == 0 || asInt64(rows[0]["deleted"]) == 0 {
		return ErrNoteNotFound
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "note deleted", "note_id", noteID, "user_id", userID)
	return nil
}

// GetNote returns one note of the user.
func (s *Store) GetNote(ctx context.Context, userID, noteID int64) (Note, error) {
	rows, err := s.run.Read(ctx, `
MATCH (n:Note {note_id: $note_id, user_id: $user_id})
RETURN n.note_id AS note_id, n.user_id AS user_id, n.title AS title,
       n.created_at AS created_at, n.updated_at AS updated_at`,
		map[string]any{"note_id": noteID, "user_id": userID})
	if err != nil {
		return Note{}, fmt.Errorf("failed to get note: %w", err)
	}
	if len(rows) == 0 {
		return Note{}, ErrNoteNotFound
	}
	return noteFromRow(rows[0]), nil
}

// ListNotes returns a page of the user's notes, newest first, and the total count.
func (s *Store) ListNotes(ctx context.Context, userID int64, skip, limit int) ([]Note, int64, error) {
	countRows, err := s.run.Read(ctx, "MATCH (n:Note {user_id: $user_id}) RETURN count(n) AS total",
		map[string]any{"user_id": userID})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count notes: %w", err)
	}
	var total int64
	if len(countRows) > 0 {
		total = asInt64(countRows[0]["total"])
	}

	rows, err := s.run.Read(ctx, `
MATCH (n:Note {user_id: $user_id})
RETURN n.note_id AS note_id, n.user_id AS user_id, n.title AS title,
       n.created_at AS created_at, n.updated_at AS updated_at
ORDER BY n.created_at DESC, n.note_id DESC
SKIP $skip
LIMIT $limit`, map[string]any{"user_id": userID, "skip": int64(skip), "limit": int64(limit)})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notes: %w", err)
	}

	notes := make([]Note, 0, len(rows))
	for _, row := range rows {
		notes = append(notes, noteFromRow(row))
	}
	return notes, total, nil
}

// SearchByTitle does a case-insensitive substring match on titles.
func (s *Store) SearchByTitle(ctx context.Context, userID int64, query string, limit int) ([]Note, error) {
	rows, err := s.run.Read(ctx, `
MATCH (n:Note {user_id: $user_id})
WHERE toLower(n.title) CONTAINS toLower($query)
RETURN n.note_id AS note_id, n.user_id AS user_id, n.title AS title,
       n.created_at AS created_at, n.updated_at AS updated_at
ORDER BY n.created_at DESC, n.note_id DESC
LIMIT $limit`, map[string]any{"user_id": userID, "query": query, "limit": int64(limit)})
	if err != nil {
		return nil, fmt.Errorf("failed to search notes by title: %w", err)
	}

	notes := make([]Note, 0, len(rows))
	for _, row := range rows {
		notes = append(notes, noteFromRow(row))
	}
	return notes, nil
}

// LinkedNotes returns the notes joined to noteID by SIMILAR_TO, best score first.
func (s *Store) LinkedNotes(ctx context.Context, userID, noteID int64, limit int) ([]ScoredNote, error) {
	rows, err := s.run.Read(ctx, `
MATCH (n:Note {note_id: $note_id, user_id: $user_id})
MATCH (n)-[r:SIMILAR_TO]-(similar:Note {user_id: $user_id})
RETURN similar.note_id AS note_id, similar.user_id AS user_id, similar.title AS title,
       similar.created_at AS created_at, similar.updated_at AS updated_at,
       r.score AS similarity_score
ORDER BY r.score DESC, similar.note_id ASC
LIMIT $limit`, map[string]any{"note_id": noteID, "user_id": userID, "limit": int64(limit)})
	if err != nil {
		return nil, fmt.Errorf("failed to get linked notes: %w", err)
	}

	out := make([]ScoredNote, 0, len(rows))
	for _, row := range rows {
		out = append(out, scoredNoteFromRow(row))
	}
	return out, nil
}

// FindByTime runs the planner's time filter query.
func (s *Store) FindByTime(ctx context.Context, userID int64, span *planner.TimeSpan, limit int) ([]Note, error) {
	q, err := s.planner.TimeFilter(userID, span, limit)
	if err != nil {
		return nil, err
	}
	rows, err := s.run.Read(ctx, q.Cypher, q.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to run time filter: %w", err)
	}

	notes := make([]Note, 0, len(rows))
	for _, row := range rows {
		n := noteFromRow(row)
		n.UserID = userID
		notes = append(notes, n)
	}
	return notes, nil
}

// FindBySimilarity runs the planner's similarity query.
func (s *Store) FindBySimilarity(ctx context.Context, userID int64, embedding []float32, span *planner.TimeSpan, limit int) ([]ScoredNote, error) {
	q, err := s.planner.Similarity(embedding, userID, span, limit)
	if err != nil {
		return nil, err
	}
	rows, err := s.run.Read(ctx, q.Cypher, q.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to run similarity query: %w", err)
	}

	out := make([]ScoredNote, 0, len(rows))
	for _, row := range rows {
		n := scoredNoteFromRow(row)
		n.UserID = userID
		out = append(out, n)
	}
	return out, nil
}

// Nearest queries the native vector index for neighbours of a note.
func (s *Store) Nearest(ctx context.Context, userID, noteID int64, embedding []float32, threshold float64, limit int) ([]similarity.Candidate, error) {
	q, err := s.planner.SimilarNotes(userID, noteID, embedding, threshold, limit)
	if err != nil {
		return nil, err
	}
	rows, err := s.run.Read(ctx, q.Cypher, q.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to query vector index: %w", err)
	}

	out := make([]similarity.Candidate, 0, len(rows))
	for _, row := range rows {
		out = append(out, similarity.Candidate{
			NoteID:    asInt64(row["note_id"]),
			UserID:    asInt64(row["user_id"]),
			Title:     asString(row["title"]),
			Score:     asFloat64(row["similarity_score"]),
			CreatedAt: asTime(row["created_at"]),
		})
	}
	return out, nil
}

// MergeEdge creates or rescores the SIMILAR_TO edge between two notes of the user.
func (s *Store) MergeEdge(ctx context.Context, userID, noteID, otherID int64, score float64) error {
	rows, err := s.run.Write(ctx, `
MATCH (n:Note {note_id: $note_id, user_id: $user_id})
MATCH (m:Note {note_id: $other_id, user_id: $user_id})
MERGE (n)-[r:SIMILAR_TO]-(m)
SET r.score = $score
RETURN count(r) AS merged`, map[string]any{
		"note_id":  noteID,
		"other_id": otherID,
		"user_id":  userID,
		"score":    score,
	})
	if err != nil {
		return fmt.Errorf("failed to merge edge: %w", err)
	}
	if len(rows) == 0 || asInt64(rows[0]["merged"]) == 0 {
		return ErrNoteNotFound
	}
	return nil
}

// DeleteEdges removes every SIMILAR_TO edge touching the note.
func (s *Store) DeleteEdges(ctx context.Context, userID, noteID int64) (int, error) {
	rows, err := s.run.Write(ctx, `
MATCH (n:Note {note_id: $note_id, user_id: $user_id})-[r:SIMILAR_TO]-()
DELETE r
RETURN count(r) AS deleted`, map[string]any{"note_id": noteID, "user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete edges: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return int(asInt64(rows[0]["deleted"])), nil
}

// PruneEdges keeps the note's keep highest scored edges and deletes the rest.
func (s *Store) PruneEdges(ctx context.Context, userID, noteID int64, keep int) (int, error) {
	rows, err := s.run.Write(ctx, `
MATCH (n:Note {note_id: $note_id, user_id: $user_id})-[r:SIMILAR_TO]-()
WITH r ORDER BY r.score DESC
SKIP $keep
DELETE r
RETURN count(r) AS pruned`, map[string]any{"note_id": noteID, "user_id": userID, "keep": int64(keep)})
	if err != nil {
		return 0, fmt.Errorf("failed to prune edges: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return int(asInt64(rows[0]["pruned"])), nil
}

// Stats counts notes and edges. Each undirected edge is seen from both
// endpoints, so the endpoint count is halved.
func (s *Store) Stats(ctx context.Context, userID int64) (Stats, error) {
	rows, err := s.run.Read(ctx, `
MATCH (n:Note {user_id: $user_id})
OPTIONAL MATCH (n)-[r:SIMILAR_TO]-(:Note {user_id: $user_id})
WITH count(DISTINCT n) AS total_notes, count(r) AS endpoints
RETURN total_notes,
       endpoints / 2 AS total_relationships,
       CASE WHEN total_notes > 0 THEN toFloat(endpoints) / total_notes ELSE 0.0 END AS avg_connections`,
		map[string]any{"user_id": userID})
	if err != nil {
		return Stats{}, fmt.Errorf("failed to get stats: %w", err)
	}
	if len(rows) == 0 {
		return Stats{}, nil
	}
	return Stats{
		TotalNotes:         asInt64(rows[0]["total_notes"]),
		TotalRelationships: asInt64(rows[0]["total_relationships"]),
		AvgConnections:     asFloat64(rows[0]["avg_connections"]),
	}, nil
}

// Visualization returns up to limit of the best connected notes and the
// edges among them.
func (s *Store) Visualization(ctx context.Context, userID int64, limit int) (Graph, error) {
	nodeRows, err := s.run.Read(ctx, `
MATCH (n:Note {user_id: $user_id})
OPTIONAL MATCH (n)-[r:SIMILAR_TO]-(:Note {user_id: $user_id})
WITH n, count(r) AS connections
RETURN n.note_id AS id, n.title AS title, n.created_at AS created_at, connections
ORDER BY connections DESC, id ASC
LIMIT $limit`, map[string]any{"user_id": userID, "limit": int64(limit)})
	if err != nil {
		return Graph{}, fmt.Errorf("failed to get graph nodes: %w", err)
	}

	graph := Graph{Nodes: make([]GraphNode, 0, len(nodeRows)), Links: []GraphLink{}}
	ids := make([]int64, 0, len(nodeRows))
	for _, row := range nodeRows {
		node := GraphNode{
			ID:          asInt64(row["id"]),
			Title:       asString(row["title"]),
			CreatedAt:   asTime(row["created_at"]),
			Connections: asInt64(row["connections"]),
		}
		graph.Nodes = append(graph.Nodes, node)
		ids = append(ids, node.ID)
	}
	if len(ids) == 0 {
		return graph, nil
	}

	// Directed match so each stored relationship is returned once.
	linkRows, err := s.run.Read(ctx, `
MATCH (a:Note {user_id: $user_id})-[r:SIMILAR_TO]->(b:Note {user_id: $user_id})
WHERE a.note_id IN $ids AND b.note_id IN $ids
RETURN a.note_id AS source, b.note_id AS target, r.score AS score`,
		map[string]any{"user_id": userID, "ids": ids})
	if err != nil {
		return Graph{}, fmt.Errorf("failed to get graph links: %w", err)
	}
	for _, row := range linkRows {
		graph.Links = append(graph.Links, GraphLink{
			Source: asInt64(row["source"]),
			Target: asInt64(row["target"]),
			Score:  asFloat64(row["score"]),
		})
	}
	return graph, nil
}

// Neighbors returns notes within depth hops of noteID with their shortest distance.
// The depth is clamped to 1..3.
func (s *Store) Neighbors(ctx context.Context, userID, noteID int64, depth int) ([]Neighbor, error) {
	if depth < 1 {
		depth = 1
	}
	if depth > 3 {
		depth = 3
	}

	// Variable length bounds cannot be parameters.
	rows, err := s.run.Read(ctx, fmt.Sprintf(`
MATCH (center:Note {note_id: $note_id, user_id: $user_id})
MATCH path = (center)-[:SIMILAR_TO*1..%d]-(neighbor:Note {user_id: $user_id})
WHERE neighbor <> center
WITH neighbor, min(length(path)) AS distance
RETURN neighbor.note_id AS note_id, neighbor.title AS title, distance
ORDER BY distance ASC, note_id ASC`, depth), map[string]any{"note_id": noteID, "user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to get neighbors: %w", err)
	}

	out := make([]Neighbor, 0, len(rows))
	for _, row := range rows {
		out = append(out, Neighbor{
			NoteID:   asInt64(row["note_id"]),
			Title:    asString(row["title"]),
			Distance: asInt64(row["distance"]),
		})
	}
	return out, nil
}
