package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_note_deps.go -package=mocks knowledge-graph-service/internal/service NoteStore,Embedder,Linker,Mirror

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"knowledge-graph-service/internal/contextutil"
	"knowledge-graph-service/internal/graphstore"
	"knowledge-graph-service/internal/similarity"
	"knowledge-graph-service/internal/vectorstore"
)

const (
	// DefaultPageLimit is the page size of ListNotes when none is given.
	DefaultPageLimit = 20
	// MaxPageLimit caps the page size of ListNotes.
	MaxPageLimit = 100
	// DefaultTitleSearchLimit is the row limit of SearchByTitle when none is given.
	DefaultTitleSearchLimit = 20
	// MaxTitleSearchLimit caps SearchByTitle.
	MaxTitleSearchLimit = 100
)

// NoteStore persists notes in the graph.
type NoteStore interface {
	CreateNote(ctx context.Context, noteID, userID int64, title string, embedding []float32) (graphstore.Note, error)
	UpdateNote(ctx context.Context, userID, noteID int64, title *string, embedding []float32) error
	DeleteNote(ctx context.Context, userID, noteID int64) error
	GetNote(ctx context.Context, userID, noteID int64) (graphstore.Note, error)
	ListNotes(ctx context.Context, userID int64, skip, limit int) ([]graphstore.Note, int64, error)
	SearchByTitle(ctx context.Context, userID int64, query string, limit int) ([]graphstore.Note, error)
	LinkedNotes(ctx context.Context, userID, noteID int64, limit int) ([]graphstore.ScoredNote, error)
}

// Embedder turns note text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, int, error)
}

// Linker maintains a note's SIMILAR_TO edges.
type Linker interface {
	LinkSimilar(ctx context.Context, userID, noteID int64, embedding []float32) (int, error)
	UnlinkAll(ctx context.Context, userID, noteID int64) (int, error)
}

// Mirror keeps an external vector index in step with the graph.
type Mirror interface {
	Upsert(ctx context.Context, point vectorstore.Point) error
	SetTitle(ctx context.Context, noteID int64, title string) error
	Delete(ctx context.Context, noteID int64) error
}

// TextExtractor reduces markdown content to the text that is embedded.
type TextExtractor interface {
	PlainText(src string) string
}

// CreateNoteRequest is a note to embed, store and link.
type CreateNoteRequest struct {
	NoteID  int64
	UserID  int64
	Title   string
	Content string
}

// CreateNoteResult reports a created note.
type CreateNoteResult struct {
	Note               graphstore.Note
	EmbeddingDimension int
	Linked             int
}

// UpdateNoteRequest changes a note. Nil fields are left unchanged.
type UpdateNoteRequest struct {
	NoteID  int64
	UserID  int64
	Title   *string
	Content *string
}

// NoteDetail is a note with the notes it is linked to.
type NoteDetail struct {
	graphstore.Note
	SimilarNotes []graphstore.ScoredNote `json:"similar_notes"`
}

// NotePage is one page of a user's notes.
type NotePage struct {
	Notes []graphstore.Note `json:"notes"`
	Total int64             `json:"total"`
	Skip  int               `json:"skip"`
	Limit int               `json:"limit"`
}

// NoteService runs the note lifecycle: embedding, graph storage, similarity
// linking and the optional vector mirror.
type NoteService struct {
	store     NoteStore
	embedder  Embedder
	linker    Linker
	mirror    Mirror
	extractor TextExtractor
}

// NoteOption configures a NoteService.
type NoteOption func(*NoteService)

// WithMirror also writes embeddings to m.
func WithMirror(m Mirror) NoteOption {
	return func(s *NoteService) {
		s.mirror = m
	}
}

// WithExtractor embeds the output of e instead of the raw content.
func WithExtractor(e TextExtractor) NoteOption {
	return func(s *NoteService) {
		s.extractor = e
	}
}

// NewNoteService creates a NoteService.
func NewNoteService(store NoteStore, embedder Embedder, linker Linker, opts ...NoteOption) *NoteService {
	s := &NoteService{store: store, embedder: embedder, linker: linker}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateNote embeds the content, stores the note and links it to similar notes.
// A failed link is logged and does not fail the call.
func (s *NoteService) CreateNote(ctx context.Context, req CreateNoteRequest) (CreateNoteResult, error) {
	logger := contextutil.LoggerFromContext(ctx).With("note_id", req.NoteID, "user_id", req.UserID)

	if err := validateIDs(req.UserID, req.NoteID); err != nil {
		return CreateNoteResult{}, err
	}
	if strings.TrimSpace(req.Title) == "" {
		return CreateNoteResult{}, &ValidationError{Field: "title", Message: "cannot be empty"}
	}

	embedding, err := s.embed(ctx, req.Content)
	if err != nil {
		return CreateNoteResult{}, err
	}

	note, err := s.store.CreateNote(ctx, req.NoteID, req.UserID, req.Title, embedding)
	if errors.Is(err, graphstore.ErrDuplicateNote) {
		logger.WarnContext(ctx, "note already exists")
		return CreateNoteResult{}, fmt.Errorf("%w: %w", ErrConflict, err)
	}
	if err != nil {
		logger.ErrorContext(ctx, "failed to store note", "error", err)
		return CreateNoteResult{}, WrapError(err, "failed to store note")
	}

	s.mirrorUpsert(ctx, note, embedding)

	linked, err := s.linker.LinkSimilar(ctx, req.UserID, req.NoteID, embedding)
	if err != nil {
		logger.WarnContext(ctx, "failed to link similar notes", "error", err)
	}

	logger.InfoContext(ctx, "note created", "dimension", len(embedding), "linked", linked)
	return CreateNoteResult{Note: note, EmbeddingDimension: len(embedding), Linked: linked}, nil
}

// UpdateNote applies the non-nil fields of req. New content is re-embedded
// and relinked; a title alone is written without touching edges.
func (s *NoteService) UpdateNote(ctx context.Context, req UpdateNoteRequest) error {
	logger := contextutil.LoggerFromContext(ctx).With("note_id", req.NoteID, "user_id", req.UserID)

	if err := validateIDs(req.UserID, req.NoteID); err != nil {
		return err
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return &ValidationError{Field: "title", Message: "cannot be empty"}
	}

	if req.Content == nil {
		if req.Title == nil {
			logger.DebugContext(ctx, "note update has no changes")
			return nil
		}
		if err := s.store.UpdateNote(ctx, req.UserID, req.NoteID, req.Title, nil); err != nil {
			return mapStoreError(ctx, err, "failed to update note title")
		}
		if s.mirror != nil {
			if err := s.mirror.SetTitle(ctx, req.NoteID, *req.Title); err != nil {
				logger.WarnContext(ctx, "failed to mirror note title", "error", err)
			}
		}
		logger.InfoContext(ctx, "note title updated")
		return nil
	}

	embedding, err := s.embed(ctx, *req.Content)
	if err != nil {
		return err
	}

	if _, err := s.linker.UnlinkAll(ctx, req.UserID, req.NoteID); err != nil {
		return WrapError(err, "failed to unlink note")
	}
	if err := s.store.UpdateNote(ctx, req.UserID, req.NoteID, req.Title, embedding); err != nil {
		return mapStoreError(ctx, err, "failed to update note")
	}

	if s.mirror != nil {
		note, err := s.store.GetNote(ctx, req.UserID, req.NoteID)
		if err != nil {
			logger.WarnContext(ctx, "failed to reload note for mirror", "error", err)
		} else {
			s.mirrorUpsert(ctx, note, embedding)
		}
	}

	linked, err := s.linker.LinkSimilar(ctx, req.UserID, req.NoteID, embedding)
	if err != nil {
		logger.WarnContext(ctx, "failed to relink similar notes", "error", err)
	}
	logger.InfoContext(ctx, "note updated", "linked", linked)
	return nil
}

// DeleteNote removes the note and its edges.
func (s *NoteService) DeleteNote(ctx context.Context, userID, noteID int64) error {
	logger := contextutil.LoggerFromContext(ctx).With("note_id", noteID, "user_id", userID)

	if err := validateIDs(userID, noteID); err != nil {
		return err
	}
	if err := s.store.DeleteNote(ctx, userID, noteID); err != nil {
		return mapStoreError(ctx, err, "failed to delete note")
	}
	if s.mirror != nil {
		if err := s.mirror.Delete(ctx, noteID); err != nil {
			logger.WarnContext(ctx, "failed to delete mirrored point", "error", err)
		}
	}
	return nil
}

// GetNote returns the note with its linked notes, strongest first.
func (s *NoteService) GetNote(ctx context.Context, userID, noteID int64) (NoteDetail, error) {
	if err := validateIDs(userID, noteID); err != nil {
		return NoteDetail{}, err
	}

	note, err := s.store.GetNote(ctx, userID, noteID)
	if err != nil {
		return NoteDetail{}, mapStoreError(ctx, err, "failed to get note")
	}

	similar, err := s.store.LinkedNotes(ctx, userID, noteID, similarity.DefaultLimit)
	if err != nil {
		return NoteDetail{}, WrapError(err, "failed to get similar notes")
	}
	if similar == nil {
		similar = []graphstore.ScoredNote{}
	}
	return NoteDetail{Note: note, SimilarNotes: similar}, nil
}

// ListNotes returns a page of notes, newest first. The limit is clamped to MaxPageLimit.
func (s *NoteService) ListNotes(ctx context.Context, userID int64, skip, limit int) (NotePage, error) {
	if userID <= 0 {
		return NotePage{}, &ValidationError{Field: "user_id", Message: "must be positive"}
	}
	if skip < 0 {
		skip = 0
	}
	limit = clamp(limit, DefaultPageLimit, MaxPageLimit)

	notes, total, err := s.store.ListNotes(ctx, userID, skip, limit)
	if err != nil {
		return NotePage{}, WrapError(err, "failed to list notes")
	}
	if notes == nil {
		notes = []graphstore.Note{}
	}
	return NotePage{Notes: notes, Total: total, Skip: skip, Limit: limit}, nil
}

// SearchByTitle finds notes whose title contains query, ignoring case.
func (s *NoteService) SearchByTitle(ctx context.Context, userID int64, query string, limit int) ([]graphstore.Note, error) {
	if userID <= 0 {
		return nil, &ValidationError{Field: "user_id", Message: "must be positive"}
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &ValidationError{Field: "q", Message: "cannot be empty"}
	}

	notes, err := s.store.SearchByTitle(ctx, userID, query, clamp(limit, DefaultTitleSearchLimit, MaxTitleSearchLimit))
	if err != nil {
		return nil, WrapError(err, "failed to search notes by title")
	}
	if notes == nil {
		notes = []graphstore.Note{}
	}
	return notes, nil
}

func (s *NoteService) embed(ctx context.Context, content string) ([]float32, error) {
	text := content
	if s.extractor != nil {
		text = s.extractor.PlainText(content)
	}
	if strings.TrimSpace(text) == "" {
		return nil, &ValidationError{Field: "content", Message: "cannot be empty"}
	}

	embedding, tokens, err := s.embedder.Embed(ctx, text)
	if err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to embed note", "error", err)
		return nil, fmt.Errorf("%w: failed to embed note: %w", ErrExternalService, err)
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("%w: embedding is empty", ErrExternalService)
	}
	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "note embedded", "dimension", len(embedding), "tokens", tokens)
	return embedding, nil
}

func (s *NoteService) mirrorUpsert(ctx context.Context, note graphstore.Note, embedding []float32) {
	if s.mirror == nil {
		return
	}
	err := s.mirror.Upsert(ctx, vectorstore.Point{
		NoteID:    note.NoteID,
		UserID:    note.UserID,
		Title:     note.Title,
		CreatedAt: note.CreatedAt,
		Vec:       embedding,
	})
	if err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to mirror note embedding", "note_id", note.NoteID, "error", err)
	}
}

func mapStoreError(ctx context.Context, err error, msg string) error {
	if errors.Is(err, graphstore.ErrNoteNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	contextutil.LoggerFromContext(ctx).ErrorContext(ctx, msg, "error", err)
	return WrapError(err, msg)
}

func validateIDs(userID, noteID int64) error {
	if userID <= 0 {
		return &ValidationError{Field: "user_id", Message: "must be positive"}
	}
	if noteID <= 0 {
		return &ValidationError{Field: "note_id", Message: "must be positive"}
	}
	return nil
}

func clamp(v, def, max int) int {
	if v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}
