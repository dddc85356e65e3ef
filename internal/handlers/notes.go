package handlers

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_services.go -package=mocks knowledge-graph-service/internal/handlers NoteService,EventPublisher,Searcher,GraphService

import (
	"context"
	"net/http"

	"knowledge-graph-service/internal/contextutil"
	"knowledge-graph-service/internal/graphstore"
	"knowledge-graph-service/internal/ingest"
	"knowledge-graph-service/internal/service"
)

// NoteService is the note API consumed by NoteHandler.
type NoteService interface {
	CreateNote(ctx context.Context, req service.CreateNoteRequest) (service.CreateNoteResult, error)
	UpdateNote(ctx context.Context, req service.UpdateNoteRequest) error
	DeleteNote(ctx context.Context, userID, noteID int64) error
	GetNote(ctx context.Context, userID, noteID int64) (service.NoteDetail, error)
	ListNotes(ctx context.Context, userID int64, skip, limit int) (service.NotePage, error)
	SearchByTitle(ctx context.Context, userID int64, query string, limit int) ([]graphstore.Note, error)
}

// EventPublisher emits lifecycle events for asynchronous processing.
type EventPublisher interface {
	Publish(ctx context.Context, ev ingest.Event) (string, error)
}

// NoteHandler handles HTTP requests for notes.
type NoteHandler struct {
	notes     NoteService
	publisher EventPublisher
}

// NewNoteHandler creates a new NoteHandler. publisher may be nil, which
// disables asynchronous creation.
func NewNoteHandler(notes NoteService, publisher EventPublisher) *NoteHandler {
	return &NoteHandler{notes: notes, publisher: publisher}
}

// CreateNoteRequest represents the HTTP request payload for creating a note.
type CreateNoteRequest struct {
	NoteID  int64  `json:"note_id" validate:"required,gt=0"`
	Title   string `json:"title" validate:"required,min=1,max=200"`
	Content string `json:"content" validate:"required,min=1"`
}

// UpdateNoteRequest represents the HTTP request payload for changing a note.
type UpdateNoteRequest struct {
	Title   *string `json:"title" validate:"omitempty,min=1,max=200"`
	Content *string `json:"content" validate:"omitempty,min=1"`
}

// CreateNoteResponse reports a synchronously created note.
type CreateNoteResponse struct {
	UserID             int64           `json:"user_id"`
	NoteID             int64           `json:"note_id"`
	EmbeddingDimension int             `json:"embedding_dimension"`
	LinkedNotesCount   int             `json:"linked_notes_count"`
	Note               graphstore.Note `json:"note"`
}

// AcceptedResponse reports a queued event.
type AcceptedResponse struct {
	Status    string `json:"status"`
	MessageID string `json:"message_id"`
	NoteID    int64  `json:"note_id"`
}

// NoteListResponse is a page of notes.
type NoteListResponse struct {
	UserID int64             `json:"user_id"`
	Notes  []graphstore.Note `json:"notes"`
	Total  int64             `json:"total"`
	Limit  int               `json:"limit"`
	Skip   int               `json:"skip"`
}

type listNotesQuery struct {
	Skip  int `query:"skip" validate:"gte=0"`
	Limit int `query:"limit" validate:"gte=1,lte=100"`
}

type titleSearchQuery struct {
	Title string `query:"title" validate:"required,min=1"`
	Limit int    `query:"limit" validate:"gte=1,lte=100"`
}

// Create embeds, stores and links a note in the request.
func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	uid, req, ok := h.decodeCreate(w, r)
	if !ok {
		return
	}

	result, err := h.notes.CreateNote(ctx, service.CreateNoteRequest{
		NoteID:  req.NoteID,
		UserID:  uid,
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to create note")
		return
	}

	writeJSON(ctx, w, http.StatusCreated, CreateNoteResponse{
		UserID:             uid,
		NoteID:             req.NoteID,
		EmbeddingDimension: result.EmbeddingDimension,
		LinkedNotesCount:   result.Linked,
		Note:               result.Note,
	})
}

// CreateAsync queues a note.created event for the worker.
func (h *NoteHandler) CreateAsync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.publisher == nil {
		writeError(w, http.StatusServiceUnavailable, "Asynchronous ingestion is not configured")
		return
	}

	uid, req, ok := h.decodeCreate(w, r)
	if !ok {
		return
	}

	messageID, err := h.publisher.Publish(ctx, ingest.Event{
		EventType: ingest.EventCreated,
		NoteID:    req.NoteID,
		UserID:    uid,
		Title:     &req.Title,
		Content:   &req.Content,
	})
	if err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to publish note event", "error", err)
		writeError(w, http.StatusBadGateway, "Failed to queue note")
		return
	}

	writeJSON(ctx, w, http.StatusAccepted, AcceptedResponse{Status: "queued", MessageID: messageID, NoteID: req.NoteID})
}

func (h *NoteHandler) decodeCreate(w http.ResponseWriter, r *http.Request) (int64, CreateNoteRequest, bool) {
	ctx := r.Context()

	uid, err := userID(r)
	if err != nil {
		handleServiceError(w, ctx, err, "")
		return 0, CreateNoteRequest{}, false
	}

	var req CreateNoteRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, ctx, err, "")
		return 0, CreateNoteRequest{}, false
	}
	if err := validateRequest(req); err != nil {
		handleServiceError(w, ctx, err, "")
		return 0, CreateNoteRequest{}, false
	}
	return uid, req, true
}

// Update changes the title or content of a note.
func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	uid, err := userID(r)
	if err != nil {
		handleServiceError(w, ctx, err, "")
		return
	}
	noteID, err := noteIDParam(r)
	if err != nil {
		handleServiceError(w, ctx, err, "")
		return
	}

	var req UpdateNoteRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, ctx, err, "")
		return
	}
	if err := validateRequest(req); err != nil {
		handleServiceError(w, ctx, err, "")
		return
	}

	err = h.notes.UpdateNote(ctx, service.UpdateNoteRequest{NoteID: noteID, UserID: uid, Title: req.Title, Content: req.Content})
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to update note")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// List returns a page of the user's notes, newest first.
func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	uid, err := userID(r)
	if err != nil {
		handleServiceError(w, ctx, err, "")
		return
	}

	var q listNotesQuery
	if q.Skip, err = queryInt(r, "skip", 0); err == nil {
		q.Limit, err = queryInt(r, "limit", service.DefaultPageLimit)
	}
	if err == nil {
		err = validateRequest(q)
	}
	if err != nil {
		handleServiceError(w, ctx, err, "")
		return
	}

	page, err := h.notes.ListNotes(ctx, uid, q.Skip, q.Limit)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to list notes")
		return
	}

	writeJSON(ctx, w, http.StatusOK, NoteListResponse{
		UserID: uid,
		Notes:  page.Notes,
		Total:  page.Total,
		Limit:  page.Limit,
		Skip:   page.Skip,
	})
}

// Get returns a note with its similar notes.
func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	uid, err := userID(r)
	if err != nil {
		handleServiceError(w, ctx, err, "")
		return
	}
	noteID, err := noteIDParam(r)
	if err != nil {
		handleServiceError(w, ctx, err, "")
		return
	}

	detail, err := h.notes.GetNote(ctx, uid, noteID)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to get note")
		return
	}
	writeJSON(ctx, w, http.StatusOK, detail)
}

// Delete removes a note and its relationships.
func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	uid, err := userID(r)
	if err != nil {
		handleServiceError(w, ctx, err, "")
		return
	}
	noteID, err := noteIDParam(r)
	if err != nil {
		handleServiceError(w, ctx, err, "")
		return
	}

	if err := h.notes.DeleteNote(ctx, uid, noteID); err != nil {
		handleServiceError(w, ctx, err, "Failed to delete note")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SearchByTitle finds notes whose title contains the title (or q) parameter.
func (h *NoteHandler) SearchByTitle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	uid, err := userID(r)
	if err != nil {
		handleServiceError(w, ctx, err, "")
		return
	}

	q := titleSearchQuery{Title: r.URL.Query().Get("title")}
	if q.Title == "" {
		q.Title = r.URL.Query().Get("q")
	}
	if q.Limit, err = queryInt(r, "limit", service.DefaultTitleSearchLimit); err == nil {
		err = validateRequest(q)
	}
	if err != nil {
		handleServiceError(w, ctx, err, "")
		return
	}

	notes, err := h.notes.SearchByTitle(ctx, uid, q.Title, q.Limit)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to search notes")
		return
	}

	writeJSON(ctx, w, http.StatusOK, NoteListResponse{
		UserID: uid,
		Notes:  notes,
		Total:  int64(len(notes)),
		Limit:  q.Limit,
	})
}
