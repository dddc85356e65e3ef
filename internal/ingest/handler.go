package ingest

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_note_service.go -package=mocks knowledge-graph-service/internal/ingest NoteService

import (
	"context"
	"errors"

	"knowledge-graph-service/internal/contextutil"
	"knowledge-graph-service/internal/service"
)

// Outcome is what the consumer does with a delivery after handling it.
type Outcome int

const (
	// OutcomeAck acknowledges a processed or already applied event.
	OutcomeAck Outcome = iota
	// OutcomeRetry schedules the event for another attempt.
	OutcomeRetry
	// OutcomeDiscard acknowledges an event the worker does not handle.
	OutcomeDiscard
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAck:
		return "ack"
	case OutcomeRetry:
		return "retry"
	case OutcomeDiscard:
		return "discard"
	}
	return "unknown"
}

// NoteService applies note changes.
type NoteService interface {
	CreateNote(ctx context.Context, req service.CreateNoteRequest) (service.CreateNoteResult, error)
	UpdateNote(ctx context.Context, req service.UpdateNoteRequest) error
	DeleteNote(ctx context.Context, userID, noteID int64) error
}

// Handler maps events onto NoteService calls.
type Handler struct {
	notes NoteService
}

// NewHandler creates a Handler.
func NewHandler(notes NoteService) *Handler {
	return &Handler{notes: notes}
}

// Handle processes one message body. The returned error explains a retry.
func (h *Handler) Handle(ctx context.Context, body []byte) (Outcome, Event, error) {
	logger := contextutil.LoggerFromContext(ctx)

	ev, err := ParseEvent(body)
	if err != nil {
		logger.ErrorContext(ctx, "failed to parse event", "error", err)
		return OutcomeRetry, ev, err
	}

	logger = logger.With("event_type", ev.EventType, "note_id", ev.NoteID, "user_id", ev.UserID)
	ctx = contextutil.WithLogger(ctx, logger)

	switch ev.EventType {
	case EventCreated:
		return h.created(ctx, ev)
	case EventUpdated:
		return h.updated(ctx, ev)
	case EventDeleted:
		return h.deleted(ctx, ev)
	default:
		logger.WarnContext(ctx, "discarding unknown event type")
		return OutcomeDiscard, ev, nil
	}
}

func (h *Handler) created(ctx context.Context, ev Event) (Outcome, Event, error) {
	logger := contextutil.LoggerFromContext(ctx)

	req := service.CreateNoteRequest{NoteID: ev.NoteID, UserID: ev.UserID}
	if ev.Title != nil {
		req.Title = *ev.Title
	}
	if ev.Content != nil {
		req.Content = *ev.Content
	}

	result, err := h.notes.CreateNote(ctx, req)
	if errors.Is(err, service.ErrConflict) {
		logger.InfoContext(ctx, "note already created, acknowledging duplicate")
		return OutcomeAck, ev, nil
	}
	if err != nil {
		logger.ErrorContext(ctx, "failed to create note", "error", err)
		return OutcomeRetry, ev, err
	}

	logger.InfoContext(ctx, "note created from event", "linked", result.Linked)
	return OutcomeAck, ev, nil
}

func (h *Handler) updated(ctx context.Context, ev Event) (Outcome, Event, error) {
	logger := contextutil.LoggerFromContext(ctx)

	err := h.notes.UpdateNote(ctx, service.UpdateNoteRequest{
		NoteID:  ev.NoteID,
		UserID:  ev.UserID,
		Title:   ev.Title,
		Content: ev.Content,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to update note", "error", err)
		return OutcomeRetry, ev, err
	}
	return OutcomeAck, ev, nil
}

func (h *Handler) deleted(ctx context.Context, ev Event) (Outcome, Event, error) {
	logger := contextutil.LoggerFromContext(ctx)

	err := h.notes.DeleteNote(ctx, ev.UserID, ev.NoteID)
	if errors.Is(err, service.ErrNotFound) {
		logger.InfoContext(ctx, "note already deleted")
		return OutcomeAck, ev, nil
	}
	if err != nil {
		logger.ErrorContext(ctx, "failed to delete note", "error", err)
		return OutcomeRetry, ev, err
	}
	logger.InfoContext(ctx, "note deleted from event")
	return OutcomeAck, ev, nil
}
