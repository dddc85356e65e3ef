// Package ingest consumes note lifecycle events from RabbitMQ and applies
// them to the knowledge graph.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event types, also used as routing keys.
const (
	EventCreated = "note.created"
	EventUpdated = "note.updated"
	EventDeleted = "note.deleted"
)

// ErrMalformedEvent is returned for a body that is not a usable event.
var ErrMalformedEvent = errors.New("malformed event")

// Event is a note lifecycle message. On note.updated a nil Title or Content
// means the field is unchanged.
type Event struct {
	EventType string  `json:"event_type"`
	NoteID    int64   `json:"note_id"`
	UserID    int64   `json:"user_id"`
	Title     *string `json:"title,omitempty"`
	Content   *string `json:"content,omitempty"`
}

// ParseEvent decodes a message body. Unknown event types are returned
// without validating their ids so the caller can acknowledge them.
func ParseEvent(body []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if ev.EventType == "" {
		return ev, fmt.Errorf("%w: missing event_type", ErrMalformedEvent)
	}
	if ev.Known() && (ev.NoteID <= 0 || ev.UserID <= 0) {
		return ev, fmt.Errorf("%w: note_id and user_id must be positive", ErrMalformedEvent)
	}
	return ev, nil
}

// Known reports whether the event type is one the worker handles.
func (e Event) Known() bool {
	switch e.EventType {
	case EventCreated, EventUpdated, EventDeleted:
		return true
	}
	return false
}
