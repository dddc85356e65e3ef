package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"knowledge-graph-service/internal/contextutil"
	"knowledge-graph-service/internal/storage"
)

// ErrAlreadyReplayed is returned when replaying a failure twice.
var ErrAlreadyReplayed = errors.New("failure already replayed")

// EventPublisher publishes encoded events.
type EventPublisher interface {
	PublishRaw(ctx context.Context, eventType string, body []byte) (string, error)
}

// Replay republishes a dead-lettered event with a fresh retry budget and
// marks it replayed. It returns the new message id.
func Replay(ctx context.Context, failures storage.FailureStore, pub EventPublisher, id int64) (string, error) {
	f, err := failures.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if f.Replayed() {
		return "", fmt.Errorf("%w: failure %d at %s", ErrAlreadyReplayed, id, f.ReplayedAt.Format(time.RFC3339))
	}

	messageID, err := pub.PublishRaw(ctx, f.EventType, f.Body)
	if err != nil {
		return "", err
	}
	if err := failures.MarkReplayed(ctx, id); err != nil {
		return messageID, fmt.Errorf("event republished as %s but not marked replayed: %w", messageID, err)
	}

	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "failure replayed", "failure_id", id, "event_type", f.EventType, "message_id", messageID)
	return messageID, nil
}
