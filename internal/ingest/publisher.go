package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"knowledge-graph-service/internal/contextutil"
)

// Channel is the subset of *amqp.Channel used to publish.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher emits note lifecycle events onto the topic exchange.
type Publisher struct {
	ch       Channel
	exchange string
	now      func() time.Time
}

// NewPublisher creates a Publisher for exchange.
func NewPublisher(ch Channel, exchange string) *Publisher {
	return &Publisher{ch: ch, exchange: exchange, now: time.Now}
}

// Publish encodes ev and routes it by its event type. The message id is returned.
func (p *Publisher) Publish(ctx context.Context, ev Event) (string, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("failed to encode event: %w", err)
	}
	return p.PublishRaw(ctx, ev.EventType, body)
}

// PublishRaw routes an already encoded body under eventType.
func (p *Publisher) PublishRaw(ctx context.Context, eventType string, body []byte) (string, error) {
	id := uuid.NewString()
	err := p.ch.PublishWithContext(ctx, p.exchange, eventType, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    id,
		Timestamp:    p.now().UTC(),
		Type:         eventType,
		Body:         body,
	})
	if err != nil {
		return "", fmt.Errorf("failed to publish event: %w", err)
	}
	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "event published", "event_type", eventType, "message_id", id)
	return id, nil
}

// DialPublisher connects to the broker at url, declares topo and returns a
// Publisher on its own channel. The returned func closes the channel and
// the connection.
func DialPublisher(url string, topo Topology) (*Publisher, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := Declare(ch, topo); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("failed to declare topology: %w", err)
	}

	closeFn := func() error {
		_ = ch.Close()
		return conn.Close()
	}
	return NewPublisher(ch, topo.Exchange), closeFn, nil
}
