package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"knowledge-graph-service/internal/contextutil"
	"knowledge-graph-service/internal/storage"
)

// RetryCountHeader carries the number of failed attempts of a message.
const RetryCountHeader = "x-retry-count"

// ErrDeliveriesClosed is returned by Run when the broker closes the delivery channel.
var ErrDeliveriesClosed = errors.New("delivery channel closed")

// Recorder observes delivery outcomes.
type Recorder interface {
	RecordEvent(eventType, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordEvent(string, string) {}

// ConsumerConfig tunes retries.
type ConsumerConfig struct {
	Topology Topology
	// MaxAttempts is how many times a message is handled before it is dead-lettered.
	MaxAttempts int
}

// Consumer handles deliveries one at a time, republishing failed messages
// until they run out of attempts.
type Consumer struct {
	handler  *Handler
	ch       Channel
	failures storage.FailureStore
	cfg      ConsumerConfig
	recorder Recorder
}

// NewConsumer creates a Consumer. failures may be nil, in which case dead
// letters are only published.
func NewConsumer(handler *Handler, ch Channel, failures storage.FailureStore, cfg ConsumerConfig, recorder Recorder) *Consumer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Consumer{handler: handler, ch: ch, failures: failures, cfg: cfg, recorder: recorder}
}

// Run processes deliveries until ctx is done or the channel closes.
func (c *Consumer) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			c.Process(ctx, d)
		}
	}
}

// Process handles one delivery and settles it.
func (c *Consumer) Process(ctx context.Context, d amqp.Delivery) {
	logger := contextutil.LoggerFromContext(ctx).With("delivery_tag", d.DeliveryTag, "message_id", d.MessageId)
	ctx = contextutil.WithLogger(ctx, logger)

	outcome, ev, err := c.handler.Handle(ctx, d.Body)
	eventType := ev.EventType
	if eventType == "" {
		eventType = "unparsed"
	}

	switch outcome {
	case OutcomeAck, OutcomeDiscard:
		c.ack(ctx, d)
		c.recorder.RecordEvent(eventType, outcome.String())
	default:
		if ctx.Err() != nil {
			// Interrupted by shutdown, so the attempt does not count.
			logger.WarnContext(ctx, "event interrupted by shutdown, requeueing", "error", err)
			c.nack(ctx, d)
			c.recorder.RecordEvent(eventType, "requeue")
			return
		}
		c.recorder.RecordEvent(eventType, c.retry(ctx, d, ev, err))
	}
}

// retry republishes d with an incremented retry count, or dead-letters it
// once the attempts are used up. It returns the recorded outcome.
func (c *Consumer) retry(ctx context.Context, d amqp.Delivery, ev Event, cause error) string {
	logger := contextutil.LoggerFromContext(ctx)
	count := retryCount(d.Headers)

	if count < c.cfg.MaxAttempts-1 {
		headers := amqp.Table{}
		for k, v := range d.Headers {
			headers[k] = v
		}
		headers[RetryCountHeader] = int32(count + 1)

		if err := c.republish(ctx, "", c.cfg.Topology.Queue, d, headers); err != nil {
			logger.ErrorContext(ctx, "failed to republish for retry, requeueing", "error", err)
			c.nack(ctx, d)
			return "requeue"
		}
		logger.WarnContext(ctx, "event scheduled for retry", "attempt", count+1, "max_attempts", c.cfg.MaxAttempts, "error", cause)
		c.ack(ctx, d)
		return "retry"
	}

	headers := amqp.Table{RetryCountHeader: int32(count + 1)}
	if cause != nil {
		headers["x-last-error"] = cause.Error()
	}
	if err := c.republish(ctx, "", c.cfg.Topology.DeadLetterQueue, d, headers); err != nil {
		logger.ErrorContext(ctx, "failed to dead-letter event, requeueing", "error", err)
		c.nack(ctx, d)
		return "requeue"
	}
	c.record(ctx, d, ev, count+1, cause)
	logger.ErrorContext(ctx, "event dead-lettered", "attempts", count+1, "error", cause)
	c.ack(ctx, d)
	return "dead_letter"
}

func (c *Consumer) republish(ctx context.Context, exchange, key string, d amqp.Delivery, headers amqp.Table) error {
	return c.ch.PublishWithContext(ctx, exchange, key, false, false, amqp.Publishing{
		Headers:      headers,
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    d.MessageId,
		Timestamp:    time.Now().UTC(),
		Type:         d.Type,
		Body:         d.Body,
	})
}

func (c *Consumer) record(ctx context.Context, d amqp.Delivery, ev Event, attempts int, cause error) {
	if c.failures == nil {
		return
	}
	f := &storage.Failure{
		MessageID: d.MessageId,
		EventType: ev.EventType,
		NoteID:    ev.NoteID,
		UserID:    ev.UserID,
		Body:      d.Body,
		Attempts:  attempts,
	}
	if f.EventType == "" {
		f.EventType = d.RoutingKey
	}
	if cause != nil {
		f.LastError = cause.Error()
	}
	if err := c.failures.Record(ctx, f); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to record ingestion failure", "error", err)
	}
}

func (c *Consumer) ack(ctx context.Context, d amqp.Delivery) {
	if err := d.Ack(false); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to ack delivery", "error", err)
	}
}

func (c *Consumer) nack(ctx context.Context, d amqp.Delivery) {
	if err := d.Nack(false, true); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to nack delivery", "error", err)
	}
}

// retryCount reads RetryCountHeader, accepting any integer type a producer may use.
func retryCount(headers amqp.Table) int {
	switch v := headers[RetryCountHeader].(type) {
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	case uint8:
		return int(v)
	case uint16:
		return int(v)
	case uint32:
		return int(v)
	}
	return 0
}

// Serve dials url, declares the topology and consumes until ctx is done. A
// dropped connection is redialed with exponential backoff.
func (c *Consumer) Serve(ctx context.Context, url, consumerTag string) error {
	logger := contextutil.LoggerFromContext(ctx)
	backoff := time.Second

	for {
		err := c.serveOnce(ctx, url, consumerTag)
		if ctx.Err() != nil {
			return nil
		}
		logger.ErrorContext(ctx, "consumer stopped, reconnecting", "error", err, "backoff", backoff.String())

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (c *Consumer) serveOnce(ctx context.Context, url, consumerTag string) error {
	logger := contextutil.LoggerFromContext(ctx)

	conn, err := amqp.Dial(url)
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	defer func() {
		_ = conn.Close()
	}()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer func() {
		_ = ch.Close()
	}()

	if err := Declare(ch, c.cfg.Topology); err != nil {
		return fmt.Errorf("failed to declare topology: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := ch.Consume(c.cfg.Topology.Queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.ch = ch
	logger.InfoContext(ctx, "consuming note events",
		slog.String("queue", c.cfg.Topology.Queue),
		slog.String("exchange", c.cfg.Topology.Exchange),
		slog.Int("max_attempts", c.cfg.MaxAttempts),
	)
	return c.Run(ctx, deliveries)
}
