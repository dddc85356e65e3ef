package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"knowledge-graph-service/internal/storage"
	storagemocks "knowledge-graph-service/internal/storage/mocks"
)

func TestPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisher(ch, "knowledge_graph_events")

	id, err := p.Publish(context.Background(), Event{EventType: EventCreated, NoteID: 7, UserID: 1, Title: strPtr("t"), Content: strPtr("c")})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.Len(t, ch.sent, 1)
	sent := ch.sent[0]
	assert.Equal(t, "knowledge_graph_events", sent.exchange)
	assert.Equal(t, EventCreated, sent.key)
	assert.Equal(t, id, sent.msg.MessageId)
	assert.Equal(t, amqp.Persistent, sent.msg.DeliveryMode)

	var ev Event
	require.NoError(t, json.Unmarshal(sent.msg.Body, &ev))
	assert.Equal(t, int64(7), ev.NoteID)
	require.NotNil(t, ev.Content)
	assert.Equal(t, "c", *ev.Content)
}

func TestPublisher_PublishError(t *testing.T) {
	p := NewPublisher(&fakeChannel{err: amqp.ErrClosed}, "x")

	_, err := p.Publish(context.Background(), Event{EventType: EventDeleted, NoteID: 1, UserID: 1})
	assert.ErrorIs(t, err, amqp.ErrClosed)
}

func TestReplay(t *testing.T) {
	body := []byte(deleteBody)

	t.Run("republishes and marks", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		failures := storagemocks.NewMockFailureStore(ctrl)
		failures.EXPECT().Get(gomock.Any(), int64(9)).Return(&storage.Failure{ID: 9, EventType: EventDeleted, Body: body}, nil)
		failures.EXPECT().MarkReplayed(gomock.Any(), int64(9)).Return(nil)
		ch := &fakeChannel{}

		id, err := Replay(context.Background(), failures, NewPublisher(ch, "knowledge_graph_events"), 9)
		require.NoError(t, err)
		assert.NotEmpty(t, id)
		require.Len(t, ch.sent, 1)
		assert.Equal(t, EventDeleted, ch.sent[0].key)
		assert.Equal(t, body, ch.sent[0].msg.Body)
		assert.Nil(t, ch.sent[0].msg.Headers)
	})

	t.Run("already replayed", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		failures := storagemocks.NewMockFailureStore(ctrl)
		at := time.Date(2025, 11, 14, 0, 0, 0, 0, time.UTC)
		failures.EXPECT().Get(gomock.Any(), int64(9)).Return(&storage.Failure{ID: 9, ReplayedAt: &at}, nil)

		_, err := Replay(context.Background(), failures, NewPublisher(&fakeChannel{}, "x"), 9)
		assert.ErrorIs(t, err, ErrAlreadyReplayed)
	})

	t.Run("unknown id", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		failures := storagemocks.NewMockFailureStore(ctrl)
		failures.EXPECT().Get(gomock.Any(), int64(9)).Return(nil, storage.ErrNotFound)

		_, err := Replay(context.Background(), failures, NewPublisher(&fakeChannel{}, "x"), 9)
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})
}
