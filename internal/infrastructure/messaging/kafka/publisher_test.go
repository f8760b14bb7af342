package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	segkafka "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storepilot/merchant-advisor/internal/config"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/logging"
	"github.com/storepilot/merchant-advisor/pkg/errors"
	"github.com/storepilot/merchant-advisor/pkg/types"
)

type mockWriter struct {
	mu       sync.Mutex
	messages []segkafka.Message
	writeErr error
	closed   bool
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...segkafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.messages = append(m.messages, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func newTestPublisher(w writerInterface) *publisher {
	return &publisher{writer: w, logger: logging.NewNopLogger()}
}

func TestNewPublisherWithoutBrokersIsNop(t *testing.T) {
	p := NewPublisher(config.KafkaConfig{}, logging.NewNopLogger())
	_, ok := p.(NopPublisher)
	assert.True(t, ok)
	assert.NoError(t, p.Publish(context.Background(), TurnEvent{}))
}

func TestPublishWritesKeyedMessage(t *testing.T) {
	w := &mockWriter{}
	p := newTestPublisher(w)

	ev := TurnEvent{
		EventID:   "ev-1",
		ThreadID:  "t-1",
		Intent:    types.IntentRevisit,
		Status:    types.TurnStatusOK,
		Timestamp: time.Now(),
	}
	require.NoError(t, p.Publish(context.Background(), ev))

	require.Len(t, w.messages, 1)
	assert.Equal(t, []byte("t-1"), w.messages[0].Key)

	var got TurnEvent
	require.NoError(t, json.Unmarshal(w.messages[0].Value, &got))
	assert.Equal(t, "ev-1", got.EventID)
	assert.Equal(t, types.IntentRevisit, got.Intent)
}

func TestPublishRequiresEventID(t *testing.T) {
	p := newTestPublisher(&mockWriter{})
	err := p.Publish(context.Background(), TurnEvent{ThreadID: "t-1"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestPublishAfterCloseFails(t *testing.T) {
	w := &mockWriter{}
	p := newTestPublisher(w)
	require.NoError(t, p.Close())
	assert.True(t, w.closed)

	err := p.Publish(context.Background(), TurnEvent{EventID: "ev-1"})
	require.Error(t, err)

	// second close is a no-op
	assert.NoError(t, p.Close())
}

func TestPublishWrapsWriterError(t *testing.T) {
	w := &mockWriter{writeErr: errors.New(errors.ErrCodeInternal, "broker down")}
	p := newTestPublisher(w)
	err := p.Publish(context.Background(), TurnEvent{EventID: "ev-1"})
	require.Error(t, err)
	assert.Equal(t, int64(1), p.failed.Load())
}
