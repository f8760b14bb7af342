// Package kafka publishes turn-completed events to the analytics stream.
// Publishing is best-effort: a broker outage never fails a turn.
package kafka

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	segkafka "github.com/segmentio/kafka-go"

	"github.com/storepilot/merchant-advisor/internal/config"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/logging"
	"github.com/storepilot/merchant-advisor/pkg/errors"
	"github.com/storepilot/merchant-advisor/pkg/types"
)

const defaultTopic = "advisor.turns"

// TurnEvent is the analytics record emitted after each completed turn.
type TurnEvent struct {
	EventID    string           `json:"event_id"`
	ThreadID   string           `json:"thread_id"`
	MerchantID string           `json:"merchant_id,omitempty"`
	Intent     types.Intent     `json:"intent"`
	Status     types.TurnStatus `json:"status"`
	RetryCount int              `json:"retry_count"`
	DurationMs int64            `json:"duration_ms"`
	Timestamp  time.Time        `json:"timestamp"`
}

// Publisher emits turn events.
type Publisher interface {
	Publish(ctx context.Context, ev TurnEvent) error
	Close() error
}

// writerInterface abstracts kafka.Writer for testing.
type writerInterface interface {
	WriteMessages(ctx context.Context, msgs ...segkafka.Message) error
	Close() error
}

type publisher struct {
	writer writerInterface
	logger logging.Logger
	closed atomic.Bool
	sent   atomic.Int64
	failed atomic.Int64
}

// NewPublisher builds the kafka-backed turn-event publisher. Empty brokers
// yield the nop publisher so callers need no conditional wiring.
func NewPublisher(cfg config.KafkaConfig, logger logging.Logger) Publisher {
	if len(cfg.Brokers) == 0 {
		return NopPublisher{}
	}
	topic := cfg.Topic
	if topic == "" {
		topic = defaultTopic
	}
	writer := &segkafka.Writer{
		Addr:         segkafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &segkafka.Hash{},
		MaxAttempts:  3,
		BatchTimeout: time.Second,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: segkafka.RequireOne,
	}
	return &publisher{writer: writer, logger: logger.Named("turn_events")}
}

func (p *publisher) Publish(ctx context.Context, ev TurnEvent) error {
	if p.closed.Load() {
		return errors.New(errors.ErrCodeInternal, "publisher closed")
	}
	if ev.EventID == "" {
		return errors.New(errors.ErrCodeValidation, "event id required")
	}

	value, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal turn event")
	}

	msg := segkafka.Message{
		Key:   []byte(ev.ThreadID),
		Value: value,
		Time:  ev.Timestamp,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.failed.Add(1)
		return errors.Wrap(err, errors.ErrCodeInternal, "turn event publish failed")
	}

	p.sent.Add(1)
	p.logger.Debug("turn event published",
		logging.String("thread_id", ev.ThreadID),
		logging.String("status", string(ev.Status)))
	return nil
}

func (p *publisher) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := p.writer.Close()
	p.logger.Info("kafka publisher closed", logging.Int64("sent", p.sent.Load()))
	return err
}

// NopPublisher drops events. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, TurnEvent) error { return nil }
func (NopPublisher) Close() error                             { return nil }
