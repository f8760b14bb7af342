// Package redis implements the conversation history store. Histories are
// stored one JSON value per thread with a sliding message window and TTL,
// so abandoned threads age out on their own.
package redis

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/storepilot/merchant-advisor/internal/config"
	"github.com/storepilot/merchant-advisor/internal/domain/conversation"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/logging"
	"github.com/storepilot/merchant-advisor/pkg/errors"
)

const (
	defaultKeyPrefix = "advisor:"
	defaultTTL       = 72 * time.Hour
)

type historyStore struct {
	client      *goredis.Client
	keyPrefix   string
	ttl         time.Duration
	maxMessages int
	logger      logging.Logger
	now         func() time.Time
}

// NewHistoryStore builds the redis-backed history store. maxTurns bounds the
// sliding window; two messages per turn are retained.
func NewHistoryStore(cfg config.RedisConfig, maxTurns int, logger logging.Logger) conversation.HistoryStore {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &historyStore{
		client:      client,
		keyPrefix:   prefix,
		ttl:         ttl,
		maxMessages: 2 * maxTurns,
		logger:      logger.Named("history_store"),
		now:         time.Now,
	}
}

func (s *historyStore) key(threadID string) string {
	return s.keyPrefix + "thread:" + threadID
}

func (s *historyStore) Load(ctx context.Context, threadID string) (*conversation.History, error) {
	raw, err := s.client.Get(ctx, s.key(threadID)).Bytes()
	if err == goredis.Nil {
		return &conversation.History{
			ThreadID:  threadID,
			CreatedAt: s.now(),
			UpdatedAt: s.now(),
		}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeHistoryLoadFailed, "failed to load history")
	}

	var h conversation.History
	if err := json.Unmarshal(raw, &h); err != nil {
		// A corrupt value is unrecoverable; start the thread over rather
		// than wedging it permanently.
		s.logger.Warn("discarding corrupt history value",
			logging.String("thread_id", threadID), logging.Err(err))
		return &conversation.History{
			ThreadID:  threadID,
			CreatedAt: s.now(),
			UpdatedAt: s.now(),
		}, nil
	}
	return &h, nil
}

func (s *historyStore) Save(ctx context.Context, h *conversation.History) error {
	if h == nil || h.ThreadID == "" {
		return errors.New(errors.ErrCodeHistorySaveFailed, "history thread id must not be empty")
	}

	trimmed := trimWindow(h, s.maxMessages)
	trimmed.UpdatedAt = s.now()
	if trimmed.CreatedAt.IsZero() {
		trimmed.CreatedAt = trimmed.UpdatedAt
	}

	raw, err := json.Marshal(&trimmed)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeHistorySaveFailed, "failed to marshal history")
	}
	if err := s.client.Set(ctx, s.key(trimmed.ThreadID), raw, s.ttl).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeHistorySaveFailed, "failed to save history")
	}
	return nil
}

// trimWindow copies the history keeping only the newest max messages.
func trimWindow(h *conversation.History, max int) conversation.History {
	trimmed := *h
	if max > 0 && len(trimmed.Messages) > max {
		trimmed.Messages = trimmed.Messages[len(trimmed.Messages)-max:]
	}
	return trimmed
}

// Close releases the redis connection.
func (s *historyStore) Close() error { return s.client.Close() }
