package redis

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storepilot/merchant-advisor/internal/config"
	"github.com/storepilot/merchant-advisor/internal/domain/conversation"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/logging"
)

func TestNewHistoryStoreDefaults(t *testing.T) {
	s := NewHistoryStore(config.RedisConfig{Addr: "localhost:6379"}, 10, logging.NewNopLogger()).(*historyStore)
	assert.Equal(t, defaultKeyPrefix, s.keyPrefix)
	assert.Equal(t, defaultTTL, s.ttl)
	assert.Equal(t, 20, s.maxMessages)
	assert.Equal(t, "advisor:thread:t-1", s.key("t-1"))
}

func TestTrimWindow(t *testing.T) {
	h := &conversation.History{ThreadID: "t-1"}
	for i := 0; i < 25; i++ {
		role := conversation.RoleUser
		if i%2 == 1 {
			role = conversation.RoleAssistant
		}
		h.Messages = append(h.Messages, conversation.Message{
			Role:      role,
			Content:   fmt.Sprintf("message %d", i),
			Timestamp: time.Now(),
		})
	}

	trimmed := trimWindow(h, 20)
	require.Len(t, trimmed.Messages, 20)
	assert.Equal(t, "message 5", trimmed.Messages[0].Content)
	assert.Equal(t, "message 24", trimmed.Messages[19].Content)

	// original untouched
	assert.Len(t, h.Messages, 25)

	// zero disables trimming
	assert.Len(t, trimWindow(h, 0).Messages, 25)
}
