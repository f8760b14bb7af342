package advisory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storepilot/merchant-advisor/internal/domain/conversation"
	"github.com/storepilot/merchant-advisor/internal/domain/merchant"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/logging"
	"github.com/storepilot/merchant-advisor/pkg/types"
)

type mockHistoryStore struct {
	mu      sync.Mutex
	loadFn  func(ctx context.Context, threadID string) (*conversation.History, error)
	saveFn  func(ctx context.Context, h *conversation.History) error
	saved   []*conversation.History
}

func (m *mockHistoryStore) Load(ctx context.Context, threadID string) (*conversation.History, error) {
	if m.loadFn != nil {
		return m.loadFn(ctx, threadID)
	}
	return &conversation.History{ThreadID: threadID}, nil
}

func (m *mockHistoryStore) Save(ctx context.Context, h *conversation.History) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveFn != nil {
		return m.saveFn(ctx, h)
	}
	m.saved = append(m.saved, h)
	return nil
}

func TestMemoryUpdaterAppendsTurnAndPinsMerchant(t *testing.T) {
	store := &mockHistoryStore{}
	updater := NewMemoryUpdater(store, 10, logging.NewNopLogger())

	st := conversation.NewState("t-1", "우리 가게 단골 분석해줘", &conversation.History{ThreadID: "t-1"})
	st.Intent = types.IntentRevisit
	st.Resolved = &merchant.ResolvedContext{
		Merchant: &merchant.Record{MerchantID: "761947ABD9", Name: "본죽****"},
	}
	st.FinalResponse = "분석 결과입니다."

	require.NoError(t, updater.Update(context.Background(), st))
	require.Len(t, store.saved, 1)

	h := store.saved[0]
	require.Len(t, h.Messages, 2)
	assert.Equal(t, conversation.RoleUser, h.Messages[0].Role)
	assert.Equal(t, conversation.RoleAssistant, h.Messages[1].Role)
	assert.Equal(t, "761947ABD9", h.Meta.MerchantID)
	assert.Equal(t, "본죽****", h.Meta.MerchantName)
	assert.Equal(t, types.IntentRevisit, h.Meta.LastIntent)
	assert.Empty(t, h.Summary)
}

func TestMemoryUpdaterSkipsAssistantMessageWithoutResponse(t *testing.T) {
	store := &mockHistoryStore{}
	updater := NewMemoryUpdater(store, 10, logging.NewNopLogger())

	st := conversation.NewState("t-1", "본", &conversation.History{ThreadID: "t-1"})
	require.NoError(t, updater.Update(context.Background(), st))

	require.Len(t, store.saved, 1)
	require.Len(t, store.saved[0].Messages, 1)
	assert.Equal(t, conversation.RoleUser, store.saved[0].Messages[0].Role)
}

func TestMemoryUpdaterSummaryPlaceholder(t *testing.T) {
	store := &mockHistoryStore{}
	updater := NewMemoryUpdater(store, 10, logging.NewNopLogger())

	h := &conversation.History{ThreadID: "t-1"}
	for i := 0; i < 9; i++ {
		h.Messages = append(h.Messages, conversation.Message{Role: conversation.RoleUser, Content: "q"})
	}
	st := conversation.NewState("t-1", "질문", h)
	st.FinalResponse = "응답"

	require.NoError(t, updater.Update(context.Background(), st))
	assert.Contains(t, store.saved[0].Summary, "요약 대기")
}
