package advisory

import (
	"context"
	"fmt"
	"time"

	"github.com/storepilot/merchant-advisor/internal/domain/conversation"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/logging"
)

const defaultSummaryThreshold = 10

// MemoryUpdater appends one completed turn to the thread history and
// persists it.
type MemoryUpdater interface {
	Update(ctx context.Context, st *conversation.State) error
}

type memoryUpdater struct {
	store            conversation.HistoryStore
	summaryThreshold int
	logger           logging.Logger
	now              func() time.Time
}

// NewMemoryUpdater builds the updater. summaryThreshold ≤ 0 uses the default.
func NewMemoryUpdater(store conversation.HistoryStore, summaryThreshold int, logger logging.Logger) MemoryUpdater {
	if summaryThreshold <= 0 {
		summaryThreshold = defaultSummaryThreshold
	}
	return &memoryUpdater{
		store:            store,
		summaryThreshold: summaryThreshold,
		logger:           logger.Named("memory"),
		now:              time.Now,
	}
}

func (m *memoryUpdater) Update(ctx context.Context, st *conversation.State) error {
	h := st.History
	if h == nil {
		h = &conversation.History{ThreadID: st.ThreadID}
	}

	ts := m.now()
	h.Messages = append(h.Messages,
		conversation.Message{Role: conversation.RoleUser, Content: st.UserQuery, Timestamp: ts},
	)
	if st.FinalResponse != "" {
		h.Messages = append(h.Messages,
			conversation.Message{Role: conversation.RoleAssistant, Content: st.FinalResponse, Timestamp: ts},
		)
	}

	// Pin the resolved merchant so follow-up turns skip re-resolution.
	if st.Resolved != nil && st.Resolved.Merchant != nil {
		h.Meta.MerchantID = st.Resolved.Merchant.MerchantID
		h.Meta.MerchantName = st.Resolved.Merchant.Name
	}
	h.Meta.LastIntent = st.Intent

	// Summarisation placeholder: full summarisation is deferred, the marker
	// records when it would have fired.
	if h.Summary == "" && len(h.Messages) >= m.summaryThreshold {
		h.Summary = fmt.Sprintf("[요약 대기] %d개 메시지 누적 (%s)",
			len(h.Messages), ts.Format("2006-01-02"))
	}

	return m.store.Save(ctx, h)
}
