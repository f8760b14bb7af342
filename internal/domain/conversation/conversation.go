// Package conversation defines the per-turn state threaded through the
// advisory pipeline and the persisted per-thread history model.
package conversation

import (
	"context"
	"time"

	"github.com/storepilot/merchant-advisor/internal/domain/merchant"
	"github.com/storepilot/merchant-advisor/pkg/types"
)

// Message roles in the persisted history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry in the append-only per-thread log.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ThreadMeta is the small state carried across turns of one thread: the last
// resolved merchant and intent, used to pin a merchant after disambiguation.
type ThreadMeta struct {
	MerchantID   string       `json:"store_id,omitempty"`
	MerchantName string       `json:"store_name,omitempty"`
	LastIntent   types.Intent `json:"last_intent,omitempty"`
}

// History is the persisted conversation record for one thread.
type History struct {
	ThreadID  string     `json:"thread_id"`
	Messages  []Message  `json:"messages"`
	Meta      ThreadMeta `json:"metadata"`
	Summary   string     `json:"conversation_summary,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// HistoryStore persists per-thread histories. A thread is only ever processed
// by one turn at a time, so implementations need no per-thread locking.
type HistoryStore interface {
	// Load returns the history for a thread, or an empty history when the
	// thread is new. Backend unavailability is returned as an error; callers
	// degrade to an empty history rather than failing the turn.
	Load(ctx context.Context, threadID string) (*History, error)

	// Save rewrites the history for a thread.
	Save(ctx context.Context, h *History) error
}

// WebSnippet is one web document attached to the turn state after search
// aggregation.
type WebSnippet struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Snippet     string    `json:"snippet"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at,omitempty"`
	Score       float64   `json:"score,omitempty"`
}

// WebMeta records how the web augmentation behaved for one turn.
type WebMeta struct {
	ProviderUsed string        `json:"provider_used,omitempty"`
	RetryCount   int           `json:"retry_count"`
	FallbackUsed bool          `json:"fallback_used"`
	Elapsed      time.Duration `json:"execution_time"`
	Query        string        `json:"query,omitempty"`
}

// State is the orchestration state for one user turn. It is created fresh per
// turn (loaded with prior history), mutated field by field by each pipeline
// stage, and discarded after the turn; only the history is persisted.
type State struct {
	ThreadID  string
	UserQuery string

	Intent          types.Intent
	MerchantID      string
	Candidates      []merchant.Candidate
	NeedClarify     bool
	Resolved        *merchant.ResolvedContext
	Metrics         map[string]any
	Abnormal        map[string]string
	Signals         []string
	NeedWebFallback bool
	WebSnippets     []WebSnippet
	WebMeta         WebMeta

	RawResponse     string
	FinalResponse   string
	Actions         []string
	RelevancePassed bool
	RetryCount      int

	History *History

	// Errors accumulates non-fatal per-stage failures. The turn proceeds
	// with partial data; the list is logged and surfaced as a soft
	// annotation, never as a hard failure.
	Errors []string
}

// AddError appends a non-fatal stage error to the accumulator.
func (s *State) AddError(stage string, err error) {
	if err == nil {
		return
	}
	s.Errors = append(s.Errors, stage+": "+err.Error())
}

// NewState creates the state for one turn over the given history.
func NewState(threadID, userQuery string, h *History) *State {
	return &State{
		ThreadID:  threadID,
		UserQuery: userQuery,
		Intent:    types.IntentGeneral,
		Metrics:   map[string]any{},
		Abnormal:  map[string]string{},
		History:   h,
	}
}
