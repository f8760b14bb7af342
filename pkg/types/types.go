// Package types holds small shared value types used across layers.
package types

import "strings"

// Intent is the closed set of conversation intents the router may produce.
type Intent string

const (
	IntentGeneral     Intent = "GENERAL"
	IntentSNS         Intent = "SNS"
	IntentIssue       Intent = "ISSUE"
	IntentRevisit     Intent = "REVISIT"
	IntentCooperation Intent = "COOPERATION"
	IntentSeason      Intent = "SEASON"
)

// AllIntents lists every valid intent. Order matters for the router's
// keyword fallback scan: SNS, REVISIT and ISSUE are checked before the
// broader labels.
var AllIntents = []Intent{
	IntentSNS,
	IntentRevisit,
	IntentIssue,
	IntentCooperation,
	IntentSeason,
	IntentGeneral,
}

// Valid reports whether i is a member of the closed intent set.
func (i Intent) Valid() bool {
	switch i {
	case IntentGeneral, IntentSNS, IntentIssue, IntentRevisit, IntentCooperation, IntentSeason:
		return true
	}
	return false
}

func (i Intent) String() string { return string(i) }

// ParseIntent normalises a raw label into a valid Intent, reporting whether
// the label was recognised. Whitespace and case are ignored.
func ParseIntent(s string) (Intent, bool) {
	i := Intent(strings.ToUpper(strings.TrimSpace(s)))
	return i, i.Valid()
}

// TurnStatus is the outcome category of a conversation turn.
type TurnStatus string

const (
	TurnStatusOK          TurnStatus = "ok"
	TurnStatusNeedClarify TurnStatus = "need_clarify"
	TurnStatusError       TurnStatus = "error"
)

func (s TurnStatus) String() string { return string(s) }
