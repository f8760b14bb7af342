package conversation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/storepilot/merchant-advisor/pkg/types"
)

func TestNewState(t *testing.T) {
	h := &History{ThreadID: "t-1"}
	s := NewState("t-1", "매출이 왜 떨어졌지?", h)

	assert.Equal(t, "t-1", s.ThreadID)
	assert.Equal(t, types.IntentGeneral, s.Intent)
	assert.NotNil(t, s.Metrics)
	assert.NotNil(t, s.Abnormal)
	assert.Same(t, h, s.History)
	assert.Empty(t, s.Errors)
}

func TestStateAddError(t *testing.T) {
	s := NewState("t-1", "q", nil)

	s.AddError("metrics", errors.New("merchant not found"))
	s.AddError("web", nil) // nil errors are ignored

	assert.Equal(t, []string{"metrics: merchant not found"}, s.Errors)
}
