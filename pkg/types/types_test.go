package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIntent(t *testing.T) {
	cases := []struct {
		in    string
		want  Intent
		valid bool
	}{
		{"GENERAL", IntentGeneral, true},
		{"sns", IntentSNS, true},
		{"  Revisit ", IntentRevisit, true},
		{"COOPERATION", IntentCooperation, true},
		{"RETENTION", Intent("RETENTION"), false},
		{"", Intent(""), false},
	}
	for _, tc := range cases {
		got, ok := ParseIntent(tc.in)
		assert.Equal(t, tc.valid, ok, "input %q", tc.in)
		if tc.valid {
			assert.Equal(t, tc.want, got)
		}
	}
}

func TestAllIntentsValid(t *testing.T) {
	for _, i := range AllIntents {
		assert.True(t, i.Valid(), "intent %s", i)
	}
	assert.Len(t, AllIntents, 6)
}
