package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecision_UnmarshalText(t *testing.T) {
	t.Parallel()

	var d Decision
	require.NoError(t, d.UnmarshalText([]byte(" approved ")))
	assert.Equal(t, DecisionApproved, d)

	require.Error(t, d.UnmarshalText([]byte("maybe")))
}

func TestDecision_Terminal(t *testing.T) {
	t.Parallel()

	assert.False(t, DecisionPending.Terminal())
	assert.True(t, DecisionApproved.Terminal())
	assert.True(t, DecisionDenied.Terminal())
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from Decision
		to   Decision
		want bool
	}{
		{DecisionPending, DecisionApproved, true},
		{DecisionPending, DecisionDenied, true},
		{DecisionPending, DecisionPending, false},
		{DecisionApproved, DecisionDenied, false},
		{DecisionApproved, DecisionApproved, false},
		{DecisionDenied, DecisionApproved, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestNewPendingDecision(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	record := NewPendingDecision("app-1", now)

	assert.Equal(t, "app-1", record.EntityID)
	assert.Equal(t, DecisionPending, record.Decision)
	assert.False(t, record.Notified)
	assert.Equal(t, now, record.CreatedAt)
	assert.Equal(t, now, record.UpdatedAt)
}
