package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// replay feeds a sequence of outcomes ('f' failure, 's' success) and returns
// the flags reported by the last one.
func replay(b *Breaker, outcomes string) (route bool, change StateChange) {
	for _, o := range outcomes {
		if o == 'f' {
			route, change = b.RecordFailure()
		} else {
			route, change = b.RecordSuccess()
		}
	}
	return route, change
}

func TestBreaker_Transitions(t *testing.T) {
	tests := []struct {
		name       string
		failures   int
		successes  int
		outcomes   string
		wantState  State
		wantRoute  bool
		wantChange StateChange
	}{
		{"failures below threshold stay on primary", 3, 2, "ff", StateClosed, false, StateChange{}},
		{"threshold failure opens", 3, 2, "fff", StateOpen, true, StateChange{Opened: true}},
		{"success resets the failure count", 3, 2, "ffsff", StateClosed, false, StateChange{}},
		{"failures while open keep the fallback", 1, 2, "fff", StateOpen, true, StateChange{}},
		{"one success while open is not enough", 1, 2, "fs", StateOpen, false, StateChange{}},
		{"enough successes close", 1, 2, "fss", StateClosed, true, StateChange{Closed: true}},
		{"failure while recovering restarts the count", 1, 3, "fssfss", StateOpen, false, StateChange{}},
		{"recovery after restart", 1, 3, "fssfsss", StateClosed, true, StateChange{Closed: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("solana-rpc", WithFailureThreshold(tt.failures), WithSuccessThreshold(tt.successes))
			route, change := replay(b, tt.outcomes)
			assert.Equal(t, tt.wantState, b.State())
			assert.Equal(t, tt.wantRoute, route)
			assert.Equal(t, tt.wantChange, change)
		})
	}
}

func TestBreaker_Defaults(t *testing.T) {
	b := New("solana-rpc", WithFailureThreshold(0), WithSuccessThreshold(-1))
	assert.Equal(t, "solana-rpc", b.Name())
	assert.Equal(t, "closed", b.State().String())

	_, change := replay(b, "ffff")
	assert.False(t, change.Opened, "zero threshold falls back to the default of five")
	_, change = replay(b, "f")
	require.True(t, change.Opened)
	assert.Equal(t, "open", b.State().String())

	b.Reset()
	assert.False(t, b.IsOpen())
}
