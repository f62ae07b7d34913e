package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBroker = errors.New("broker unavailable")

func newTestBreaker(threshold int, timeout time.Duration) (*CircuitBreaker, *time.Time) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(threshold, timeout)
	cb.now = func() time.Time { return now }
	return cb, &now
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Second)
	fail := func() error { return errBroker }

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(fail), errBroker)
	}
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
	assert.ErrorIs(t, cb.LastError(), errBroker)
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb, _ := newTestBreaker(2, time.Second)

	assert.Error(t, cb.Execute(func() error { return errBroker }))
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Error(t, cb.Execute(func() error { return errBroker }))

	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	tests := []struct {
		name      string
		probeErr  error
		wantState State
	}{
		{name: "successful probe closes", probeErr: nil, wantState: StateClosed},
		{name: "failed probe reopens", probeErr: errBroker, wantState: StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, now := newTestBreaker(1, time.Second)
			require.Error(t, cb.Execute(func() error { return errBroker }))
			require.Equal(t, StateOpen, cb.State())

			assert.False(t, cb.AllowRequest())

			*now = now.Add(2 * time.Second)
			require.True(t, cb.AllowRequest())
			assert.Equal(t, StateHalfOpen, cb.State())
			// only one probe at a time
			assert.False(t, cb.AllowRequest())

			cb.RecordResult(tt.probeErr)
			assert.Equal(t, tt.wantState, cb.State())
		})
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
