package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// outcome is one call to the cache behind the breaker.
type outcome bool

const (
	up   outcome = true
	down outcome = false
)

func record(b *Breaker, o outcome) StateChange {
	if o == up {
		_, change := b.RecordSuccess()
		return change
	}
	_, change := b.RecordFailure()
	return change
}

func TestBreakerSequences(t *testing.T) {
	tests := []struct {
		name       string
		opts       []Option
		calls      []outcome
		wantState  State
		wantOpened int
		wantClosed int
	}{
		{name: "fresh breaker serves the cache", wantState: StateClosed},
		{name: "default threshold opens on the fifth failure", calls: []outcome{down, down, down, down, down}, wantState: StateOpen, wantOpened: 1},
		{name: "a success in between resets the failure run", opts: []Option{WithFailureThreshold(3)}, calls: []outcome{down, down, up, down, down}, wantState: StateClosed},
		{name: "open circuit needs a run of successes to close", opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)}, calls: []outcome{down, up, up}, wantState: StateClosed, wantOpened: 1, wantClosed: 1},
		{name: "a failure while open restarts the success run", opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)}, calls: []outcome{down, up, down, up}, wantState: StateOpen, wantOpened: 1},
		{name: "failures while open do not report a second opening", opts: []Option{WithFailureThreshold(1)}, calls: []outcome{down, down, down}, wantState: StateOpen, wantOpened: 1},
		{name: "non-positive thresholds keep the defaults", opts: []Option{WithFailureThreshold(0), WithSuccessThreshold(-1)}, calls: []outcome{down, down, down, down}, wantState: StateClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("region-cache", tt.opts...)
			var opened, closed int
			for _, o := range tt.calls {
				change := record(b, o)
				if change.Opened {
					opened++
				}
				if change.Closed {
					closed++
				}
			}
			assert.Equal(t, tt.wantState, b.State())
			assert.Equal(t, tt.wantOpened, opened, "openings")
			assert.Equal(t, tt.wantClosed, closed, "closings")
		})
	}
}

func TestBreakerTellsCallerWhichPathToUse(t *testing.T) {
	b := New("region-cache", WithFailureThreshold(2), WithSuccessThreshold(1))

	useFallback, _ := b.RecordFailure()
	assert.False(t, useFallback, "one failure keeps the cache primary")
	useFallback, _ = b.RecordFailure()
	assert.True(t, useFallback, "threshold reached, resolve without the cache")
	assert.True(t, b.IsOpen())

	usePrimary, change := b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)

	b.RecordFailure()
	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "region-cache", b.Name())
}
