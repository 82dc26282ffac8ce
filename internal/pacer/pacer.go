// Package pacer provides a fixed-interval gate used to space out calls
// to rate-limited upstream services. The clock is injectable so tests
// never sleep on the wall clock.
package pacer

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Pacer blocks for a pacing interval between calls.
type Pacer interface {
	// Wait blocks for the configured interval or until ctx is done,
	// returning ctx.Err() in the latter case.
	Wait(ctx context.Context) error
}

type interval struct {
	clock clockwork.Clock
	d     time.Duration
}

// NewInterval creates a Pacer that waits a fixed duration on every call.
// A zero or negative duration makes Wait return immediately.
func NewInterval(clock clockwork.Clock, d time.Duration) Pacer {
	return &interval{clock: clock, d: d}
}

func (p *interval) Wait(ctx context.Context) error {
	if p.d <= 0 {
		return ctx.Err()
	}
	select {
	case <-p.clock.After(p.d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Nop returns a Pacer that never waits.
func Nop() Pacer {
	return &interval{clock: clockwork.NewRealClock(), d: 0}
}
