package pacer

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestIntervalWaitsForDuration(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	p := NewInterval(clock, 100*time.Millisecond)

	done := make(chan error, 1)
	go func() {
		done <- p.Wait(context.Background())
	}()

	clock.BlockUntil(1)
	clock.Advance(100 * time.Millisecond)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after the interval elapsed")
	}
}

func TestIntervalHonorsCancellation(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	p := NewInterval(clock, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- p.Wait(ctx)
	}()

	clock.BlockUntil(1)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after cancellation")
	}
}

func TestZeroDurationReturnsImmediately(t *testing.T) {
	t.Parallel()

	p := NewInterval(clockwork.NewFakeClock(), 0)
	require.NoError(t, p.Wait(context.Background()))
}

func TestZeroDurationStillReportsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, Nop().Wait(ctx), context.Canceled)
}
