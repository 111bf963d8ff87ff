package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoller(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var calls atomic.Int32

	p := NewPoller(time.Minute, func(ctx context.Context) error {
		// errors are logged, polling continues
		if calls.Add(1) == 1 {
			return errors.New("first poll fails")
		}
		return nil
	}, WithClock(clock))

	done := make(chan struct{})
	go func() {
		p.Start(t.Context())
		close(done)
	}()

	for i := 1; i <= 3; i++ {
		require.NoError(t, clock.BlockUntilContext(t.Context(), 1))
		clock.Advance(time.Minute)
		require.Eventually(t, func() bool {
			return calls.Load() == int32(i)
		}, time.Second, time.Millisecond)
	}

	p.Stop()
	p.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestPoller_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	p := NewPoller(time.Hour, func(ctx context.Context) error { return nil })

	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
