package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLoop() *Loop {
	return NewLoop(Params{Log: zap.NewNop()})
}

func TestPostRunsInOrder(t *testing.T) {
	loop := newTestLoop()
	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		require.NoError(t, loop.Post(func(context.Context) { order = append(order, i) }))
	}
	assert.Equal(t, 3, loop.RunPending(context.Background()))
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestAfterCancelledBeforeFiring(t *testing.T) {
	loop := newTestLoop()
	var ran atomic.Bool
	ticket := loop.After(20*time.Millisecond, func(context.Context) { ran.Store(true) })
	ticket.Cancel()
	ticket.Cancel()

	time.Sleep(50 * time.Millisecond)
	loop.RunPending(context.Background())
	assert.False(t, ran.Load())
	assert.True(t, ticket.Cancelled())
}

func TestEveryStopsAfterCancel(t *testing.T) {
	loop := newTestLoop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	var runs atomic.Int32
	ticket := loop.Every(5*time.Millisecond, func(context.Context) { runs.Add(1) })
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, time.Millisecond)

	ticket.Cancel()
	time.Sleep(20 * time.Millisecond)
	settled := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, runs.Load())
}

func TestEveryKeepsOneRunInFlight(t *testing.T) {
	loop := newTestLoop()
	var runs atomic.Int32
	ticket := loop.Every(2*time.Millisecond, func(context.Context) { runs.Add(1) })
	defer ticket.Cancel()

	// Nothing drains the queue, so later ticks must be dropped.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, loop.RunPending(context.Background()))
	assert.Equal(t, int32(1), runs.Load())
}

func TestPanicDoesNotStopLoop(t *testing.T) {
	loop := newTestLoop()
	var ran bool
	require.NoError(t, loop.Post(func(context.Context) { panic("boom") }))
	require.NoError(t, loop.Post(func(context.Context) { ran = true }))
	loop.RunPending(context.Background())
	assert.True(t, ran)
}

func TestPostAfterStop(t *testing.T) {
	loop := newTestLoop()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	loop.Run(ctx)
	assert.ErrorIs(t, loop.Post(func(context.Context) {}), ErrLoopStopped)
}

func TestStopReleasesBlockedPost(t *testing.T) {
	loop := NewLoop(Params{Log: zap.NewNop(), Config: Config{QueueSize: 1}})
	require.NoError(t, loop.Post(func(context.Context) {}))

	blocked := make(chan error, 1)
	go func() { blocked <- loop.Post(func(context.Context) {}) }()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(stopped)
	}()
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
	select {
	case err := <-blocked:
		// Run may drain the first task and accept the blocked one before it sees the cancel.
		if err != nil {
			assert.ErrorIs(t, err, ErrLoopStopped)
		}
	case <-time.After(time.Second):
		t.Fatal("post stayed blocked after the loop stopped")
	}
	assert.ErrorIs(t, loop.Post(func(context.Context) {}), ErrLoopStopped)
}
