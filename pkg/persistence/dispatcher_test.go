package persistence_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/argus-labs/zone-engine/pkg/persistence"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu  sync.Mutex
	got []persistence.Completion
}

func (c *collector) HandleCompletion(comp persistence.Completion) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, comp)
}

func startDispatcher(t *testing.T, opts persistence.DispatcherOptions) *persistence.Dispatcher {
	t.Helper()
	opts.Logger = zerolog.Nop()
	d := persistence.NewDispatcher(newSQLStore(t), opts)

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()
	t.Cleanup(func() {
		d.Close()
		require.NoError(t, <-done)
	})
	return d
}

// deliverUntil polls Deliver the way the tick loop does until n completions arrived.
func deliverUntil(t *testing.T, d *persistence.Dispatcher, n int) {
	t.Helper()
	delivered := 0
	require.Eventually(t, func() bool {
		delivered += d.Deliver()
		return delivered >= n
	}, 5*time.Second, time.Millisecond)
}

func TestDispatcher_DeliversOnlyThroughDeliver(t *testing.T) {
	t.Parallel()
	d := startDispatcher(t, persistence.DispatcherOptions{Workers: 2})
	c := &collector{}

	for i := range 10 {
		err := d.SubmitAsync(c, i, func(ctx context.Context, s persistence.Store) (any, error) {
			return i * 2, s.SaveGlobalTick(ctx, uint64(i))
		})
		require.NoError(t, err)
	}

	deliverUntil(t, d, 10)

	require.Len(t, c.got, 10)
	for _, comp := range c.got {
		require.NoError(t, comp.Err)
		assert.Equal(t, comp.Context.(int)*2, comp.Result)
		assert.NotEmpty(t, comp.TraceID)
	}
}

func TestDispatcher_ErrorsAndPanicsBecomeCompletions(t *testing.T) {
	t.Parallel()
	d := startDispatcher(t, persistence.DispatcherOptions{Workers: 1})
	c := &collector{}
	boom := errors.New("boom")

	require.NoError(t, d.SubmitAsync(c, "err", func(context.Context, persistence.Store) (any, error) {
		return nil, boom
	}))
	require.NoError(t, d.SubmitAsync(c, "panic", func(context.Context, persistence.Store) (any, error) {
		panic("bad query")
	}))

	deliverUntil(t, d, 2)
	require.Len(t, c.got, 2)
	for _, comp := range c.got {
		require.Error(t, comp.Err)
		if comp.Context == "err" {
			require.ErrorIs(t, comp.Err, boom)
		}
	}
}

func TestDispatcher_FireAndForgetHasNoCompletion(t *testing.T) {
	t.Parallel()
	d := startDispatcher(t, persistence.DispatcherOptions{Workers: 1})
	ran := make(chan struct{})

	require.NoError(t, d.SubmitAsync(nil, nil, func(context.Context, persistence.Store) (any, error) {
		close(ran)
		return nil, nil
	}))

	<-ran
	assert.Eventually(t, func() bool { return d.Pending() == 0 }, time.Second, time.Millisecond)
	assert.Equal(t, 0, d.Deliver())
}

func TestDispatcher_SubmitSync(t *testing.T) {
	t.Parallel()
	d := persistence.NewDispatcher(newSQLStore(t), persistence.DispatcherOptions{Logger: zerolog.Nop()})

	got, err := d.SubmitSync(context.Background(), func(ctx context.Context, s persistence.Store) (any, error) {
		return s.LoadGlobalTick(ctx)
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got)
}

func TestDispatcher_QueueFullAndClosed(t *testing.T) {
	t.Parallel()
	// Not running, so nothing drains the queue.
	d := persistence.NewDispatcher(newSQLStore(t), persistence.DispatcherOptions{QueueSize: 1, Logger: zerolog.Nop()})
	noop := func(context.Context, persistence.Store) (any, error) { return nil, nil }

	require.NoError(t, d.SubmitAsync(nil, nil, noop))
	require.ErrorIs(t, d.SubmitAsync(nil, nil, noop), persistence.ErrQueueFull)

	d.Close()
	d.Close()
	require.ErrorIs(t, d.SubmitAsync(nil, nil, noop), persistence.ErrClosed)
}
