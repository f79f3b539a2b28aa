package worker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukerupert/imgbed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestPool_StartStop(t *testing.T) {
	pool := NewPool(testLogger(), nil, DefaultConfig())

	err := pool.Start()
	require.NoError(t, err)

	// Starting again should error
	err = pool.Start()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already started")

	err = pool.Stop()
	require.NoError(t, err)

	// Stopping again should error
	err = pool.Stop()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not started")
}

func TestPool_RunsSubmittedTasks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorkerCount = 3
	pool := NewPool(testLogger(), nil, cfg)
	require.NoError(t, pool.Start())

	var count atomic.Int32
	for i := 0; i < 20; i++ {
		pool.Submit(imgbed.Task{
			Name: "count",
			Run: func(ctx context.Context) error {
				count.Add(1)
				return nil
			},
		})
	}

	// Stop drains everything that was queued.
	require.NoError(t, pool.Stop())
	assert.Equal(t, int32(20), count.Load())
}

func TestPool_TaskOutlivesSubmitter(t *testing.T) {
	pool := NewPool(testLogger(), nil, DefaultConfig())
	require.NoError(t, pool.Start())

	release := make(chan struct{})
	var finished atomic.Bool

	requestCtx, cancelRequest := context.WithCancel(context.Background())
	pool.Submit(imgbed.Task{
		Name: "slow",
		Run: func(ctx context.Context) error {
			<-release
			if ctx.Err() != nil {
				return ctx.Err()
			}
			finished.Store(true)
			return nil
		},
	})

	// The request that submitted the task is done.
	cancelRequest()
	assert.Error(t, requestCtx.Err())

	close(release)
	require.NoError(t, pool.Stop())
	assert.True(t, finished.Load())
}

func TestPool_FullQueueRunsInline(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorkerCount = 1
	cfg.QueueSize = 1
	pool := NewPool(testLogger(), nil, cfg)
	require.NoError(t, pool.Start())

	block := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	pool.Submit(imgbed.Task{
		Name: "blocker",
		Run: func(ctx context.Context) error {
			wg.Done()
			<-block
			return nil
		},
	})

	// The blocker may still be waiting for the worker; wait until it runs.
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(2 * time.Second):
		t.Fatal("blocker task never started")
	}

	// Occupy the single buffer slot.
	var queued atomic.Bool
	pool.Submit(imgbed.Task{
		Name: "queued",
		Run: func(ctx context.Context) error {
			queued.Store(true)
			return nil
		},
	})

	// With the only worker busy and the buffer full, Submit runs the task itself.
	var ran bool
	pool.Submit(imgbed.Task{
		Name: "inline",
		Run: func(ctx context.Context) error {
			ran = true
			return nil
		},
	})
	assert.True(t, ran)

	close(block)
	require.NoError(t, pool.Stop())
	assert.True(t, queued.Load())
}

func TestPool_SubmitWithoutStartRunsInline(t *testing.T) {
	pool := NewPool(testLogger(), nil, DefaultConfig())

	var ran bool
	pool.Submit(imgbed.Task{
		Name: "inline",
		Run: func(ctx context.Context) error {
			ran = true
			return nil
		},
	})
	assert.True(t, ran)
}

func TestPool_FailuresAndPanicsAreSwallowed(t *testing.T) {
	pool := NewPool(testLogger(), nil, DefaultConfig())
	require.NoError(t, pool.Start())

	var after atomic.Bool
	pool.Submit(imgbed.Task{
		Name: "fails",
		Run: func(ctx context.Context) error {
			return errors.New("metadata store unavailable")
		},
	})
	pool.Submit(imgbed.Task{
		Name: "panics",
		Run: func(ctx context.Context) error {
			panic("boom")
		},
	})
	pool.Submit(imgbed.Task{Name: "no run func"})
	pool.Submit(imgbed.Task{
		Name: "after",
		Run: func(ctx context.Context) error {
			after.Store(true)
			return nil
		},
	})

	require.NoError(t, pool.Stop())
	assert.True(t, after.Load())
}

func TestPool_TaskTimeout(t *testing.T) {
	pool := NewPool(testLogger(), nil, DefaultConfig())
	require.NoError(t, pool.Start())

	var deadlineHit atomic.Bool
	pool.Submit(imgbed.Task{
		Name:    "timeout",
		Timeout: 20 * time.Millisecond,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			deadlineHit.Store(errors.Is(ctx.Err(), context.DeadlineExceeded))
			return ctx.Err()
		},
	})

	require.NoError(t, pool.Stop())
	assert.True(t, deadlineHit.Load())
}
