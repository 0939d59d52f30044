package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"fortunegate/pkg/logging"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestQueue(t *testing.T, workers, size int) (*Queue, context.Context) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	q := New(Options{Workers: workers, Size: size, TaskTimeout: time.Second, Logger: logger})
	return q, logging.WithLogger(context.Background(), logger)
}

func TestQueueRunsAndDrains(t *testing.T) {
	q, ctx := newTestQueue(t, 2, 16)

	var ran int64
	for i := 0; i < 10; i++ {
		ok := q.Enqueue(ctx, Task{Name: "count", Run: func(ctx context.Context) error {
			atomic.AddInt64(&ran, 1)
			return nil
		}})
		require.True(t, ok)
	}

	require.NoError(t, q.Close(context.Background()))
	assert.Equal(t, int64(10), atomic.LoadInt64(&ran))

	st := q.Stats()
	assert.Equal(t, int64(10), st.Enqueued)
	assert.Equal(t, int64(10), st.Processed)
	assert.Zero(t, st.Failed)
	assert.Zero(t, st.Dropped)
}

func TestQueueDropsWhenFull(t *testing.T) {
	q, ctx := newTestQueue(t, 1, 1)

	started := make(chan struct{})
	release := make(chan struct{})
	require.True(t, q.Enqueue(ctx, Task{Name: "block", Run: func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}}))
	<-started

	noop := Task{Name: "noop", Run: func(context.Context) error { return nil }}
	assert.True(t, q.Enqueue(ctx, noop))
	assert.False(t, q.Enqueue(ctx, noop))

	close(release)
	require.NoError(t, q.Close(context.Background()))
	assert.Equal(t, int64(1), q.Stats().Dropped)
	assert.Equal(t, int64(2), q.Stats().Processed)
}

func TestQueueEnqueueNeverBlocks(t *testing.T) {
	q, ctx := newTestQueue(t, 1, 1)

	release := make(chan struct{})
	slow := Task{Name: "slow", Run: func(ctx context.Context) error {
		<-release
		return nil
	}}

	start := time.Now()
	for i := 0; i < 50; i++ {
		q.Enqueue(ctx, slow)
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	close(release)
	require.NoError(t, q.Close(context.Background()))
}

func TestQueueLogsFailuresAndPanics(t *testing.T) {
	q, ctx := newTestQueue(t, 1, 4)

	q.Enqueue(ctx, Task{Name: "fail", Run: func(context.Context) error { return errors.New("db down") }})
	q.Enqueue(ctx, Task{Name: "panic", Run: func(context.Context) error { panic("boom") }})
	q.Enqueue(ctx, Task{Name: "ok", Run: func(context.Context) error { return nil }})

	require.NoError(t, q.Close(context.Background()))
	st := q.Stats()
	assert.Equal(t, int64(3), st.Processed)
	assert.Equal(t, int64(2), st.Failed)
}

func TestQueueRejectsAfterClose(t *testing.T) {
	q, ctx := newTestQueue(t, 1, 4)
	require.NoError(t, q.Close(context.Background()))

	assert.False(t, q.Enqueue(ctx, Task{Name: "late", Run: func(context.Context) error { return nil }}))
	assert.ErrorIs(t, q.Close(context.Background()), ErrClosed)
}

func TestQueueCloseTimeoutCancelsTasks(t *testing.T) {
	q, ctx := newTestQueue(t, 1, 4)

	started := make(chan struct{})
	q.Enqueue(ctx, Task{Name: "stuck", Run: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}})
	<-started

	closeCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := q.Close(closeCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueCarriesRequestLogger(t *testing.T) {
	q, _ := newTestQueue(t, 1, 4)
	logger := zaptest.NewLogger(t).Named("request")
	ctx := logging.WithLogger(context.Background(), logger)

	got := make(chan bool, 1)
	q.Enqueue(ctx, Task{Name: "logger", Run: func(ctx context.Context) error {
		got <- logging.FromContext(ctx) == logger
		return nil
	}})

	require.NoError(t, q.Close(context.Background()))
	assert.True(t, <-got)
}
