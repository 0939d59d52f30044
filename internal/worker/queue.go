package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"fortunegate/internal/metrics"
	"fortunegate/pkg/logging"
)

// ErrClosed is returned by Close when called twice.
var ErrClosed = errors.New("worker: queue closed")

// Task is a best-effort background write. Its error is logged and dropped.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Options configures a Queue.
type Options struct {
	Workers     int           // default 2
	Size        int           // buffered tasks, default 256
	TaskTimeout time.Duration // per task, default 10s
	Logger      *zap.Logger
}

// Stats is a snapshot of queue counters.
type Stats struct {
	Queued    int   `json:"queued"`
	Enqueued  int64 `json:"enqueued"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
}

type envelope struct {
	task   Task
	logger *zap.Logger
}

// Queue runs tasks on a fixed set of goroutines without ever blocking the caller.
type Queue struct {
	tasks   chan envelope
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	// cancels in-flight tasks when Close gives up waiting
	ctx    context.Context
	cancel context.CancelFunc

	enqueued  int64
	processed int64
	failed    int64
	dropped   int64
}

// New starts the workers of a queue.
func New(opts Options) *Queue {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.Size <= 0 {
		opts.Size = 256
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		tasks:   make(chan envelope, opts.Size),
		timeout: opts.TaskTimeout,
		logger:  opts.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}

	for i := 0; i < opts.Workers; i++ {
		q.wg.Add(1)
		go q.run(i)
	}

	q.logger.Info("write queue started",
		zap.Int("workers", opts.Workers),
		zap.Int("size", opts.Size),
	)
	return q
}

// Enqueue hands t to the workers. It returns false, and counts a drop, when the
// queue is full or closed. The request logger in ctx is carried into the task.
func (q *Queue) Enqueue(ctx context.Context, t Task) bool {
	logger := logging.L(ctx)

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.drop(logger, t, "closed")
		return false
	}

	select {
	case q.tasks <- envelope{task: t, logger: logger}:
		atomic.AddInt64(&q.enqueued, 1)
		return true
	default:
		q.drop(logger, t, "full")
		return false
	}
}

func (q *Queue) drop(logger *zap.Logger, t Task, reason string) {
	atomic.AddInt64(&q.dropped, 1)
	metrics.QueueDroppedTotal.WithLabelValues(t.Name).Inc()
	logger.Warn("write_queue_drop",
		zap.String("task", t.Name),
		zap.String("reason", reason),
	)
}

func (q *Queue) run(id int) {
	defer q.wg.Done()

	for env := range q.tasks {
		q.execute(id, env)
	}
}

func (q *Queue) execute(id int, env envelope) {
	ctx, cancel := context.WithTimeout(q.ctx, q.timeout)
	defer cancel()
	ctx = logging.WithLogger(ctx, env.logger)

	defer func() {
		atomic.AddInt64(&q.processed, 1)
		if rec := recover(); rec != nil {
			atomic.AddInt64(&q.failed, 1)
			metrics.QueueFailedTotal.WithLabelValues(env.task.Name).Inc()
			env.logger.Error("write_queue_task_panic",
				zap.Int("worker", id),
				zap.String("task", env.task.Name),
				zap.Any("panic", rec),
			)
		}
	}()

	if err := env.task.Run(ctx); err != nil {
		atomic.AddInt64(&q.failed, 1)
		metrics.QueueFailedTotal.WithLabelValues(env.task.Name).Inc()
		env.logger.Error("write_queue_task_failed",
			zap.Int("worker", id),
			zap.String("task", env.task.Name),
			zap.Error(err),
		)
	}
}

// Close stops accepting tasks and waits for queued ones to finish. When ctx
// ends first the remaining tasks are cancelled and ctx's error is returned.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		q.logger.Info("write queue drained", zap.Int64("processed", atomic.LoadInt64(&q.processed)))
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		q.logger.Warn("write queue close timed out", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}

// Stats returns the current counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Queued:    len(q.tasks),
		Enqueued:  atomic.LoadInt64(&q.enqueued),
		Processed: atomic.LoadInt64(&q.processed),
		Failed:    atomic.LoadInt64(&q.failed),
		Dropped:   atomic.LoadInt64(&q.dropped),
	}
}
