// Package async runs queued documents through a fixed pool of workers.
package async

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one document waiting to be processed.
type Job struct {
	Path        string
	SubmittedAt time.Time
	TraceID     string
}

// Handler processes one job; ctx carries the per-job timeout.
type Handler func(ctx context.Context, job Job)

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

type ProcessorQueue struct {
	handle  Handler
	logger  *zap.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewProcessorQueue(h Handler, logger *zap.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	q := &ProcessorQueue{
		handle:  h,
		logger:  logger,
		workers: 2,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 64),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("async.worker.start", zap.Int("worker_id", workerID))
				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					q.handle(ctx, job)
					cancel()
					q.logger.Debug("async.job.done",
						zap.Int("worker_id", workerID),
						zap.String("path", job.Path),
						zap.Int64("queued_ms", time.Since(job.SubmittedAt).Milliseconds()),
					)
				}
				q.logger.Debug("async.worker.stop", zap.Int("worker_id", workerID))
			}(i + 1)
		}
	})
}

// Enqueue blocks while the queue is full, until ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		return nil
	default:
	}
	q.logger.Warn("async.queue.full", zap.String("path", job.Path))
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops intake and waits for queued jobs to drain or ctx to end.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("async.shutdown.interrupted")
	case <-done:
		q.logger.Debug("async.shutdown.drained")
	}
}
