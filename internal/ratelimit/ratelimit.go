package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/deusflow/newscurator/internal/logger"
)

// ErrQueueClosed is returned for work submitted to, or still pending in, a
// closed queue.
var ErrQueueClosed = errors.New("request queue closed")

type job struct {
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
}

// Queue runs submitted work one item at a time, in arrival order, waiting a
// fixed delay between dequeues.
type Queue struct {
	jobs    chan job
	limiter *rate.Limiter
	quit    chan struct{}
	stopped chan struct{}
	once    sync.Once

	mu        sync.Mutex
	processed int
	failed    int
	skipped   int
}

// NewQueue starts the worker. delay is the minimum gap between two jobs.
func NewQueue(delay time.Duration) *Queue {
	var limiter *rate.Limiter
	if delay > 0 {
		limiter = rate.NewLimiter(rate.Every(delay), 1)
		// consume the initial token so the first job also waits the delay
		limiter.Allow()
	}

	q := &Queue{
		jobs:    make(chan job),
		limiter: limiter,
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go q.run()
	return q
}

// Do enqueues fn and blocks until it has run, ctx is done, or the queue is
// closed. Jobs whose context ends while waiting are skipped.
func (q *Queue) Do(ctx context.Context, fn func(context.Context) error) error {
	j := job{ctx: ctx, fn: fn, done: make(chan error, 1)}

	select {
	case q.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	case <-q.quit:
		return ErrQueueClosed
	}

	select {
	case err := <-j.done:
		return err
	case <-q.stopped:
		// the worker may have finished this job just before stopping
		select {
		case err := <-j.done:
			return err
		default:
			return ErrQueueClosed
		}
	}
}

func (q *Queue) run() {
	defer close(q.stopped)

	for {
		select {
		case <-q.quit:
			return
		case j := <-q.jobs:
			q.handle(j)
		}
	}
}

func (q *Queue) handle(j job) {
	if q.limiter != nil {
		if err := q.limiter.Wait(j.ctx); err != nil {
			q.record(nil, true)
			j.done <- err
			return
		}
	}
	if err := j.ctx.Err(); err != nil {
		q.record(nil, true)
		j.done <- err
		return
	}

	err := safeRun(j)
	q.record(err, false)
	j.done <- err
}

func safeRun(j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("queued job panicked", "panic", r)
			err = fmt.Errorf("queued job panicked: %v", r)
		}
	}()
	return j.fn(j.ctx)
}

func (q *Queue) record(err error, skipped bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch {
	case skipped:
		q.skipped++
	case err != nil:
		q.failed++
	default:
		q.processed++
	}
}

// Close stops the worker after the job in progress, if any.
func (q *Queue) Close() {
	q.once.Do(func() {
		close(q.quit)
	})
	<-q.stopped
}

// GetStats returns queue counters.
func (q *Queue) GetStats() map[string]interface{} {
	q.mu.Lock()
	defer q.mu.Unlock()

	return map[string]interface{}{
		"processed": q.processed,
		"failed":    q.failed,
		"skipped":   q.skipped,
	}
}
