package download

import (
	"context"
	"errors"
	"sync"
)

// WorkFunc is one pipeline run by a Queue.
type WorkFunc func(ctx context.Context) error

// Queue runs independent pipelines concurrently, at most maxConcurrent at
// a time. Pipelines share nothing but the slots and the collected errors.
type Queue struct {
	wg    sync.WaitGroup
	slots chan struct{}

	mu   sync.Mutex
	errs []error
}

// NewQueue returns a Queue running at most maxConcurrent pipelines at
// once, or any number when maxConcurrent <= 0.
func NewQueue(maxConcurrent int) *Queue {
	q := &Queue{}
	if maxConcurrent > 0 {
		q.slots = make(chan struct{}, maxConcurrent)
	}
	return q
}

// Result is the outcome of one queued pipeline.
type Result struct {
	done chan struct{}
	err  error
}

// Err waits for the pipeline and returns its error. A pipeline whose ctx
// ended before a slot freed up returns the context's error without
// having run.
func (r *Result) Err() error {
	<-r.done
	return r.err
}

// Start runs fn in its own goroutine as soon as a slot is free.
func (q *Queue) Start(ctx context.Context, fn WorkFunc) *Result {
	r := &Result{done: make(chan struct{})}

	q.wg.Go(func() {
		defer close(r.done)

		if err := q.acquire(ctx); err != nil {
			r.err = err
			q.record(err)
			return
		}
		defer q.release()

		if r.err = fn(ctx); r.err != nil {
			q.record(r.err)
		}
	})

	return r
}

// Wait blocks until every started pipeline has finished and returns their
// errors joined, in completion order.
func (q *Queue) Wait() error {
	q.wg.Wait()

	q.mu.Lock()
	defer q.mu.Unlock()

	return errors.Join(q.errs...)
}

func (q *Queue) acquire(ctx context.Context) error {
	if q.slots == nil {
		return nil
	}

	select {
	case q.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) release() {
	if q.slots != nil {
		<-q.slots
	}
}

func (q *Queue) record(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.errs = append(q.errs, err)
}
