package engine

import (
	"context"
	"time"
)

// workQueue is a bounded FIFO shared by producers and the single worker.
// It outlives the worker, so items survive a Stop and are drained after the
// next Start.
type workQueue[T any] struct {
	ch chan T
}

func newWorkQueue[T any](capacity int) *workQueue[T] {
	return &workQueue[T]{ch: make(chan T, capacity)}
}

// put waits up to timeout for room. It returns ErrQueueFull on timeout and
// the context error if ctx ends first.
func (q *workQueue[T]) put(ctx context.Context, v T, timeout time.Duration) error {
	select {
	case q.ch <- v:
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case q.ch <- v:
		return nil
	case <-timer.C:
		return ErrQueueFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tryPut enqueues without blocking (returns false if full).
func (q *workQueue[T]) tryPut(v T) bool {
	select {
	case q.ch <- v:
		return true
	default:
		return false
	}
}

func (q *workQueue[T]) items() <-chan T { return q.ch }

// Len returns how many items are currently queued.
func (q *workQueue[T]) Len() int { return len(q.ch) }

// Cap returns the total queue capacity.
func (q *workQueue[T]) Cap() int { return cap(q.ch) }
