package retry

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// Scheduler holds items until their delay elapses and then hands them to a
// callback. A single goroutine and a single timer serve every pending item.
type Scheduler[T any] struct {
	mu    sync.Mutex
	items delayHeap[T]
	seq   uint64
	wake  chan struct{}
}

// NewScheduler creates an empty Scheduler.
func NewScheduler[T any]() *Scheduler[T] {
	return &Scheduler[T]{wake: make(chan struct{}, 1)}
}

// Schedule queues item to fire after delay. Items with the same due time
// fire in scheduling order.
func (s *Scheduler[T]) Schedule(item T, delay time.Duration) {
	s.mu.Lock()
	s.seq++
	heap.Push(&s.items, &pending[T]{item: item, at: time.Now().Add(delay), seq: s.seq})
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Len returns how many items are waiting.
func (s *Scheduler[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Run fires due items until ctx is done. Items still waiting when Run
// returns are kept for the next Run.
func (s *Scheduler[T]) Run(ctx context.Context, fire func(T)) {
	timer := time.NewTimer(time.Hour)
	stopTimer(timer)
	defer timer.Stop()

	for {
		due, wait := s.popDue(time.Now())
		for _, it := range due {
			fire(it)
		}
		if len(due) > 0 {
			continue
		}

		var timerC <-chan time.Time
		if wait >= 0 {
			timer.Reset(wait)
			timerC = timer.C
		}
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
			stopTimer(timer)
		case <-timerC:
		}
	}
}

// popDue removes every item due at now and returns the wait until the next
// one, or -1 when nothing is left.
func (s *Scheduler[T]) popDue(now time.Time) ([]T, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []T
	for len(s.items) > 0 && !s.items[0].at.After(now) {
		due = append(due, heap.Pop(&s.items).(*pending[T]).item)
	}
	if len(s.items) == 0 {
		return due, -1
	}
	return due, s.items[0].at.Sub(now)
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

type pending[T any] struct {
	item T
	at   time.Time
	seq  uint64
}

type delayHeap[T any] []*pending[T]

func (h delayHeap[T]) Len() int { return len(h) }
func (h delayHeap[T]) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}
func (h delayHeap[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *delayHeap[T]) Push(x any)   { *h = append(*h, x.(*pending[T])) }
func (h *delayHeap[T]) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}
