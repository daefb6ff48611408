package util

import (
	"context"
	"sync"
	"sync/atomic"
)

// DropQueue is a bounded FIFO queue that never blocks the producer: when the
// queue is full the oldest element is discarded to make room. Dropped
// elements are counted so consumers can tell that backpressure occurred.
type DropQueue[T any] struct {
	ch      chan T
	dropped atomic.Uint64
	closeMu sync.Mutex
	closed  bool
}

// NewDropQueue creates a queue holding at most size elements. Size must be
// at least 1.
func NewDropQueue[T any](size int) *DropQueue[T] {
	if size < 1 {
		size = 1
	}
	return &DropQueue[T]{ch: make(chan T, size)}
}

// Put enqueues v, evicting the oldest element if the queue is full.
// Returns false if the queue has been closed.
func (q *DropQueue[T]) Put(v T) bool {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return false
	}
	for {
		select {
		case q.ch <- v:
			return true
		default:
		}
		select {
		case <-q.ch:
			q.dropped.Add(1)
		default:
		}
	}
}

// Get dequeues the next element, waiting until one is available, the queue
// is closed and drained, or ctx is done.
func (q *DropQueue[T]) Get(ctx context.Context) (T, error) {
	var zero T
	select {
	case v, ok := <-q.ch:
		if !ok {
			return zero, ErrClosed
		}
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// C exposes the receive side for use in select statements.
func (q *DropQueue[T]) C() <-chan T {
	return q.ch
}

// Dropped returns the number of elements evicted so far.
func (q *DropQueue[T]) Dropped() uint64 {
	return q.dropped.Load()
}

// Close stops the queue. Buffered elements remain readable until drained.
func (q *DropQueue[T]) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}
