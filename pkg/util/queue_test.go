package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDropQueueFIFO(t *testing.T) {
	q := NewDropQueue[int](4)
	for i := 1; i <= 3; i++ {
		if !q.Put(i) {
			t.Fatalf("Put(%d) returned false", i)
		}
	}

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		v, err := q.Get(ctx)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if v != i {
			t.Errorf("Get = %d, want %d", v, i)
		}
	}
	if q.Dropped() != 0 {
		t.Errorf("Dropped = %d, want 0", q.Dropped())
	}
}

func TestDropQueueDropsOldest(t *testing.T) {
	q := NewDropQueue[int](2)
	q.Put(1)
	q.Put(2)
	q.Put(3) // evicts 1

	ctx := context.Background()
	v, _ := q.Get(ctx)
	if v != 2 {
		t.Errorf("first Get = %d, want 2", v)
	}
	v, _ = q.Get(ctx)
	if v != 3 {
		t.Errorf("second Get = %d, want 3", v)
	}
	if q.Dropped() != 1 {
		t.Errorf("Dropped = %d, want 1", q.Dropped())
	}
}

func TestDropQueueGetContextCancel(t *testing.T) {
	q := NewDropQueue[int](1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := q.Get(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Get on empty queue = %v, want deadline exceeded", err)
	}
}

func TestDropQueueClose(t *testing.T) {
	q := NewDropQueue[int](2)
	q.Put(7)
	q.Close()

	if q.Put(8) {
		t.Error("Put after Close should return false")
	}

	ctx := context.Background()
	v, err := q.Get(ctx)
	if err != nil || v != 7 {
		t.Fatalf("Get after Close = (%d, %v), want buffered element", v, err)
	}
	_, err = q.Get(ctx)
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Get on drained closed queue = %v, want ErrClosed", err)
	}
}
