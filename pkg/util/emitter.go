package util

import "sync"

// Emitter is a minimal synchronous event broadcaster. Listeners run on the
// emitting goroutine in registration order; a panicking listener is
// recovered and logged so one bad listener cannot take down the event
// source. The zero value is ready to use.
type Emitter[E any] struct {
	mu   sync.RWMutex
	subs []subscriber[E]
	next int
}

type subscriber[E any] struct {
	id int
	fn func(E)
}

// Subscribe registers fn and returns a function that removes it.
func (e *Emitter[E]) Subscribe(fn func(E)) (cancel func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.next
	e.next++
	e.subs = append(e.subs, subscriber[E]{id: id, fn: fn})
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, s := range e.subs {
			if s.id == id {
				e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers ev to every current listener, in registration order.
func (e *Emitter[E]) Emit(ev E) {
	e.mu.RLock()
	fns := make([]func(E), len(e.subs))
	for i, s := range e.subs {
		fns[i] = s.fn
	}
	e.mu.RUnlock()

	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					Errorf("event listener panic: %v", r)
				}
			}()
			fn(ev)
		}()
	}
}

// Len returns the number of registered listeners.
func (e *Emitter[E]) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subs)
}
