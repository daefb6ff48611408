package util

import "testing"

func TestEmitterSubscribeEmit(t *testing.T) {
	var e Emitter[string]
	var got []string
	cancel := e.Subscribe(func(s string) { got = append(got, s) })

	e.Emit("a")
	e.Emit("b")
	cancel()
	e.Emit("c")

	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("received %v, want [a b]", got)
	}
	if e.Len() != 0 {
		t.Errorf("Len = %d after cancel, want 0", e.Len())
	}
}

func TestEmitterOrder(t *testing.T) {
	var e Emitter[int]
	var order []int
	e.Subscribe(func(int) { order = append(order, 1) })
	e.Subscribe(func(int) { order = append(order, 2) })
	e.Subscribe(func(int) { order = append(order, 3) })

	e.Emit(0)

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("delivery order = %v, want [1 2 3]", order)
	}
}

func TestEmitterPanicRecovered(t *testing.T) {
	var e Emitter[int]
	e.Subscribe(func(int) { panic("boom") })
	var delivered int
	e.Subscribe(func(v int) { delivered = v })

	e.Emit(42) // must not panic

	if delivered != 42 {
		t.Errorf("second listener got %d, want 42", delivered)
	}
}
