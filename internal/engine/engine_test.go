package engine

import "testing"

type recordingHandler struct {
	order *[]uint64
}

func (h recordingHandler) HandleEvent(ev *Event) {
	*h.order = append(*h.order, ev.Payload.(uint64))
}

func TestOrdersByTimeThenSequence(t *testing.T) {
	var order []uint64
	e := New()
	h := recordingHandler{order: &order}

	e.AddEvent(10, h, Demote, uint64(1))
	e.AddEvent(0, h, Demote, uint64(2))
	e.AddEvent(10, h, Demote, uint64(3)) // same time as payload 1, scheduled after
	e.AddEvent(5, h, Demote, uint64(4))

	e.Run()

	want := []uint64{2, 4, 1, 3}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestCancelSkipsDispatch(t *testing.T) {
	var order []uint64
	e := New()
	h := recordingHandler{order: &order}

	ev := e.AddEvent(5, h, Demote, uint64(1))
	e.AddEvent(10, h, Demote, uint64(2))
	Cancel(ev)
	e.Run()

	if len(order) != 1 || order[0] != 2 {
		t.Fatalf("order = %v, want [2]", order)
	}
}

func TestNowAdvancesWithDispatch(t *testing.T) {
	var order []uint64
	e := New()
	h := recordingHandler{order: &order}
	e.AddEvent(7, h, Demote, uint64(1))
	if e.Now() != 0 {
		t.Fatalf("Now() = %d before any dispatch, want 0", e.Now())
	}
	e.Step()
	if e.Now() != 7 {
		t.Fatalf("Now() = %d after dispatch, want 7", e.Now())
	}
}

func TestRunUntilLeavesLaterEvents(t *testing.T) {
	var order []uint64
	e := New()
	h := recordingHandler{order: &order}
	e.AddEvent(5, h, Demote, uint64(1))
	e.AddEvent(50, h, Demote, uint64(2))

	e.RunUntil(10)
	if len(order) != 1 || order[0] != 1 {
		t.Fatalf("order after RunUntil(10) = %v, want [1]", order)
	}
	if e.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", e.Pending())
	}
	e.Run()
	if len(order) != 2 {
		t.Fatalf("order after Run() = %v", order)
	}
}
