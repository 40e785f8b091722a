package stallqueue

import "testing"

type fakeCPU int

func (c fakeCPU) ID() int { return int(c) }

func TestReleaseIsFIFOPerPage(t *testing.T) {
	q := New()
	q.Stall(0, 0x10, fakeCPU(1))
	q.Stall(0, 0x10, fakeCPU(2))
	q.Stall(0, 0x10, fakeCPU(3))
	// A different page must not interfere.
	q.Stall(0, 0x20, fakeCPU(9))

	if q.Len(0, 0x10) != 3 {
		t.Fatalf("Len = %d, want 3", q.Len(0, 0x10))
	}

	released := q.Release(0, 0x10)
	want := []fakeCPU{1, 2, 3}
	if len(released) != len(want) {
		t.Fatalf("released = %v, want %v", released, want)
	}
	for i, w := range want {
		if released[i].(fakeCPU) != w {
			t.Fatalf("released[%d] = %v, want %v", i, released[i], w)
		}
	}
	if q.Len(0, 0x10) != 0 {
		t.Fatalf("queue should be empty after Release")
	}
	if q.Len(0, 0x20) != 1 {
		t.Fatalf("unrelated page queue should be untouched")
	}
}

func TestReleaseOnEmptyReturnsNil(t *testing.T) {
	q := New()
	if got := q.Release(1, 2); got != nil {
		t.Fatalf("Release on empty key = %v, want nil", got)
	}
}
