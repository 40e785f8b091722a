package pagetable

import (
	"testing"

	"github.com/hmmsim/hmmsim/internal/addrspace"
)

func TestTableInsertLookup(t *testing.T) {
	tbl := NewTable(0)
	e := tbl.Insert(0x10, 5, addrspace.PCM)
	if e.Frame != 5 || e.Region != addrspace.PCM {
		t.Fatalf("unexpected entry %+v", e)
	}
	got := tbl.Lookup(0x10)
	if got != e {
		t.Fatalf("Lookup returned a different entry")
	}
	if tbl.Lookup(0x11) != nil {
		t.Fatalf("Lookup on unmapped vpage should return nil")
	}
}

func TestTableInsertDuplicatePanics(t *testing.T) {
	tbl := NewTable(0)
	tbl.Insert(0x10, 5, addrspace.PCM)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate insert")
		}
	}()
	tbl.Insert(0x10, 6, addrspace.DRAM)
}

func TestPhysicalMapMove(t *testing.T) {
	m := NewPhysicalMap()
	m.Put(5, 0, 0x10)

	m.Move(5, 7)
	if _, ok := m.Lookup(5); ok {
		t.Fatalf("source frame should no longer be owned after Move")
	}
	e, ok := m.Lookup(7)
	if !ok || e.Pid != 0 || e.VirtualPage != 0x10 {
		t.Fatalf("Lookup(7) = %+v, %v, want pid=0 vpage=0x10", e, ok)
	}
}

func TestBitsetTracksDirtyBlocks(t *testing.T) {
	bs := NewBitset(64)
	bs.Set(3)
	bs.Set(8)
	if bs.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", bs.Count())
	}
	if !bs.Get(3) || bs.Get(4) {
		t.Fatalf("Get mismatch")
	}
	bs.Clear(3)
	if bs.Get(3) {
		t.Fatalf("Clear(3) did not clear")
	}
	bs.ClearAll()
	if bs.Count() != 0 {
		t.Fatalf("ClearAll left %d dirty", bs.Count())
	}
}
