// Package pagetable holds the per-process virtual-to-physical mapping and
// the global reverse map, plus the per-page metadata the migration engine
// and the fast path of access() consult.
package pagetable

import (
	"github.com/hmmsim/hmmsim/internal/addrspace"
	"github.com/hmmsim/hmmsim/internal/herrors"
)

// Entry is the per-virtual-page metadata kept in a process's Table.
type Entry struct {
	Frame         uint64
	Region        addrspace.Region
	IsMigrating   bool
	StallOnAccess bool
}

// Table is one process's virtual page table.
type Table struct {
	pid     int
	entries map[uint64]*Entry
}

// NewTable returns an empty page table for pid.
func NewTable(pid int) *Table {
	return &Table{pid: pid, entries: make(map[uint64]*Entry)}
}

// Pid returns the owning process id.
func (t *Table) Pid() int { return t.pid }

// Lookup returns the Entry for vpage, or nil if the page has never been
// allocated.
func (t *Table) Lookup(vpage uint64) *Entry {
	return t.entries[vpage]
}

// Insert creates a new Entry mapping vpage to frame in region. It panics
// (via herrors.InvariantViolation) if vpage is already mapped, since
// allocation paths are expected to check Lookup first.
func (t *Table) Insert(vpage, frame uint64, region addrspace.Region) *Entry {
	if _, exists := t.entries[vpage]; exists {
		panic(herrors.InvariantViolation("pagetable: vpage already mapped",
			map[string]interface{}{"pid": t.pid, "vpage": vpage}))
	}
	e := &Entry{Frame: frame, Region: region}
	t.entries[vpage] = e
	return e
}

// Delete removes vpage's mapping, e.g. on process finish.
func (t *Table) Delete(vpage uint64) {
	delete(t.entries, vpage)
}

// Len returns the number of mapped virtual pages.
func (t *Table) Len() int { return len(t.entries) }

// Each calls f for every (vpage, entry) pair. Iteration order is
// unspecified.
func (t *Table) Each(f func(vpage uint64, e *Entry)) {
	for vpage, e := range t.entries {
		f(vpage, e)
	}
}

// PhysicalEntry is the reverse mapping from a frame back to the (pid,
// vpage) that owns it.
type PhysicalEntry struct {
	Pid         int
	VirtualPage uint64
}

// PhysicalMap is the global frame -> (pid, vpage) reverse map.
type PhysicalMap struct {
	entries map[uint64]PhysicalEntry
}

// NewPhysicalMap returns an empty PhysicalMap.
func NewPhysicalMap() *PhysicalMap {
	return &PhysicalMap{entries: make(map[uint64]PhysicalEntry)}
}

// Put records that frame is owned by (pid, vpage). It panics if frame is
// already owned, preserving invariant 1 (exactly one PhysicalPageEntry per
// allocated frame).
func (m *PhysicalMap) Put(frame uint64, pid int, vpage uint64) {
	if _, exists := m.entries[frame]; exists {
		panic(herrors.InvariantViolation("pagetable: frame already owned",
			map[string]interface{}{"frame": frame}))
	}
	m.entries[frame] = PhysicalEntry{Pid: pid, VirtualPage: vpage}
}

// Move re-keys an existing mapping from srcFrame to dstFrame, used when a
// migration commits. It panics if srcFrame is
// unowned, which would indicate an invariant violation in the caller.
func (m *PhysicalMap) Move(srcFrame, dstFrame uint64) {
	e, ok := m.entries[srcFrame]
	if !ok {
		panic(herrors.InvariantViolation("pagetable: moving unowned frame",
			map[string]interface{}{"frame": srcFrame}))
	}
	delete(m.entries, srcFrame)
	m.entries[dstFrame] = e
}

// Delete removes frame's reverse mapping, used when a frame is returned to
// a free-list.
func (m *PhysicalMap) Delete(frame uint64) {
	delete(m.entries, frame)
}

// Lookup returns the (pid, vpage) owning frame.
func (m *PhysicalMap) Lookup(frame uint64) (PhysicalEntry, bool) {
	e, ok := m.entries[frame]
	return e, ok
}
