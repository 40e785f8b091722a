// Package stallqueue holds CPU requests blocked on a migrating page and
// releases them, FIFO per page, when the page becomes safe to access
// again.
package stallqueue

// CPU identifies a waiting core. The manager's CPU type satisfies this by
// exposing a stable identifier; stallqueue never needs anything else about
// a CPU.
type CPU interface {
	ID() int
}

type key struct {
	pid   int
	vpage uint64
}

// Queue is a mapping from (pid, virtualPage) to an ordered list of CPUs
// blocked on that page.
type Queue struct {
	waiters map[key][]CPU
}

// New returns an empty stall queue.
func New() *Queue {
	return &Queue{waiters: make(map[key][]CPU)}
}

// Stall enqueues cpu as waiting on (pid, vpage). Order of arrival is
// preserved for FIFO release.
func (q *Queue) Stall(pid int, vpage uint64, cpu CPU) {
	k := key{pid, vpage}
	q.waiters[k] = append(q.waiters[k], cpu)
}

// Len reports how many CPUs are currently waiting on (pid, vpage).
func (q *Queue) Len(pid int, vpage uint64) int {
	return len(q.waiters[key{pid, vpage}])
}

// Release removes and returns every CPU waiting on (pid, vpage), in the
// FIFO order they stalled. The caller is expected to enqueue one UNSTALL
// event per returned CPU.
func (q *Queue) Release(pid int, vpage uint64) []CPU {
	k := key{pid, vpage}
	waiting := q.waiters[k]
	delete(q.waiters, k)
	return waiting
}
