// Package engine implements the single-threaded discrete-event scheduler
// that drives the simulator's timebase. Events are ordered by
// (time, insertion sequence); handlers run to completion with no
// preemption, and logical suspension is expressed by scheduling a future
// event rather than blocking.
package engine

// Type identifies the kind of work an Event carries, mirroring the
// HybridMemoryManager's EventType enum.
type Type int

const (
	Demote Type = iota
	Complete
	Rollback
	CopyPage
	UpdatePartition
	Unstall
)

func (t Type) String() string {
	switch t {
	case Demote:
		return "DEMOTE"
	case Complete:
		return "COMPLETE"
	case Rollback:
		return "ROLLBACK"
	case CopyPage:
		return "COPY_PAGE"
	case UpdatePartition:
		return "UPDATE_PARTITION"
	case Unstall:
		return "UNSTALL"
	default:
		return "UNKNOWN"
	}
}

// Handler processes a single Event. Handlers run to completion: no other
// event is dispatched until HandleEvent returns.
type Handler interface {
	HandleEvent(ev *Event)
}

// HandlerFunc adapts a plain function to Handler, for collaborators whose
// scheduled continuations are simple closures.
type HandlerFunc func(ev *Event)

// HandleEvent implements Handler.
func (f HandlerFunc) HandleEvent(ev *Event) { f(ev) }

// Event is a unit of scheduled work. Time is absolute simulation time in
// cycles; seq breaks ties between events scheduled for the same cycle in
// FIFO-of-scheduling order.
type Event struct {
	Time     uint64
	Type     Type
	Payload  interface{}
	handler  Handler
	seq      uint64
	canceled bool
}

// Engine orders and dispatches events for a single owning simulation. It
// has no concurrency of its own: all mutation happens from within Run/Step,
// which is expected to be driven by a single goroutine (the same one that
// calls into the manager's access/callback surface).
type Engine struct {
	queue   eventQueue
	now     uint64
	nextSeq uint64
}

// New returns an Engine starting at time 0.
func New() *Engine {
	return &Engine{}
}

// Now returns the current simulation time.
func (e *Engine) Now() uint64 { return e.now }

// Pending returns the number of events not yet dispatched.
func (e *Engine) Pending() int { return e.queue.Len() }

// AddEvent schedules h to be invoked with an Event of the given Type and
// payload, delay cycles from now. It returns the Event so the caller may
// Cancel it later (e.g. a DEMOTE reschedule superseding an earlier one).
func (e *Engine) AddEvent(delay uint64, h Handler, t Type, payload interface{}) *Event {
	ev := &Event{
		Time:    e.now + delay,
		Type:    t,
		Payload: payload,
		handler: h,
		seq:     e.nextSeq,
	}
	e.nextSeq++
	e.queue.Push(ev)
	return ev
}

// Cancel marks an event as canceled. A canceled event is popped and
// discarded without dispatch; this is the engine's only cancellation
// mechanism.
func Cancel(ev *Event) {
	if ev != nil {
		ev.canceled = true
	}
}

// Step dispatches the single next event, advancing Now() to its time. It
// returns false if the queue is empty.
func (e *Engine) Step() bool {
	for {
		ev, ok := e.queue.Pop()
		if !ok {
			return false
		}
		e.now = ev.Time
		if ev.canceled {
			continue
		}
		ev.handler.HandleEvent(ev)
		return true
	}
}

// Run drains the queue, dispatching every non-canceled event in time order.
func (e *Engine) Run() {
	for e.Step() {
	}
}

// RunUntil drains the queue until Now() would exceed limit, leaving any
// later event in the queue. Useful for tests that want to stop mid-run.
func (e *Engine) RunUntil(limit uint64) {
	for {
		ev, ok := e.queue.Peek()
		if !ok || ev.Time > limit {
			return
		}
		e.Step()
	}
}
