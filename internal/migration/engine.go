// Package migration implements the per-page migration state machine that
// is the core of the simulator: FLUSH_BEFORE -> COPY ->
// FLUSH_AFTER, coordinated with the LLC and the hybrid memory device,
// bounded by a migration-table size and a flush-queue depth, with
// cooperative rollback.
package migration

import (
	"fmt"

	"github.com/hmmsim/hmmsim/internal/addrspace"
	"github.com/hmmsim/hmmsim/internal/engine"
	"github.com/hmmsim/hmmsim/internal/herrors"
	"github.com/hmmsim/hmmsim/internal/pagetable"
)

// Config holds the migration engine's tunables.
type Config struct {
	FlushPolicy             FlushPolicy
	MaxFlushQueueSize       int
	SuppressFlushWritebacks bool
	DemoteTimeout           uint64
	MaxMigrationTableSize   int
	BlocksPerPage           int
}

type pendingFlush struct {
	frame uint64
	addr  uint64
	dirty bool
}

// Engine drives every in-flight Entry's state machine. It implements
// engine.Handler to receive its own Rollback timeout events from the
// discrete-event Engine.
type Engine struct {
	host Host
	cfg  Config

	migrations map[uint64]*Entry // keyed by source frame

	flushQueueSize int
	pending        []pendingFlush
}

// New returns a migration Engine bound to host.
func New(host Host, cfg Config) *Engine {
	return &Engine{
		host:       host,
		cfg:        cfg,
		migrations: make(map[uint64]*Entry),
	}
}

// Len returns the current migration-table size.
func (e *Engine) Len() int { return len(e.migrations) }

// Has reports whether srcFrame has an active migration.
func (e *Engine) Has(srcFrame uint64) bool {
	_, ok := e.migrations[srcFrame]
	return ok
}

// Get returns the Entry for srcFrame, or nil.
func (e *Engine) Get(srcFrame uint64) *Entry {
	return e.migrations[srcFrame]
}

// Admit schedules a new migration of (pid, vpage) from srcFrame/srcRegion
// to a frame in dstRegion. It enforces the migration-table bound and
// destination-capacity entry conditions. On success it reserves the
// destination frame and begins phase 1 immediately.
func (e *Engine) Admit(pid int, vpage uint64, srcFrame uint64, srcRegion, dstRegion addrspace.Region) (*Entry, error) {
	if len(e.migrations) >= e.cfg.MaxMigrationTableSize {
		return nil, fmt.Errorf("migration: table full (%d/%d)", len(e.migrations), e.cfg.MaxMigrationTableSize)
	}
	if e.Has(srcFrame) {
		return nil, fmt.Errorf("migration: frame %d already migrating", srcFrame)
	}
	dst, ok := e.host.ReserveFrame(dstRegion)
	if !ok {
		return nil, herrors.OutOfCapacity(pid, vpage)
	}

	pe := e.host.PageEntry(pid, vpage)
	if pe == nil {
		panic(herrors.InvariantViolation("migration: admitting unmapped page",
			map[string]interface{}{"pid": pid, "vpage": vpage}))
	}

	now := e.host.Engine().Now()
	ent := &Entry{
		Pid:            pid,
		VPage:          vpage,
		Src:            srcFrame,
		Dst:            dst,
		SrcReg:         srcRegion,
		DstReg:         dstRegion,
		NeedsCopying:   true,
		StartMigration: now,
		dirty:          pagetable.NewBitset(e.cfg.BlocksPerPage),
	}
	e.migrations[srcFrame] = ent
	pe.IsMigrating = true

	ent.timeout = e.host.Engine().AddEvent(e.cfg.DemoteTimeout, e, engine.Rollback, srcFrame)

	if e.runsFlushBefore(ent) {
		e.beginFlushBefore(ent, pe)
	} else {
		if e.cfg.FlushPolicy == FlushOnlyAfter {
			pe.StallOnAccess = true
		}
		engine.Cancel(ent.timeout) // no FLUSH_BEFORE phase to time out.
		e.beginCopy(ent, pe)
	}
	return ent, nil
}

func (e *Engine) runsFlushBefore(ent *Entry) bool {
	return e.cfg.FlushPolicy == FlushPcmBefore && ent.SrcReg == addrspace.PCM
}

func (e *Engine) beginFlushBefore(ent *Entry, pe *pagetable.Entry) {
	ent.State = FlushBefore
	ent.StartFlush = e.host.Engine().Now()
	ent.DrainRequestsLeft = 1
	e.host.LLC().Drain(ent.Src)
}

// DrainCompleted reports that the inner-cache drain for a page finished.
// It is idempotent against late callbacks.
func (e *Engine) DrainCompleted(frame uint64) {
	ent := e.migrations[frame]
	if ent == nil || ent.State != FlushBefore || ent.DrainRequestsLeft == 0 {
		return
	}
	ent.DrainRequestsLeft = 0
	e.issueFlushBeforeRequests(ent)
}

func (e *Engine) issueFlushBeforeRequests(ent *Entry) {
	dirty := e.host.LLC().DirtyBlocks(ent.Src, e.cfg.BlocksPerPage)
	layout := e.host.Layout()
	ent.FlushRequestsLeft = e.cfg.BlocksPerPage
	if e.cfg.BlocksPerPage == 0 {
		e.onFlushBeforeDone(ent)
		return
	}
	for i := 0; i < e.cfg.BlocksPerPage; i++ {
		addr := layout.GetAddressFromBlock(ent.Src, uint64(i))
		isDirty := i < len(dirty) && dirty[i]
		if isDirty {
			ent.dirty.Set(i)
		}
		effectiveDirty := isDirty && !e.cfg.SuppressFlushWritebacks
		e.issueFlush(ent.Src, addr, effectiveDirty)
	}
}

func (e *Engine) issueFlush(frame, addr uint64, dirty bool) {
	if e.flushQueueSize >= e.cfg.MaxFlushQueueSize {
		e.pending = append(e.pending, pendingFlush{frame: frame, addr: addr, dirty: dirty})
		return
	}
	e.flushQueueSize++
	e.host.LLC().Flush(addr, dirty)
}

func (e *Engine) releaseFlushSlot() {
	e.flushQueueSize--
	if len(e.pending) == 0 {
		return
	}
	next := e.pending[0]
	e.pending = e.pending[1:]
	e.flushQueueSize++
	e.host.LLC().Flush(next.addr, next.dirty)
}

// FlushCompleted reports that one block's flush-or-invalidate finished.
// dirty distinguishes a writeback from a plain invalidate for statistics
// purposes. A late (post-rollback) callback frees its flush-queue slot
// and changes nothing else.
func (e *Engine) FlushCompleted(addr uint64, dirty bool) {
	// Every FlushCompleted corresponds to exactly one issued LLC.Flush
	// call, whether or not its migration is still alive, so the shared
	// queue slot is always released first.
	e.releaseFlushSlot()

	frame := e.host.Layout().GetIndex(addr)
	ent := e.migrations[frame]
	if ent == nil {
		return
	}
	e.host.Stats().RecordFlushedBlock(dirty)

	switch ent.State {
	case FlushBefore:
		if ent.FlushRequestsLeft == 0 {
			return
		}
		ent.FlushRequestsLeft--
		if ent.FlushRequestsLeft == 0 {
			e.onFlushBeforeDone(ent)
		}
	case FlushAfter:
		if e.cfg.FlushPolicy == Remap || e.cfg.FlushPolicy == ChangeTag {
			return
		}
		if ent.TagChangeRequestsLeft == 0 {
			return
		}
		ent.TagChangeRequestsLeft--
		if ent.TagChangeRequestsLeft == 0 {
			e.commit(ent)
		}
	default:
		// Late callback for a phase that no longer expects flushes.
	}
}

func (e *Engine) onFlushBeforeDone(ent *Entry) {
	engine.Cancel(ent.timeout)
	src := ent.SrcReg
	e.host.Stats().RecordFlushBefore(src, e.host.Engine().Now()-ent.StartFlush)
	pe := e.host.PageEntry(ent.Pid, ent.VPage)
	e.beginCopy(ent, pe)
}

func (e *Engine) beginCopy(ent *Entry, pe *pagetable.Entry) {
	ent.State = Copy
	ent.StartCopy = e.host.Engine().Now()
	pe.StallOnAccess = true
	e.host.Memory().CopyPage(ent.Src, ent.Dst)
}

// CopyCompleted reports that the memory device finished copying the
// page. Late callbacks (after rollback) are ignored.
func (e *Engine) CopyCompleted(srcFrame uint64) {
	ent := e.migrations[srcFrame]
	if ent == nil || ent.State != Copy {
		return
	}
	e.host.Stats().RecordCopy(ent.SrcReg, e.host.Engine().Now()-ent.StartCopy)
	e.beginFlushAfter(ent)
}

func (e *Engine) beginFlushAfter(ent *Entry) {
	ent.State = FlushAfter
	ent.StartFlush = e.host.Engine().Now()
	layout := e.host.Layout()

	switch e.cfg.FlushPolicy {
	case Remap:
		ent.TagChangeRequestsLeft = 1
		srcAddr := layout.GetAddressFromBlock(ent.Src, 0)
		dstAddr := layout.GetAddressFromBlock(ent.Dst, 0)
		e.host.LLC().Remap(srcAddr, dstAddr)
	case ChangeTag:
		ent.TagChangeRequestsLeft = e.cfg.BlocksPerPage
		if e.cfg.BlocksPerPage == 0 {
			e.commit(ent)
			return
		}
		for i := 0; i < e.cfg.BlocksPerPage; i++ {
			addr := layout.GetAddressFromBlock(ent.Src, uint64(i))
			e.host.LLC().ChangeTag(addr)
		}
	default: // FlushPcmBefore, FlushOnlyAfter: invalidate every block.
		ent.TagChangeRequestsLeft = e.cfg.BlocksPerPage
		if e.cfg.BlocksPerPage == 0 {
			e.commit(ent)
			return
		}
		for i := 0; i < e.cfg.BlocksPerPage; i++ {
			addr := layout.GetAddressFromBlock(ent.Src, uint64(i))
			e.issueFlush(ent.Src, addr, false)
		}
	}
}

// RemapCompleted reports that the LLC committed an atomic tag remap
// (FlushPolicy Remap). Late callbacks are ignored.
func (e *Engine) RemapCompleted(pageAddr uint64) {
	frame := e.host.Layout().GetIndex(pageAddr)
	ent := e.migrations[frame]
	if ent == nil || ent.State != FlushAfter || ent.TagChangeRequestsLeft == 0 {
		return
	}
	ent.TagChangeRequestsLeft = 0
	e.commit(ent)
}

// TagChangeCompleted reports that one block's in-place tag update
// committed (FlushPolicy ChangeTag). Late callbacks are ignored.
func (e *Engine) TagChangeCompleted(addr uint64) {
	frame := e.host.Layout().GetIndex(addr)
	ent := e.migrations[frame]
	if ent == nil || ent.State != FlushAfter || ent.TagChangeRequestsLeft == 0 {
		return
	}
	e.host.Stats().RecordTagChange()
	ent.TagChangeRequestsLeft--
	if ent.TagChangeRequestsLeft == 0 {
		e.commit(ent)
	}
}

func (e *Engine) commit(ent *Entry) {
	now := e.host.Engine().Now()
	e.host.Stats().RecordFlushAfter(ent.SrcReg, now-ent.StartFlush)

	e.host.CommitMove(ent.Pid, ent.VPage, ent.Src, ent.Dst, ent.DstReg)
	e.host.ReleaseFrame(ent.SrcReg, ent.Src)
	e.host.ReleaseStalls(ent.Pid, ent.VPage)
	e.host.Stats().RecordMigration(ent.DstReg, true, ent.Pid, now-ent.StartMigration)
	e.host.PerPageStats().Record(ent.Pid, ent.VPage, ent.SrcReg, ent.DstReg, ent.StartMigration, now, false)

	delete(e.migrations, ent.Src)
}

// AccessCompleted reports that a deferred memory request, issued for a
// CPU that was unstalled mid-migration, finished. It is
// bookkeeping only: it never gates a state transition, since the state
// machine's own counters already fully describe migration progress.
func (e *Engine) AccessCompleted(ent *Entry) {
	if ent == nil || ent.StalledRequestsLeft == 0 {
		return
	}
	ent.StalledRequestsLeft--
}

// HandleEvent implements engine.Handler for this Engine's own Rollback
// timeout events.
func (e *Engine) HandleEvent(ev *engine.Event) {
	if ev.Type != engine.Rollback {
		return
	}
	frame := ev.Payload.(uint64)
	ent := e.migrations[frame]
	if ent == nil || ent.State != FlushBefore {
		return // already progressed past FLUSH_BEFORE or already gone.
	}
	e.Rollback(ent)
}

// Rollback aborts an in-flight migration. The destination frame is
// returned, stallOnAccess is cleared, the stall queue for the affected
// page is drained and the entry is removed.
func (e *Engine) Rollback(ent *Entry) {
	ent.RolledBack = true
	e.host.ReleaseFrame(ent.DstReg, ent.Dst)

	pe := e.host.PageEntry(ent.Pid, ent.VPage)
	if pe != nil {
		pe.IsMigrating = false
		pe.StallOnAccess = false
	}
	e.host.ReleaseStalls(ent.Pid, ent.VPage)

	now := e.host.Engine().Now()
	e.host.Stats().RecordMigration(ent.DstReg, false, ent.Pid, now-ent.StartMigration)
	e.host.PerPageStats().Record(ent.Pid, ent.VPage, ent.SrcReg, ent.DstReg, ent.StartMigration, now, true)

	delete(e.migrations, ent.Src)
}
