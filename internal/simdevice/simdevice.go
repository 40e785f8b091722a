// Package simdevice implements a latency-modeling LLC and hybrid memory
// device: a concrete migration.LLC/migration.MemoryDevice pair for
// cmd/hmmsim, as opposed to the scripted test doubles in
// internal/manager/mocks. Every request schedules its completion on the
// owning engine.Engine after a configured number of cycles, rather than
// calling back synchronously.
package simdevice

import (
	"sync"

	"github.com/hmmsim/hmmsim/internal/addrspace"
	"github.com/hmmsim/hmmsim/internal/engine"
)

// Callbacks is the subset of manager.Manager's inbound migration
// callbacks the device reports completions through.
type Callbacks interface {
	DrainCompleted(frame uint64)
	FlushCompleted(addr uint64, dirty bool)
	CopyCompleted(srcFrame uint64)
	RemapCompleted(pageAddr uint64)
	TagChangeCompleted(addr uint64)
}

// Latencies holds the per-operation cycle cost the device charges
// before reporting completion.
type Latencies struct {
	Drain     uint64
	Flush     uint64
	Copy      uint64
	Remap     uint64
	TagChange uint64
}

// DefaultLatencies are loosely in proportion to a DRAM/PCM access-time
// gap: draining inner caches and retagging are cheap, a full page copy
// is the most expensive step.
var DefaultLatencies = Latencies{
	Drain:     20,
	Flush:     10,
	Copy:      200,
	Remap:     5,
	TagChange: 5,
}

// Device is a single collaborator satisfying both migration.LLC and
// migration.MemoryDevice, scheduling every request's completion on eng.
type Device struct {
	eng    *engine.Engine
	layout *addrspace.Layout
	cb     Callbacks
	lat    Latencies

	mu    sync.Mutex
	dirty map[uint64]bool // physical block address -> dirty.
}

// New returns a Device that schedules completions on eng and reports
// them to cb. layout is used only to translate (frame, block index)
// pairs into the same physical addresses the migration engine issues
// LLC.Flush calls with.
func New(eng *engine.Engine, layout *addrspace.Layout, cb Callbacks, lat Latencies) *Device {
	return &Device{eng: eng, layout: layout, cb: cb, lat: lat, dirty: make(map[uint64]bool)}
}

// MarkDirty records the block at frame/blockIndex as holding a dirty
// cache line, so a later DirtyBlocks/Flush sees it as needing a
// writeback rather than a plain invalidate. There is no inner-cache
// model behind this device, so without a call to MarkDirty every block
// reads clean.
func (d *Device) MarkDirty(frame, blockIndex uint64) {
	addr := d.layout.GetAddressFromBlock(frame, blockIndex)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dirty[addr] = true
}

func (d *Device) schedule(delay uint64, t engine.Type, payload interface{}, fire func()) {
	d.eng.AddEvent(delay, engine.HandlerFunc(func(ev *engine.Event) { fire() }), t, payload)
}

// Drain requests an inner-cache drain of the page at frame.
func (d *Device) Drain(frame uint64) {
	d.schedule(d.lat.Drain, engine.Complete, frame, func() { d.cb.DrainCompleted(frame) })
}

// Flush requests a writeback-or-invalidate of the block at addr and
// clears its dirty bit once that completes.
func (d *Device) Flush(addr uint64, dirty bool) {
	d.schedule(d.lat.Flush, engine.Complete, addr, func() {
		d.mu.Lock()
		delete(d.dirty, addr)
		d.mu.Unlock()
		d.cb.FlushCompleted(addr, dirty)
	})
}

// Remap atomically retags every cached line of the page at srcAddr to
// dstAddr.
func (d *Device) Remap(srcAddr, dstAddr uint64) {
	d.schedule(d.lat.Remap, engine.Complete, srcAddr, func() { d.cb.RemapCompleted(srcAddr) })
}

// ChangeTag updates the tag bits of the cached line at addr in place.
func (d *Device) ChangeTag(addr uint64) {
	d.schedule(d.lat.TagChange, engine.Complete, addr, func() { d.cb.TagChangeCompleted(addr) })
}

// DirtyBlocks reports, for the page at frame, which of its
// blocksPerPage blocks were marked dirty via MarkDirty.
func (d *Device) DirtyBlocks(frame uint64, blocksPerPage int) []bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]bool, blocksPerPage)
	for i := 0; i < blocksPerPage; i++ {
		addr := d.layout.GetAddressFromBlock(frame, uint64(i))
		out[i] = d.dirty[addr]
	}
	return out
}

// CopyPage performs the hybrid memory device's page copy.
func (d *Device) CopyPage(srcFrame, dstFrame uint64) {
	d.schedule(d.lat.Copy, engine.CopyPage, srcFrame, func() { d.cb.CopyCompleted(srcFrame) })
}
