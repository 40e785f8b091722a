package migration

import (
	"github.com/hmmsim/hmmsim/internal/addrspace"
	"github.com/hmmsim/hmmsim/internal/engine"
	"github.com/hmmsim/hmmsim/internal/pagetable"
	"github.com/hmmsim/hmmsim/internal/stats"
)

// LLC is the last-level cache collaborator the migration engine issues
// requests to. Every method is a fire-and-forget request;
// the eventual result arrives later through the Engine's FlushCompleted /
// DrainCompleted / RemapCompleted / TagChangeCompleted methods.
type LLC interface {
	// Drain requests an inner-cache (L1/L2) drain of the page at frame.
	Drain(frame uint64)
	// Flush requests a writeback-or-invalidate of the block at addr.
	// dirty tells the LLC whether to perform a writeback (true) or a
	// plain invalidate (false).
	Flush(addr uint64, dirty bool)
	// Remap atomically retags every cached line of the page at
	// srcAddr to dstAddr (FlushPolicy Remap).
	Remap(srcAddr, dstAddr uint64)
	// ChangeTag updates the tag bits of the cached line at addr
	// in place (FlushPolicy ChangeTag).
	ChangeTag(addr uint64)
	// DirtyBlocks reports, for the page at frame, which of its
	// blocksPerPage blocks are currently dirty in the LLC.
	DirtyBlocks(frame uint64, blocksPerPage int) []bool
}

// MemoryDevice is the hybrid memory collaborator that performs the actual
// page copy. CopyCompleted reports the result.
type MemoryDevice interface {
	CopyPage(srcFrame, dstFrame uint64)
}

// Host is the state the migration Engine needs from its owner (the
// HybridMemoryManager) but does not own itself: the page tables, the
// free-lists, the stall queue, the clock and the statistics sink.
type Host interface {
	Layout() *addrspace.Layout
	PageEntry(pid int, vpage uint64) *pagetable.Entry
	CommitMove(pid int, vpage uint64, srcFrame, dstFrame uint64, dstRegion addrspace.Region)
	ReserveFrame(region addrspace.Region) (uint64, bool)
	ReleaseFrame(region addrspace.Region, frame uint64)
	ReleaseStalls(pid int, vpage uint64)
	Stats() *stats.Recorder
	PerPageStats() *stats.PerPageRecorder
	Engine() *engine.Engine
	LLC() LLC
	Memory() MemoryDevice
}
