package simdevice

import (
	"testing"

	"github.com/hmmsim/hmmsim/internal/addrspace"
	"github.com/hmmsim/hmmsim/internal/engine"
)

type recordingCallbacks struct {
	drained    []uint64
	flushed    []uint64
	flushDirty []bool
	copied     []uint64
	remapped   []uint64
	tagChanged []uint64
}

func (r *recordingCallbacks) DrainCompleted(frame uint64) { r.drained = append(r.drained, frame) }
func (r *recordingCallbacks) FlushCompleted(addr uint64, dirty bool) {
	r.flushed = append(r.flushed, addr)
	r.flushDirty = append(r.flushDirty, dirty)
}
func (r *recordingCallbacks) CopyCompleted(srcFrame uint64)  { r.copied = append(r.copied, srcFrame) }
func (r *recordingCallbacks) RemapCompleted(pageAddr uint64) { r.remapped = append(r.remapped, pageAddr) }
func (r *recordingCallbacks) TagChangeCompleted(addr uint64) { r.tagChanged = append(r.tagChanged, addr) }

func newTestDevice(t *testing.T) (*Device, *engine.Engine, *recordingCallbacks) {
	t.Helper()
	layout, err := addrspace.NewLayout(256, 64, 512, 256)
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	eng := engine.New()
	cb := &recordingCallbacks{}
	dev := New(eng, layout, cb, Latencies{Drain: 1, Flush: 2, Copy: 5, Remap: 3, TagChange: 1})
	return dev, eng, cb
}

func TestDrainCompletesAfterItsLatency(t *testing.T) {
	dev, eng, cb := newTestDevice(t)
	dev.Drain(7)
	if len(cb.drained) != 0 {
		t.Fatalf("DrainCompleted fired before the engine advanced")
	}
	eng.Run()
	if len(cb.drained) != 1 || cb.drained[0] != 7 {
		t.Fatalf("drained = %v, want [7]", cb.drained)
	}
	if eng.Now() != 1 {
		t.Fatalf("Now() = %d, want 1", eng.Now())
	}
}

func TestFlushReportsDirtyFromMarkDirtyAndClearsIt(t *testing.T) {
	dev, eng, cb := newTestDevice(t)
	dev.MarkDirty(0, 2)

	dirty := dev.DirtyBlocks(0, 4)
	if !dirty[2] || dirty[0] || dirty[1] || dirty[3] {
		t.Fatalf("DirtyBlocks = %v, want only index 2 dirty", dirty)
	}

	dev.Flush(128, true) // block 2 of frame 0 with blockSize 64 -> addr 128.
	eng.Run()
	if len(cb.flushed) != 1 || cb.flushed[0] != 128 || !cb.flushDirty[0] {
		t.Fatalf("unexpected flush callback: addrs=%v dirty=%v", cb.flushed, cb.flushDirty)
	}

	// Flush clears the dirty bit it was asked about.
	if dev.DirtyBlocks(0, 4)[2] {
		t.Fatalf("block 2 should be clean after Flush completed")
	}
}

func TestCopyPageAndRemapAndChangeTagScheduleCompletions(t *testing.T) {
	dev, eng, cb := newTestDevice(t)
	dev.CopyPage(3, 9)
	dev.Remap(300, 900)
	dev.ChangeTag(450)
	eng.Run()

	if len(cb.copied) != 1 || cb.copied[0] != 3 {
		t.Fatalf("copied = %v, want [3]", cb.copied)
	}
	if len(cb.remapped) != 1 || cb.remapped[0] != 300 {
		t.Fatalf("remapped = %v, want [300]", cb.remapped)
	}
	if len(cb.tagChanged) != 1 || cb.tagChanged[0] != 450 {
		t.Fatalf("tagChanged = %v, want [450]", cb.tagChanged)
	}
}
