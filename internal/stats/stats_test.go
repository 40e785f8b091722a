package stats

import (
	"bytes"
	"strings"
	"testing"

	"github.com/hmmsim/hmmsim/internal/addrspace"
)

func TestRecorderMigrationCounters(t *testing.T) {
	r := New()
	r.RecordMigration(addrspace.DRAM, true, 1, 100)
	r.RecordMigration(addrspace.PCM, false, 1, 50)
	r.RecordFlushedBlock(true)
	r.RecordFlushedBlock(false)
	r.RecordFlushedBlock(false)

	snap := r.Snapshot()
	if snap.FullMigrations.Dram != 1 {
		t.Errorf("FullMigrations.Dram = %d, want 1", snap.FullMigrations.Dram)
	}
	if snap.PartialMigrations.Pcm != 1 {
		t.Errorf("PartialMigrations.Pcm = %d, want 1", snap.PartialMigrations.Pcm)
	}
	if snap.DirtyFlushedBlocks != 1 || snap.CleanFlushedBlocks != 2 {
		t.Errorf("flushed blocks = dirty:%d clean:%d, want 1,2", snap.DirtyFlushedBlocks, snap.CleanFlushedBlocks)
	}
	if snap.DramMigrationsPerPid[1] != 1 {
		t.Errorf("DramMigrationsPerPid[1] = %d, want 1", snap.DramMigrationsPerPid[1])
	}
}

func TestAvgMigrationEntries(t *testing.T) {
	r := New()
	r.SampleMigrationTableOccupancy(2)
	r.SampleMigrationTableOccupancy(4)
	snap := r.Snapshot()
	if got := snap.AvgMigrationEntries(); got != 3 {
		t.Errorf("AvgMigrationEntries() = %v, want 3", got)
	}
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	r := New()
	r.SetUsedFootprint(1, 10, 20)
	snap := r.Snapshot()
	r.SetUsedFootprint(1, 99, 99)
	if snap.DramMemorySizeUsedPerPid[1] != 10 {
		t.Errorf("snapshot should not observe later mutation, got %d", snap.DramMemorySizeUsedPerPid[1])
	}
}

func TestPerPageRecorder(t *testing.T) {
	var buf bytes.Buffer
	p := NewPerPageRecorder(&buf)
	p.Record(1, 0x10, addrspace.PCM, addrspace.DRAM, 0, 100, false)
	if !strings.Contains(buf.String(), "pid=1 vpage=0x10 src=PCM dst=DRAM") {
		t.Errorf("unexpected per-page log line: %q", buf.String())
	}
}

func TestPerPageRecorderNilIsNoop(t *testing.T) {
	var p *PerPageRecorder
	p.Record(1, 0x10, addrspace.PCM, addrspace.DRAM, 0, 100, false)
}
