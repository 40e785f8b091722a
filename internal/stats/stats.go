// Package stats implements the simulator's outbound statistics: counters
// and timing aggregates for migrations, flushes and footprint tracking.
package stats

import (
	"sync"

	"github.com/hmmsim/hmmsim/internal/addrspace"
)

// PerRegion holds a counter pair, one value per memory region.
type PerRegion struct {
	Dram uint64
	Pcm  uint64
}

// Total returns the sum across both regions.
func (p PerRegion) Total() uint64 { return p.Dram + p.Pcm }

// Snapshot is an immutable copy of the recorder's counters, safe to read
// from a goroutine other than the event loop (internal/statsserver,
// cmd/hmmsim-dashboard).
type Snapshot struct {
	FullMigrations    PerRegion
	PartialMigrations PerRegion

	CleanFlushedBlocks uint64
	DirtyFlushedBlocks uint64
	TagChanges         uint64

	FullMigrationTime    PerRegion
	PartialMigrationTime PerRegion
	FlushBeforeTime      PerRegion
	FlushAfterTime       PerRegion
	CopyTime             PerRegion

	IdleTime uint64

	MigrationEntriesSum   uint64
	MigrationEntriesCount uint64

	DramMemorySizeInitial uint64
	PcmMemorySizeInitial  uint64

	DramMemorySizeUsedPerPid map[int]uint64
	PcmMemorySizeUsedPerPid  map[int]uint64
	DramMigrationsPerPid     map[int]uint64
	PcmMigrationsPerPid      map[int]uint64
}

// AvgMigrationEntries is the average migration-table occupancy sampled
// over the run.
func (s Snapshot) AvgMigrationEntries() float64 {
	if s.MigrationEntriesCount == 0 {
		return 0
	}
	return float64(s.MigrationEntriesSum) / float64(s.MigrationEntriesCount)
}

func avg(sum, count uint64) float64 {
	if count == 0 {
		return 0
	}
	return float64(sum) / float64(count)
}

// AvgFullMigrationTime returns the mean latency of full (non-rolled-back)
// migrations across both regions.
func (s Snapshot) AvgFullMigrationTime() float64 {
	return avg(s.FullMigrationTime.Total(), s.FullMigrations.Total())
}

// Recorder accumulates statistics as the manager drives migrations. All
// mutating methods are called only from the event-loop goroutine; Snapshot
// takes a lock so a reader goroutine can observe a consistent copy.
type Recorder struct {
	mu sync.Mutex
	s  Snapshot
}

// New returns a zeroed Recorder with the per-pid maps initialized.
func New() *Recorder {
	return &Recorder{s: Snapshot{
		DramMemorySizeUsedPerPid: make(map[int]uint64),
		PcmMemorySizeUsedPerPid:  make(map[int]uint64),
		DramMigrationsPerPid:     make(map[int]uint64),
		PcmMigrationsPerPid:      make(map[int]uint64),
	}}
}

func (r *Recorder) regionField(region addrspace.Region, field *PerRegion, v uint64) {
	if region == addrspace.DRAM {
		field.Dram += v
	} else {
		field.Pcm += v
	}
}

// RecordMigration records one completed migration's destination region,
// whether it ran to completion (full) or was rolled back (partial), and
// its total latency in cycles.
func (r *Recorder) RecordMigration(dest addrspace.Region, full bool, pid int, cycles uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if full {
		r.regionField(dest, &r.s.FullMigrations, 1)
		r.regionField(dest, &r.s.FullMigrationTime, cycles)
		if dest == addrspace.DRAM {
			r.s.DramMigrationsPerPid[pid]++
		} else {
			r.s.PcmMigrationsPerPid[pid]++
		}
	} else {
		r.regionField(dest, &r.s.PartialMigrations, 1)
		r.regionField(dest, &r.s.PartialMigrationTime, cycles)
	}
}

// RecordFlushBefore adds cycles to the FLUSH_BEFORE latency total for the
// source region of a migration.
func (r *Recorder) RecordFlushBefore(src addrspace.Region, cycles uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regionField(src, &r.s.FlushBeforeTime, cycles)
}

// RecordFlushAfter adds cycles to the FLUSH_AFTER latency total for the
// source region of a migration.
func (r *Recorder) RecordFlushAfter(src addrspace.Region, cycles uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regionField(src, &r.s.FlushAfterTime, cycles)
}

// RecordCopy adds cycles to the COPY latency total for the source region.
func (r *Recorder) RecordCopy(src addrspace.Region, cycles uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regionField(src, &r.s.CopyTime, cycles)
}

// RecordFlushedBlock tallies one flushed block as clean or dirty.
func (r *Recorder) RecordFlushedBlock(dirty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if dirty {
		r.s.DirtyFlushedBlocks++
	} else {
		r.s.CleanFlushedBlocks++
	}
}

// RecordTagChange tallies one committed per-block tag change. The
// migration engine calls it for FlushPolicy ChangeTag commits only; a
// committed Remap is not tallied here.
func (r *Recorder) RecordTagChange() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.TagChanges++
}

// RecordIdle adds cycles to the idle-time total (no DEMOTE candidate and
// no in-flight migration).
func (r *Recorder) RecordIdle(cycles uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.IdleTime += cycles
}

// SampleMigrationTableOccupancy should be called once per UPDATE_PARTITION
// tick with the current migration-table size, feeding avgMigrationEntries.
func (r *Recorder) SampleMigrationTableOccupancy(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.MigrationEntriesSum += uint64(n)
	r.s.MigrationEntriesCount++
}

// SetInitialFootprint records the initial per-region byte footprint at
// allocation time.
func (r *Recorder) SetInitialFootprint(dram, pcm uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.DramMemorySizeInitial = dram
	r.s.PcmMemorySizeInitial = pcm
}

// SetUsedFootprint records the current per-pid byte footprint in each
// region, overwriting any prior value for that pid.
func (r *Recorder) SetUsedFootprint(pid int, dramBytes, pcmBytes uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.DramMemorySizeUsedPerPid[pid] = dramBytes
	r.s.PcmMemorySizeUsedPerPid[pid] = pcmBytes
}

// Snapshot returns a deep-enough copy of the current counters for safe
// concurrent reading.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.s
	out.DramMemorySizeUsedPerPid = copyMap(r.s.DramMemorySizeUsedPerPid)
	out.PcmMemorySizeUsedPerPid = copyMap(r.s.PcmMemorySizeUsedPerPid)
	out.DramMigrationsPerPid = copyMap(r.s.DramMigrationsPerPid)
	out.PcmMigrationsPerPid = copyMap(r.s.PcmMigrationsPerPid)
	return out
}

func copyMap(m map[int]uint64) map[int]uint64 {
	out := make(map[int]uint64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
