// Package manager implements the HybridMemoryManager:
// the orchestrator that wires AddressMap, PageTable, MigrationEngine,
// StallQueue, Partitioner and PolicySet behind the manager's external
// access/callback surface.
package manager

import (
	"fmt"
	"log"
	"os"

	"github.com/hmmsim/hmmsim/internal/addrspace"
	"github.com/hmmsim/hmmsim/internal/engine"
	"github.com/hmmsim/hmmsim/internal/herrors"
	"github.com/hmmsim/hmmsim/internal/migration"
	"github.com/hmmsim/hmmsim/internal/pagetable"
	"github.com/hmmsim/hmmsim/internal/partition"
	"github.com/hmmsim/hmmsim/internal/policy"
	"github.com/hmmsim/hmmsim/internal/stallqueue"
	"github.com/hmmsim/hmmsim/internal/stats"
)

// Config holds the manager-level tunables that sit above the migration
// engine's own Config.
type Config struct {
	DemoteTimeout   uint64
	PartitionPeriod uint64
	PeriodType      partition.PeriodType
}

// Manager is the single owned object that drives the simulation. It
// implements migration.Host and engine.Handler.
type Manager struct {
	cfg    Config
	layout *addrspace.Layout

	tables map[int]*pagetable.Table
	phys   *pagetable.PhysicalMap

	dramFree *addrspace.FreeList
	pcmFree  *addrspace.FreeList

	stallQ  *stallqueue.Queue
	statsR  *stats.Recorder
	perPage *stats.PerPageRecorder

	eng *engine.Engine
	mig *migration.Engine

	policies    *policy.PolicySet
	partitioner *partition.Partitioner

	llc migration.LLC
	mem migration.MemoryDevice

	cpus             map[int]stallqueue.CPU
	instrCounters    map[int]uint64 // per-pid running instruction count.
	counters         map[int]*Counter
	partitionCounter *Counter // non-nil when PeriodType == Instructions.

	demoteLog    *log.Logger
	partitionLog *log.Logger
}

type unstallPayload struct {
	pid   int
	vpage uint64
	cpu   stallqueue.CPU
}

// New wires a Manager from its collaborators. llc and mem are the
// external LLC and memory-device models; in production they are driven by a timing
// model, in tests by internal/manager/mocks.
func New(layout *addrspace.Layout, migCfg migration.Config, cfg Config, llc migration.LLC, mem migration.MemoryDevice, policies *policy.PolicySet, partitioner *partition.Partitioner, eng *engine.Engine) *Manager {
	m := &Manager{
		cfg:           cfg,
		layout:        layout,
		tables:        make(map[int]*pagetable.Table),
		phys:          pagetable.NewPhysicalMap(),
		dramFree:      addrspace.NewFreeList(),
		pcmFree:       addrspace.NewFreeList(),
		stallQ:        stallqueue.New(),
		statsR:        stats.New(),
		eng:           eng,
		policies:      policies,
		partitioner:   partitioner,
		llc:           llc,
		mem:           mem,
		cpus:          make(map[int]stallqueue.CPU),
		instrCounters: make(map[int]uint64),
		counters:      make(map[int]*Counter),
		demoteLog:     log.New(os.Stderr, "demote: ", log.LstdFlags),
		partitionLog:  log.New(os.Stderr, "partition: ", log.LstdFlags),
	}
	m.dramFree.Seed(frameRange(layout.FirstFrame(addrspace.DRAM), layout.FrameCount(addrspace.DRAM)))
	m.pcmFree.Seed(frameRange(layout.FirstFrame(addrspace.PCM), layout.FrameCount(addrspace.PCM)))
	m.mig = migration.New(m, migCfg)
	m.statsR.SetInitialFootprint(layout.FrameCount(addrspace.DRAM)*layout.PageSize(), layout.FrameCount(addrspace.PCM)*layout.PageSize())
	return m
}

// SetPerPageStats attaches an optional per-migration log.
func (m *Manager) SetPerPageStats(r *stats.PerPageRecorder) { m.perPage = r }

func frameRange(first, count uint64) []uint64 {
	frames := make([]uint64, count)
	for i := range frames {
		frames[i] = first + uint64(i)
	}
	return frames
}

// --- migration.Host -------------------------------------------------

func (m *Manager) Layout() *addrspace.Layout { return m.layout }

func (m *Manager) PageEntry(pid int, vpage uint64) *pagetable.Entry {
	t, ok := m.tables[pid]
	if !ok {
		return nil
	}
	return t.Lookup(vpage)
}

func (m *Manager) CommitMove(pid int, vpage uint64, srcFrame, dstFrame uint64, dstRegion addrspace.Region) {
	pe := m.PageEntry(pid, vpage)
	if pe == nil {
		panic(herrors.InvariantViolation("manager: committing move of unmapped page",
			map[string]interface{}{"pid": pid, "vpage": vpage}))
	}
	pe.Frame = dstFrame
	pe.Region = dstRegion
	pe.IsMigrating = false
	pe.StallOnAccess = false
	m.phys.Move(srcFrame, dstFrame)
}

func (m *Manager) ReserveFrame(region addrspace.Region) (uint64, bool) {
	if region == addrspace.DRAM {
		return m.dramFree.Take()
	}
	return m.pcmFree.Take()
}

func (m *Manager) ReleaseFrame(region addrspace.Region, frame uint64) {
	m.phys.Delete(frame)
	if region == addrspace.DRAM {
		m.dramFree.Put(frame)
	} else {
		m.pcmFree.Put(frame)
	}
}

// ReleaseStalls implements migration.Host: every CPU waiting on (pid,
// vpage) gets one UNSTALL event, in the FIFO order it stalled.
func (m *Manager) ReleaseStalls(pid int, vpage uint64) {
	for _, cpu := range m.stallQ.Release(pid, vpage) {
		m.eng.AddEvent(0, m, engine.Unstall, unstallPayload{pid: pid, vpage: vpage, cpu: cpu})
	}
}

func (m *Manager) Stats() *stats.Recorder               { return m.statsR }
func (m *Manager) PerPageStats() *stats.PerPageRecorder { return m.perPage }
func (m *Manager) Engine() *engine.Engine               { return m.eng }
func (m *Manager) LLC() migration.LLC                   { return m.llc }
func (m *Manager) Memory() migration.MemoryDevice       { return m.mem }

// --- engine.Handler ---------------------------------------------------

// HandleEvent implements engine.Handler for the manager's own
// DEMOTE/UPDATE_PARTITION/UNSTALL events.
func (m *Manager) HandleEvent(ev *engine.Event) {
	switch ev.Type {
	case engine.Demote:
		m.runDemoteTick()
	case engine.UpdatePartition:
		m.runPartitionTick()
	case engine.Unstall:
		p := ev.Payload.(unstallPayload)
		m.AccessCompleted(p.pid, p.vpage)
	}
}

// ScheduleDemote arms the first DEMOTE tick, delay cycles from now.
func (m *Manager) ScheduleDemote(delay uint64) {
	m.eng.AddEvent(delay, m, engine.Demote, nil)
}

// SchedulePartition arms the first UPDATE_PARTITION tick for a CYCLES
// period; for an INSTRUCTIONS period, partition ticks are driven by
// ProcessInterrupt instead.
func (m *Manager) SchedulePartition(delay uint64) {
	if m.cfg.PeriodType == partition.Cycles {
		m.eng.AddEvent(delay, m, engine.UpdatePartition, nil)
	}
}

func (m *Manager) runDemoteTick() {
	found := false
	freeFrames := int(m.dramFree.Len())
	for _, p := range m.policies.Policies() {
		budget := m.partitioner.Budget(p.Name())
		if pid, vpage, ok := p.SelectPromote(policyLocator{m}, budget); ok {
			if m.tryMigrate(pid, vpage, addrspace.DRAM) {
				found = true
			}
			continue
		}
		if freeFrames == 0 {
			if pid, vpage, ok := p.SelectDemote(policyLocator{m}); ok {
				if m.tryMigrate(pid, vpage, addrspace.PCM) {
					found = true
				}
			}
		}
	}
	if !found {
		m.demoteLog.Printf("no candidate this tick")
	}
	m.ScheduleDemote(m.cfg.DemoteTimeout)
}

func (m *Manager) tryMigrate(pid int, vpage uint64, dstRegion addrspace.Region) bool {
	pe := m.PageEntry(pid, vpage)
	if pe == nil || pe.IsMigrating || pe.Region == dstRegion {
		return false
	}
	if _, err := m.mig.Admit(pid, vpage, pe.Frame, pe.Region, dstRegion); err != nil {
		m.demoteLog.Printf("admit pid=%d vpage=%#x -> %s failed: %v", pid, vpage, dstRegion, err)
		return false
	}
	return true
}

func (m *Manager) runPartitionTick() {
	names := make([]string, 0, len(m.policies.Policies()))
	for _, p := range m.policies.Policies() {
		names = append(names, p.Name())
	}
	shares := m.partitioner.Tick(names, int(m.dramFree.Len()))
	m.statsR.SampleMigrationTableOccupancy(m.mig.Len())
	m.partitionLog.Printf("shares=%v", shares)
	m.SchedulePartition(m.cfg.PartitionPeriod)
}

// policyLocator adapts the Manager's page tables to policy.PageLocator.
type policyLocator struct{ m *Manager }

func (l policyLocator) RegionOf(pid int, vpage uint64) (addrspace.Region, bool) {
	pe := l.m.PageEntry(pid, vpage)
	if pe == nil {
		return 0, false
	}
	return pe.Region, true
}

// --- inbound from CPU model -------------------------------

// AddCPU registers a CPU so StallQueue FIFO order is over real identities.
func (m *Manager) AddCPU(cpu stallqueue.CPU) { m.cpus[cpu.ID()] = cpu }

// AddInstrCounter registers counter for threshold-crossing notification.
// If cfg.PeriodType is Instructions, the first registered counter also
// drives the partition tick.
func (m *Manager) AddInstrCounter(counter *Counter) {
	m.counters[counter.ID] = counter
	if m.cfg.PeriodType == partition.Instructions && m.partitionCounter == nil {
		m.partitionCounter = counter
	}
}

// ProcessInterrupt is invoked when a registered instruction counter
// crosses its threshold.
func (m *Manager) ProcessInterrupt(counter *Counter) {
	if m.partitionCounter != nil && counter.ID == m.partitionCounter.ID {
		m.runPartitionTick()
	}
}

// Finish releases every virtual page owned by pid and forgets its page
// table, e.g. on process exit.
func (m *Manager) Finish(pid int) {
	t, ok := m.tables[pid]
	if !ok {
		return
	}
	t.Each(func(vpage uint64, pe *pagetable.Entry) {
		m.phys.Delete(pe.Frame)
		if pe.Region == addrspace.DRAM {
			m.dramFree.Put(pe.Frame)
		} else {
			m.pcmFree.Put(pe.Frame)
		}
	})
	delete(m.tables, pid)
	delete(m.instrCounters, pid)
}

// Access looks up or allocates the mapping for (pid, vaddr), notifies
// the policy set, and stalls the caller if the page is mid-migration.
// cpu identifies the caller for StallQueue FIFO ordering.
func (m *Manager) Access(cpu stallqueue.CPU, pid int, vaddr uint64, read bool, instrFetch bool) (stall bool, paddr uint64, err error) {
	vpage := m.layout.GetIndex(vaddr)
	voff := m.layout.GetOffset(vaddr)

	t, ok := m.tables[pid]
	if !ok {
		t = pagetable.NewTable(pid)
		m.tables[pid] = t
	}
	pe := t.Lookup(vpage)
	if pe == nil {
		region, frame, aerr := m.allocateFrame()
		if aerr != nil {
			if dst, demoted := m.migrateOnDemandAny(); demoted {
				region, frame = dst.region, dst.frame
			} else {
				return false, 0, aerr
			}
		}
		pe = t.Insert(vpage, frame, region)
		m.phys.Put(frame, pid, vpage)
	}

	m.instrCounters[pid]++
	m.policies.NotifyAccess(pid, vpage, read, m.instrCounters[pid])

	paddr = m.layout.GetAddress(pe.Frame, voff)
	if pe.IsMigrating && pe.StallOnAccess {
		m.stallQ.Stall(pid, vpage, cpu)
		return true, paddr, nil
	}
	return false, paddr, nil
}

type demotedFrame struct {
	region addrspace.Region
	frame  uint64
}

// allocateFrame draws a frame DRAM-first, PCM-fallback.
func (m *Manager) allocateFrame() (addrspace.Region, uint64, error) {
	if f, ok := m.dramFree.Take(); ok {
		return addrspace.DRAM, f, nil
	}
	if f, ok := m.pcmFree.Take(); ok {
		return addrspace.PCM, f, nil
	}
	return 0, 0, herrors.OutOfCapacity(-1, 0)
}

// migrateOnDemandAny tries every policy's demote candidate until one
// admits and vacates a frame synchronously. If none does — the chosen
// victim is itself mid-migration, or no policy has a candidate — Access
// surfaces OutOfCapacity to its caller.
func (m *Manager) migrateOnDemandAny() (demotedFrame, bool) {
	for _, p := range m.policies.Policies() {
		pid, vpage, ok := p.SelectDemote(policyLocator{m})
		if !ok {
			continue
		}
		if dst, ok := m.MigrateOnDemand(pid, vpage); ok {
			return demotedFrame{region: dst.region, frame: dst.frame}, true
		}
	}
	return demotedFrame{}, false
}

// MigrateOnDemand schedules an immediate migration of (pid, vpage) to
// the opposite region and returns the frame it vacates if the
// destination region already has a free frame (so the migration can run
// to completion without the caller waiting); otherwise it returns false.
func (m *Manager) MigrateOnDemand(pid int, vpage uint64) (demotedFrame, bool) {
	pe := m.PageEntry(pid, vpage)
	if pe == nil || pe.IsMigrating {
		return demotedFrame{}, false
	}
	dstRegion := addrspace.PCM
	if pe.Region == addrspace.PCM {
		dstRegion = addrspace.DRAM
	}
	if !m.hasFreeFrame(dstRegion) {
		return demotedFrame{}, false
	}
	if _, err := m.mig.Admit(pid, vpage, pe.Frame, pe.Region, dstRegion); err != nil {
		return demotedFrame{}, false
	}
	return demotedFrame{region: pe.Region, frame: pe.Frame}, true
}

func (m *Manager) hasFreeFrame(region addrspace.Region) bool {
	if region == addrspace.DRAM {
		return !m.dramFree.Empty()
	}
	return !m.pcmFree.Empty()
}

// Allocate maps one process image per filename: each file's size in
// bytes (only the address-space shape matters, not the program data
// itself) determines how many virtual pages that pid needs; pages are
// drawn DRAM-first, PCM-fallback.
func (m *Manager) Allocate(filenames []string) error {
	for pid, filename := range filenames {
		info, err := os.Stat(filename)
		if err != nil {
			return fmt.Errorf("manager: allocate pid %d: %w", pid, err)
		}
		pageSize := m.layout.PageSize()
		numPages := (uint64(info.Size()) + pageSize - 1) / pageSize
		if numPages == 0 {
			numPages = 1
		}
		t := pagetable.NewTable(pid)
		m.tables[pid] = t
		var dramUsed, pcmUsed uint64
		for vpage := uint64(0); vpage < numPages; vpage++ {
			region, frame, aerr := m.allocateFrame()
			if aerr != nil {
				return aerr
			}
			t.Insert(vpage, frame, region)
			m.phys.Put(frame, pid, vpage)
			if region == addrspace.DRAM {
				dramUsed += m.layout.PageSize()
			} else {
				pcmUsed += m.layout.PageSize()
			}
		}
		m.statsR.SetUsedFootprint(pid, dramUsed, pcmUsed)
	}
	return nil
}

// PidOfAddress reverse-looks-up the process owning a physical address.
func (m *Manager) PidOfAddress(paddr uint64) (int, bool) {
	frame := m.layout.GetIndex(paddr)
	e, ok := m.phys.Lookup(frame)
	if !ok {
		return 0, false
	}
	return e.Pid, true
}

// GetIndex, GetOffset and GetAddress pass through to the configured
// Layout.
func (m *Manager) GetIndex(addr uint64) uint64           { return m.layout.GetIndex(addr) }
func (m *Manager) GetOffset(addr uint64) uint64          { return m.layout.GetOffset(addr) }
func (m *Manager) GetAddress(index, offset uint64) uint64 { return m.layout.GetAddress(index, offset) }

// --- inbound callbacks from subsystems --------------------

func (m *Manager) AccessCompleted(pid int, vpage uint64) {
	pe := m.PageEntry(pid, vpage)
	if pe == nil {
		return
	}
	if ent := m.mig.Get(pe.Frame); ent != nil {
		m.mig.AccessCompleted(ent)
	}
}

func (m *Manager) DrainCompleted(frame uint64)              { m.mig.DrainCompleted(frame) }
func (m *Manager) FlushCompleted(addr uint64, dirty bool)    { m.mig.FlushCompleted(addr, dirty) }
func (m *Manager) CopyCompleted(srcFrame uint64)             { m.mig.CopyCompleted(srcFrame) }
func (m *Manager) RemapCompleted(pageAddr uint64)            { m.mig.RemapCompleted(pageAddr) }
func (m *Manager) TagChangeCompleted(addr uint64)            { m.mig.TagChangeCompleted(addr) }
