package policy

import "github.com/hmmsim/hmmsim/internal/addrspace"

// CountEntry is the per-virtual-page access record a Policy consults
// when scoring candidates.
type CountEntry struct {
	Pid       int
	VPage     uint64
	Reads     uint64
	Writes    uint64
	LastInstr uint64 // instruction count as of the most recent access.
}

func (e *CountEntry) accesses() uint64 { return e.Reads + e.Writes }

type pageKey struct {
	pid   int
	vpage uint64
}

// WorkingSetPolicy demotes the least-recently-touched DRAM page and
// promotes the most-frequently-touched PCM page: pages outside the
// working set are demotion candidates, and candidates are scored then
// picked best-first under the tick's budget.
type WorkingSetPolicy struct {
	name    string
	entries map[pageKey]*CountEntry
}

// NewWorkingSetPolicy returns an empty WorkingSetPolicy identified by name.
func NewWorkingSetPolicy(name string) *WorkingSetPolicy {
	return &WorkingSetPolicy{name: name, entries: make(map[pageKey]*CountEntry)}
}

// Name implements Policy.
func (p *WorkingSetPolicy) Name() string { return p.name }

// NotifyAccess implements Policy.
func (p *WorkingSetPolicy) NotifyAccess(pid int, vpage uint64, read bool, instr uint64) {
	k := pageKey{pid, vpage}
	e, ok := p.entries[k]
	if !ok {
		e = &CountEntry{Pid: pid, VPage: vpage}
		p.entries[k] = e
	}
	if read {
		e.Reads++
	} else {
		e.Writes++
	}
	e.LastInstr = instr
}

// Forget drops a page's counters, e.g. on process exit or after the page
// itself is freed; stale entries would otherwise accumulate forever.
func (p *WorkingSetPolicy) Forget(pid int, vpage uint64) {
	delete(p.entries, pageKey{pid, vpage})
}

// SelectPromote implements Policy: the PCM-resident page with the most
// recorded accesses, ties broken by (pid, vpage) for determinism.
func (p *WorkingSetPolicy) SelectPromote(loc PageLocator, budget int) (int, uint64, bool) {
	if budget <= 0 {
		return 0, 0, false
	}
	var best *CountEntry
	for _, e := range p.entries {
		region, ok := loc.RegionOf(e.Pid, e.VPage)
		if !ok || region != addrspace.PCM {
			continue
		}
		if betterCandidate(e, best, true) {
			best = e
		}
	}
	if best == nil {
		return 0, 0, false
	}
	return best.Pid, best.VPage, true
}

// SelectDemote implements Policy: the DRAM-resident page least recently
// touched, ties broken by (pid, vpage) for determinism.
func (p *WorkingSetPolicy) SelectDemote(loc PageLocator) (int, uint64, bool) {
	var oldest *CountEntry
	for _, e := range p.entries {
		region, ok := loc.RegionOf(e.Pid, e.VPage)
		if !ok || region != addrspace.DRAM {
			continue
		}
		if betterCandidate(e, oldest, false) {
			oldest = e
		}
	}
	if oldest == nil {
		return 0, 0, false
	}
	return oldest.Pid, oldest.VPage, true
}

// betterCandidate reports whether e should replace the current best/cur.
// byFrequency ranks by most accesses (promotion); otherwise by least
// recent access (demotion). Ties favor the lower (pid, vpage) pair so
// results are reproducible across runs with identical input.
func betterCandidate(e, cur *CountEntry, byFrequency bool) bool {
	if cur == nil {
		return true
	}
	if byFrequency {
		if e.accesses() != cur.accesses() {
			return e.accesses() > cur.accesses()
		}
	} else {
		if e.LastInstr != cur.LastInstr {
			return e.LastInstr < cur.LastInstr
		}
	}
	if e.Pid != cur.Pid {
		return e.Pid < cur.Pid
	}
	return e.VPage < cur.VPage
}
