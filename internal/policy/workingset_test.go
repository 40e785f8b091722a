package policy_test

import (
	"testing"

	"github.com/hmmsim/hmmsim/internal/addrspace"
	"github.com/hmmsim/hmmsim/internal/policy"
)

type fakeLocator map[[2]uint64]addrspace.Region

func (f fakeLocator) key(pid int, vpage uint64) [2]uint64 { return [2]uint64{uint64(pid), vpage} }

func (f fakeLocator) RegionOf(pid int, vpage uint64) (addrspace.Region, bool) {
	r, ok := f[f.key(pid, vpage)]
	return r, ok
}

func (f fakeLocator) put(pid int, vpage uint64, r addrspace.Region) {
	f[f.key(pid, vpage)] = r
}

func TestSelectPromotePicksMostAccessedPcmPage(t *testing.T) {
	p := policy.NewWorkingSetPolicy("hot")
	loc := fakeLocator{}
	loc.put(0, 0x10, addrspace.PCM)
	loc.put(0, 0x20, addrspace.PCM)
	loc.put(0, 0x30, addrspace.DRAM)

	p.NotifyAccess(0, 0x10, true, 1)
	p.NotifyAccess(0, 0x20, true, 2)
	p.NotifyAccess(0, 0x20, true, 3)
	p.NotifyAccess(0, 0x30, true, 4)

	pid, vpage, ok := p.SelectPromote(loc, 1)
	if !ok || pid != 0 || vpage != 0x20 {
		t.Fatalf("SelectPromote = (%d, %#x, %t), want (0, 0x20, true)", pid, vpage, ok)
	}
}

func TestSelectPromoteRespectsZeroBudget(t *testing.T) {
	p := policy.NewWorkingSetPolicy("hot")
	loc := fakeLocator{}
	loc.put(0, 0x10, addrspace.PCM)
	p.NotifyAccess(0, 0x10, true, 1)

	if _, _, ok := p.SelectPromote(loc, 0); ok {
		t.Fatalf("SelectPromote with zero budget should return false")
	}
}

func TestSelectDemotePicksLeastRecentlyTouchedDramPage(t *testing.T) {
	p := policy.NewWorkingSetPolicy("cold")
	loc := fakeLocator{}
	loc.put(0, 0x10, addrspace.DRAM)
	loc.put(0, 0x20, addrspace.DRAM)

	p.NotifyAccess(0, 0x10, true, 10)
	p.NotifyAccess(0, 0x20, true, 20)

	pid, vpage, ok := p.SelectDemote(loc)
	if !ok || pid != 0 || vpage != 0x10 {
		t.Fatalf("SelectDemote = (%d, %#x, %t), want (0, 0x10, true)", pid, vpage, ok)
	}
}

func TestSelectIgnoresStaleAndWrongRegionEntries(t *testing.T) {
	p := policy.NewWorkingSetPolicy("p")
	loc := fakeLocator{}
	// Page moved on (e.g. migrated away); locator has no entry for it.
	p.NotifyAccess(0, 0xdead, true, 1)
	// Page in the wrong region for SelectPromote.
	loc.put(0, 0x10, addrspace.DRAM)
	p.NotifyAccess(0, 0x10, true, 2)

	if _, _, ok := p.SelectPromote(loc, 1); ok {
		t.Fatalf("SelectPromote should find no PCM candidate")
	}
}

func TestForgetDropsCounters(t *testing.T) {
	p := policy.NewWorkingSetPolicy("p")
	loc := fakeLocator{}
	loc.put(0, 0x10, addrspace.PCM)
	p.NotifyAccess(0, 0x10, true, 1)
	p.Forget(0, 0x10)

	if _, _, ok := p.SelectPromote(loc, 1); ok {
		t.Fatalf("SelectPromote should find nothing after Forget")
	}
}

func TestPolicySetFixedOrderAndFanOut(t *testing.T) {
	a := policy.NewWorkingSetPolicy("a")
	b := policy.NewWorkingSetPolicy("b")
	set := policy.NewPolicySet(a, b)

	if got := set.Policies(); len(got) != 2 || got[0].Name() != "a" || got[1].Name() != "b" {
		t.Fatalf("Policies() = %v, want [a b] in order", got)
	}

	set.NotifyAccess(0, 0x10, true, 5)
	loc := fakeLocator{}
	loc.put(0, 0x10, addrspace.PCM)
	if _, _, ok := a.SelectPromote(loc, 1); !ok {
		t.Fatalf("NotifyAccess via PolicySet should reach policy a")
	}
	if _, _, ok := b.SelectPromote(loc, 1); !ok {
		t.Fatalf("NotifyAccess via PolicySet should reach policy b")
	}
}
