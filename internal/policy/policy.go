// Package policy implements the pluggable candidate-selection strategies
// that feed the DEMOTE event loop: scored candidate selection over the
// pages a policy has seen accessed, driving working-set-style
// DRAM<->PCM tiering decisions.
package policy

import "github.com/hmmsim/hmmsim/internal/addrspace"

// PageLocator answers "which region is (pid, vpage) currently mapped
// into?" so a Policy can tell a stale candidate from a live one without
// owning page-table state itself.
type PageLocator interface {
	RegionOf(pid int, vpage uint64) (region addrspace.Region, ok bool)
}

// Policy is one pluggable migration-candidate strategy.
type Policy interface {
	// Name identifies the policy for logging, the dashboard and
	// Partitioner budget bookkeeping.
	Name() string
	// SelectPromote proposes a PCM page worth moving to DRAM, constrained
	// by the Partitioner-assigned budget for this tick.
	SelectPromote(loc PageLocator, budget int) (pid int, vpage uint64, ok bool)
	// SelectDemote proposes a DRAM page worth evicting to PCM. Demotions
	// are never budget-constrained.
	SelectDemote(loc PageLocator) (pid int, vpage uint64, ok bool)
	// NotifyAccess reports an access for online statistics.
	NotifyAccess(pid int, vpage uint64, read bool, instr uint64)
}

// PolicySet runs a fixed-order list of policies. A DEMOTE event walks
// Policies() in order and attempts one migration per policy per tick.
type PolicySet struct {
	policies []Policy
}

// NewPolicySet returns a PolicySet running policies in the given order.
func NewPolicySet(policies ...Policy) *PolicySet {
	return &PolicySet{policies: policies}
}

// Policies returns the fixed-order policy list.
func (s *PolicySet) Policies() []Policy { return s.policies }

// NotifyAccess fans an access out to every policy.
func (s *PolicySet) NotifyAccess(pid int, vpage uint64, read bool, instr uint64) {
	for _, p := range s.policies {
		p.NotifyAccess(pid, vpage, read, instr)
	}
}
