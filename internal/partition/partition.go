// Package partition implements the periodic DRAM capacity budget split
// across policies: a proportional-ratio split of free frames, by weight,
// across whichever policies are registered for the current tick.
package partition

// PeriodType selects the unit an UPDATE_PARTITION tick is measured in.
type PeriodType int

const (
	Cycles PeriodType = iota
	Instructions
)

func (t PeriodType) String() string {
	switch t {
	case Cycles:
		return "CYCLES"
	case Instructions:
		return "INSTRUCTIONS"
	default:
		return "UNKNOWN"
	}
}

// Partitioner allocates a per-policy DRAM promotion budget every Period
// units of PeriodType. Demotions are never constrained by this budget.
type Partitioner struct {
	period     uint64
	periodType PeriodType
	weights    map[string]int
	order      []string // insertion order, for a deterministic equal split.
	shares     map[string]int
}

// New returns a Partitioner ticking every period units of periodType.
func New(period uint64, periodType PeriodType) *Partitioner {
	return &Partitioner{
		period:     period,
		periodType: periodType,
		weights:    make(map[string]int),
		shares:     make(map[string]int),
	}
}

// Period returns the configured tick interval.
func (p *Partitioner) Period() uint64 { return p.period }

// PeriodType returns the configured tick unit.
func (p *Partitioner) PeriodType() PeriodType { return p.periodType }

// SetWeight assigns policyName a relative weight for the proportional
// split. A policy with no weight set counts as weight 1.
func (p *Partitioner) SetWeight(policyName string, weight int) {
	if _, seen := p.weights[policyName]; !seen {
		p.order = append(p.order, policyName)
	}
	p.weights[policyName] = weight
}

// Tick recomputes the DRAM promotion budget for each named policy,
// proportional to its weight, out of freeFrames total. Policies with no
// weight registered count as weight 1, so when none has a weight they
// split the total evenly.
func (p *Partitioner) Tick(policyNames []string, freeFrames int) map[string]int {
	shares := make(map[string]int, len(policyNames))
	if len(policyNames) == 0 || freeFrames <= 0 {
		p.shares = shares
		return shares
	}

	totalWeight := 0
	for _, name := range policyNames {
		totalWeight += p.weightOf(name)
	}

	if totalWeight == 0 {
		base := freeFrames / len(policyNames)
		remainder := freeFrames % len(policyNames)
		for i, name := range policyNames {
			share := base
			if i < remainder {
				share++
			}
			shares[name] = share
		}
	} else {
		assigned := 0
		for _, name := range policyNames {
			share := freeFrames * p.weightOf(name) / totalWeight
			shares[name] = share
			assigned += share
		}
		// Hand any rounding remainder to the first policy in fixed order,
		// so Sum(shares) == freeFrames exactly.
		if leftover := freeFrames - assigned; leftover > 0 && len(policyNames) > 0 {
			shares[policyNames[0]] += leftover
		}
	}

	p.shares = shares
	return shares
}

// Budget returns policyName's current promotion budget, 0 if unknown.
func (p *Partitioner) Budget(policyName string) int { return p.shares[policyName] }

func (p *Partitioner) weightOf(name string) int {
	if w, ok := p.weights[name]; ok {
		return w
	}
	return 1
}
