package migration

import (
	"github.com/hmmsim/hmmsim/internal/addrspace"
	"github.com/hmmsim/hmmsim/internal/engine"
	"github.com/hmmsim/hmmsim/internal/pagetable"
)

// Entry is one in-flight migration, keyed by its source frame. Fields are exported for observability (tests);
// only the owning Engine mutates them.
type Entry struct {
	Pid    int
	VPage  uint64
	Src    uint64
	Dst    uint64
	SrcReg addrspace.Region
	DstReg addrspace.Region

	State        State
	RolledBack   bool
	NeedsCopying bool

	DrainRequestsLeft     int
	FlushRequestsLeft     int
	StalledRequestsLeft   int
	TagChangeRequestsLeft int

	StartMigration uint64
	StartFlush     uint64
	StartCopy      uint64

	dirty   *pagetable.Bitset
	timeout *engine.Event
}
