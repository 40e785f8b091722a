package stats

import (
	"fmt"
	"io"

	"github.com/hmmsim/hmmsim/internal/addrspace"
)

// PerPageRecorder appends one line per completed or rolled-back
// migration: a per-page log of source/destination region, timing and
// rollback outcome.
type PerPageRecorder struct {
	w io.Writer
}

// NewPerPageRecorder wraps w; the caller owns opening/closing the
// underlying file.
func NewPerPageRecorder(w io.Writer) *PerPageRecorder {
	return &PerPageRecorder{w: w}
}

// Record appends one line describing a completed (or rolled-back)
// migration.
func (p *PerPageRecorder) Record(pid int, vpage uint64, src, dst addrspace.Region, start, end uint64, rolledBack bool) {
	if p == nil || p.w == nil {
		return
	}
	fmt.Fprintf(p.w, "pid=%d vpage=%#x src=%s dst=%s start=%d end=%d rolledBack=%t\n",
		pid, vpage, src, dst, start, end, rolledBack)
}
