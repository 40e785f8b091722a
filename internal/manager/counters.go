package manager

// Counter is a registered instruction counter`/`processInterrupt(counter)`). The CPU
// model (out of scope) owns the actual instruction stream; Counter only
// records the pid it is attached to and the threshold at which the CPU
// model is expected to call ProcessInterrupt.
type Counter struct {
	ID        int
	Pid       int
	Threshold uint64
}
