package pagetable

// Bitset is a growable per-block bit-vector used to track dirty/clean
// blocks within a page. It has no fixed upper bound of its own; it simply
// grows to whatever block count the caller sizes it for.
type Bitset struct {
	bits []bool
}

// NewBitset returns a Bitset sized for n blocks, all clear.
func NewBitset(n int) *Bitset {
	return &Bitset{bits: make([]bool, n)}
}

// Set marks block i dirty.
func (b *Bitset) Set(i int) { b.bits[i] = true }

// Clear marks block i clean.
func (b *Bitset) Clear(i int) { b.bits[i] = false }

// Get reports whether block i is dirty.
func (b *Bitset) Get(i int) bool { return b.bits[i] }

// Len returns the number of blocks tracked.
func (b *Bitset) Len() int { return len(b.bits) }

// Count returns the number of dirty blocks.
func (b *Bitset) Count() int {
	n := 0
	for _, v := range b.bits {
		if v {
			n++
		}
	}
	return n
}

// ClearAll resets every block to clean.
func (b *Bitset) ClearAll() {
	for i := range b.bits {
		b.bits[i] = false
	}
}
