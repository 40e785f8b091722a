package addrspace

import "container/list"

// FreeList is a FIFO sequence of free frame numbers for one region.
// Allocation pops from the head; frees append to the tail.
type FreeList struct {
	l *list.List
}

// NewFreeList returns an empty FreeList.
func NewFreeList() *FreeList {
	return &FreeList{l: list.New()}
}

// Seed appends frames in order, for initial population of a region.
func (f *FreeList) Seed(frames []uint64) {
	for _, fr := range frames {
		f.l.PushBack(fr)
	}
}

// Len returns the number of free frames.
func (f *FreeList) Len() int { return f.l.Len() }

// Empty reports whether the free-list has no frames left.
func (f *FreeList) Empty() bool { return f.l.Len() == 0 }

// Take removes and returns the head frame. ok is false if the list is
// empty.
func (f *FreeList) Take() (frame uint64, ok bool) {
	e := f.l.Front()
	if e == nil {
		return 0, false
	}
	f.l.Remove(e)
	return e.Value.(uint64), true
}

// Put appends a frame to the tail, making it available for future Take
// calls.
func (f *FreeList) Put(frame uint64) {
	f.l.PushBack(frame)
}
