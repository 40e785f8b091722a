// Package addrspace implements the bit-exact address arithmetic and the
// two-region (DRAM/PCM) physical layout of the hybrid memory simulator.
package addrspace

import (
	"fmt"
	"math/bits"
)

// Region identifies which half of the hybrid physical address space a
// frame belongs to.
type Region int

const (
	DRAM Region = iota
	PCM
)

func (r Region) String() string {
	switch r {
	case DRAM:
		return "DRAM"
	case PCM:
		return "PCM"
	default:
		return fmt.Sprintf("Region(%d)", int(r))
	}
}

// Layout describes the bit-exact geometry of the address space: a page
// size and block size (both powers of two) and a contiguous DRAM-then-PCM
// physical range.
type Layout struct {
	pageSize  uint64
	blockSize uint64

	offsetWidth      uint
	indexMask        uint64
	blockOffsetWidth uint

	dramBase, dramEnd uint64
	pcmBase, pcmEnd   uint64

	firstDramPage, onePastLastDramPage uint64
	firstPcmPage, onePastLastPcmPage   uint64
}

// NewLayout builds a Layout from configuration. pageSize and blockSize must
// be powers of two, and pageSize must be a multiple of blockSize. dramSize
// and pcmSize must each be a multiple of pageSize; DRAM occupies
// [0, dramSize) and PCM occupies [dramSize, dramSize+pcmSize).
func NewLayout(pageSize, blockSize, dramSize, pcmSize uint64) (*Layout, error) {
	if pageSize == 0 || pageSize&(pageSize-1) != 0 {
		return nil, fmt.Errorf("addrspace: pageSize %d is not a power of two", pageSize)
	}
	if blockSize == 0 || blockSize&(blockSize-1) != 0 {
		return nil, fmt.Errorf("addrspace: blockSize %d is not a power of two", blockSize)
	}
	if pageSize%blockSize != 0 {
		return nil, fmt.Errorf("addrspace: pageSize %d is not a multiple of blockSize %d", pageSize, blockSize)
	}
	if dramSize%pageSize != 0 {
		return nil, fmt.Errorf("addrspace: dramSize %d is not a multiple of pageSize %d", dramSize, pageSize)
	}
	if pcmSize%pageSize != 0 {
		return nil, fmt.Errorf("addrspace: pcmSize %d is not a multiple of pageSize %d", pcmSize, pageSize)
	}

	l := &Layout{
		pageSize:         pageSize,
		blockSize:        blockSize,
		offsetWidth:      uint(bits.TrailingZeros64(pageSize)),
		blockOffsetWidth: uint(bits.TrailingZeros64(blockSize)),
		dramBase:         0,
		dramEnd:          dramSize,
		pcmBase:          dramSize,
		pcmEnd:           dramSize + pcmSize,
	}
	l.indexMask = ^(pageSize - 1)
	l.firstDramPage = l.dramBase >> l.offsetWidth
	l.onePastLastDramPage = l.dramEnd >> l.offsetWidth
	l.firstPcmPage = l.pcmBase >> l.offsetWidth
	l.onePastLastPcmPage = l.pcmEnd >> l.offsetWidth
	return l, nil
}

// PageSize returns the configured page size in bytes.
func (l *Layout) PageSize() uint64 { return l.pageSize }

// BlockSize returns the configured block (cache-line) size in bytes.
func (l *Layout) BlockSize() uint64 { return l.blockSize }

// BlocksPerPage returns how many blocks fit in a page.
func (l *Layout) BlocksPerPage() uint64 { return l.pageSize / l.blockSize }

// NumDramPages returns the page capacity of the DRAM region.
func (l *Layout) NumDramPages() uint64 { return l.onePastLastDramPage - l.firstDramPage }

// NumPcmPages returns the page capacity of the PCM region.
func (l *Layout) NumPcmPages() uint64 { return l.onePastLastPcmPage - l.firstPcmPage }

// GetIndex returns the frame/page number containing addr.
func (l *Layout) GetIndex(addr uint64) uint64 { return addr >> l.offsetWidth }

// GetOffset returns the in-page offset of addr.
func (l *Layout) GetOffset(addr uint64) uint64 { return addr &^ l.indexMask }

// GetAddress composes a physical address from a page index and an in-page
// offset. GetAddress(GetIndex(a), GetOffset(a)) == a for all valid a.
func (l *Layout) GetAddress(index, offset uint64) uint64 {
	return (index << l.offsetWidth) | (offset &^ l.indexMask)
}

// GetBlock returns the block number within the page that addr falls in.
func (l *Layout) GetBlock(addr uint64) uint64 {
	return l.GetOffset(addr) >> l.blockOffsetWidth
}

// GetAddressFromBlock returns the block-aligned address of the given block
// within the page at index.
func (l *Layout) GetAddressFromBlock(index, block uint64) uint64 {
	return (index << l.offsetWidth) | (block << l.blockOffsetWidth)
}

// IsDramAddr reports whether the physical address falls in the DRAM range.
func (l *Layout) IsDramAddr(addr uint64) bool { return addr >= l.dramBase && addr < l.dramEnd }

// IsPcmAddr reports whether the physical address falls in the PCM range.
func (l *Layout) IsPcmAddr(addr uint64) bool { return addr >= l.pcmBase && addr < l.pcmEnd }

// IsDramPage reports whether the frame number belongs to the DRAM region.
func (l *Layout) IsDramPage(frame uint64) bool {
	return frame >= l.firstDramPage && frame < l.onePastLastDramPage
}

// IsPcmPage reports whether the frame number belongs to the PCM region.
func (l *Layout) IsPcmPage(frame uint64) bool {
	return frame >= l.firstPcmPage && frame < l.onePastLastPcmPage
}

// RegionOf returns the Region owning the given frame. It panics if frame is
// outside both regions, which indicates an invariant violation upstream.
func (l *Layout) RegionOf(frame uint64) Region {
	if l.IsDramPage(frame) {
		return DRAM
	}
	if l.IsPcmPage(frame) {
		return PCM
	}
	panic(fmt.Sprintf("addrspace: frame %d belongs to neither region", frame))
}

// FirstFrame returns the first frame number of the region.
func (l *Layout) FirstFrame(r Region) uint64 {
	if r == DRAM {
		return l.firstDramPage
	}
	return l.firstPcmPage
}

// FrameCount returns the number of frames in the region.
func (l *Layout) FrameCount(r Region) uint64 {
	if r == DRAM {
		return l.NumDramPages()
	}
	return l.NumPcmPages()
}
