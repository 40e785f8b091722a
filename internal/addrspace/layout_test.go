package addrspace

import "testing"

func mustLayout(t *testing.T, pageSize, blockSize, dramSize, pcmSize uint64) *Layout {
	t.Helper()
	l, err := NewLayout(pageSize, blockSize, dramSize, pcmSize)
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	return l
}

func TestAddressArithmetic(t *testing.T) {
	l := mustLayout(t, 4096, 64, 4096, 2*4096)

	if got := l.GetIndex(0x1234); got != 1 {
		t.Errorf("GetIndex(0x1234) = %d, want 1", got)
	}
	if got := l.GetOffset(0x1234); got != 0x234 {
		t.Errorf("GetOffset(0x1234) = %#x, want 0x234", got)
	}
	if got := l.GetBlock(0x1234); got != 8 {
		t.Errorf("GetBlock(0x1234) = %d, want 8", got)
	}
	if got := l.GetAddressFromBlock(1, 8); got != 0x1200 {
		t.Errorf("GetAddressFromBlock(1, 8) = %#x, want 0x1200", got)
	}
}

func TestRoundTripLaws(t *testing.T) {
	l := mustLayout(t, 4096, 64, 4096, 2*4096)

	addrs := []uint64{0, 1, 0x234, 0x1234, 0x2fff, 4096 * 5}
	for _, a := range addrs {
		if got := l.GetAddress(l.GetIndex(a), l.GetOffset(a)); got != a {
			t.Errorf("GetAddress(GetIndex(%#x), GetOffset(%#x)) = %#x, want %#x", a, a, got, a)
		}
		idx := l.GetIndex(a)
		block := l.GetBlock(a)
		want := (idx << 12) | (block << 6)
		if got := l.GetAddressFromBlock(idx, block); got != want {
			t.Errorf("GetAddressFromBlock not block-aligned for %#x: got %#x want %#x", a, got, want)
		}
	}
}

func TestRegionLayout(t *testing.T) {
	l := mustLayout(t, 4096, 64, 4096, 2*4096)

	if l.NumDramPages() != 1 {
		t.Errorf("NumDramPages = %d, want 1", l.NumDramPages())
	}
	if l.NumPcmPages() != 2 {
		t.Errorf("NumPcmPages = %d, want 2", l.NumPcmPages())
	}
	if !l.IsDramPage(0) || l.IsPcmPage(0) {
		t.Errorf("frame 0 should be DRAM-only")
	}
	if !l.IsPcmPage(1) || !l.IsPcmPage(2) {
		t.Errorf("frames 1,2 should be PCM")
	}
	if l.RegionOf(1) != PCM {
		t.Errorf("RegionOf(1) = %v, want PCM", l.RegionOf(1))
	}
}

func TestNewLayoutRejectsBadGeometry(t *testing.T) {
	cases := []struct {
		name                                   string
		pageSize, blockSize, dramSize, pcmSize uint64
	}{
		{"page not pow2", 4097, 64, 4096, 4096},
		{"block not pow2", 4096, 63, 4096, 4096},
		{"page not multiple of block", 100, 64, 4096, 4096},
		{"dram not multiple of page", 4096, 64, 100, 4096},
		{"pcm not multiple of page", 4096, 64, 4096, 100},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := NewLayout(c.pageSize, c.blockSize, c.dramSize, c.pcmSize); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestFreeListFIFO(t *testing.T) {
	fl := NewFreeList()
	fl.Seed([]uint64{1, 2, 3})

	if fl.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", fl.Len())
	}
	got, ok := fl.Take()
	if !ok || got != 1 {
		t.Fatalf("Take() = (%d, %v), want (1, true)", got, ok)
	}
	fl.Put(4)
	for _, want := range []uint64{2, 3, 4} {
		got, ok := fl.Take()
		if !ok || got != want {
			t.Fatalf("Take() = (%d, %v), want (%d, true)", got, ok, want)
		}
	}
	if !fl.Empty() {
		t.Fatalf("expected empty free-list")
	}
	if _, ok := fl.Take(); ok {
		t.Fatalf("Take() on empty list should return ok=false")
	}
}
