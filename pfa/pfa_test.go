// SPDX-License-Identifier: Unlicense OR MIT

package pfa

import "testing"

func reset() {
	bitmap = [bitmapLen]uint64{}
	freeCount = totalPages
}

func TestAllocPageMarksFrameUsed(t *testing.T) {
	reset()
	a := AllocPage()
	if a == 0 {
		t.Fatal("AllocPage returned 0 on a fresh allocator")
	}
	b := AllocPage()
	if b == a {
		t.Fatalf("AllocPage returned the same frame twice: %#x", a)
	}
	_, free := Stats()
	if free != totalPages-2 {
		t.Fatalf("free = %d, want %d", free, totalPages-2)
	}
}

func TestAllocPagesContiguous(t *testing.T) {
	reset()
	addr := AllocPages(4)
	if addr == 0 {
		t.Fatal("AllocPages(4) failed on a fresh allocator")
	}
	for i := 0; i < 4; i++ {
		page := int((addr - base) / PageSize)
		if !test(page + i) {
			t.Fatalf("page %d of the run was not marked used", i)
		}
	}
}

func TestAllocPagesZeroReturnsZero(t *testing.T) {
	reset()
	if AllocPages(0) != 0 {
		t.Fatal("AllocPages(0) should return 0")
	}
}

func TestFreePageRoundTrip(t *testing.T) {
	reset()
	a := AllocPage()
	FreePage(a)
	_, free := Stats()
	if free != totalPages {
		t.Fatalf("free = %d after round trip, want %d", free, totalPages)
	}
	b := AllocPage()
	if b != a {
		t.Fatalf("expected freed frame to be reused, got %#x want %#x", b, a)
	}
}

func TestFreePageOutOfRangeIsNoop(t *testing.T) {
	reset()
	FreePage(0)
	FreePage(base - PageSize)
	FreePage(base + uintptr(totalPages)*PageSize)
	_, free := Stats()
	if free != totalPages {
		t.Fatalf("free = %d, want %d (no-op expected)", free, totalPages)
	}
}

func TestFreePageAlreadyFreeIsNoop(t *testing.T) {
	reset()
	FreePage(base) // never allocated
	_, free := Stats()
	if free != totalPages {
		t.Fatalf("free = %d, want %d", free, totalPages)
	}
}

func TestAllocPagesFailsWhenExhausted(t *testing.T) {
	reset()
	freeCount = 2
	for i := 0; i < totalPages; i++ {
		if i >= 2 {
			set(i)
		}
	}
	if AllocPages(3) != 0 {
		t.Fatal("AllocPages(3) should fail with only 2 frames free")
	}
}
