// SPDX-License-Identifier: Unlicense OR MIT

package net

import "testing"

func TestARPCacheRoundTrip(t *testing.T) {
	resetARPCache()
	mac := [6]byte{1, 2, 3, 4, 5, 6}
	arpCacheAdd(0x0A000001, mac)

	got, ok := arpLookup(0x0A000001)
	if !ok {
		t.Fatal("expected a hit after arpCacheAdd")
	}
	if got != mac {
		t.Fatalf("got %v, want %v", got, mac)
	}
}

func TestARPLookupMissReturnsFalse(t *testing.T) {
	resetARPCache()
	if _, ok := arpLookup(0xFFFFFFFF); ok {
		t.Fatal("expected a miss on an empty cache")
	}
}

func TestARPCacheAddUpdatesExistingSlot(t *testing.T) {
	resetARPCache()
	macA := [6]byte{1, 1, 1, 1, 1, 1}
	macB := [6]byte{2, 2, 2, 2, 2, 2}
	arpCacheAdd(0x0A000001, macA)
	arpCacheAdd(0x0A000001, macB)

	got, _ := arpLookup(0x0A000001)
	if got != macB {
		t.Fatalf("got %v, want %v (the update should replace, not duplicate)", got, macB)
	}
}

func TestARPCacheFullEvictsSlotZero(t *testing.T) {
	resetARPCache()
	for i := 0; i < arpCacheSize; i++ {
		arpCacheAdd(uint32(i+1), [6]byte{byte(i)})
	}
	// Cache is full; a new IP should overwrite whatever is in slot 0.
	newMAC := [6]byte{9, 9, 9, 9, 9, 9}
	arpCacheAdd(0xDEADBEEF, newMAC)

	if _, ok := arpLookup(1); ok {
		t.Fatal("expected the original slot-0 entry (ip=1) to have been evicted")
	}
	got, ok := arpLookup(0xDEADBEEF)
	if !ok || got != newMAC {
		t.Fatalf("new entry not found in evicted slot: got %v, ok=%v", got, ok)
	}
}
