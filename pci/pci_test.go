// SPDX-License-Identifier: Unlicense OR MIT

package pci

import "testing"

// fakeConfigSpace models a handful of PCI config-space registers
// behind the 0xCF8/0xCFC address/data port pair, just enough to
// exercise enumeration without real hardware.
type fakeConfigSpace struct {
	addr uint32
	regs map[uint32]uint32 // keyed by (bus<<16 | device<<11 | function<<8 | offset)
}

func (f *fakeConfigSpace) key() uint32 {
	return f.addr &^ (1 << 31)
}

func (f *fakeConfigSpace) InB(uint16) uint8         { return 0 }
func (f *fakeConfigSpace) OutB(uint16, uint8)       {}
func (f *fakeConfigSpace) InW(uint16) uint16        { return 0 }
func (f *fakeConfigSpace) OutW(uint16, uint16)      {}

func (f *fakeConfigSpace) InL(port uint16) uint32 {
	if port != configData {
		return 0
	}
	if v, ok := f.regs[f.key()]; ok {
		return v
	}
	return 0xFFFFFFFF
}

func (f *fakeConfigSpace) OutL(port uint16, val uint32) {
	if port == configAddress {
		f.addr = val
	}
}

func newFakeDevice(regs map[uint32]uint32, bus, device, function uint8, vendorID, deviceID uint16, classCode, subclass uint8) {
	base := uint32(bus)<<16 | uint32(device)<<11 | uint32(function)<<8
	regs[base|0] = uint32(deviceID)<<16 | uint32(vendorID)
	regs[base|8] = uint32(classCode)<<24 | uint32(subclass)<<16
}

func TestEnumerateFindsSingleFunctionDevice(t *testing.T) {
	regs := map[uint32]uint32{}
	newFakeDevice(regs, 0, 3, 0, 0x1AF4, 0x1000, 0x02, 0x00)
	fc := &fakeConfigSpace{regs: regs}
	b := New(fc)
	b.Enumerate()
	if b.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", b.Count())
	}
	d, ok := b.FindDevice(0x1AF4, 0x1000)
	if !ok {
		t.Fatal("expected to find the virtio-net device by vendor/device ID")
	}
	if d.Bus != 0 || d.Device != 3 || d.Function != 0 {
		t.Fatalf("device address = %+v, want bus 0 device 3 function 0", d)
	}
}

func TestFindClassMatchesNetworkController(t *testing.T) {
	regs := map[uint32]uint32{}
	newFakeDevice(regs, 0, 5, 0, 0x1AF4, 0x1000, 0x02, 0x00)
	fc := &fakeConfigSpace{regs: regs}
	b := New(fc)
	b.Enumerate()
	d, ok := b.FindClass(0x02, 0x00)
	if !ok || d.DeviceID != 0x1000 {
		t.Fatal("expected FindClass to locate the network controller")
	}
}

func TestFindDeviceMissingReturnsFalse(t *testing.T) {
	fc := &fakeConfigSpace{regs: map[uint32]uint32{}}
	b := New(fc)
	b.Enumerate()
	if _, ok := b.FindDevice(0x8086, 0x1234); ok {
		t.Fatal("expected no match on an empty bus")
	}
}
