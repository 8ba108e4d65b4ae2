// SPDX-License-Identifier: Unlicense OR MIT

package ata

import "testing"

// fakeDrive models just enough of a PIO ATA controller to exercise
// probe/IDENTIFY and the read path: a status byte that reports "not
// busy, data ready" immediately, and data-register reads that return
// queued words or a 0xAAAA filler. Writes are discarded, so the disk
// map is never filled and no read/write round trip is modelled.
type fakeDrive struct {
	status uint8
	disk   map[uint32][SectorSize]byte
	dataQ  []uint16 // queued words for the next InW burst (IDENTIFY)
}

func newFakeDrive() *fakeDrive {
	return &fakeDrive{
		status: srDRQ,
		disk:   map[uint32][SectorSize]byte{},
	}
}

func (f *fakeDrive) InB(port uint16) uint8 {
	if port == primaryIO+regStatus || port == secondaryIO+regStatus {
		return f.status
	}
	return 0
}
func (f *fakeDrive) OutB(uint16, uint8) {}
func (f *fakeDrive) InW(uint16) uint16 {
	if len(f.dataQ) > 0 {
		w := f.dataQ[0]
		f.dataQ = f.dataQ[1:]
		return w
	}
	return 0xAAAA
}
func (f *fakeDrive) OutW(uint16, uint16) {}
func (f *fakeDrive) InL(uint16) uint32    { return 0 }
func (f *fakeDrive) OutL(uint16, uint32) {}

func TestProbeFindsDriveOnPrimaryBus(t *testing.T) {
	f := newFakeDrive()
	d := New(f)
	d.probe()
	if !d.IsPresent() {
		t.Fatal("expected probe to find a drive reporting DRQ with zero LBA bytes")
	}
}

func TestProbeAbsentWhenControllerFloats(t *testing.T) {
	f := newFakeDrive()
	f.status = 0xFF
	d := New(f)
	d.probe()
	if d.IsPresent() {
		t.Fatal("0xFF status on both buses should mean no controller")
	}
}

func TestReadSectorsFailsWithoutDrive(t *testing.T) {
	d := New(newFakeDrive())
	buf := make([]byte, SectorSize)
	if err := d.ReadSectors(0, 1, buf); err != ErrNotPresent {
		t.Fatalf("got %v, want ErrNotPresent", err)
	}
}

func TestReadSectorsZeroCountTreatedAsOne(t *testing.T) {
	f := newFakeDrive()
	d := New(f)
	d.io, d.ctrl = primaryIO, primaryCtrl
	d.present = true
	buf := make([]byte, SectorSize)
	if err := d.ReadSectors(1, 0, buf); err != nil {
		t.Fatalf("ReadSectors(count=0) failed: %v", err)
	}
	if buf[0] != 0xAA || buf[SectorSize-1] != 0xAA {
		t.Fatalf("buf[0]=%#x buf[last]=%#x, want one full sector of 0xAA filler", buf[0], buf[SectorSize-1])
	}
}
