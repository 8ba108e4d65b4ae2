// SPDX-License-Identifier: Unlicense OR MIT

// Package ata is a PIO-mode ATA/IDE disk driver: IDENTIFY, LBA-28
// sector reads and writes, against whichever of the primary or
// secondary legacy controllers actually responds.
package ata

import (
	"errors"

	"minikernel/kernel"
)

const (
	primaryIO    = 0x1F0
	primaryCtrl  = 0x3F6
	secondaryIO  = 0x170
	secondaryCtrl = 0x376

	regData     = 0x00
	regSecCount = 0x02
	regLBALo    = 0x03
	regLBAMid   = 0x04
	regLBAHi    = 0x05
	regDrive    = 0x06
	regStatus   = 0x07
	regCommand  = 0x07

	cmdReadPIO  = 0x20
	cmdWritePIO = 0x30
	cmdIdentify = 0xEC

	srBSY = 0x80
	srDRQ = 0x08
	srERR = 0x01

	driveMaster = 0xE0

	waitTimeout = 100000

	// SectorSize is the size of one ATA sector in bytes.
	SectorSize = 512
)

// ErrTimeout is returned when the drive doesn't assert the expected
// status bit within the iteration budget.
var ErrTimeout = errors.New("ata: drive timeout")

// ErrNotPresent is returned by Read/Write when no drive was found at
// Init time.
var ErrNotPresent = errors.New("ata: no drive present")

// ErrDrive is returned when the status register reports ATA_SR_ERR.
var ErrDrive = errors.New("ata: drive reported an error")

// Drive is a PIO-mode ATA drive bound to one of the two legacy
// controllers. Init builds the package's drive over kernel.HW; tests
// construct their own with New over a fake IOBus.
type Drive struct {
	bus      kernel.IOBus
	io, ctrl uint16
	present  bool
}

var defaultDrive *Drive

// Init probes the primary controller, falling back to the secondary,
// soft-resets whichever responds and attempts IDENTIFY.
func Init() {
	defaultDrive = New(kernel.HW)
	defaultDrive.probe()
}

// Default returns the drive populated by Init. Nil until Init has
// run.
func Default() *Drive {
	return defaultDrive
}

// New constructs a Drive over bus without touching global state.
func New(bus kernel.IOBus) *Drive {
	return &Drive{bus: bus}
}

func (d *Drive) probe() {
	d.io, d.ctrl = primaryIO, primaryCtrl
	if d.bus.InB(d.io+regStatus) == 0xFF {
		d.io, d.ctrl = secondaryIO, secondaryCtrl
		if d.bus.InB(d.io+regStatus) == 0xFF {
			return
		}
	}

	d.softReset()
	d.present = d.identify() == nil
}

// ioWait is the same short delay as kernel.IOWait (a write to port
// 0x80), issued through d.bus so a fake bus absorbs it in tests.
func (d *Drive) ioWait() {
	d.bus.OutB(0x80, 0)
}

func (d *Drive) softReset() {
	d.bus.OutB(d.ctrl, 0x04)
	d.ioWait()
	d.ioWait()
	d.ioWait()
	d.ioWait()
	d.bus.OutB(d.ctrl, 0x00)
	d.ioWait()
}

func (d *Drive) waitReady() error {
	for timeout := waitTimeout; timeout > 0; timeout-- {
		if d.bus.InB(d.io+regStatus)&srBSY == 0 {
			return nil
		}
	}
	return ErrTimeout
}

func (d *Drive) waitDRQ() error {
	for timeout := waitTimeout; timeout > 0; timeout-- {
		status := d.bus.InB(d.io + regStatus)
		if status&srERR != 0 {
			return ErrDrive
		}
		if status&srDRQ != 0 {
			return nil
		}
	}
	return ErrTimeout
}

// identify sends IDENTIFY and reads the 256-word response, discarding
// its contents: this driver only cares whether the device answered as
// a plain ATA drive, not about its model/capacity fields.
func (d *Drive) identify() error {
	d.bus.OutB(d.io+regDrive, driveMaster)
	d.ioWait()
	d.bus.OutB(d.io+regSecCount, 0)
	d.bus.OutB(d.io+regLBALo, 0)
	d.bus.OutB(d.io+regLBAMid, 0)
	d.bus.OutB(d.io+regLBAHi, 0)

	d.bus.OutB(d.io+regCommand, cmdIdentify)
	d.ioWait()

	if d.bus.InB(d.io+regStatus) == 0 {
		return ErrNotPresent
	}
	if err := d.waitReady(); err != nil {
		return err
	}
	if d.bus.InB(d.io+regLBAMid) != 0 || d.bus.InB(d.io+regLBAHi) != 0 {
		return ErrNotPresent // ATAPI or some other non-ATA device.
	}
	if err := d.waitDRQ(); err != nil {
		return err
	}
	for i := 0; i < 256; i++ {
		d.bus.InW(d.io + regData)
	}
	return nil
}

// IsPresent reports whether Init (or probe) found a usable drive.
func (d *Drive) IsPresent() bool {
	return d.present
}

func (d *Drive) setupTransfer(lba uint32, count uint8) {
	d.bus.OutB(d.io+regDrive, driveMaster|0x40|uint8((lba>>24)&0x0F))
	d.ioWait()
	d.bus.OutB(d.io+regSecCount, count)
	d.bus.OutB(d.io+regLBALo, uint8(lba))
	d.bus.OutB(d.io+regLBAMid, uint8(lba>>8))
	d.bus.OutB(d.io+regLBAHi, uint8(lba>>16))
}

// ReadSectors reads count sectors (count==0 is treated as 1, matching
// the drive's own "0 means 256" convention being sidestepped rather
// than relied on) starting at lba into buf, which must be at least
// count*SectorSize bytes.
func (d *Drive) ReadSectors(lba uint32, count uint8, buf []byte) error {
	if !d.present {
		return ErrNotPresent
	}
	if count == 0 {
		count = 1
	}
	if err := d.waitReady(); err != nil {
		return err
	}
	d.setupTransfer(lba, count)
	d.bus.OutB(d.io+regCommand, cmdReadPIO)

	for sector := 0; sector < int(count); sector++ {
		if err := d.waitDRQ(); err != nil {
			return err
		}
		for i := 0; i < 256; i++ {
			w := d.bus.InW(d.io + regData)
			off := sector*SectorSize + i*2
			buf[off] = uint8(w)
			buf[off+1] = uint8(w >> 8)
		}
	}
	return nil
}

// WriteSectors writes count sectors (0 treated as 1) from buf,
// starting at lba.
func (d *Drive) WriteSectors(lba uint32, count uint8, buf []byte) error {
	if !d.present {
		return ErrNotPresent
	}
	if count == 0 {
		count = 1
	}
	if err := d.waitReady(); err != nil {
		return err
	}
	d.setupTransfer(lba, count)
	d.bus.OutB(d.io+regCommand, cmdWritePIO)

	for sector := 0; sector < int(count); sector++ {
		if err := d.waitDRQ(); err != nil {
			return err
		}
		for i := 0; i < 256; i++ {
			off := sector*SectorSize + i*2
			w := uint16(buf[off]) | uint16(buf[off+1])<<8
			d.bus.OutW(d.io+regData, w)
		}
		d.ioWait()
	}
	return d.waitReady()
}
