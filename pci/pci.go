// SPDX-License-Identifier: Unlicense OR MIT

// Package pci enumerates devices on the PCI bus through legacy
// configuration-space port I/O (0xCF8/0xCFC) and keeps the resulting
// device list around for lookup by vendor/device or by class.
package pci

import "minikernel/kernel"

const (
	configAddress = 0xCF8
	configData    = 0xCFC

	maxDevices = 32
)

// Device is everything pci.c's pci_device_t captures about one
// function: identity, class, its BARs and its assigned IRQ line.
type Device struct {
	Bus, Device, Function uint8

	VendorID, DeviceID uint16

	ClassCode, Subclass, ProgIF, Revision uint8

	BAR [6]uint32

	IRQLine uint8
}

// Bus enumerates and caches PCI devices. Init builds the package's bus
// over kernel.HW; tests construct one with New over a fake IOBus.
type Bus struct {
	io kernel.IOBus

	devices [maxDevices]Device
	count   int
}

var defaultBus *Bus

// Init enumerates the real PCI bus and stores the result as the
// package default, mirroring pci_init.
func Init() {
	defaultBus = New(kernel.HW)
	defaultBus.Enumerate()
}

// Default returns the bus populated by Init. Nil until Init has run.
func Default() *Bus {
	return defaultBus
}

// New constructs a Bus over io without touching global state.
func New(io kernel.IOBus) *Bus {
	return &Bus{io: io}
}

func address(bus, device, function, offset uint8) uint32 {
	return 1<<31 |
		uint32(bus)<<16 |
		uint32(device)<<11 |
		uint32(function)<<8 |
		uint32(offset&0xFC)
}

func (b *Bus) read32(bus, device, function, offset uint8) uint32 {
	b.io.OutL(configAddress, address(bus, device, function, offset))
	return b.io.InL(configData)
}

func (b *Bus) write32(bus, device, function, offset uint8, val uint32) {
	b.io.OutL(configAddress, address(bus, device, function, offset))
	b.io.OutL(configData, val)
}

func (b *Bus) read16(bus, device, function, offset uint8) uint16 {
	v := b.read32(bus, device, function, offset)
	return uint16(v >> ((offset & 2) * 8))
}

func (b *Bus) read8(bus, device, function, offset uint8) uint8 {
	v := b.read32(bus, device, function, offset)
	return uint8(v >> ((offset & 3) * 8))
}

func (b *Bus) exists(bus, device, function uint8) bool {
	return b.read16(bus, device, function, 0) != 0xFFFF
}

func (b *Bus) readDevice(bus, device, function uint8) Device {
	d := Device{Bus: bus, Device: device, Function: function}
	d.VendorID = b.read16(bus, device, function, 0)
	d.DeviceID = b.read16(bus, device, function, 2)

	classInfo := b.read32(bus, device, function, 8)
	d.Revision = uint8(classInfo)
	d.ProgIF = uint8(classInfo >> 8)
	d.Subclass = uint8(classInfo >> 16)
	d.ClassCode = uint8(classInfo >> 24)

	for i := 0; i < 6; i++ {
		d.BAR[i] = b.read32(bus, device, function, 0x10+uint8(i)*4)
	}
	d.IRQLine = b.read8(bus, device, function, 0x3C)
	return d
}

// Enumerate walks every bus/device/function slot, recording every
// function that responds, up to maxDevices.
func (b *Bus) Enumerate() {
	b.count = 0
	for bus := 0; bus < 256; bus++ {
		for device := uint8(0); device < 32; device++ {
			for function := uint8(0); function < 8; function++ {
				if !b.exists(uint8(bus), device, function) {
					if function == 0 {
						break
					}
					continue
				}
				if b.count < maxDevices {
					b.devices[b.count] = b.readDevice(uint8(bus), device, function)
					b.count++
				}
				if function == 0 {
					headerType := b.read8(uint8(bus), device, 0, 0x0E)
					if headerType&0x80 == 0 {
						break // not multi-function.
					}
				}
			}
		}
	}
}

// FindDevice returns the first enumerated device matching a
// vendor/device ID pair.
func (b *Bus) FindDevice(vendorID, deviceID uint16) (Device, bool) {
	for i := 0; i < b.count; i++ {
		if b.devices[i].VendorID == vendorID && b.devices[i].DeviceID == deviceID {
			return b.devices[i], true
		}
	}
	return Device{}, false
}

// FindClass returns the first enumerated device matching a
// class/subclass pair.
func (b *Bus) FindClass(classCode, subclass uint8) (Device, bool) {
	for i := 0; i < b.count; i++ {
		if b.devices[i].ClassCode == classCode && b.devices[i].Subclass == subclass {
			return b.devices[i], true
		}
	}
	return Device{}, false
}

// EnableBusMaster sets the bus-master-enable bit in d's command
// register.
func (b *Bus) EnableBusMaster(d Device) {
	command := b.read32(d.Bus, d.Device, d.Function, 0x04)
	command |= 1 << 2
	b.write32(d.Bus, d.Device, d.Function, 0x04, command)
}

// Count reports how many devices the last Enumerate found.
func (b *Bus) Count() int {
	return b.count
}
