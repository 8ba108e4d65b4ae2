// SPDX-License-Identifier: Unlicense OR MIT

package kernel

// Port I/O primitives. These are contracts, not ordinary functions:
// the compiler must not reorder accesses across them, and the bodies
// are hand-written assembly issuing the CPU's IN/OUT family.

// IOBus abstracts byte/word/dword port access so drivers can be
// exercised against a fake in tests instead of real hardware.
type IOBus interface {
	InB(port uint16) uint8
	OutB(port uint16, val uint8)
	InW(port uint16) uint16
	OutW(port uint16, val uint16)
	InL(port uint16) uint32
	OutL(port uint16, val uint32)
}

// HW is the live hardware I/O bus, backed directly by the CPU's port
// instructions.
var HW IOBus = hwBus{}

type hwBus struct{}

func (hwBus) InB(port uint16) uint8       { return inb(port) }
func (hwBus) OutB(port uint16, val uint8) { outb(port, val) }
func (hwBus) InW(port uint16) uint16      { return inw(port) }
func (hwBus) OutW(port uint16, val uint16) { outw(port, val) }
func (hwBus) InL(port uint16) uint32      { return inl(port) }
func (hwBus) OutL(port uint16, val uint32) { outl(port, val) }

// IOWait performs a short, unspecified-length delay by writing to an
// unused diagnostic port (0x80), the traditional idiom for pacing
// back-to-back accesses to slow legacy hardware.
//go:nosplit
func IOWait() {
	outb(0x80, 0)
}

// DisableInterrupts and EnableInterrupts wrap cli/sti. Halt wraps hlt,
// parking the CPU until the next interrupt.
//go:nosplit
func DisableInterrupts() { cli() }

//go:nosplit
func EnableInterrupts() { sti() }

//go:nosplit
func Halt() { hlt() }

func inb(port uint16) uint8
func outb(port uint16, val uint8)
func inw(port uint16) uint16
func outw(port uint16, val uint16)
func inl(port uint16) uint32
func outl(port uint16, val uint32)
func cli()
func sti()
func hlt()
