// SPDX-License-Identifier: Unlicense OR MIT

package kernel

import (
	"encoding/binary"
	"unsafe"
)

// Types and code for setting up the processor's segment descriptors
// and task state structure. Segmentation is largely disabled in
// 64-bit mode, but a GDT and a TSS are nevertheless required for the
// far jump into long mode and for a dedicated fault stack.

// segmentDescriptor represents a 64-bit segment descriptor. Uses
// uint64 to force 8-byte alignment.
type segmentDescriptor uint64

// tss is the 64-bit task state structure. Hardware task switching is
// unavailable in long mode, but the TSS is still consulted for the
// interrupt stack table.
type tss [25]uint32

// Global descriptor and interrupt descriptor tables, and the task
// state structure. Built once at boot and never touched again.
var (
	globalGDT [segmentEnd]segmentDescriptor
	globalIDT idt
	globalTSS tss
)

// Interrupt stack, used for every gate via the IST mechanism so a
// fault taken with a corrupt kernel stack still has somewhere to run.
var istack stack

const (
	// Mandatory null selector.
	_ = iota
	// Ring 0 code (64-bit).
	segmentKernelCode
	// Ring 0 data.
	segmentKernelData
	// Ring 3 code. Present so a GDT probe sees a complete table;
	// nothing in this kernel ever switches to ring 3.
	segmentUserCode
	// Ring 3 data.
	segmentUserData
	// TSS, low half.
	segmentTSS
	// TSS, high address half.
	segmentTSSHigh
	// End sentinel, used only to size globalGDT.
	segmentEnd
)

// There are 256 interrupt vectors.
type idt [256]idtDescriptor

// idtDescriptor is a 64-bit interrupt gate descriptor. Uses [2]uint64
// to force 8-byte alignment.
type idtDescriptor [2]uint64

type segmentFlags uint32
type privLevel uint32
type intVector uint8

const (
	ring0 privLevel = 0
	ring3 privLevel = 3
)

const (
	segFlagAccess  segmentFlags = 1 << 8
	segFlagWrite                = 1 << 9
	segFlagCode                 = 1 << 11
	segFlagSystem               = 1 << 12
	segFlagPresent              = 1 << 15
	segFlagLong                 = 1 << 21
)

// istGeneric is the one interrupt stack used by every gate.
const istGeneric = 1

// loadGDT builds the GDT and TSS and activates them. It must run
// after the long-mode transition, with paging already enabled.
//go:nosplit
func loadGDT() {
	globalTSS.setISP(istGeneric, uint64(istack.top()))
	tssAddr := uintptr(unsafe.Pointer(&globalTSS))
	tssLimit := uint32(unsafe.Sizeof(globalTSS) - 1)
	globalTSS.setIOPerm(uint16(tssLimit + 1))

	globalGDT[segmentKernelCode] = newSegmentDescriptor(0, 0, segFlagSystem|segFlagCode|segFlagLong, ring0)
	globalGDT[segmentKernelData] = newSegmentDescriptor(0, 0, segFlagSystem|segFlagWrite, ring0)
	globalGDT[segmentUserCode] = newSegmentDescriptor(0, 0, segFlagSystem|segFlagCode|segFlagLong, ring3)
	globalGDT[segmentUserData] = newSegmentDescriptor(0, 0, segFlagSystem|segFlagWrite, ring3)
	// The TSS descriptor spans two GDT slots: the high 32 address
	// bits live in the following entry.
	globalGDT[segmentTSS] = newSegmentDescriptor(uint32(tssAddr), tssLimit, segFlagAccess|segFlagCode, ring0)
	globalGDT[segmentTSSHigh] = segmentDescriptor(tssAddr >> 32)

	var gdtr [10]uint8
	addr := uintptr(unsafe.Pointer(&globalGDT))
	if addr%8 != 0 {
		fatal("loadGDT: bad GDT alignment")
	}
	limit := unsafe.Sizeof(globalGDT) - 1
	binary.LittleEndian.PutUint64(gdtr[2:], uint64(addr))
	binary.LittleEndian.PutUint16(gdtr[:2], uint16(limit))
	lgdt(uint64(uintptr(unsafe.Pointer(&gdtr))))

	code0 := uint16(segmentKernelCode<<3 | ring0)
	data0 := uint16(segmentKernelData<<3 | ring0)
	tss0 := uint16(segmentTSS<<3 | ring0)
	setCSReg(code0)
	setSSReg(data0)
	setDSReg(data0)
	setESReg(data0)
	setFSReg(data0)
	setGSReg(data0)
	ltr(tss0)
}

//go:nosplit
func loadIDT() {
	var idtr [10]uint8
	addr := uintptr(unsafe.Pointer(&globalIDT))
	if addr%8 != 0 {
		fatal("loadIDT: bad IDT alignment")
	}
	limit := unsafe.Sizeof(globalIDT) - 1
	binary.LittleEndian.PutUint64(idtr[2:], uint64(addr))
	binary.LittleEndian.PutUint16(idtr[:2], uint16(limit))
	lidt(uint64(uintptr(unsafe.Pointer(&idtr))))
}

// install points interrupt to the entry assembly stub trampoline.
//go:nosplit
func (t *idt) install(interrupt intVector, level privLevel, ist uint8, trampoline func()) {
	sel := uint32(segmentKernelCode<<3 | ring0)
	pc := funcPC(trampoline)
	flags := uint32(segFlagPresent)
	// Type 0xE is a 64-bit interrupt gate: the CPU clears the interrupt
	// flag on entry, so handlers run with interrupts disabled.
	const interruptGate = 0xe
	w0 := sel<<16 | uint32(pc&0xffff)
	w1 := uint32(pc&0xffff0000) | flags | uint32(level)<<13 | interruptGate<<8 | uint32(ist)
	w2 := uint32(pc >> 32)
	t[interrupt][0] = uint64(w1)<<32 | uint64(w0)
	t[interrupt][1] = uint64(w2)
}

//go:nosplit
func (t *tss) setISP(idx int, rsp uint64) {
	if idx < 1 || idx > 7 {
		fatal("setISP: stack index out of range")
	}
	t[7+idx*2] = uint32(rsp)
	t[7+idx*2+1] = uint32(rsp >> 32)
}

//go:nosplit
func (t *tss) setIOPerm(addr uint16) {
	t[24] = uint32(addr) << 16
}

//go:nosplit
func newSegmentDescriptor(base uint32, limit uint32, flags segmentFlags, level privLevel) segmentDescriptor {
	if limit > 0xfffff {
		fatal("newSegmentDescriptor: limit too high")
	}
	flags |= segFlagPresent
	w0 := base<<16 | limit&0xffff
	w1 := base&0xff000000 | uint32(limit&0xf0000) | uint32(flags) | uint32(level)<<13 | (base>>16)&0xff
	return segmentDescriptor(uint64(w1)<<32 | uint64(w0))
}

//go:nosplit
func funcPC(f func()) uintptr {
	return **(**uintptr)(unsafe.Pointer(&f))
}

func lgdt(addr uint64)
func lidt(addr uint64)
func setCSReg(seg uint16)
func setCSRegAfter()
func setDSReg(seg uint16)
func setSSReg(seg uint16)
func setESReg(seg uint16)
func setFSReg(seg uint16)
func setGSReg(seg uint16)
func ltr(seg uint16)
