// SPDX-License-Identifier: Unlicense OR MIT

package kernel

import "unsafe"

// kernError is a string-backed error usable from //go:nosplit code,
// where the ordinary error-wrapping machinery the compiler generates
// for interface conversions is not available.
type kernError string

//go:nosplit
func (k kernError) Error() string { return string(k) }

// stack is a fixed-size region used as a CPU stack. Its size must be
// a multiple of the page size; it is never grown.
type stack [8 * pageSize]byte

const pageSize = 1 << 12

//go:nosplit
func (s *stack) top() uintptr {
	t := uintptr(unsafe.Pointer(&s[0])) + unsafe.Sizeof(*s)
	return t &^ 0xf // 16-byte align.
}

// vgaDiag is the raw text-mode buffer used only for the earliest
// boot-time diagnostics, before the console collaborator is brought
// up. It writes directly to physical address 0xB8000 and never
// scrolls; it exists to satisfy the one contract the core itself
// needs from the console (a single diagnostic character on a fatal
// capability failure) without depending on the collaborator package.
var vgaDiag = (*[80 * 25]uint16)(unsafe.Pointer(uintptr(0xB8000)))

const vgaDiagAttr = 0x4f // white on red, for fatal diagnostics.

//go:nosplit
func diagPutc(pos int, c byte) {
	vgaDiag[pos] = uint16(vgaDiagAttr)<<8 | uint16(c)
}

//go:nosplit
func diagString(s string) {
	for i := 0; i < len(s) && i < len(vgaDiag); i++ {
		diagPutc(i, s[i])
	}
}

// fatal reports msg on the raw diagnostic surface and parks the CPU
// forever with interrupts disabled. It never returns.
//go:nosplit
func fatal(msg string) {
	diagString(msg)
	cli()
	for {
		hlt()
	}
}

//go:nosplit
func fatalError(err error) {
	switch err := err.(type) {
	case kernError:
		fatal(err.Error())
	default:
		fatal("unsupported error")
	}
}

// cpuidMaxExt and the cpuid primitive are for use after the 64-bit
// entry point has already run; the initial
// capability gate (spec step 1–2) happens in the entry assembly,
// before any Go code — including this package — can run.

//go:nosplit
func cpuidMaxExt() uint32 {
	eax, _, _, _ := cpuid(0x80000000, 0)
	return eax
}

func cpuid(function, sub uint32) (eax, ebx, ecx, edx uint32)
func rdmsr(reg uint32) uint64
func wrmsr(reg uint32, val uint64)
func setCR0Reg(flags uint64)
func setCR3Reg(addr uintptr)
func setCR4Reg(flags uint64)
