// SPDX-License-Identifier: Unlicense OR MIT

package kernel

// Legacy 8259 PIC programming and the interrupt dispatch table. This
// kernel targets real hardware interrupt controllers, not the APIC:
// it remaps both PICs off the BIOS's real-mode vectors and onto
// 0x20-0x2f, the conventional choice once the IDT's first 32 entries
// are claimed by CPU exceptions.
const (
	pic1Command = 0x20
	pic1Data    = 0x21
	pic2Command = 0xA0
	pic2Data    = 0xA1

	picEOI = 0x20

	icw1Init = 0x11
	icw4_8086 = 0x01

	irqBase = 32
)

// handlers holds one optional callback per vector. A nil entry for a
// hardware IRQ means the interrupt is acknowledged and dropped; a nil
// entry for a CPU exception means the core halts.
var handlers [256]func()

// Register installs callback as the handler for vector, replacing
// whatever was there. Drivers call this during their own setup, after
// InitInterrupts has run.
func Register(vector intVector, callback func()) {
	handlers[vector] = callback
}

// InitInterrupts programs both PICs, fills the IDT with the entry
// trampolines for all 32 exceptions and 16 IRQ lines, loads it, and
// enables interrupts. It must run after loadGDT, since every gate
// points at segmentKernelCode.
func InitInterrupts() {
	for i := range handlers {
		handlers[i] = nil
	}

	globalIDT.install(0, ring0, istGeneric, isr0)
	globalIDT.install(1, ring0, istGeneric, isr1)
	globalIDT.install(2, ring0, istGeneric, isr2)
	globalIDT.install(3, ring0, istGeneric, isr3)
	globalIDT.install(4, ring0, istGeneric, isr4)
	globalIDT.install(5, ring0, istGeneric, isr5)
	globalIDT.install(6, ring0, istGeneric, isr6)
	globalIDT.install(7, ring0, istGeneric, isr7)
	globalIDT.install(8, ring0, istGeneric, isr8)
	globalIDT.install(9, ring0, istGeneric, isr9)
	globalIDT.install(10, ring0, istGeneric, isr10)
	globalIDT.install(11, ring0, istGeneric, isr11)
	globalIDT.install(12, ring0, istGeneric, isr12)
	globalIDT.install(13, ring0, istGeneric, isr13)
	globalIDT.install(14, ring0, istGeneric, isr14)
	globalIDT.install(15, ring0, istGeneric, isr15)
	globalIDT.install(16, ring0, istGeneric, isr16)
	globalIDT.install(17, ring0, istGeneric, isr17)
	globalIDT.install(18, ring0, istGeneric, isr18)
	globalIDT.install(19, ring0, istGeneric, isr19)
	globalIDT.install(20, ring0, istGeneric, isr20)
	globalIDT.install(21, ring0, istGeneric, isr21)
	globalIDT.install(22, ring0, istGeneric, isr22)
	globalIDT.install(23, ring0, istGeneric, isr23)
	globalIDT.install(24, ring0, istGeneric, isr24)
	globalIDT.install(25, ring0, istGeneric, isr25)
	globalIDT.install(26, ring0, istGeneric, isr26)
	globalIDT.install(27, ring0, istGeneric, isr27)
	globalIDT.install(28, ring0, istGeneric, isr28)
	globalIDT.install(29, ring0, istGeneric, isr29)
	globalIDT.install(30, ring0, istGeneric, isr30)
	globalIDT.install(31, ring0, istGeneric, isr31)

	globalIDT.install(irqBase+0, ring0, istGeneric, irq0)
	globalIDT.install(irqBase+1, ring0, istGeneric, irq1)
	globalIDT.install(irqBase+2, ring0, istGeneric, irq2)
	globalIDT.install(irqBase+3, ring0, istGeneric, irq3)
	globalIDT.install(irqBase+4, ring0, istGeneric, irq4)
	globalIDT.install(irqBase+5, ring0, istGeneric, irq5)
	globalIDT.install(irqBase+6, ring0, istGeneric, irq6)
	globalIDT.install(irqBase+7, ring0, istGeneric, irq7)
	globalIDT.install(irqBase+8, ring0, istGeneric, irq8)
	globalIDT.install(irqBase+9, ring0, istGeneric, irq9)
	globalIDT.install(irqBase+10, ring0, istGeneric, irq10)
	globalIDT.install(irqBase+11, ring0, istGeneric, irq11)
	globalIDT.install(irqBase+12, ring0, istGeneric, irq12)
	globalIDT.install(irqBase+13, ring0, istGeneric, irq13)
	globalIDT.install(irqBase+14, ring0, istGeneric, irq14)
	globalIDT.install(irqBase+15, ring0, istGeneric, irq15)

	initPIC()
	loadIDT()
	sti()
}

// initPIC remaps both 8259s onto vectors 0x20-0x2f in cascade, 8086
// mode, and masks everything except the keyboard line. IRQ0 (the PIT)
// is left masked: this kernel has no timer driver, and an unmasked,
// unhandled periodic tick would be silently dropped by isrDispatch
// anyway, but there's no reason to take the trap at all.
func initPIC() {
	outb(pic1Command, icw1Init)
	IOWait()
	outb(pic2Command, icw1Init)
	IOWait()
	outb(pic1Data, irqBase)
	IOWait()
	outb(pic2Data, irqBase+8)
	IOWait()
	outb(pic1Data, 0x04) // PIC1 has a slave on IRQ2.
	IOWait()
	outb(pic2Data, 0x02) // PIC2's cascade identity is IRQ2.
	IOWait()
	outb(pic1Data, icw4_8086)
	IOWait()
	outb(pic2Data, icw4_8086)
	IOWait()

	outb(pic1Data, 0xFD) // unmask IRQ1 (keyboard) only.
	outb(pic2Data, 0xFF) // mask everything on the slave.
}

// sendEOI acknowledges irq (0-15) to whichever PIC owns it. The slave
// must be acknowledged before the master when irq is on PIC2.
//go:nosplit
func sendEOI(irq uint8) {
	if irq >= 8 {
		outb(pic2Command, picEOI)
	}
	outb(pic1Command, picEOI)
}

// isrDispatch is reached from every entry stub with interrupts
// disabled. A registered handler always runs; an unhandled CPU
// exception halts with its vector on screen, since there is nowhere
// sensible to return to. An unhandled hardware IRQ is just
// acknowledged and dropped.
//go:nosplit
func isrDispatch(vector, errorCode uint64) {
	if h := handlers[vector]; h != nil {
		h()
	} else if vector < 32 {
		cli()
		diagString("EXCEPTION:   ")
		diagPutc(10, '0'+byte(vector/10))
		diagPutc(11, '0'+byte(vector%10))
		for {
			hlt()
		}
	}
	if vector >= 32 && vector < 32+16 {
		sendEOI(uint8(vector - 32))
	}
}

func commonStub()

func isr0()
func isr1()
func isr2()
func isr3()
func isr4()
func isr5()
func isr6()
func isr7()
func isr8()
func isr9()
func isr10()
func isr11()
func isr12()
func isr13()
func isr14()
func isr15()
func isr16()
func isr17()
func isr18()
func isr19()
func isr20()
func isr21()
func isr22()
func isr23()
func isr24()
func isr25()
func isr26()
func isr27()
func isr28()
func isr29()
func isr30()
func isr31()

func irq0()
func irq1()
func irq2()
func irq3()
func irq4()
func irq5()
func irq6()
func irq7()
func irq8()
func irq9()
func irq10()
func irq11()
func irq12()
func irq13()
func irq14()
func irq15()
