// SPDX-License-Identifier: Unlicense OR MIT

package kernel

import (
	"minikernel/console"
	"minikernel/heap"
	"minikernel/klog"
	"minikernel/pfa"
)

const (
	heapStart = 0x1000000 // just above pfa's 2MiB-16MiB window.
	heapSize  = 4 * 1024 * 1024
)

// con is the console every subsystem above the kernel package logs
// and prints through, once Boot has brought it up.
var con *console.Console

// log is the leveled logger every subsystem above the kernel package
// reports bring-up and errors through, once Boot has brought it up.
var log *klog.Logger

// Boot runs the bring-up sequence: segments and interrupts, then the
// console and its logger, then the kernel heap (the physical frame
// allocator's bitmap needs no init call; Boot only logs its stats). It is
// called once, from cmd/kernel, after the entry stub has already put
// the CPU in long mode with the low 64MiB identity-mapped.
//
// Driver and collaborator bring-up (keyboard, PCI, ATA, the network
// stack, the shell) lives above this package and is sequenced by the
// caller once these foundations are in place.
func Boot() {
	loadGDT()
	InitInterrupts()

	con = console.New(HW)
	con.Init()
	con.Clear()

	log = klog.New(con)

	heap.Init(heapStart, heapSize)

	total, free := pfa.Stats()
	log.Info("minikernel booting",
		klog.F("frames_free", free), klog.F("frames_total", total),
		klog.F("heap_start", heapStart))
}

// Console returns the console brought up during Boot. It is nil
// until Boot has run.
func Console() *console.Console {
	return con
}

// Log returns the logger brought up during Boot. It is nil until
// Boot has run.
func Log() *klog.Logger {
	return log
}
