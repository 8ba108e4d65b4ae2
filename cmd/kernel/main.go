// SPDX-License-Identifier: Unlicense OR MIT

// Command kernel is the entry package the boot stub jumps into once
// the CPU is in 64-bit mode with an identity-mapped address space.
package main

import (
	"minikernel/ata"
	"minikernel/kernel"
	"minikernel/keyboard"
	"minikernel/klog"
	"minikernel/net"
	"minikernel/pci"
	"minikernel/shell"
	"minikernel/virtio"
)

// main is the only Go symbol the boot stub calls. It exists so the
// compiler has a reason to keep kernel.Boot reachable; the stub knows
// this function's address through the linker, not through any Go
// calling convention beyond "plain call, no arguments expected back".
//
// Driver and collaborator bring-up lives here, one call per
// subsystem, in the same order the original kernel_main follows:
// segments/interrupts/memory (kernel.Boot), then keyboard, then PCI,
// ATA, networking and finally the shell. kernel itself can't import
// any of these without a cycle, since they depend on kernel.IOBus and
// kernel.Register.
//
// main is not expected to return: shell.Run loops forever. If
// somehow it did, the stub parks the CPU with hlt.
func main() {
	kernel.Boot()
	log := kernel.Log()

	keyboard.Init(kernel.Console())
	log.Info("keyboard ready")

	pci.Init()
	log.Info("pci bus enumerated", klog.F("devices", pci.Default().Count()))

	ata.Init()
	if drive := ata.Default(); drive != nil && drive.IsPresent() {
		log.Info("ata drive ready")
	} else {
		log.Warn("no ata drive present")
	}

	nic, err := virtio.New(kernel.HW, pci.Default())
	if err != nil {
		log.Warn("no network device", klog.F("err", err))
	}
	net.Init(nic)
	if net.Ready() {
		mac := net.MAC()
		log.Info("network ready", klog.F("mac", mac))
	}

	log.Info("starting shell")
	shell.Run(kernel.Console(), keyboard.Default())
}
