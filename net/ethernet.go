// SPDX-License-Identifier: Unlicense OR MIT

// Package net is the layered software network stack above the
// virtio-net driver: Ethernet framing, ARP resolution, and IP/ICMP
// enough to answer and originate pings. It speaks only to a
// *virtio.NIC, never to raw ports.
package net

import (
	"encoding/binary"
	"errors"

	"minikernel/virtio"
)

const (
	mtu       = 1500
	frameMax  = 1518
	ethHeader = 14

	ethertypeIPv4 = 0x0800
	ethertypeARP  = 0x0806
)

var broadcastMAC = [6]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// ErrNotReady is returned by any operation attempted before Init has
// bound a NIC.
var ErrNotReady = errors.New("net: network not initialized")

var (
	errFrameTooLarge = errors.New("net: payload exceeds MTU")
	errARPPending    = errors.New("net: destination MAC not yet resolved, ARP request sent")
)

var (
	nic    *virtio.NIC
	ourMAC [6]byte
	ourIP  = binary.LittleEndian.Uint32([]byte{10, 0, 2, 15}) // QEMU user-net default.
)

// Init binds the stack to dev and brings up the layers above it
// (ARP). It is a no-op to call with a nil dev, matching the original
// "no network device" early-return rather than panicking.
func Init(dev *virtio.NIC) {
	if dev == nil {
		return
	}
	nic = dev
	ourMAC = dev.MAC()
	resetARPCache()
}

// Ready reports whether Init bound a usable device.
func Ready() bool {
	return nic != nil
}

// MAC returns our Ethernet address, or the zero address if the stack
// isn't initialized.
func MAC() [6]byte {
	return ourMAC
}

// IP returns our configured IPv4 address, little-endian as stored.
func IP() uint32 {
	return ourIP
}

// SetIP changes our configured IPv4 address.
func SetIP(ip uint32) {
	ourIP = ip
}

func sendFrame(dest [6]byte, ethertype uint16, payload []byte) error {
	if !Ready() {
		return ErrNotReady
	}
	if len(payload) > mtu {
		return errFrameTooLarge
	}
	frame := make([]byte, ethHeader+len(payload))
	copy(frame[0:6], dest[:])
	copy(frame[6:12], ourMAC[:])
	binary.BigEndian.PutUint16(frame[12:14], ethertype)
	copy(frame[ethHeader:], payload)
	return nic.Send(frame)
}

func sendBroadcast(ethertype uint16, payload []byte) error {
	return sendFrame(broadcastMAC, ethertype, payload)
}

// poll receives and dispatches at most one queued frame, matching the
// original's call-me-periodically design; there's no event loop or
// interrupt-driven RX path in this stack, so callers (the shell's
// idle loop, or anything else) must call this to make progress.
func poll() {
	if !Ready() {
		return
	}
	frame := make([]byte, frameMax)
	n := nic.Receive(frame)
	if n <= ethHeader {
		return
	}
	frame = frame[:n]
	dest := [6]byte{frame[0], frame[1], frame[2], frame[3], frame[4], frame[5]}
	if !isForUs(dest) {
		return
	}
	ethertype := binary.BigEndian.Uint16(frame[12:14])
	payload := frame[ethHeader:]

	switch ethertype {
	case ethertypeARP:
		processARP(payload)
	case ethertypeIPv4:
		processIP(payload)
	}
}

// Poll processes one queued inbound frame, if any. Safe to call
// whether or not the network is ready.
func Poll() {
	poll()
}

func isForUs(mac [6]byte) bool {
	return mac == ourMAC || mac == broadcastMAC
}
