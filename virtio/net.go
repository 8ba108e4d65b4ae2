// SPDX-License-Identifier: Unlicense OR MIT

// Package virtio drives a legacy (pre-1.0, "transitional") virtio-net
// device: port-I/O configuration at a fixed set of offsets, rather
// than the modern capability-discovered MMIO layout. QEMU's default
// virtio-net-pci still answers to this interface, and it needs none
// of the capability walk a 1.0 device requires.
package virtio

import (
	"encoding/binary"
	"errors"
	"unsafe"

	"minikernel/heap"
	"minikernel/kernel"
	"minikernel/pci"
)

const (
	vendorID = 0x1AF4
	deviceID = 0x1000

	cfgHostFeatures  = 0x00
	cfgGuestFeatures = 0x04
	cfgQueuePFN      = 0x08
	cfgQueueSize     = 0x0C
	cfgQueueSelect   = 0x0E
	cfgQueueNotify   = 0x10
	cfgStatus        = 0x12
	cfgISR           = 0x13
	cfgDeviceConfig  = 0x14

	statusAcknowledge = 0x01
	statusDriver      = 0x02
	statusDriverOK    = 0x04
	statusFeaturesOK  = 0x08
	statusFailed      = 0x80

	descFNext  = 0x01
	descFWrite = 0x02

	pageSize = 4096

	netHdrSize = 10 // virtio_net_hdr_t: flags,gso_type,hdr_len,gso_size,csum_start,csum_offset

	// BufferSize is the size of each ring buffer, header included.
	BufferSize = 2048
)

// descriptor mirrors the wire layout a legacy device expects; field
// order and widths matter here. avail and used are addressed as raw
// byte windows rather than typed structs, since their ring length is
// only known at setup time (the negotiated queue size).
type descriptor struct {
	addr  uint64
	len   uint32
	flags uint16
	next  uint16
}

func descriptorsAt(base uintptr, n int) []descriptor {
	return unsafe.Slice((*descriptor)(unsafe.Pointer(base)), n)
}

func bytesAt(base uintptr, n uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(base)), int(n))
}

func byteSliceAt(base uintptr, n int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(base)), n)
}

type queue struct {
	desc []descriptor
	// avail and used are raw byte windows over the same memory the
	// device was told about via cfgQueuePFN; their ring lengths are
	// sized to this queue's negotiated size, not a compile-time
	// constant, so they're addressed by offset rather than struct.
	avail, used []byte
	size        int
	base        uintptr
	lastUsedIdx uint16
	buffers     []uintptr
}

// NIC is a bound legacy virtio-net device: one RX queue, one TX
// queue, a MAC address read out of its device-specific config area.
type NIC struct {
	bus  kernel.IOBus
	io   uint16
	mac  [6]byte
	rx   queue
	tx   queue
	txAt int // round-robin index into tx.buffers, reused without waiting on completion.
}

var ErrNotFound = errors.New("virtio: no virtio-net device present")

var defaultNIC *NIC

// Init locates a virtio-net device on bus and brings it up, storing
// the result as the package default.
func Init(pciBus *pci.Bus) error {
	nic, err := New(kernel.HW, pciBus)
	if err != nil {
		return err
	}
	defaultNIC = nic
	return nil
}

// Default returns the NIC brought up by Init, or nil if Init hasn't
// run or found nothing.
func Default() *NIC {
	return defaultNIC
}

// New finds and initializes a legacy virtio-net device on pciBus,
// following the status negotiation sequence the virtio spec
// requires: reset, ACKNOWLEDGE, ACKNOWLEDGE|DRIVER, feature
// negotiation, per-queue setup, DRIVER_OK. bus is the port-I/O
// surface the device itself is driven through, separate from pciBus
// (which only speaks config-space I/O) so tests can fake both
// independently.
func New(bus kernel.IOBus, pciBus *pci.Bus) (*NIC, error) {
	dev, ok := pciBus.FindDevice(vendorID, deviceID)
	if !ok {
		return nil, ErrNotFound
	}
	pciBus.EnableBusMaster(dev)

	n := &NIC{bus: bus, io: uint16(dev.BAR[0] &^ 0x3)}

	n.bus.OutB(n.io+cfgStatus, 0)
	n.bus.OutB(n.io+cfgStatus, statusAcknowledge)
	n.bus.OutB(n.io+cfgStatus, statusAcknowledge|statusDriver)

	n.bus.InL(n.io + cfgHostFeatures) // no optional feature is negotiated.
	n.bus.OutL(n.io+cfgGuestFeatures, 0)

	n.setupQueue(0, &n.rx)
	n.setupQueue(1, &n.tx)

	for i := range n.rx.buffers {
		n.addRXBuffer(i)
	}
	n.bus.OutW(n.io+cfgQueueNotify, 0)

	for i := 0; i < 6; i++ {
		n.mac[i] = n.bus.InB(n.io + cfgDeviceConfig + uint16(i))
	}

	n.bus.OutB(n.io+cfgStatus, statusAcknowledge|statusDriver|statusDriverOK)
	return n, nil
}

func alignUp(n, align uintptr) uintptr {
	return (n + align - 1) &^ (align - 1)
}

func (n *NIC) setupQueue(index uint16, q *queue) {
	n.bus.OutW(n.io+cfgQueueSelect, index)
	size := int(n.bus.InW(n.io + cfgQueueSize))
	if size == 0 || size > 256 {
		size = 16
	}
	q.size = size

	descSize := uintptr(size) * 16 // sizeof(descriptor): 8+4+2+2
	availSize := 2*3 + 2*uintptr(size)
	usedSize := 2*3 + 8*uintptr(size)

	total := alignUp(descSize+availSize, pageSize) + alignUp(usedSize, pageSize)
	base := heap.Calloc(1, total+pageSize)
	base = alignUp(base, pageSize)
	q.base = base

	q.desc = descriptorsAt(base, size)
	q.avail = bytesAt(base+descSize, availSize)
	usedBase := alignUp(base+descSize+availSize, pageSize)
	q.used = bytesAt(usedBase, usedSize)

	q.buffers = make([]uintptr, size)
	for i := range q.buffers {
		q.buffers[i] = heap.Alloc(BufferSize)
	}

	n.bus.OutL(n.io+cfgQueuePFN, uint32(base/pageSize))
}

// addRXBuffer publishes buffer idx of the RX queue as available for
// the device to write into.
func (n *NIC) addRXBuffer(idx int) {
	q := &n.rx
	q.desc[idx].addr = uint64(q.buffers[idx])
	q.desc[idx].len = BufferSize
	q.desc[idx].flags = descFWrite
	q.desc[idx].next = 0

	availIdx := binary.LittleEndian.Uint16(q.avail[2:4])
	ringOff := 4 + int(availIdx)%q.size*2
	binary.LittleEndian.PutUint16(q.avail[ringOff:], uint16(idx))
	binary.LittleEndian.PutUint16(q.avail[2:4], availIdx+1)
}

// MAC returns the device's hardware address.
func (n *NIC) MAC() [6]byte {
	return n.mac
}

// Send transmits one frame. It reuses TX descriptor slots in round
// robin without waiting for the device to report completion of a
// prior use of the same slot: on a small, slow queue under sustained
// back-to-back sends this can overwrite a buffer the device hasn't
// finished reading yet. This mirrors the original driver's behavior
// exactly; there's no REDESIGN FLAG calling for a fix.
func (n *NIC) Send(frame []byte) error {
	if len(frame) > BufferSize-netHdrSize {
		return errors.New("virtio: frame too large for one buffer")
	}
	q := &n.tx
	idx := n.txAt
	buf := byteSliceAt(q.buffers[idx], BufferSize)
	for i := 0; i < netHdrSize; i++ {
		buf[i] = 0
	}
	copy(buf[netHdrSize:], frame)

	q.desc[idx].addr = uint64(q.buffers[idx])
	q.desc[idx].len = uint32(netHdrSize + len(frame))
	q.desc[idx].flags = 0
	q.desc[idx].next = 0

	availIdx := binary.LittleEndian.Uint16(q.avail[2:4])
	ringOff := 4 + int(availIdx)%q.size*2
	binary.LittleEndian.PutUint16(q.avail[ringOff:], uint16(idx))
	binary.LittleEndian.PutUint16(q.avail[2:4], availIdx+1)

	n.bus.OutW(n.io+cfgQueueNotify, 1)
	n.txAt = (n.txAt + 1) % q.size
	return nil
}

// Receive copies the next available frame into buf, returning its
// length, or 0 if the device has nothing queued. It is non-blocking.
func (n *NIC) Receive(buf []byte) int {
	q := &n.rx
	usedIdx := binary.LittleEndian.Uint16(q.used[2:4])
	if q.lastUsedIdx == usedIdx {
		return 0
	}

	slot := int(q.lastUsedIdx) % q.size
	elemOff := 4 + slot*8
	descIdx := binary.LittleEndian.Uint32(q.used[elemOff:])
	length := binary.LittleEndian.Uint32(q.used[elemOff+4:])
	q.lastUsedIdx++

	got := 0
	if length > netHdrSize {
		length -= netHdrSize
		if int(length) > len(buf) {
			length = uint32(len(buf))
		}
		src := byteSliceAt(q.buffers[descIdx], BufferSize)
		copy(buf, src[netHdrSize:netHdrSize+int(length)])
		got = int(length)
	}

	n.addRXBuffer(int(descIdx))
	n.bus.OutW(n.io+cfgQueueNotify, 0)
	return got
}
