// SPDX-License-Identifier: Unlicense OR MIT

package virtio

import (
	"encoding/binary"
	"testing"
	"unsafe"

	"minikernel/heap"
)

// fakeNICBus models a legacy virtio-net device's port-I/O config
// space: a fixed queue size on InW(cfgQueueSize), and otherwise
// no-ops, since setupQueue/New only need the handshake to not block.
type fakeNICBus struct {
	queueSize uint16
	outL      []uint32
	outB      []uint8
}

func (f *fakeNICBus) InB(uint16) uint8 { return 0 }
func (f *fakeNICBus) OutB(_ uint16, v uint8) {
	f.outB = append(f.outB, v)
}
func (f *fakeNICBus) InW(port uint16) uint16 {
	return f.queueSize
}
func (f *fakeNICBus) OutW(uint16, uint16) {}
func (f *fakeNICBus) InL(uint16) uint32   { return 0 }
func (f *fakeNICBus) OutL(_ uint16, v uint32) {
	f.outL = append(f.outL, v)
}

func newTestNIC(t *testing.T) *NIC {
	t.Helper()
	heapBuf := make([]byte, 1<<20)
	heap.Init(uintptr(unsafe.Pointer(&heapBuf[0])), uintptr(len(heapBuf)))

	bus := &fakeNICBus{queueSize: 16}

	n := &NIC{bus: bus, io: 0xC000}
	n.setupQueue(0, &n.rx)
	n.setupQueue(1, &n.tx)
	for i := range n.rx.buffers {
		n.addRXBuffer(i)
	}
	return n
}

func TestSetupQueueAllocatesDistinctBuffers(t *testing.T) {
	n := newTestNIC(t)
	seen := map[uintptr]bool{}
	for _, addr := range n.rx.buffers {
		if seen[addr] {
			t.Fatalf("duplicate RX buffer address %x", addr)
		}
		seen[addr] = true
	}
}

func TestAddRXBufferPublishesAvailEntry(t *testing.T) {
	n := newTestNIC(t)
	idx := binary.LittleEndian.Uint16(n.rx.avail[2:4])
	if int(idx) != len(n.rx.buffers) {
		t.Fatalf("avail.idx = %d, want %d after seeding every slot", idx, len(n.rx.buffers))
	}
}

func TestSendWritesHeaderAndAdvancesTxIndex(t *testing.T) {
	n := newTestNIC(t)
	frame := []byte{0xAA, 0xBB, 0xCC}
	if err := n.Send(frame); err != nil {
		t.Fatalf("Send: %v", err)
	}
	buf := byteSliceAt(n.tx.buffers[0], BufferSize)
	for i := 0; i < netHdrSize; i++ {
		if buf[i] != 0 {
			t.Fatalf("header byte %d not zeroed: %x", i, buf[i])
		}
	}
	if buf[netHdrSize] != 0xAA || buf[netHdrSize+1] != 0xBB || buf[netHdrSize+2] != 0xCC {
		t.Fatalf("frame payload not copied after header")
	}
	if n.txAt != 1 {
		t.Fatalf("txAt = %d, want 1", n.txAt)
	}
}

func TestSendRejectsOversizeFrame(t *testing.T) {
	n := newTestNIC(t)
	big := make([]byte, BufferSize)
	if err := n.Send(big); err == nil {
		t.Fatal("expected an error for a frame that can't fit in one buffer")
	}
}

func TestReceiveReturnsZeroWhenNothingQueued(t *testing.T) {
	n := newTestNIC(t)
	buf := make([]byte, 64)
	if got := n.Receive(buf); got != 0 {
		t.Fatalf("Receive with an empty used ring returned %d", got)
	}
}

func TestReceiveCopiesPayloadPastHeader(t *testing.T) {
	n := newTestNIC(t)
	// Simulate the device having written a frame into RX slot 0 and
	// published it on the used ring.
	payload := []byte{1, 2, 3, 4}
	dst := byteSliceAt(n.rx.buffers[0], BufferSize)
	copy(dst[netHdrSize:], payload)

	binary.LittleEndian.PutUint32(n.rx.used[4:], 0)                          // elem[0].id = descriptor 0
	binary.LittleEndian.PutUint32(n.rx.used[8:], uint32(netHdrSize+len(payload))) // elem[0].len
	binary.LittleEndian.PutUint16(n.rx.used[2:4], 1)                         // used.idx = 1

	buf := make([]byte, 64)
	got := n.Receive(buf)
	if got != len(payload) {
		t.Fatalf("Receive returned %d bytes, want %d", got, len(payload))
	}
	for i, b := range payload {
		if buf[i] != b {
			t.Fatalf("byte %d = %x, want %x", i, buf[i], b)
		}
	}
}
