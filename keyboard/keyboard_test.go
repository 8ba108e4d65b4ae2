// SPDX-License-Identifier: Unlicense OR MIT

package keyboard

import "testing"

type fakeBus struct {
	in func(port uint16) uint8
}

func (f *fakeBus) InB(port uint16) uint8        { return f.in(port) }
func (f *fakeBus) OutB(uint16, uint8)           {}
func (f *fakeBus) InW(uint16) uint16            { return 0 }
func (f *fakeBus) OutW(uint16, uint16)          {}
func (f *fakeBus) InL(uint16) uint32            { return 0 }
func (f *fakeBus) OutL(uint16, uint32)          {}

func driverWithScancodes(codes []uint8) *Driver {
	i := 0
	bus := &fakeBus{in: func(port uint16) uint8 {
		if port != dataPort {
			return 0
		}
		c := codes[i]
		i++
		return c
	}}
	d := New(bus)
	for range codes {
		d.handleInterrupt()
	}
	return d
}

func TestPlainKeyPress(t *testing.T) {
	// 'h' press (0x23), release (0xA3)
	d := driverWithScancodes([]uint8{0x23, 0xA3})
	if !d.HasChar() {
		t.Fatal("expected a buffered character")
	}
	if c := d.GetChar(); c != 'h' {
		t.Fatalf("got %q, want 'h'", c)
	}
}

func TestShiftPressThenReleaseProducesNoChar(t *testing.T) {
	d := driverWithScancodes([]uint8{0x2A, 0xAA}) // left shift press, release
	if d.HasChar() {
		t.Fatal("modifier press/release should not buffer a character")
	}
}

func TestShiftedKeyUppercases(t *testing.T) {
	d := driverWithScancodes([]uint8{0x2A, 0x23, 0xA3, 0xAA}) // shift down, h, h up, shift up
	if c := d.GetChar(); c != 'H' {
		t.Fatalf("got %q, want 'H'", c)
	}
}

func TestCapsLockDoubleToggleIsNoop(t *testing.T) {
	d := driverWithScancodes([]uint8{0x3A, 0xBA, 0x3A, 0xBA, 0x23, 0xA3}) // caps, caps, h
	if c := d.GetChar(); c != 'h' {
		t.Fatalf("got %q, want lowercase 'h' after double toggle", c)
	}
}

func TestCtrlCProducesETX(t *testing.T) {
	d := driverWithScancodes([]uint8{0x1D, 0x2E, 0xAE, 0x9D}) // ctrl down, 'c' down/up, ctrl up
	if c := d.GetChar(); c != 3 {
		t.Fatalf("got %d, want 3 (ETX)", c)
	}
}

func TestReadLineHandlesBackspaceAndCommits(t *testing.T) {
	// "help" typed as h e l l o <bs> <bs> p <enter>
	codes := []uint8{}
	press := func(down uint8) { codes = append(codes, down, down|0x80) }
	press(0x23) // h
	press(0x12) // e
	press(0x26) // l
	press(0x26) // l
	press(0x18) // o
	press(0x0E) // backspace
	press(0x0E) // backspace
	press(0x19) // p
	press(0x1C) // enter

	d := driverWithScancodes(codes)
	buf := make([]byte, 16)
	n := d.ReadLine(buf)
	if n < 0 {
		t.Fatalf("ReadLine returned %d, expected success", n)
	}
	got := string(buf[:n])
	if got != "help" {
		t.Fatalf("got %q, want %q", got, "help")
	}
}

func TestReadLineCancelledByCtrlC(t *testing.T) {
	codes := []uint8{0x1D, 0x2E, 0xAE, 0x9D} // ctrl-c
	d := driverWithScancodes(codes)
	buf := make([]byte, 16)
	if n := d.ReadLine(buf); n != -1 {
		t.Fatalf("ReadLine returned %d, want -1 for Ctrl+C", n)
	}
}
