// SPDX-License-Identifier: Unlicense OR MIT

// Package console drives the 80x25 VGA text-mode display: the
// higher-level collaborator the rest of the system writes to, as
// opposed to the raw diagnostic surface the kernel package falls back
// to before anything else exists.
package console

import "unsafe"

const (
	width  = 80
	height = 25

	ctrlRegister = 0x3D4
	dataRegister = 0x3D5

	memBase = 0xB8000
)

// Color is a 4-bit VGA palette index.
type Color uint8

const (
	Black Color = iota
	Blue
	Green
	Cyan
	Red
	Magenta
	Brown
	LightGrey
	DarkGrey
	LightBlue
	LightGreen
	LightCyan
	LightRed
	LightMagenta
	Yellow
	White
)

// Console is a stateful 80x25 text console. New binds it to the real
// VGA buffer; tests construct one with NewOver over a fake IOBus and a
// plain buffer standing in for video memory.
type Console struct {
	bus   IOBus
	mem   *[width * height]uint16
	x, y  int
	color uint8
}

// IOBus is the subset of kernel.IOBus the console needs for cursor
// positioning. Kept local so this package doesn't have to import
// kernel just to name the interface it already satisfies.
type IOBus interface {
	OutB(port uint16, val uint8)
}

// New returns a Console bound to the real VGA buffer at 0xB8000.
func New(bus IOBus) *Console {
	return &Console{
		bus: bus,
		mem: (*[width * height]uint16)(unsafe.Pointer(uintptr(memBase))),
	}
}

// NewOver is New, but backed by an arbitrary buffer; it exists so
// tests can drive a Console without touching physical memory.
func NewOver(bus IOBus, mem *[width * height]uint16) *Console {
	return &Console{bus: bus, mem: mem}
}

// Init resets cursor state, applies the default color and shapes the
// hardware cursor.
func (c *Console) Init() {
	c.x, c.y = 0, 0
	c.SetColor(LightGrey, Black)
	c.bus.OutB(ctrlRegister, 0x0A)
	c.bus.OutB(dataRegister, 14)
	c.bus.OutB(ctrlRegister, 0x0B)
	c.bus.OutB(dataRegister, 15)
	c.updateCursor()
}

// Clear blanks the screen and homes the cursor.
func (c *Console) Clear() {
	entry := c.entry(' ')
	for i := range c.mem {
		c.mem[i] = entry
	}
	c.x, c.y = 0, 0
	c.updateCursor()
}

// SetColor sets the foreground/background pair used for subsequent
// writes.
func (c *Console) SetColor(fg, bg Color) {
	c.color = uint8(fg) | uint8(bg)<<4
}

func (c *Console) entry(ch byte) uint16 {
	return uint16(ch) | uint16(c.color)<<8
}

// Write implements io.Writer so the console can sit behind a
// log.Logger or fmt.Fprintf without an adapter.
func (c *Console) Write(p []byte) (int, error) {
	for _, b := range p {
		c.putc(b)
	}
	return len(p), nil
}

func (c *Console) putc(ch byte) {
	switch ch {
	case '\n':
		c.x = 0
		c.y++
	case '\r':
		c.x = 0
	case '\t':
		c.x = (c.x + 8) &^ 7
		if c.x >= width {
			c.x = 0
			c.y++
		}
	case '\b':
		if c.x > 0 {
			c.x--
			c.mem[c.y*width+c.x] = c.entry(' ')
		}
	default:
		if ch >= ' ' {
			c.mem[c.y*width+c.x] = c.entry(ch)
			c.x++
			if c.x >= width {
				c.x = 0
				c.y++
			}
		}
	}
	for c.y >= height {
		c.scroll()
		c.y--
	}
	c.updateCursor()
}

func (c *Console) scroll() {
	copy(c.mem[:(height-1)*width], c.mem[width:])
	blank := c.entry(' ')
	for x := 0; x < width; x++ {
		c.mem[(height-1)*width+x] = blank
	}
}

func (c *Console) updateCursor() {
	pos := uint16(c.y*width + c.x)
	c.bus.OutB(ctrlRegister, 0x0F)
	c.bus.OutB(dataRegister, uint8(pos&0xFF))
	c.bus.OutB(ctrlRegister, 0x0E)
	c.bus.OutB(dataRegister, uint8(pos>>8&0xFF))
}

// SetCursor positions the cursor directly, ignoring out-of-range
// coordinates.
func (c *Console) SetCursor(x, y int) {
	if x >= 0 && x < width && y >= 0 && y < height {
		c.x, c.y = x, y
		c.updateCursor()
	}
}

// Cursor reports the current cursor position.
func (c *Console) Cursor() (x, y int) {
	return c.x, c.y
}
