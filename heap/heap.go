// SPDX-License-Identifier: Unlicense OR MIT

// Package heap is a first-fit, coalescing allocator over a fixed
// region of memory, for drivers that need explicitly addressed
// buffers (virtqueues, DMA-visible staging areas) rather than
// anything the Go runtime's own allocator would ever place or move.
package heap

import "unsafe"

type block struct {
	size uintptr
	free bool
	next *block
}

const (
	// headerSize is the block header rounded up to 16 bytes, so every
	// payload stays 16-byte aligned when the region base is.
	headerSize   = (unsafe.Sizeof(block{}) + 15) &^ 15
	minBlockSize = 16
)

var (
	start *block
	total uintptr
	used  uintptr
)

func align16(n uintptr) uintptr {
	return (n + 15) &^ 15
}

// Init carves a single free block spanning the region [base, base+size)
// and makes it the heap's only block. It must run once, before any
// call to Alloc; base is expected to be 16-byte aligned.
func Init(base uintptr, size uintptr) {
	start = (*block)(unsafe.Pointer(base))
	total = size
	used = headerSize
	start.size = size - headerSize
	start.free = true
	start.next = nil
}

func findFree(size uintptr) *block {
	for b := start; b != nil; b = b.next {
		if b.free && b.size >= size {
			return b
		}
	}
	return nil
}

func split(b *block, size uintptr) {
	if b.size < size+headerSize {
		return
	}
	remaining := b.size - size - headerSize
	if remaining < minBlockSize {
		return
	}
	addr := uintptr(unsafe.Pointer(b)) + headerSize + size
	nb := (*block)(unsafe.Pointer(addr))
	nb.size = remaining
	nb.free = true
	nb.next = b.next
	b.size = size
	b.next = nb
}

func coalesce() {
	for b := start; b != nil && b.next != nil; {
		if b.free && b.next.free {
			b.size += headerSize + b.next.size
			b.next = b.next.next
			continue
		}
		b = b.next
	}
}

// Alloc returns a pointer to size bytes of 16-byte-aligned memory, or
// 0 if the heap has no free block large enough. Alloc(0) returns 0.
func Alloc(size uintptr) uintptr {
	if size == 0 {
		return 0
	}
	size = align16(size)
	b := findFree(size)
	if b == nil {
		return 0
	}
	split(b, size)
	b.free = false
	used += b.size + headerSize
	return uintptr(unsafe.Pointer(b)) + headerSize
}

// Calloc is Alloc zeroed.
func Calloc(count, size uintptr) uintptr {
	p := Alloc(count * size)
	if p == 0 {
		return 0
	}
	mem := unsafe.Slice((*byte)(unsafe.Pointer(p)), count*size)
	for i := range mem {
		mem[i] = 0
	}
	return p
}

// Free releases a pointer previously returned by Alloc or Calloc.
// Freeing 0, or a pointer already free, is a no-op; so is freeing an
// address outside the managed region.
func Free(ptr uintptr) {
	if ptr == 0 {
		return
	}
	addr := ptr - headerSize
	if addr < uintptr(unsafe.Pointer(start)) || addr >= uintptr(unsafe.Pointer(start))+total {
		return
	}
	b := (*block)(unsafe.Pointer(addr))
	if b.free {
		return
	}
	b.free = true
	used -= b.size + headerSize
	coalesce()
}

// Stats reports total heap size, bytes in use and bytes free.
func Stats() (totalOut, usedOut, freeOut uintptr) {
	return total, used, total - used
}
