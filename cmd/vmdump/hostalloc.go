package main

import (
	"fmt"
	"unsafe"

	"vmkernel/kernel/mm"
)

// hostAllocator implements mm.FrameAllocator over a plain Go byte slice. It
// stands in for the real pmm.BitmapAllocator when this tool runs as an
// ordinary hosted process rather than inside a booted kernel: pmm.New sizes
// its free-bitmap to cover every frame address from 0 up to the boot
// loader's reported phys_limit, which is sound only when installed RAM sits
// at low physical addresses, as it does at a real boot. A hosted process's
// heap lives at an arbitrary 64-bit address with no relation to frame index
// 0, so hostAllocator tracks frames by slice index instead of by raw
// address, sidestepping that assumption entirely rather than fighting it.
//
// The backing slice is over-allocated by one page so frame 0 starts at a
// page-aligned address inside it: the virtual memory core overlays page
// tables directly onto the frame addresses handed out here, and a misaligned
// frame would spill those writes outside the slice.
type hostAllocator struct {
	mem      []byte
	reserved []bool
}

func newHostAllocator(frames uint) *hostAllocator {
	return &hostAllocator{
		mem:      make([]byte, uintptr(frames+1)*mm.PageSize),
		reserved: make([]bool, frames),
	}
}

func (h *hostAllocator) base() uintptr {
	return (uintptr(unsafe.Pointer(&h.mem[0])) + mm.PageSize - 1) &^ (mm.PageSize - 1)
}

func (h *hostAllocator) frameAt(i uint) mm.Frame {
	return mm.FrameFromAddress(h.base() + uintptr(i)*mm.PageSize)
}

func (h *hostAllocator) indexOf(f mm.Frame) uint {
	return uint((f.Address() - h.base()) / mm.PageSize)
}

func (h *hostAllocator) Alloc(n uint) mm.FrameRange {
	run := uint(0)
	for i := uint(0); i < uint(len(h.reserved)); i++ {
		if h.reserved[i] {
			run = 0
			continue
		}
		run++
		if run == n {
			start := i - n + 1
			for j := start; j <= i; j++ {
				h.reserved[j] = true
			}
			s := h.frameAt(start)
			return mm.FrameRange{Start: s, End: s + mm.Frame(n)}
		}
	}
	panic("vmdump: host allocator exhausted")
}

func (h *hostAllocator) Free(r mm.FrameRange) {
	for f := r.Start; f < r.End; f++ {
		h.reserved[h.indexOf(f)] = false
	}
}

// PhysLimit reports the pretend machine's installed RAM as [0, frames), the
// range the factory's bootstrap path identity-maps. Identity-mapped leaf
// entries are pure numbers to the core and are never dereferenced by this
// tool, so they need no relation to the host frames backing the tables.
func (h *hostAllocator) PhysLimit() mm.Frame {
	return mm.Frame(len(h.reserved))
}

func (h *hostAllocator) Dump() string {
	free := 0
	for _, r := range h.reserved {
		if !r {
			free++
		}
	}
	return fmt.Sprintf("%d/%d frames free", free, len(h.reserved))
}
