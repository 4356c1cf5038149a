// Package pmm provides a reference implementation of the mm.FrameAllocator
// contract consumed by the virtual memory core.
package pmm

import (
	"reflect"
	"strings"
	"unsafe"

	"vmkernel/kernel"
	"vmkernel/kernel/hal/multiboot"
	"vmkernel/kernel/kfmt"
	"vmkernel/kernel/mm"
)

// log is the package's line-prefixed diagnostic writer: every message this
// package emits is tagged "[pmm]" without each call site spelling the tag
// out itself.
var log = kfmt.NewPrefixWriter(kfmt.Sink, "[pmm] ")

type markAs bool

const (
	markFree     markAs = true
	markReserved markAs = false
)

// BitmapAllocator implements mm.FrameAllocator by tracking, with one bit per
// frame, which frames in [0, physLimit) are free. It allocates contiguous
// runs by linear scan, which is adequate for the allocation volumes a
// bootstrap kernel produces.
//
// Unlike the allocator this package is modeled on, BitmapAllocator is
// constructed explicitly via New and handed to callers as a value that
// satisfies mm.FrameAllocator; it is never reached for via a package-level
// variable, so tests can construct disposable instances freely.
type BitmapAllocator struct {
	physLimit mm.Frame

	totalFrames    uint64
	reservedFrames uint64

	// freeBitmap holds one bit per frame in [0, physLimit); a set bit
	// marks the frame reserved. Bit i of word i/64 corresponds to frame
	// i, with the bit addressed as (1 << (63 - i%64)), mirroring the
	// big-endian-within-word convention used throughout this allocator.
	freeBitmap []uint64
}

// New creates a BitmapAllocator covering [0, physLimit) frames, reserving
// the frames occupied by the kernel image (kernelStart, kernelEnd) and any
// region the boot loader's memory map does not report as available. The
// allocator stores its own bookkeeping bitmap inside a free region that it
// discovers and reserves as part of construction.
//
// New assumes the identity mapping invariant the virtual memory core itself
// relies on: every frame address below physLimit is also a valid pointer
// value for the running kernel, so the bitmap can be overlaid directly onto
// physical memory without going through the page-table layer.
//
// This makes New suitable only for a real kernel boot, where installed RAM
// is reported by the boot loader starting near physical address 0: the
// free-bitmap is sized to cover every frame in [0, physLimit), so physLimit
// must stay small enough for that bitmap to be practical. A hosted Go
// process has no such low, contiguous physical range to hand New: its heap
// addresses are arbitrary 64-bit values unrelated to frame index 0, and
// setting physLimit to cover them would require a bitmap sized in
// gigabytes. Hosted callers such as cmd/vmdump should implement
// mm.FrameAllocator directly over their own backing storage instead (see
// hostAllocator in cmd/vmdump), the same way this function is exercised
// only by this package's own tests, which construct a BitmapAllocator value
// directly rather than calling New.
func New(physLimit mm.Frame, kernelStart, kernelEnd uintptr) (*BitmapAllocator, *kernel.Error) {
	alloc := &BitmapAllocator{
		physLimit:   physLimit,
		totalFrames: uint64(physLimit),
	}

	bitmapWords := (alloc.totalFrames + 63) >> 6
	bitmapBytes := uintptr(bitmapWords) << 3

	storageAddr, err := alloc.reserveBitmapStorage(bitmapBytes, kernelStart, kernelEnd)
	if err != nil {
		return nil, err
	}

	hdr := reflect.SliceHeader{Data: storageAddr, Len: int(bitmapWords), Cap: int(bitmapWords)}
	alloc.freeBitmap = *(*[]uint64)(unsafe.Pointer(&hdr))
	kernel.Memset(storageAddr, 0, bitmapBytes)

	alloc.reserveRange(mm.FrameFromAddress(kernelStart), mm.FrameFromAddress(kernelEnd-1)+1)
	alloc.reserveRange(mm.FrameFromAddress(storageAddr), mm.FrameFromAddress(storageAddr+bitmapBytes-1)+1)
	alloc.reserveUnavailableRegions()

	kfmt.Fprintf(log, "bitmap allocator ready: %s\n", alloc.Dump())
	return alloc, nil
}

// reserveBitmapStorage finds the first frame-aligned, frame-sized run that
// does not overlap the kernel image and is reported available by the boot
// loader, returning its address. It does not mutate the bitmap itself,
// which does not exist yet at the time this is called.
func (a *BitmapAllocator) reserveBitmapStorage(bitmapBytes uintptr, kernelStart, kernelEnd uintptr) (uintptr, *kernel.Error) {
	needBytes := (bitmapBytes + mm.PageSize - 1) &^ (mm.PageSize - 1)

	var candidate uintptr
	var found bool

	multiboot.VisitMemRegions(func(region *multiboot.MemoryMapEntry) bool {
		if region.Type != multiboot.MemAvailable {
			return true
		}

		regionStart := (uintptr(region.PhysAddress) + mm.PageSize - 1) &^ (mm.PageSize - 1)
		regionEnd := uintptr(region.PhysAddress+region.Length) &^ (mm.PageSize - 1)

		for addr := regionStart; addr+needBytes <= regionEnd; addr += mm.PageSize {
			if rangesOverlap(addr, addr+needBytes, kernelStart, kernelEnd) {
				continue
			}
			candidate, found = addr, true
			return false
		}
		return true
	})

	if !found {
		return 0, &kernel.Error{Module: "pmm", Message: "unable to reserve storage for the frame bitmap"}
	}

	return candidate, nil
}

func rangesOverlap(aStart, aEnd, bStart, bEnd uintptr) bool {
	return aEnd > bStart && bEnd > aStart
}

// reserveUnavailableRegions marks every frame covered by a non-available
// boot loader memory map entry as reserved.
func (a *BitmapAllocator) reserveUnavailableRegions() {
	multiboot.VisitMemRegions(func(region *multiboot.MemoryMapEntry) bool {
		if region.Type == multiboot.MemAvailable {
			return true
		}

		start := mm.FrameFromAddress(uintptr(region.PhysAddress))
		end := mm.FrameFromAddress(uintptr(region.PhysAddress+region.Length-1)) + 1
		a.reserveRange(start, end)
		return true
	})
}

func (a *BitmapAllocator) reserveRange(start, end mm.Frame) {
	for f := start; f < end && uint64(f) < a.totalFrames; f++ {
		a.setFrame(f, markReserved)
	}
}

func (a *BitmapAllocator) setFrame(f mm.Frame, flag markAs) {
	word, mask := f>>6, uint64(1)<<(63-(uint64(f)&63))

	isReserved := a.freeBitmap[word]&mask != 0
	switch {
	case flag == markReserved && !isReserved:
		a.freeBitmap[word] |= mask
		a.reservedFrames++
	case flag == markFree && isReserved:
		a.freeBitmap[word] &^= mask
		a.reservedFrames--
	}
}

func (a *BitmapAllocator) isReserved(f mm.Frame) bool {
	word, mask := f>>6, uint64(1)<<(63-(uint64(f)&63))
	return a.freeBitmap[word]&mask != 0
}

// Alloc implements mm.FrameAllocator.
func (a *BitmapAllocator) Alloc(n uint) mm.FrameRange {
	if n == 0 {
		panic("pmm: Alloc called with n == 0")
	}

	run := uint64(0)
	for f := mm.Frame(0); uint64(f) < a.totalFrames; f++ {
		if a.isReserved(f) {
			run = 0
			continue
		}

		run++
		if run == uint64(n) {
			start := f - mm.Frame(n) + 1
			r := mm.FrameRange{Start: start, End: start + mm.Frame(n)}
			a.reserveRange(r.Start, r.End)
			return r
		}
	}

	panic("pmm: out of physical memory")
}

// Free implements mm.FrameAllocator.
func (a *BitmapAllocator) Free(r mm.FrameRange) {
	for f := r.Start; f < r.End; f++ {
		a.setFrame(f, markFree)
	}
}

// PhysLimit implements mm.FrameAllocator.
func (a *BitmapAllocator) PhysLimit() mm.Frame {
	return a.physLimit
}

// Dump implements mm.FrameAllocator.
func (a *BitmapAllocator) Dump() string {
	var buf strings.Builder
	kfmt.Fprintf(&buf, "frames: %d total, %d reserved, %d free", a.totalFrames, a.reservedFrames, a.totalFrames-a.reservedFrames)
	return buf.String()
}
