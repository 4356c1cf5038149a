package vmm

import (
	"fmt"
	"unsafe"

	"vmkernel/kernel/mm"
)

// fakeAllocator is a test double for mm.FrameAllocator backed by a plain Go
// byte slice standing in for physical RAM. It is deliberately simple (first
// fit, linear scan) since it only needs to exercise the walker contracts,
// not perform well.
//
// The backing slice is over-allocated by one page so that frame 0 can be
// placed at a page-aligned address inside it: the walkers overlay PageTable
// values directly onto the frame addresses this allocator hands out, and a
// misaligned frame would spill those writes outside the slice.
type fakeAllocator struct {
	mem      []byte
	reserved []bool
}

func newFakeAllocator(frames uint) *fakeAllocator {
	return &fakeAllocator{
		mem:      make([]byte, uintptr(frames+1)*mm.PageSize),
		reserved: make([]bool, frames),
	}
}

func (f *fakeAllocator) base() uintptr {
	return (uintptr(unsafe.Pointer(&f.mem[0])) + mm.PageSize - 1) &^ (mm.PageSize - 1)
}

func (f *fakeAllocator) frameAt(i uint) mm.Frame {
	return mm.FrameFromAddress(f.base() + uintptr(i)*mm.PageSize)
}

func (f *fakeAllocator) indexOf(fr mm.Frame) uint {
	return uint((fr.Address() - f.base()) / mm.PageSize)
}

func (f *fakeAllocator) Alloc(n uint) mm.FrameRange {
	if n == 0 {
		panic("fakeAllocator: Alloc called with n == 0")
	}

	run := uint(0)
	for i := uint(0); i < uint(len(f.reserved)); i++ {
		if f.reserved[i] {
			run = 0
			continue
		}

		run++
		if run == n {
			startIdx := i - n + 1
			for j := startIdx; j <= i; j++ {
				f.reserved[j] = true
			}
			start := f.frameAt(startIdx)
			return mm.FrameRange{Start: start, End: start + mm.Frame(n)}
		}
	}

	panic("fakeAllocator: out of memory")
}

func (f *fakeAllocator) Free(r mm.FrameRange) {
	for fr := r.Start; fr < r.End; fr++ {
		f.reserved[f.indexOf(fr)] = false
	}
}

// PhysLimit reports the simulated machine's installed RAM as [0, frames),
// the range the factory's bootstrap path identity-maps. The table frames
// this allocator actually hands out live in host memory at unrelated
// addresses; identity-mapped leaf entries are never dereferenced, so the
// two views never meet.
func (f *fakeAllocator) PhysLimit() mm.Frame {
	return mm.Frame(len(f.reserved))
}

func (f *fakeAllocator) Dump() string {
	return fmt.Sprintf("fake allocator: %d/%d frames free", f.freeCount(), len(f.reserved))
}

func (f *fakeAllocator) freeCount() int {
	n := 0
	for _, r := range f.reserved {
		if !r {
			n++
		}
	}
	return n
}
