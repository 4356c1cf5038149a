package process

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vmkernel/kernel/mm"
	"vmkernel/kernel/mm/vmm"
)

// fakeAllocator is a minimal mm.FrameAllocator backed by real Go memory, so
// that AddressSpace can dereference the frames it hands out as page tables.
// These tests only need enough frames for a handful of root allocations. The
// backing slice is over-allocated by one page so the frames handed out are
// page-aligned, keeping table writes inside the slice.
type fakeAllocator struct {
	mem  []byte
	next uint
}

func newFakeAllocator(frames uint) *fakeAllocator {
	return &fakeAllocator{mem: make([]byte, uintptr(frames+1)*mm.PageSize)}
}

func (a *fakeAllocator) Alloc(n uint) mm.FrameRange {
	base := (uintptr(unsafe.Pointer(&a.mem[0])) + mm.PageSize - 1) &^ (mm.PageSize - 1)
	start := mm.FrameFromAddress(base + uintptr(a.next)*mm.PageSize)
	a.next += n
	return mm.FrameRange{Start: start, End: start + mm.Frame(n)}
}

func (a *fakeAllocator) Free(r mm.FrameRange) {}
func (a *fakeAllocator) PhysLimit() mm.Frame  { return mm.Frame(len(a.mem) / int(mm.PageSize)) }
func (a *fakeAllocator) Dump() string         { return "process test fake allocator" }

func TestNewWrapsPidAndAddressSpace(t *testing.T) {
	space := vmm.New(4, newFakeAllocator(8))

	p := New(7, space)

	assert.Equal(t, uint64(7), p.Pid())
	assert.Same(t, space, p.AddressSpace())
}

func TestRegistryReportsAbsentKernelProcessBeforeFirstSet(t *testing.T) {
	var r Registry

	proc, ok := r.KernelProcess()

	assert.False(t, ok)
	assert.Nil(t, proc)
}

func TestRegistrySetThenGetRoundTrips(t *testing.T) {
	var r Registry
	space := vmm.New(4, newFakeAllocator(8))
	p := New(1, space)

	r.SetKernelProcess(p)

	got, ok := r.KernelProcess()
	require.True(t, ok)
	assert.Same(t, space, got.AddressSpace())
}

func TestDefaultRegistryRoundTrips(t *testing.T) {
	space := vmm.New(4, newFakeAllocator(8))
	p := New(2, space)

	SetKernelProcess(p)

	got, ok := KernelProcess()
	require.True(t, ok)
	assert.Same(t, space, got.AddressSpace())
}
