package vmm

import (
	"vmkernel/kernel"
	"vmkernel/kernel/mm"
)

// VmaType tags the purpose a VirtualMemoryArea serves for the higher layers
// that decide placement policy. The core itself never inspects the value.
type VmaType int

const (
	// Code marks a VMA backing executable program text.
	Code VmaType = iota

	// Heap marks a VMA backing a growable data segment.
	Heap

	// Stack marks a VMA backing a thread's call stack.
	Stack
)

// String implements fmt.Stringer for VmaType.
func (t VmaType) String() string {
	switch t {
	case Code:
		return "code"
	case Heap:
		return "heap"
	case Stack:
		return "stack"
	default:
		return "unknown"
	}
}

// ErrMisaligned is returned by VMAFromAddress when the supplied start address
// is not a multiple of the page size.
var ErrMisaligned = &kernel.Error{Module: "vmm", Message: "virtual memory area start address is not page aligned"}

// VirtualMemoryArea is a pure value type pairing a page range with a
// semantic tag. It has no side effects and does not itself touch any page
// table.
type VirtualMemoryArea struct {
	pages mm.PageRange
	typ   VmaType
}

// NewVMA constructs a VirtualMemoryArea directly from a page range.
func NewVMA(pages mm.PageRange, typ VmaType) VirtualMemoryArea {
	return VirtualMemoryArea{pages: pages, typ: typ}
}

// VMAFromAddress constructs a VirtualMemoryArea covering size bytes starting
// at the virtual address start. It fails with ErrMisaligned when start is
// not page-aligned.
func VMAFromAddress(start uintptr, size uintptr, typ VmaType) (VirtualMemoryArea, *kernel.Error) {
	if !mm.Aligned(start) {
		return VirtualMemoryArea{}, ErrMisaligned
	}

	startPage := mm.PageFromAddress(start)
	pageCount := (size + mm.PageSize - 1) / mm.PageSize

	return VirtualMemoryArea{
		pages: mm.PageRange{Start: startPage, End: startPage + mm.Page(pageCount)},
		typ:   typ,
	}, nil
}

// Start returns the virtual address of the first page in the area.
func (v VirtualMemoryArea) Start() uintptr {
	return v.pages.Start.Address()
}

// End returns the virtual address immediately past the last page in the
// area.
func (v VirtualMemoryArea) End() uintptr {
	return v.pages.End.Address()
}

// Range returns the page range backing this area.
func (v VirtualMemoryArea) Range() mm.PageRange {
	return v.pages
}

// Type returns the semantic tag of this area.
func (v VirtualMemoryArea) Type() VmaType {
	return v.typ
}

// OverlapsWith returns true iff the two areas' page ranges intersect as
// half-open intervals.
func (v VirtualMemoryArea) OverlapsWith(other VirtualMemoryArea) bool {
	return v.pages.End > other.pages.Start && other.pages.End > v.pages.Start
}
