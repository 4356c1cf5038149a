package mm

import "math"

// Frame describes a physical memory page index.
type Frame uintptr

const (
	// InvalidFrame is returned by page allocators when
	// they fail to reserve the requested frame.
	InvalidFrame = Frame(math.MaxUint64)
)

// Valid returns true if this is a valid frame.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical memory address pointed to by this Frame.
func (f Frame) Address() uintptr {
	return uintptr(f << PageShift)
}

// FrameFromAddress returns a Frame that corresponds to the given physical
// address. This function can handle both page-aligned and not aligned
// addresses; in the latter case, the input address is rounded down to the
// frame that contains it.
func FrameFromAddress(physAddr uintptr) Frame {
	return Frame((physAddr & ^(uintptr(PageSize - 1))) >> PageShift)
}

// Page describes a virtual memory page index.
type Page uintptr

// Address returns the virtual memory address pointed to by this Page.
func (p Page) Address() uintptr {
	return uintptr(p << PageShift)
}

// Aligned returns true if addr is a multiple of PageSize.
func Aligned(addr uintptr) bool {
	return addr&(PageSize-1) == 0
}

// PageFromAddress returns a Page that corresponds to the given virtual
// address. This function can handle both page-aligned and not aligned virtual
// addresses; in the latter case, the input address is rounded down to the
// page that contains it.
func PageFromAddress(virtAddr uintptr) Page {
	return Page((virtAddr & ^(uintptr(PageSize - 1))) >> PageShift)
}

// PageRange describes an ordered, half-open interval of pages [Start, End).
// The range is empty whenever Start >= End.
type PageRange struct {
	Start Page
	End   Page
}

// Len returns the number of pages contained in this range.
func (r PageRange) Len() uintptr {
	if r.End <= r.Start {
		return 0
	}
	return uintptr(r.End - r.Start)
}

// Empty returns true if the range contains no pages.
func (r PageRange) Empty() bool {
	return r.End <= r.Start
}

// FrameRange describes an ordered, half-open interval of physical frames
// [Start, End). The range is empty whenever Start >= End.
type FrameRange struct {
	Start Frame
	End   Frame
}

// Len returns the number of frames contained in this range.
func (r FrameRange) Len() uintptr {
	if r.End <= r.Start {
		return 0
	}
	return uintptr(r.End - r.Start)
}

// Empty returns true if the range contains no frames.
func (r FrameRange) Empty() bool {
	return r.End <= r.Start
}
