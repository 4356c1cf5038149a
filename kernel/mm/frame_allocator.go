package mm

// FrameAllocator is the external physical frame allocator consumed by the
// virtual memory core. It is supplied to an AddressSpace at construction
// time rather than reached for as a package-level singleton, which keeps the
// core testable against fakes that track every reservation.
//
// None of the methods return an error: exhaustion and misuse are programmer
// errors and the implementation is expected to panic, matching the
// allocator's role as an unrecoverable resource at this layer.
type FrameAllocator interface {
	// Alloc reserves and returns a range of n contiguous frames. It
	// panics if no such range is available.
	Alloc(n uint) FrameRange

	// Free releases a range previously obtained from Alloc back to the
	// allocator.
	Free(r FrameRange)

	// PhysLimit returns the frame one past the end of installed RAM.
	PhysLimit() Frame

	// Dump returns a diagnostic snapshot of the allocator state suitable
	// for inclusion in log messages.
	Dump() string
}
