package vmm

import (
	"vmkernel/kernel/kfmt"
	"vmkernel/kernel/mm"
)

// Process is the narrow slice of the process table's record type the
// factory needs: enough to recover the address space of an already-running
// process so a new one can clone it.
type Process interface {
	AddressSpace() *AddressSpace
}

// KernelProcessSource looks up the kernel process, if one has been created
// yet. It is the consumed contract this package requires from the process
// table; production code wires it to the real process registry, tests wire
// it to a fake.
type KernelProcessSource interface {
	KernelProcess() (Process, bool)
}

// Factory creates address spaces: a depth-4 identity-mapped kernel space
// while no kernel process exists, or a clone of the kernel process's space to
// seed a new user process once one does. Both the frame allocator and the process lookup
// are constructor-injected so tests can supply fakes for either.
type Factory struct {
	alloc mm.FrameAllocator
	procs KernelProcessSource
}

// NewFactory constructs a Factory backed by alloc for frame allocation and
// procs for discovering whether a kernel process already exists.
func NewFactory(alloc mm.FrameAllocator, procs KernelProcessSource) *Factory {
	return &Factory{alloc: alloc, procs: procs}
}

// CreateAddressSpace returns a shared handle to a new address space: the
// bootstrap kernel space when procs reports no kernel process, or a clone of
// the kernel process's address space when it reports one. Registering the
// bootstrap space as the kernel process is left to the caller; until that
// happens, every call bootstraps a fresh kernel space. The returned pointer is the
// shared handle referenced by the process record, the scheduler, and any
// pinning subsystem; Go's garbage collector keeps it alive for as long as
// any of them holds it, which stands in for the reference counting the
// layer this is modeled on uses explicitly.
func (f *Factory) CreateAddressSpace() *AddressSpace {
	kfmt.Fprintf(log, "frame allocator before address space creation:\n%s\n", f.alloc.Dump())

	var space *AddressSpace
	if proc, ok := f.procs.KernelProcess(); ok {
		space = FromOther(proc.AddressSpace(), f.alloc)
	} else {
		space = New(4, f.alloc)
		limit := f.alloc.PhysLimit()
		space.Map(mm.PageRange{Start: mm.Page(0), End: mm.Page(limit)}, Kernel, FlagPresent|FlagWritable)
	}

	kfmt.Fprintf(log, "frame allocator after address space creation:\n%s\n", f.alloc.Dump())
	return space
}
