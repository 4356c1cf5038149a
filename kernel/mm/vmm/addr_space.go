// Package vmm implements the virtual memory core: construction, mutation,
// switching and destruction of x86_64 hierarchical page-table trees, and
// translation of virtual to physical addresses through them.
package vmm

import (
	"sync/atomic"

	"vmkernel/kernel/cpu"
	"vmkernel/kernel/kfmt"
	"vmkernel/kernel/mm"
	ksync "vmkernel/kernel/sync"
)

// MemorySpace selects the leaf-level backing policy used by map.
type MemorySpace int

const (
	// Kernel installs identity mappings: the frame backing page P is P
	// itself. No frame allocation occurs for leaves.
	Kernel MemorySpace = iota

	// User allocates one fresh frame per page via the frame allocator.
	User
)

// AddressSpace owns a page-table tree rooted at a physical frame and a
// depth naming how many paging levels that tree has. The root pointer is
// stored as a physical address interpreted directly as a kernel pointer:
// the kernel is assumed to maintain an identity mapping of all physical RAM
// established early in boot, so any table frame address is dereferenceable.
//
// A single reader-writer lock guards the whole tree. Map, MapPhysical and
// the destination side of FromOther acquire it exclusively; so does Unmap,
// since it writes entries and frees table frames. A shared hold there would
// race those writes against concurrent Translate calls. Translate acquires
// it for reading only.
type AddressSpace struct {
	root  atomic.Uintptr
	depth uint
	lock  ksync.RWSpinlock
	alloc mm.FrameAllocator
}

// New allocates a root table frame via alloc, zeroes it, and returns an
// empty AddressSpace with the given depth. depth must be at least 1.
func New(depth uint, alloc mm.FrameAllocator) *AddressSpace {
	if depth < 1 {
		panic("vmm: AddressSpace depth must be >= 1")
	}

	r := alloc.Alloc(1)
	root := tableAt(r.Start.Address())
	root.zero()

	as := &AddressSpace{depth: depth, alloc: alloc}
	as.root.Store(r.Start.Address())
	return as
}

// FromOther allocates a new root and deep-copies src's tree into it at
// src's depth (see copyTable). Leaf data frames end up shared between src
// and the returned space.
func FromOther(src *AddressSpace, alloc mm.FrameAllocator) *AddressSpace {
	dst := New(src.depth, alloc)

	src.lock.RLock()
	defer src.lock.RUnlock()

	dst.lock.Lock()
	defer dst.lock.Unlock()

	copyTable(tableAt(src.PageTableAddress()), tableAt(dst.PageTableAddress()), src.depth, alloc)
	return dst
}

// Load writes the root table's physical address into CR3, activating this
// address space on the current CPU. It does not take the root lock: the
// root pointer is immutable after construction, so reading it is always
// safe even while another CPU mutates the table contents.
func (a *AddressSpace) Load() {
	cpu.WriteCR3(a.PageTableAddress())
}

// PageTableAddress returns the root table's physical address. It reads the
// pointer atomically rather than under the tree lock, which is safe because
// the pointer value is set once at construction and never changes
// thereafter.
func (a *AddressSpace) PageTableAddress() uintptr {
	return a.root.Load()
}

// Map installs a mapping for every page in pages with the given flags,
// using the leaf backing policy selected by space. Intermediate tables are
// allocated on demand.
func (a *AddressSpace) Map(pages mm.PageRange, space MemorySpace, flags PageTableEntryFlags) {
	a.lock.Lock()
	defer a.lock.Unlock()

	mapInTable(tableAt(a.PageTableAddress()), mm.FrameRange{}, pages, space, flags, a.depth, a.alloc)
}

// MapPhysical installs a mapping for every page in pages, backed in order
// by the supplied frames. len(frames) and len(pages) must be equal; a
// mismatch is a programmer error and panics.
func (a *AddressSpace) MapPhysical(frames mm.FrameRange, pages mm.PageRange, space MemorySpace, flags PageTableEntryFlags) {
	if frames.Len() != pages.Len() {
		panic("vmm: MapPhysical requires len(frames) == len(pages)")
	}

	a.lock.Lock()
	defer a.lock.Unlock()

	mapInTable(tableAt(a.PageTableAddress()), frames, pages, space, flags, a.depth, a.alloc)
}

// Unmap removes every leaf entry in pages, frees the backing frame of each
// one removed, and reclaims any intermediate table that becomes empty as a
// result. The backing frame is freed whatever installed the entry, including
// Kernel identity mappings and frames supplied to MapPhysical, which this
// space did not allocate.
func (a *AddressSpace) Unmap(pages mm.PageRange) {
	a.lock.Lock()
	defer a.lock.Unlock()

	unmapInTable(tableAt(a.PageTableAddress()), pages, a.depth, a.alloc)
}

// Translate resolves a virtual address to the physical address it currently
// maps to. The second return value is false if addr falls in an unmapped
// page.
func (a *AddressSpace) Translate(addr uintptr) (uintptr, bool) {
	a.lock.RLock()
	defer a.lock.RUnlock()

	return translateInTable(tableAt(a.PageTableAddress()), addr, a.depth)
}

// log is the package's line-prefixed diagnostic writer: every message this
// package emits is tagged "[vmm]" without each call site spelling the tag
// out itself.
var log = kfmt.NewPrefixWriter(kfmt.Sink, "[vmm] ")

// Close walks the whole tree, releasing the root table frame and every
// intermediate table frame back to the frame allocator. Leaf data frames are never released here: they
// may be shared, identity-mapped to physical memory, or owned by whatever
// installed them.
func (a *AddressSpace) Close() {
	a.lock.Lock()
	defer a.lock.Unlock()

	kfmt.Fprintf(log, "frame allocator before address space drop:\n%s\n", a.alloc.Dump())
	dropTable(tableAt(a.PageTableAddress()), a.depth, a.alloc)
	kfmt.Fprintf(log, "frame allocator after address space drop:\n%s\n", a.alloc.Dump())
}
