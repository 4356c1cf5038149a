package vmm

import "unsafe"

// PageTableEntryFlags are the architectural bits recognized by this package.
// Any other non-address bit is treated as opaque pass-through: Flags returns
// it unchanged and SetAddr writes it back when it is part of the flags given.
// SetAddr replaces the whole entry, so bits of the previous value that are not
// in the given flags are not kept.
type PageTableEntryFlags uint64

const (
	// FlagPresent marks an entry as valid; the hardware walker ignores
	// entries with this bit clear.
	FlagPresent PageTableEntryFlags = 1 << 0

	// FlagWritable allows writes through the mapping.
	FlagWritable PageTableEntryFlags = 1 << 1

	// FlagUserAccessible allows code running at CPL3 to use the mapping.
	FlagUserAccessible PageTableEntryFlags = 1 << 2
)

// addrMask isolates bits [12, 52) of a raw entry, the range the x86_64
// architecture reserves for the physical address of the frame or child
// table an entry points to.
const addrMask = uint64(0x000ffffffffff000)

// PageTableEntry is a single 8-byte slot of a PageTable. Its low bits carry
// flags; bits [12, 52) carry the physical address of the frame or child
// table it references.
type PageTableEntry uint64

// IsUnused returns true for an all-zero entry, the hardware's representation
// of "no mapping installed here".
func (e PageTableEntry) IsUnused() bool {
	return e == 0
}

// SetUnused clears the entry.
func (e *PageTableEntry) SetUnused() {
	*e = 0
}

// Address returns the physical address this entry points to, stripped of
// flag bits.
func (e PageTableEntry) Address() uintptr {
	return uintptr(uint64(e) & addrMask)
}

// Flags returns the flag bits of this entry.
func (e PageTableEntry) Flags() PageTableEntryFlags {
	return PageTableEntryFlags(uint64(e) &^ addrMask)
}

// SetAddr overwrites the entry to point at addr with the given flags. addr
// must be frame-aligned; any low bits are discarded.
func (e *PageTableEntry) SetAddr(addr uintptr, flags PageTableEntryFlags) {
	*e = PageTableEntry((uint64(addr) & addrMask) | uint64(flags))
}

// PageTable is a single level of the paging hierarchy: 512 eight-byte
// entries packed into one 4 KiB physical frame.
type PageTable [512]PageTableEntry

// tableAt interprets the physical address addr as a pointer to a PageTable.
// This relies on the identity mapping invariant documented on AddressSpace:
// every physical table frame is also a dereferenceable kernel address.
func tableAt(addr uintptr) *PageTable {
	return (*PageTable)(unsafe.Pointer(addr)) //nolint:govet
}

// isEmpty reports whether every entry of the table is unused.
func (t *PageTable) isEmpty() bool {
	for i := range t {
		if !t[i].IsUnused() {
			return false
		}
	}
	return true
}

// zero clears every entry of the table.
func (t *PageTable) zero() {
	for i := range t {
		t[i] = 0
	}
}
