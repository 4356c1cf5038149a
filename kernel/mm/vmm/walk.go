package vmm

import (
	"unsafe"

	"vmkernel/kernel/mm"
)

// pageTableIndex extracts the 9-bit index into the level-L page table that
// addr resolves through, per the bit ranges fixed by the x86_64 ISA: level 1
// covers bits [12, 21), level 2 covers [21, 30), and so on in steps of 9.
func pageTableIndex(addr uintptr, level uint) uint {
	return uint((addr>>12)>>((level-1)*9)) & 0x1ff
}

func minUint(a, b uint) uint {
	if a < b {
		return a
	}
	return b
}

// mapInTable is the recursive map/map_physical walker. It installs entries
// for pages starting at pages.Start, descending from level down to the leaf
// level, allocating intermediate tables lazily, and returns the number of
// leaf pages it installed.
//
// frames is an empty range when called on behalf of map (Kernel or
// User/fresh); it carries the caller-supplied frames when called on behalf
// of map_physical.
func mapInTable(table *PageTable, frames mm.FrameRange, pages mm.PageRange, space MemorySpace, flags PageTableEntryFlags, level uint, alloc mm.FrameAllocator) uint {
	startIndex := pageTableIndex(pages.Start.Address(), level)

	if level > 1 {
		var total uint
		for i := startIndex; i < 512; i++ {
			entry := &table[i]

			var child *PageTable
			if entry.IsUnused() {
				r := alloc.Alloc(1)
				entry.SetAddr(r.Start.Address(), flags)
				child = tableAt(r.Start.Address())
				child.zero()
			} else {
				child = tableAt(entry.Address())
			}

			allocated := mapInTable(child, frames, pages, space, flags, level-1, alloc)
			pages.Start += mm.Page(allocated)
			total += allocated
			if frames.End > frames.Start {
				frames.Start += mm.Frame(allocated)
			}

			if pages.Start >= pages.End {
				break
			}
		}
		return total
	}

	if frames.Start != frames.End {
		return mapSuppliedFrames(table, frames, pages, flags)
	}

	switch space {
	case Kernel:
		return identityMapKernel(table, pages, flags)
	case User:
		return mapUser(table, pages, flags, alloc)
	default:
		panic("vmm: unknown memory space")
	}
}

// identityMapKernel installs leaf entries whose backing frame is numerically
// identical to the virtual page it maps.
func identityMapKernel(table *PageTable, pages mm.PageRange, flags PageTableEntryFlags) uint {
	startIndex := pageTableIndex(pages.Start.Address(), 1)
	count := minUint(uint(pages.End-pages.Start), 512-startIndex)

	frameAddr := pages.Start.Address()
	for i := uint(0); i < count; i++ {
		table[startIndex+i].SetAddr(frameAddr, flags)
		frameAddr += mm.PageSize
	}
	return count
}

// mapUser installs leaf entries backed by a freshly allocated frame per
// page. Frame contents are not zeroed.
func mapUser(table *PageTable, pages mm.PageRange, flags PageTableEntryFlags, alloc mm.FrameAllocator) uint {
	startIndex := pageTableIndex(pages.Start.Address(), 1)
	count := minUint(uint(pages.End-pages.Start), 512-startIndex)

	for i := uint(0); i < count; i++ {
		r := alloc.Alloc(1)
		table[startIndex+i].SetAddr(r.Start.Address(), flags)
	}
	return count
}

// mapSuppliedFrames installs leaf entries backed by the caller-supplied frame
// range, one frame per page in order. This is the map_physical leaf strategy
// and applies regardless of MemorySpace: a caller-supplied frame range always
// takes precedence over the Kernel/User default policy.
func mapSuppliedFrames(table *PageTable, frames mm.FrameRange, pages mm.PageRange, flags PageTableEntryFlags) uint {
	startIndex := pageTableIndex(pages.Start.Address(), 1)
	count := minUint(uint(pages.End-pages.Start), 512-startIndex)

	for i := uint(0); i < count; i++ {
		f := frames.Start + mm.Frame(i)
		table[startIndex+i].SetAddr(f.Address(), flags)
	}
	return count
}

// unmapInTable is the recursive unmap walker. It removes every leaf entry in
// pages, frees the backing frame of each removed entry, and frees an
// intermediate table's own frame once its subtree becomes fully unused. It
// returns the number of leaf pages it processed.
func unmapInTable(table *PageTable, pages mm.PageRange, level uint, alloc mm.FrameAllocator) uint {
	startIndex := pageTableIndex(pages.Start.Address(), level)

	if level > 1 {
		var total uint
		for i := startIndex; i < 512; i++ {
			entry := &table[i]
			if entry.IsUnused() {
				// Nothing is mapped under this entry; the range shrinks
				// past the remainder of its subtree and no free is
				// attempted.
				span := uint(1) << (9 * (level - 1))
				offset := uint(pages.Start) & (span - 1)
				skipped := minUint(uint(pages.End-pages.Start), span-offset)
				pages.Start += mm.Page(skipped)
				total += skipped

				if pages.Start >= pages.End {
					break
				}
				continue
			}

			child := tableAt(entry.Address())
			freed := unmapInTable(child, pages, level-1, alloc)
			pages.Start += mm.Page(freed)
			total += freed

			if child.isEmpty() {
				f := mm.FrameFromAddress(entry.Address())
				alloc.Free(mm.FrameRange{Start: f, End: f + 1})
				entry.SetUnused()
			}

			if pages.Start >= pages.End {
				break
			}
		}
		return total
	}

	count := minUint(uint(pages.End-pages.Start), 512-startIndex)
	for i := uint(0); i < count; i++ {
		entry := &table[startIndex+i]
		if entry.IsUnused() {
			continue
		}

		f := mm.FrameFromAddress(entry.Address())
		alloc.Free(mm.FrameRange{Start: f, End: f + 1})
		entry.SetUnused()
	}
	return count
}

// copyTable is the recursive deep-copy walker used by from_other. For
// levels above the leaf it allocates a fresh intermediate frame per used
// source entry and recurses; at the leaf it shallow-copies every entry
// verbatim, which means leaf data frames end up shared between source and
// target.
func copyTable(source, target *PageTable, level uint, alloc mm.FrameAllocator) {
	if level > 1 {
		for i := range target {
			sourceEntry := &source[i]
			if sourceEntry.IsUnused() {
				continue
			}

			r := alloc.Alloc(1)
			flags := sourceEntry.Flags()
			target[i].SetAddr(r.Start.Address(), flags)

			nextTarget := tableAt(r.Start.Address())
			nextTarget.zero()
			copyTable(tableAt(sourceEntry.Address()), nextTarget, level-1, alloc)
		}
		return
	}

	for i := range target {
		target[i].SetAddr(source[i].Address(), source[i].Flags())
	}
}

// translateInTable descends the tree following addr's index at each level,
// returning the first unused entry as a miss, or the final physical address
// (leaf frame base plus the page-offset bits of addr) on a hit.
func translateInTable(table *PageTable, addr uintptr, level uint) (uintptr, bool) {
	aligned := addr &^ (mm.PageSize - 1)
	idx := pageTableIndex(aligned, level)

	entry := &table[idx]
	if entry.IsUnused() {
		return 0, false
	}

	if level > 1 {
		return translateInTable(tableAt(entry.Address()), addr, level-1)
	}

	return entry.Address() + (addr - aligned), true
}

// dropTable recursively frees every table frame in the tree rooted at table,
// including table's own frame. Leaf data frames pointed to by level-1
// entries are never touched: only PageTable structures are intermediate
// tables in this sense, and those are exactly what a drop must reclaim.
func dropTable(table *PageTable, level uint, alloc mm.FrameAllocator) {
	if level > 1 {
		for i := range table {
			if table[i].IsUnused() {
				continue
			}
			dropTable(tableAt(table[i].Address()), level-1, alloc)
		}
	}

	f := mm.FrameFromAddress(uintptr(unsafe.Pointer(table)))
	alloc.Free(mm.FrameRange{Start: f, End: f + 1})
}
