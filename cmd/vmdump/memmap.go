package main

import (
	"unsafe"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"vmkernel/kernel/hal/multiboot"
)

// multibootInfo, multibootTag and multibootMmapHeader mirror the unexported
// layout multiboot.VisitMemRegions walks (info header, tag header, memory
// map header). Unlike kernel/mm/pmm's BitmapAllocator, the multiboot parser
// never dereferences a region's PhysAddress as a pointer (it only reads the
// tagged buffer itself), so a synthetic multiboot2 blob built out of plain
// Go memory is a faithful, safe stand-in for a boot loader's real one.
type multibootInfo struct {
	totalSize uint32
	reserved  uint32
}

type multibootTag struct {
	tagType uint32
	size    uint32
}

type multibootMmapHeader struct {
	entrySize    uint32
	entryVersion uint32
}

const (
	multibootTagMemoryMap   = 6
	multibootTagSectionEnd  = 0
	multibootMmapEntryCount = 3
)

// memMapBlob is the fixed-layout backing for a synthesized multiboot2
// memory map: one info header, one memory-map tag, and a terminating
// section-end tag.
type memMapBlob struct {
	hdr     multibootInfo
	tag     multibootTag
	mmap    multibootMmapHeader
	entries [multibootMmapEntryCount]multiboot.MemoryMapEntry
	endTag  multibootTag
}

func newMemMapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "memmap",
		Short: "Report a synthesized boot-loader memory map via the multiboot parser",
		Long: "memmap builds a multiboot2-shaped memory map describing a pretend boot\n" +
			"environment and feeds it through kernel/hal/multiboot's own tag walker,\n" +
			"the same code path kernel/mm/pmm.New consults to learn which frames a\n" +
			"real boot loader reports as available.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMemMap(logrus.StandardLogger())
		},
	}
}

func runMemMap(log *logrus.Logger) error {
	blob := &memMapBlob{
		entries: [multibootMmapEntryCount]multiboot.MemoryMapEntry{
			{PhysAddress: 0x0, Length: 0x9fc00, Type: multiboot.MemAvailable},
			{PhysAddress: 0x100000, Length: 0x7ee0000, Type: multiboot.MemAvailable},
			{PhysAddress: 0xfffc0000, Length: 0x40000, Type: multiboot.MemReserved},
		},
	}
	blob.hdr.totalSize = uint32(unsafe.Sizeof(*blob))
	blob.tag.tagType = multibootTagMemoryMap
	blob.tag.size = uint32(unsafe.Offsetof(blob.endTag) - unsafe.Offsetof(blob.tag))
	blob.mmap.entrySize = uint32(unsafe.Sizeof(blob.entries[0]))
	blob.endTag.tagType = multibootTagSectionEnd
	blob.endTag.size = 8

	multiboot.SetInfoPtr(uintptr(unsafe.Pointer(blob)))

	var available, reserved uint64
	multiboot.VisitMemRegions(func(e *multiboot.MemoryMapEntry) bool {
		log.WithFields(logrus.Fields{
			"phys":   formatAddr(uintptr(e.PhysAddress)),
			"length": formatAddr(uintptr(e.Length)),
			"type":   e.Type.String(),
		}).Info("memory region")

		if e.Type == multiboot.MemAvailable {
			available += e.Length
		} else {
			reserved += e.Length
		}
		return true
	})

	log.WithFields(logrus.Fields{
		"available_bytes": available,
		"reserved_bytes":  reserved,
	}).Info("memory map totals")

	return nil
}
