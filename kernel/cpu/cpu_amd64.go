package cpu

var (
	cpuidFn = ID
)

// WriteCR3 loads the physical address of a page table root into CR3,
// activating it as the current address space for this CPU. No PCID or other
// architectural flags are set; the raw physical address occupies bits
// [12, 52) of the written value.
func WriteCR3(rootTablePhysAddr uintptr)

// ReadCR3 returns the physical address of the page table root currently
// loaded into CR3 for this CPU.
func ReadCR3() uintptr

// Halt stops instruction execution on the calling CPU. It does not return.
func Halt()

// ID returns information about the CPU and its features. It is implemented
// as a CPUID instruction with EAX=leaf and returns the values in EAX, EBX,
// ECX and EDX.
func ID(leaf uint32) (uint32, uint32, uint32, uint32)

// IsIntel returns true if the code is running on an Intel processor.
func IsIntel() bool {
	_, ebx, ecx, edx := cpuidFn(0)
	return ebx == 0x756e6547 && // "Genu"
		edx == 0x49656e69 && // "ineI"
		ecx == 0x6c65746e // "ntel"
}

// Supports5LevelPaging reports whether the CPU implements the LA57 extension
// (CPUID leaf 7, sub-leaf 0, ECX bit 16), which allows a 5-level page table
// hierarchy to address up to 128 PiB of virtual memory.
func Supports5LevelPaging() bool {
	_, _, ecx, _ := cpuidFn(7)
	return ecx&(1<<16) != 0
}
