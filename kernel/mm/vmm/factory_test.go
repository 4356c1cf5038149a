package vmm

import (
	"testing"

	"vmkernel/kernel/mm"
)

type fakeProcess struct {
	space *AddressSpace
}

func (p *fakeProcess) AddressSpace() *AddressSpace { return p.space }

type fakeProcessSource struct {
	proc Process
	ok   bool
}

func (s *fakeProcessSource) KernelProcess() (Process, bool) { return s.proc, s.ok }

func TestFactoryBootstrapsKernelSpace(t *testing.T) {
	alloc := newFakeAllocator(64)
	procs := &fakeProcessSource{}
	f := NewFactory(alloc, procs)

	space := f.CreateAddressSpace()

	if got, ok := space.Translate(0); !ok || got != 0 {
		t.Fatalf("expected the bootstrap space to identity-map page 0; got (%#x, %t)", got, ok)
	}

	limit := alloc.PhysLimit()
	if _, ok := space.Translate(limit.Address()); ok {
		t.Fatal("expected the bootstrap space to map nothing at or past phys_limit")
	}
}

func TestFactoryClonesKernelSpaceOnSubsequentCalls(t *testing.T) {
	alloc := newFakeAllocator(128)
	procs := &fakeProcessSource{}
	f := NewFactory(alloc, procs)

	kernelSpace := f.CreateAddressSpace()
	procs.proc = &fakeProcess{space: kernelSpace}
	procs.ok = true

	userSpace := f.CreateAddressSpace()
	if userSpace == kernelSpace {
		t.Fatal("expected the factory to return a distinct cloned space, not the kernel space itself")
	}

	if got, ok := userSpace.Translate(0); !ok || got != 0 {
		t.Fatalf("expected the cloned space to inherit the kernel identity mapping at page 0; got (%#x, %t)", got, ok)
	}

	userSpace.Map(mm.PageRange{Start: mm.PageFromAddress(0x9000_0000), End: mm.PageFromAddress(0x9000_0000) + 1}, User, FlagPresent|FlagUserAccessible)
	if _, ok := kernelSpace.Translate(0x9000_0000); ok {
		t.Fatal("expected the kernel space to be unaffected by a mapping added to its clone")
	}
}
