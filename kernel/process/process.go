// Package process provides the minimal process table contract the virtual
// memory factory consumes: recovering the kernel process, if one exists
// yet, and its address space.
package process

import "vmkernel/kernel/mm/vmm"

// Process is a running task's process-table record. Only the accessor the
// virtual memory factory needs is modeled here; the scheduler and the rest
// of the process subsystem are out of scope for this package.
type Process struct {
	pid   uint64
	space *vmm.AddressSpace
}

// New wraps an address space as a process table record.
func New(pid uint64, space *vmm.AddressSpace) *Process {
	return &Process{pid: pid, space: space}
}

// Pid returns the process identifier.
func (p *Process) Pid() uint64 {
	return p.pid
}

// AddressSpace implements vmm.Process.
func (p *Process) AddressSpace() *vmm.AddressSpace {
	return p.space
}

// Registry tracks the kernel process for the duration of a boot. A
// package-level default instance backs the process-wide KernelProcess/
// SetKernelProcess functions; tests or alternate boot paths may construct
// their own Registry instead of relying on the global.
type Registry struct {
	kernelProcess *Process
}

// SetKernelProcess records p as the kernel process.
func (r *Registry) SetKernelProcess(p *Process) {
	r.kernelProcess = p
}

// KernelProcess implements vmm.KernelProcessSource. It returns (nil, false)
// until SetKernelProcess has been called, which is the state the system
// boots in before the first address space exists.
func (r *Registry) KernelProcess() (vmm.Process, bool) {
	if r.kernelProcess == nil {
		return nil, false
	}
	return r.kernelProcess, true
}

var defaultRegistry Registry

// SetKernelProcess records p as the kernel process in the default,
// process-wide registry.
func SetKernelProcess(p *Process) {
	defaultRegistry.SetKernelProcess(p)
}

// KernelProcess looks up the kernel process in the default, process-wide
// registry.
func KernelProcess() (vmm.Process, bool) {
	return defaultRegistry.KernelProcess()
}
