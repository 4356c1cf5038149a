// Package sync provides synchronization primitive implementations for the
// busy-wait reader-writer lock guarding each AddressSpace's page-table tree.
package sync

import "sync/atomic"

// pause issues the architecture's spin-wait hint instruction between failed
// CAS attempts, so a spinning CPU does not thrash the memory-order buffer of
// whichever CPU currently holds the lock.
func pause()

// rwWriterBit marks an RWSpinlock as held for writing. The remaining bits of
// the state word count the number of active readers.
const rwWriterBit = uint32(1) << 31

// RWSpinlock implements a busy-wait lock that allows either any number of
// concurrent readers or a single writer. A task holding the lock for writing
// that attempts to acquire it again in either mode, or a task holding it for
// reading that attempts to acquire it for writing, will deadlock.
type RWSpinlock struct {
	state uint32
}

// RLock blocks until a shared (reader) hold on the lock can be acquired.
// It spins only while a writer holds the lock; a writer that is waiting in
// Lock does not hold new readers off.
func (l *RWSpinlock) RLock() {
	for {
		cur := atomic.LoadUint32(&l.state)
		if cur&rwWriterBit != 0 {
			pause()
			continue
		}

		if atomic.CompareAndSwapUint32(&l.state, cur, cur+1) {
			return
		}
		pause()
	}
}

// RUnlock releases a shared hold acquired via RLock.
func (l *RWSpinlock) RUnlock() {
	atomic.AddUint32(&l.state, ^uint32(0))
}

// Lock blocks until an exclusive (writer) hold on the lock can be acquired.
// No readers or other writers may hold the lock while it is exclusively held.
func (l *RWSpinlock) Lock() {
	for !atomic.CompareAndSwapUint32(&l.state, 0, rwWriterBit) {
		pause()
	}
}

// Unlock releases an exclusive hold acquired via Lock.
func (l *RWSpinlock) Unlock() {
	atomic.StoreUint32(&l.state, 0)
}
