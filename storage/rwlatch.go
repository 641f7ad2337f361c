package storage

import "sync"

// RWLatch is a reader-writer page latch: any number of readers or one
// writer. It is built on a mutex plus two condition variables rather than
// a lock-free scheme — page latches are held across byte-level reads and
// writes, which are long compared to a latch handoff, so blocked waiters
// sleep instead of spinning.
//
// Writers take preference: once a writer is waiting, new readers queue
// behind it, so a steady stream of readers cannot starve a writer.
type RWLatch struct {
	mu             sync.Mutex
	readers        int
	writerActive   bool
	writersWaiting int
	readerGate     sync.Cond // readers wait here while a writer is active or queued
	writerGate     sync.Cond // writers wait here for readers to drain
}

// NewRWLatch creates an unlocked latch.
func NewRWLatch() *RWLatch {
	rw := &RWLatch{}
	rw.readerGate.L = &rw.mu
	rw.writerGate.L = &rw.mu
	return rw
}

// RLock acquires the latch in shared mode.
func (rw *RWLatch) RLock() {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	for rw.writerActive || rw.writersWaiting > 0 {
		rw.readerGate.Wait()
	}
	rw.readers++
}

// RUnlock releases a shared hold.
func (rw *RWLatch) RUnlock() {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.readers == 0 {
		panic("RWLatch: RUnlock without matching RLock")
	}
	rw.readers--
	if rw.readers == 0 && rw.writersWaiting > 0 {
		rw.writerGate.Signal()
	}
}

// Lock acquires the latch in exclusive mode.
func (rw *RWLatch) Lock() {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	rw.writersWaiting++
	for rw.writerActive || rw.readers > 0 {
		rw.writerGate.Wait()
	}
	rw.writersWaiting--
	rw.writerActive = true
}

// Unlock releases an exclusive hold. A queued writer is handed the latch
// before any readers are admitted.
func (rw *RWLatch) Unlock() {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if !rw.writerActive {
		panic("RWLatch: Unlock without matching Lock")
	}
	rw.writerActive = false
	if rw.writersWaiting > 0 {
		rw.writerGate.Signal()
	} else {
		rw.readerGate.Broadcast()
	}
}

// TryRLock attempts a shared acquire without blocking.
func (rw *RWLatch) TryRLock() bool {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.writerActive || rw.writersWaiting > 0 {
		return false
	}
	rw.readers++
	return true
}

// TryLock attempts an exclusive acquire without blocking.
func (rw *RWLatch) TryLock() bool {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.writerActive || rw.readers > 0 {
		return false
	}
	rw.writerActive = true
	return true
}
