package storage

import "sync/atomic"

// Page is a fixed-size buffer in the pool's frame array plus the metadata
// the pool tracks for it. The buffer's memory is owned by the pool and the
// Page object lives as long as the pool; the frame it sits in is reused
// for many page ids over time.
//
// Metadata mutations happen under the pool latch. The pin count and dirty
// flag are additionally atomic so tests and guards can observe them
// without the pool latch.
type Page struct {
	pageID   PageID
	pinCount int32
	isDirty  uint32
	latch    *RWLatch
	data     [PageSize]byte
}

// NewPage creates an empty page holding no disk page.
func NewPage() *Page {
	return &Page{
		pageID: InvalidPageID,
		latch:  NewRWLatch(),
	}
}

// PageID returns the id of the disk page currently held, or InvalidPageID.
func (p *Page) PageID() PageID {
	return PageID(atomic.LoadInt32((*int32)(&p.pageID)))
}

// PinCount returns the current pin count.
func (p *Page) PinCount() int32 {
	return atomic.LoadInt32(&p.pinCount)
}

// IsDirty reports whether the in-memory bytes differ from the disk copy.
func (p *Page) IsDirty() bool {
	return atomic.LoadUint32(&p.isDirty) != 0
}

// SetDirty sets or clears the dirty flag. Only flush and write-back clear
// it; setting is idempotent.
func (p *Page) SetDirty(dirty bool) {
	var v uint32
	if dirty {
		v = 1
	}
	atomic.StoreUint32(&p.isDirty, v)
}

// Data returns the page's byte buffer. Access to the bytes is governed by
// the page latch, not the pool latch.
func (p *Page) Data() []byte {
	return p.data[:]
}

// ResetMemory zeroes the buffer.
func (p *Page) ResetMemory() {
	for i := range p.data {
		p.data[i] = 0
	}
}

// RLatch acquires the page latch in shared mode.
func (p *Page) RLatch() { p.latch.RLock() }

// RUnlatch releases a shared hold on the page latch.
func (p *Page) RUnlatch() { p.latch.RUnlock() }

// WLatch acquires the page latch in exclusive mode.
func (p *Page) WLatch() { p.latch.Lock() }

// WUnlatch releases an exclusive hold on the page latch.
func (p *Page) WUnlatch() { p.latch.Unlock() }

func (p *Page) setPageID(id PageID) {
	atomic.StoreInt32((*int32)(&p.pageID), int32(id))
}

func (p *Page) pin() {
	atomic.AddInt32(&p.pinCount, 1)
}

func (p *Page) unpin() {
	atomic.AddInt32(&p.pinCount, -1)
}

func (p *Page) setPinCount(n int32) {
	atomic.StoreInt32(&p.pinCount, n)
}
