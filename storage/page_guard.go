package storage

// Page guards couple a pin with optional latching so callers cannot leak
// either. Go has no destructors: release is an explicit, idempotent Drop,
// and ownership transfer (upgrade) empties the source guard so a later
// Drop on it is a no-op. A guard built from a failed fetch is empty and
// every operation on it is a no-op.
//
// Latches are acquired only after the pool latch is released, never while
// holding it.

// BasicPageGuard holds a pin on a page without any latch. SetDirty makes
// the eventual unpin carry the dirty flag.
type BasicPageGuard struct {
	bpm     *BufferPoolManager
	page    *Page
	isDirty bool
}

// FetchPageBasic fetches pageID and wraps it in a basic guard.
func (bpm *BufferPoolManager) FetchPageBasic(pageID PageID) BasicPageGuard {
	page := bpm.FetchPage(pageID, AccessUnknown)
	return BasicPageGuard{bpm: bpm, page: page}
}

// NewPageGuarded allocates a new page and wraps it in a basic guard. The
// guard is empty when the pool is exhausted.
func (bpm *BufferPoolManager) NewPageGuarded() BasicPageGuard {
	page := bpm.NewPage()
	return BasicPageGuard{bpm: bpm, page: page}
}

// Page returns the guarded page, or nil for an empty guard.
func (g *BasicPageGuard) Page() *Page {
	return g.page
}

// PageID returns the guarded page's id, or InvalidPageID for an empty
// guard.
func (g *BasicPageGuard) PageID() PageID {
	if g.page == nil {
		return InvalidPageID
	}
	return g.page.PageID()
}

// Data returns the page bytes for reading.
func (g *BasicPageGuard) Data() []byte {
	if g.page == nil {
		return nil
	}
	return g.page.Data()
}

// DataMut returns the page bytes for writing and marks the guard dirty.
func (g *BasicPageGuard) DataMut() []byte {
	if g.page == nil {
		return nil
	}
	g.isDirty = true
	return g.page.Data()
}

// SetDirty makes the eventual unpin report the page dirty.
func (g *BasicPageGuard) SetDirty() {
	g.isDirty = true
}

// Drop releases the pin, passing the sticky dirty flag to the pool, and
// empties the guard. Safe to call repeatedly.
func (g *BasicPageGuard) Drop() {
	if g.bpm != nil && g.page != nil {
		g.bpm.UnpinPage(g.page.PageID(), g.isDirty, AccessUnknown)
	}
	g.reset()
}

// UpgradeRead acquires the page's shared latch and transfers ownership to
// a read guard. The source guard is emptied; the pin moves with the
// ownership. No pool latch is held while blocking on the page latch.
func (g *BasicPageGuard) UpgradeRead() ReadPageGuard {
	bpm, page := g.bpm, g.page
	g.reset()
	if page != nil {
		page.RLatch()
	}
	return ReadPageGuard{guard: BasicPageGuard{bpm: bpm, page: page}}
}

// UpgradeWrite acquires the page's exclusive latch and transfers ownership
// to a write guard. The source guard is emptied.
func (g *BasicPageGuard) UpgradeWrite() WritePageGuard {
	bpm, page := g.bpm, g.page
	g.reset()
	if page != nil {
		page.WLatch()
	}
	return WritePageGuard{guard: BasicPageGuard{bpm: bpm, page: page}}
}

func (g *BasicPageGuard) reset() {
	g.bpm = nil
	g.page = nil
	g.isDirty = false
}

// ReadPageGuard holds a pin plus the page's shared latch. Drop releases
// the latch, then unpins clean.
type ReadPageGuard struct {
	guard BasicPageGuard
}

// FetchPageRead fetches pageID and latches it shared. The guard is empty
// when the fetch fails.
func (bpm *BufferPoolManager) FetchPageRead(pageID PageID) ReadPageGuard {
	page := bpm.FetchPage(pageID, AccessUnknown)
	if page != nil {
		page.RLatch()
	}
	return ReadPageGuard{guard: BasicPageGuard{bpm: bpm, page: page}}
}

// Page returns the guarded page, or nil for an empty guard.
func (g *ReadPageGuard) Page() *Page {
	return g.guard.page
}

// PageID returns the guarded page's id, or InvalidPageID for an empty
// guard.
func (g *ReadPageGuard) PageID() PageID {
	return g.guard.PageID()
}

// Data returns the page bytes for reading.
func (g *ReadPageGuard) Data() []byte {
	return g.guard.Data()
}

// Drop releases the shared latch then the pin. Safe to call repeatedly.
func (g *ReadPageGuard) Drop() {
	if g.guard.page != nil {
		g.guard.page.RUnlatch()
		g.guard.Drop()
	}
	g.guard.reset()
}

// WritePageGuard holds a pin plus the page's exclusive latch. Drop marks
// the page dirty, releases the latch, then unpins dirty.
type WritePageGuard struct {
	guard BasicPageGuard
}

// FetchPageWrite fetches pageID and latches it exclusive. The guard is
// empty when the fetch fails.
func (bpm *BufferPoolManager) FetchPageWrite(pageID PageID) WritePageGuard {
	page := bpm.FetchPage(pageID, AccessUnknown)
	if page != nil {
		page.WLatch()
	}
	return WritePageGuard{guard: BasicPageGuard{bpm: bpm, page: page}}
}

// Page returns the guarded page, or nil for an empty guard.
func (g *WritePageGuard) Page() *Page {
	return g.guard.page
}

// PageID returns the guarded page's id, or InvalidPageID for an empty
// guard.
func (g *WritePageGuard) PageID() PageID {
	return g.guard.PageID()
}

// Data returns the page bytes for reading.
func (g *WritePageGuard) Data() []byte {
	return g.guard.Data()
}

// DataMut returns the page bytes for writing.
func (g *WritePageGuard) DataMut() []byte {
	return g.guard.DataMut()
}

// Drop releases the exclusive latch then the pin, reporting the page
// dirty. Safe to call repeatedly.
func (g *WritePageGuard) Drop() {
	if g.guard.page != nil {
		g.guard.isDirty = true
		g.guard.page.WUnlatch()
		g.guard.Drop()
	}
	g.guard.reset()
}
