package storage

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// BufferPoolManager caches fixed-size disk pages in a frame array. It owns
// the page table, the free list, and the LRU-K replacer, and drives all
// page I/O through the disk scheduler.
//
// A single coarse mutex protects every metadata mutation and is held
// across disk futures. That serializes I/O with metadata updates; it is
// the documented simplicity trade-off, and fine-grained latching is left
// as a future optimization because it materially changes the invariants.
type BufferPoolManager struct {
	mutex      sync.Mutex
	poolSize   int
	pages      []*Page
	pageTable  map[PageID]FrameID
	freeList   []FrameID
	replacer   *LRUKReplacer
	scheduler  *DiskScheduler
	logManager *LogManager
	metrics    *Metrics
	nextPageID PageID
	log        *logrus.Entry
}

// NewBufferPoolManager creates a pool of poolSize frames over diskManager.
// replacerK <= 0 selects DefaultReplacerK. logManager is optional: when
// set, page images are logged and the log flushed before any dirty page
// write-back. logger may be nil.
func NewBufferPoolManager(poolSize int, diskManager DiskManager, replacerK int,
	logManager *LogManager, logger *logrus.Logger) (*BufferPoolManager, error) {
	if poolSize <= 0 {
		return nil, NewStorageError(ErrCodeInternal, "NewBufferPoolManager",
			"pool size must be greater than 0", nil)
	}
	if replacerK <= 0 {
		replacerK = DefaultReplacerK
	}

	bpm := &BufferPoolManager{
		poolSize:   poolSize,
		pages:      make([]*Page, poolSize),
		pageTable:  make(map[PageID]FrameID),
		freeList:   make([]FrameID, 0, poolSize),
		replacer:   NewLRUKReplacer(poolSize, replacerK),
		scheduler:  NewDiskScheduler(diskManager, logger),
		logManager: logManager,
		metrics:    NewMetrics(),
		log:        componentLogger(logger, "buffer_pool"),
	}

	// Every frame starts empty and on the free list.
	for i := 0; i < poolSize; i++ {
		bpm.pages[i] = NewPage()
		bpm.freeList = append(bpm.freeList, FrameID(i))
	}

	bpm.log.WithFields(logrus.Fields{
		"pool_size":  poolSize,
		"replacer_k": replacerK,
	}).Info("buffer pool created")
	return bpm, nil
}

// PoolSize returns the number of frames.
func (bpm *BufferPoolManager) PoolSize() int {
	return bpm.poolSize
}

// Metrics returns the pool's metrics tracker.
func (bpm *BufferPoolManager) Metrics() *Metrics {
	return bpm.metrics
}

// NewPage allocates a fresh page id, places it in a frame, and returns
// the pinned page. Returns nil when every frame is pinned.
func (bpm *BufferPoolManager) NewPage() *Page {
	bpm.mutex.Lock()
	defer bpm.mutex.Unlock()

	frameID, ok := bpm.acquireFrameLocked()
	if !ok {
		bpm.log.Warn("NewPage: no free or evictable frame")
		return nil
	}

	pageID := bpm.allocatePageLocked()
	page := bpm.pages[frameID]
	page.ResetMemory()
	bpm.pageTable[pageID] = frameID
	page.setPageID(pageID)
	page.setPinCount(1)
	page.SetDirty(false)
	bpm.replacer.RecordAccess(frameID, AccessUnknown)
	bpm.replacer.SetEvictable(frameID, false)
	bpm.metrics.RecordPageAllocated()
	return page
}

// FetchPage returns the pinned page for pageID, reading it from disk on a
// miss. Returns nil for an invalid id or when every frame is pinned.
func (bpm *BufferPoolManager) FetchPage(pageID PageID, accessType AccessType) *Page {
	start := time.Now()
	defer func() {
		bpm.metrics.RecordFetchLatency(time.Since(start))
	}()

	if pageID < 0 {
		return nil
	}

	bpm.mutex.Lock()
	defer bpm.mutex.Unlock()

	if frameID, ok := bpm.pageTable[pageID]; ok {
		bpm.metrics.RecordCacheHit()
		page := bpm.pages[frameID]
		// A hit increments the pin count; assigning 1 here would break
		// multi-pin semantics for guards sharing a page.
		page.pin()
		bpm.replacer.RecordAccess(frameID, accessType)
		bpm.replacer.SetEvictable(frameID, false)
		return page
	}

	bpm.metrics.RecordCacheMiss()
	frameID, ok := bpm.acquireFrameLocked()
	if !ok {
		bpm.log.WithField("page_id", pageID).Warn("FetchPage: no free or evictable frame")
		return nil
	}

	page := bpm.pages[frameID]
	done := bpm.scheduler.CreatePromise()
	bpm.scheduler.Schedule(DiskRequest{IsWrite: false, Data: page.Data(), PageID: pageID, Done: done})
	<-done

	bpm.pageTable[pageID] = frameID
	page.setPageID(pageID)
	page.setPinCount(1)
	page.SetDirty(false)
	bpm.replacer.RecordAccess(frameID, accessType)
	bpm.replacer.SetEvictable(frameID, false)
	return page
}

// UnpinPage drops one pin on pageID, ORing in the caller's dirty flag.
// Returns false if the page is absent or already unpinned. The frame
// becomes evictable when the pin count reaches zero.
func (bpm *BufferPoolManager) UnpinPage(pageID PageID, isDirty bool, accessType AccessType) bool {
	_ = accessType
	bpm.mutex.Lock()
	defer bpm.mutex.Unlock()

	frameID, ok := bpm.pageTable[pageID]
	if !ok {
		return false
	}
	page := bpm.pages[frameID]
	if page.PinCount() <= 0 {
		return false
	}
	if isDirty {
		page.SetDirty(true)
	}
	page.unpin()
	if page.PinCount() == 0 {
		bpm.replacer.SetEvictable(frameID, true)
	}
	return true
}

// FlushPage writes pageID to disk, even when clean, and clears the dirty
// flag. Returns false if the page is not resident. The frame's bytes are
// untouched: after a successful flush they equal the bytes on disk.
func (bpm *BufferPoolManager) FlushPage(pageID PageID) bool {
	start := time.Now()
	defer func() {
		bpm.metrics.RecordFlushLatency(time.Since(start))
	}()

	bpm.mutex.Lock()
	defer bpm.mutex.Unlock()

	frameID, ok := bpm.pageTable[pageID]
	if !ok {
		return false
	}
	page := bpm.pages[frameID]
	if page.IsDirty() {
		bpm.metrics.RecordDirtyPageFlush()
	}
	bpm.writeBackLocked(page)
	page.SetDirty(false)
	return true
}

// FlushAllPages writes every resident page: all writes are issued first,
// then awaited, so the worker can run the queue back-to-back. Dirty bits
// are cleared afterwards.
func (bpm *BufferPoolManager) FlushAllPages() {
	bpm.mutex.Lock()
	defer bpm.mutex.Unlock()

	bpm.appendToLogLocked()

	promises := make([]chan bool, 0, len(bpm.pageTable))
	for pageID, frameID := range bpm.pageTable {
		done := bpm.scheduler.CreatePromise()
		bpm.scheduler.Schedule(DiskRequest{
			IsWrite: true,
			Data:    bpm.pages[frameID].Data(),
			PageID:  pageID,
			Done:    done,
		})
		promises = append(promises, done)
	}
	for _, done := range promises {
		<-done
	}
	for _, frameID := range bpm.pageTable {
		if bpm.pages[frameID].IsDirty() {
			bpm.metrics.RecordDirtyPageFlush()
		}
		bpm.pages[frameID].SetDirty(false)
	}
}

// DeletePage removes pageID from the pool and returns its frame to the
// free list. An absent page is success; a pinned page is refused.
func (bpm *BufferPoolManager) DeletePage(pageID PageID) bool {
	bpm.mutex.Lock()
	defer bpm.mutex.Unlock()

	frameID, ok := bpm.pageTable[pageID]
	if !ok {
		return true
	}
	page := bpm.pages[frameID]
	if page.PinCount() > 0 {
		bpm.log.WithFields(logrus.Fields{
			"page_id":   pageID,
			"pin_count": page.PinCount(),
		}).Debug("DeletePage refused: page pinned")
		return false
	}

	if page.IsDirty() {
		bpm.metrics.RecordDirtyPageFlush()
		bpm.writeBackLocked(page)
	}

	delete(bpm.pageTable, pageID)
	bpm.replacer.Remove(frameID)
	page.setPageID(InvalidPageID)
	page.SetDirty(false)
	page.setPinCount(0)
	page.ResetMemory()
	bpm.freeList = append(bpm.freeList, frameID)
	bpm.deallocatePage(pageID)
	bpm.metrics.RecordPageDeleted()
	return true
}

// Close flushes every resident page and stops the disk scheduler.
func (bpm *BufferPoolManager) Close() {
	bpm.FlushAllPages()
	bpm.scheduler.Shutdown()
	bpm.log.Info("buffer pool closed")
}

// acquireFrameLocked returns a usable frame: the free list's front, or an
// eviction victim with its old mapping erased and dirty bytes written
// back. Requires the pool latch.
func (bpm *BufferPoolManager) acquireFrameLocked() (FrameID, bool) {
	if len(bpm.freeList) > 0 {
		frameID := bpm.freeList[0]
		bpm.freeList = bpm.freeList[1:]
		return frameID, true
	}

	frameID, ok := bpm.replacer.Evict()
	if !ok {
		return InvalidFrameID, false
	}

	victim := bpm.pages[frameID]
	delete(bpm.pageTable, victim.PageID())
	bpm.metrics.RecordPageEviction()
	bpm.log.WithFields(logrus.Fields{
		"frame_id": frameID,
		"page_id":  victim.PageID(),
		"dirty":    victim.IsDirty(),
	}).Debug("evicted frame")

	if victim.PageID() != InvalidPageID && victim.IsDirty() {
		bpm.metrics.RecordDirtyPageFlush()
		bpm.writeBackLocked(victim)
		victim.ResetMemory()
	}
	victim.setPageID(InvalidPageID)
	victim.SetDirty(false)
	return frameID, true
}

// writeBackLocked pushes a page's bytes through the scheduler and waits.
// The write-ahead rule applies: the page image reaches the log, and the
// log reaches disk, before the data file write is scheduled.
func (bpm *BufferPoolManager) writeBackLocked(page *Page) {
	if bpm.logManager != nil {
		if _, err := bpm.logManager.AppendPageWrite(page.PageID(), page.Data()); err != nil {
			bpm.log.WithError(err).Error("failed to append page image to log")
		}
		if err := bpm.logManager.Flush(); err != nil {
			bpm.log.WithError(err).Error("failed to flush log before page write")
		}
	}

	done := bpm.scheduler.CreatePromise()
	bpm.scheduler.Schedule(DiskRequest{
		IsWrite: true,
		Data:    page.Data(),
		PageID:  page.PageID(),
		Done:    done,
	})
	<-done
}

// appendToLogLocked logs images for every dirty resident page ahead of a
// bulk flush.
func (bpm *BufferPoolManager) appendToLogLocked() {
	if bpm.logManager == nil {
		return
	}
	for pageID, frameID := range bpm.pageTable {
		if !bpm.pages[frameID].IsDirty() {
			continue
		}
		if _, err := bpm.logManager.AppendPageWrite(pageID, bpm.pages[frameID].Data()); err != nil {
			bpm.log.WithError(err).Error("failed to append page image to log")
		}
	}
	if err := bpm.logManager.Flush(); err != nil {
		bpm.log.WithError(err).Error("failed to flush log before bulk page write")
	}
}

// allocatePageLocked hands out the next page id. Ids are never reused
// within a run.
func (bpm *BufferPoolManager) allocatePageLocked() PageID {
	pageID := bpm.nextPageID
	bpm.nextPageID++
	return pageID
}

// deallocatePage is the free-space bookkeeping hook. Nothing tracks freed
// ids yet.
func (bpm *BufferPoolManager) deallocatePage(pageID PageID) {
	_ = pageID
}
