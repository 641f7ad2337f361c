package storage

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// DiskRequest is one unit of page I/O. The caller keeps Data valid and
// untouched until Done receives; the worker owns the buffer in between.
type DiskRequest struct {
	IsWrite bool
	Data    []byte
	PageID  PageID
	Done    chan bool
}

// DiskScheduler serializes page I/O onto a single background worker.
// Requests are served FIFO; there is no cancellation. Shutdown drains
// whatever is in flight before the worker exits.
type DiskScheduler struct {
	diskManager DiskManager
	queue       chan DiskRequest
	wg          sync.WaitGroup
	log         *logrus.Entry
	closeOnce   sync.Once
}

const diskQueueDepth = 64

// NewDiskScheduler starts the worker goroutine.
func NewDiskScheduler(dm DiskManager, logger *logrus.Logger) *DiskScheduler {
	ds := &DiskScheduler{
		diskManager: dm,
		queue:       make(chan DiskRequest, diskQueueDepth),
		log:         componentLogger(logger, "disk_scheduler"),
	}
	ds.wg.Add(1)
	go ds.worker()
	return ds
}

// CreatePromise returns a fresh promise for a request. The buffered
// channel lets the worker fulfill it without blocking.
func (ds *DiskScheduler) CreatePromise() chan bool {
	return make(chan bool, 1)
}

// Schedule enqueues a request for the worker.
func (ds *DiskScheduler) Schedule(req DiskRequest) {
	ds.queue <- req
}

// Shutdown stops accepting requests, drains the queue, and waits for the
// worker to finish.
func (ds *DiskScheduler) Shutdown() {
	ds.closeOnce.Do(func() {
		close(ds.queue)
	})
	ds.wg.Wait()
}

func (ds *DiskScheduler) worker() {
	defer ds.wg.Done()
	for req := range ds.queue {
		var err error
		if req.IsWrite {
			err = ds.diskManager.WritePage(req.PageID, req.Data)
		} else {
			err = ds.diskManager.ReadPage(req.PageID, req.Data)
		}
		if err != nil {
			// No recovery path for I/O failures; fail loudly.
			ds.log.WithError(err).WithFields(logrus.Fields{
				"page_id": req.PageID,
				"write":   req.IsWrite,
			}).Panic("disk I/O failed")
		}
		if req.Done != nil {
			req.Done <- true
		}
	}
}
