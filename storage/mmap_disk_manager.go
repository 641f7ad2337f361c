//go:build linux || darwin

package storage

import (
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// MmapDiskManager serves page I/O from a memory-mapped file. The file is
// sized up front for a fixed page capacity; writes land in the mapping and
// are msync'd so the durability contract matches FileDiskManager.
type MmapDiskManager struct {
	file     *os.File
	mapping  []byte
	maxPages int
	mutex    sync.Mutex
}

// NewMmapDiskManager opens or creates the backing file, grows it to hold
// maxPages pages, and maps it read-write.
func NewMmapDiskManager(fileName string, maxPages int) (*MmapDiskManager, error) {
	if maxPages <= 0 {
		return nil, NewStorageError(ErrCodeInternal, "NewMmapDiskManager",
			"maxPages must be positive", nil)
	}

	file, err := os.OpenFile(fileName, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, NewStorageError(ErrCodeFileNotFound, "NewMmapDiskManager",
			"failed to open/create "+fileName, err)
	}

	size := int64(maxPages) * PageSize
	if err := file.Truncate(size); err != nil {
		file.Close()
		return nil, NewStorageError(ErrCodeInternal, "NewMmapDiskManager",
			"failed to size backing file", err)
	}

	mapping, err := unix.Mmap(int(file.Fd()), 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, NewStorageError(ErrCodeInternal, "NewMmapDiskManager",
			"mmap failed", err)
	}

	return &MmapDiskManager{
		file:     file,
		mapping:  mapping,
		maxPages: maxPages,
	}, nil
}

// ReadPage copies the page out of the mapping.
func (dm *MmapDiskManager) ReadPage(pageID PageID, buf []byte) error {
	if err := dm.checkBounds(pageID, buf); err != nil {
		return err
	}

	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	offset := int(pageID) * PageSize
	copy(buf, dm.mapping[offset:offset+PageSize])
	return nil
}

// WritePage copies the page into the mapping and msyncs that range.
func (dm *MmapDiskManager) WritePage(pageID PageID, buf []byte) error {
	if err := dm.checkBounds(pageID, buf); err != nil {
		return err
	}

	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	offset := int(pageID) * PageSize
	copy(dm.mapping[offset:offset+PageSize], buf)
	if err := unix.Msync(dm.mapping[offset:offset+PageSize], unix.MS_SYNC); err != nil {
		return ErrDiskOperation("WritePage", pageID, err)
	}
	return nil
}

// Close unmaps and closes the backing file.
func (dm *MmapDiskManager) Close() error {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	if dm.mapping != nil {
		if err := unix.Munmap(dm.mapping); err != nil {
			return err
		}
		dm.mapping = nil
	}
	if dm.file != nil {
		return dm.file.Close()
	}
	return nil
}

func (dm *MmapDiskManager) checkBounds(pageID PageID, buf []byte) error {
	if err := checkPageBuf(pageID, buf); err != nil {
		return err
	}
	if int(pageID) >= dm.maxPages {
		return NewStorageError(ErrCodeInvalidPageID, "checkBounds",
			"page id beyond mapped capacity", nil)
	}
	return nil
}
