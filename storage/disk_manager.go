package storage

import (
	"io"
	"os"
	"sync"
)

// DiskManager reads and writes fixed-size pages on a block device. Both
// calls are synchronous; the disk scheduler provides asynchrony on top.
type DiskManager interface {
	// ReadPage reads page pageID into buf. buf must be PageSize bytes.
	// Reading a page that was allocated but never written yields zeroes.
	ReadPage(pageID PageID, buf []byte) error

	// WritePage writes buf to page pageID. buf must be PageSize bytes.
	WritePage(pageID PageID, buf []byte) error

	Close() error
}

// FileDiskManager stores pages in a single file at offset pageID*PageSize.
type FileDiskManager struct {
	file  *os.File
	mutex sync.Mutex
}

// NewFileDiskManager opens or creates the backing file.
func NewFileDiskManager(fileName string) (*FileDiskManager, error) {
	file, err := os.OpenFile(fileName, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, NewStorageError(ErrCodeFileNotFound, "NewFileDiskManager",
			"failed to open/create "+fileName, err)
	}
	return &FileDiskManager{file: file}, nil
}

// ReadPage reads a page from the file. A read past the end of the file
// zero-fills the remainder: the page was allocated but never written.
func (dm *FileDiskManager) ReadPage(pageID PageID, buf []byte) error {
	if err := checkPageBuf(pageID, buf); err != nil {
		return err
	}

	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	offset := int64(pageID) * PageSize
	n, err := dm.file.ReadAt(buf, offset)
	if err == io.EOF {
		for i := n; i < len(buf); i++ {
			buf[i] = 0
		}
		return nil
	}
	if err != nil {
		return ErrDiskOperation("ReadPage", pageID, err)
	}
	return nil
}

// WritePage writes a page to the file and fsyncs.
func (dm *FileDiskManager) WritePage(pageID PageID, buf []byte) error {
	if err := checkPageBuf(pageID, buf); err != nil {
		return err
	}

	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	offset := int64(pageID) * PageSize
	if _, err := dm.file.WriteAt(buf, offset); err != nil {
		return ErrDiskOperation("WritePage", pageID, err)
	}
	return dm.file.Sync()
}

// PageWrite is a single entry in a batch write.
type PageWrite struct {
	PageID PageID
	Data   []byte
}

// WritePagesV writes multiple pages with a single fsync at the end.
func (dm *FileDiskManager) WritePagesV(writes []PageWrite) error {
	if len(writes) == 0 {
		return nil
	}

	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	for _, pw := range writes {
		if err := checkPageBuf(pw.PageID, pw.Data); err != nil {
			return err
		}
		offset := int64(pw.PageID) * PageSize
		if _, err := dm.file.WriteAt(pw.Data, offset); err != nil {
			return ErrDiskOperation("WritePage", pw.PageID, err)
		}
	}
	return dm.file.Sync()
}

// Close closes the backing file.
func (dm *FileDiskManager) Close() error {
	if dm.file != nil {
		return dm.file.Close()
	}
	return nil
}

func checkPageBuf(pageID PageID, buf []byte) error {
	if pageID < 0 {
		return NewStorageError(ErrCodeInvalidPageID, "checkPageBuf",
			"negative page id", nil)
	}
	if len(buf) != PageSize {
		return NewStorageError(ErrCodeInternal, "checkPageBuf",
			"page buffer must be exactly PageSize bytes", nil)
	}
	return nil
}
