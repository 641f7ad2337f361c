package storage

import (
	"encoding/binary"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// LogManager is an append-only log of page images, flushed ahead of dirty
// page write-back. The buffer pool calls AppendPageWrite followed by Flush
// before handing a dirty page to the disk scheduler; everything else about
// recovery lives outside this core.
//
// On-disk framing per record:
// [0-3]: frame length (bytes after this field)
// [4-11]: LSN
// [12-15]: page id
// [16+]: page image (see page_compression.go)
type LogManager struct {
	mutex       sync.Mutex
	file        *os.File
	pending     []byte
	nextLSN     uint64
	compression CompressionType
	log         *logrus.Entry
}

const logRecordHeaderSize = 16

// NewLogManager opens or creates the log file. compression selects the
// codec applied to appended page images.
func NewLogManager(fileName string, compression CompressionType, logger *logrus.Logger) (*LogManager, error) {
	file, err := os.OpenFile(fileName, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, NewStorageError(ErrCodeFileNotFound, "NewLogManager",
			"failed to open/create "+fileName, err)
	}
	return &LogManager{
		file:        file,
		nextLSN:     1,
		compression: compression,
		log:         componentLogger(logger, "log_manager"),
	}, nil
}

// AppendPageWrite buffers a page image record and returns its LSN. The
// record reaches disk on the next Flush.
func (lm *LogManager) AppendPageWrite(pageID PageID, data []byte) (uint64, error) {
	image, err := CompressPageImage(data, lm.compression)
	if err != nil {
		return 0, NewStorageError(ErrCodeLogWriteFailed, "AppendPageWrite",
			"failed to encode page image", err)
	}

	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	lsn := lm.nextLSN
	lm.nextLSN++

	frameLen := logRecordHeaderSize - 4 + len(image)
	header := make([]byte, logRecordHeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], uint32(frameLen))
	binary.LittleEndian.PutUint64(header[4:12], lsn)
	binary.LittleEndian.PutUint32(header[12:16], uint32(pageID))

	lm.pending = append(lm.pending, header...)
	lm.pending = append(lm.pending, image...)
	return lsn, nil
}

// Flush writes all buffered records and fsyncs. A no-op when nothing is
// pending.
func (lm *LogManager) Flush() error {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	if len(lm.pending) == 0 {
		return nil
	}
	if _, err := lm.file.Write(lm.pending); err != nil {
		return NewStorageError(ErrCodeLogWriteFailed, "Flush",
			"failed to write log records", err)
	}
	if err := lm.file.Sync(); err != nil {
		return NewStorageError(ErrCodeLogWriteFailed, "Flush",
			"failed to sync log file", err)
	}
	lm.log.WithField("bytes", len(lm.pending)).Debug("flushed log records")
	lm.pending = lm.pending[:0]
	return nil
}

// NextLSN returns the LSN the next appended record will receive.
func (lm *LogManager) NextLSN() uint64 {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()
	return lm.nextLSN
}

// Close flushes pending records and closes the log file.
func (lm *LogManager) Close() error {
	if err := lm.Flush(); err != nil {
		return err
	}
	return lm.file.Close()
}
