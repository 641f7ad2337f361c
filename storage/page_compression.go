package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/golang/snappy"
	"github.com/pierrec/lz4/v4"
)

// CompressionType selects the codec for page images in the write-ahead log.
type CompressionType uint8

const (
	CompressionNone   CompressionType = 0
	CompressionLZ4    CompressionType = 1
	CompressionSnappy CompressionType = 2
)

// ParseCompressionType maps a config string onto a codec.
func ParseCompressionType(name string) (CompressionType, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "snappy":
		return CompressionSnappy, nil
	default:
		return CompressionNone, fmt.Errorf("unknown compression algorithm %q", name)
	}
}

// Compressed page image layout:
// [0-1]: magic (0xBA17)
// [2]: compression type
// [3]: reserved
// [4-7]: uncompressed size
// [8-11]: compressed size
// [12+]: payload
const (
	pageImageMagic          = 0xBA17
	pageImageHeaderSize     = 12
	minCompressionThreshold = 100 // bytes saved below which we store raw
)

// CompressPageImage encodes a page image with the given codec. When the
// codec saves less than minCompressionThreshold bytes (or cannot compress
// the block at all) the image is stored raw under CompressionNone.
func CompressPageImage(data []byte, compressionType CompressionType) ([]byte, error) {
	if len(data) != PageSize {
		return nil, fmt.Errorf("page image must be exactly %d bytes, got %d", PageSize, len(data))
	}

	var compressed []byte
	switch compressionType {
	case CompressionNone:
		compressed = data

	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compression failed: %w", err)
		}
		if n == 0 {
			// Incompressible block.
			compressionType = CompressionNone
			compressed = data
		} else {
			compressed = buf[:n]
		}

	case CompressionSnappy:
		compressed = snappy.Encode(nil, data)

	default:
		return nil, fmt.Errorf("unsupported compression type: %d", compressionType)
	}

	if compressionType != CompressionNone {
		if len(data)-len(compressed) < minCompressionThreshold {
			compressionType = CompressionNone
			compressed = data
		}
	}

	out := make([]byte, pageImageHeaderSize+len(compressed))
	binary.LittleEndian.PutUint16(out[0:2], pageImageMagic)
	out[2] = byte(compressionType)
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[8:12], uint32(len(compressed)))
	copy(out[pageImageHeaderSize:], compressed)
	return out, nil
}

// DecompressPageImage decodes a frame produced by CompressPageImage.
func DecompressPageImage(frame []byte) ([]byte, error) {
	if len(frame) < pageImageHeaderSize {
		return nil, fmt.Errorf("frame too short for page image header: %d bytes", len(frame))
	}
	if binary.LittleEndian.Uint16(frame[0:2]) != pageImageMagic {
		return nil, fmt.Errorf("bad page image magic")
	}

	compressionType := CompressionType(frame[2])
	uncompressedSize := binary.LittleEndian.Uint32(frame[4:8])
	compressedSize := binary.LittleEndian.Uint32(frame[8:12])

	if uncompressedSize != PageSize {
		return nil, fmt.Errorf("page image size mismatch: %d", uncompressedSize)
	}
	if int(compressedSize) != len(frame)-pageImageHeaderSize {
		return nil, fmt.Errorf("compressed size mismatch: header says %d, frame has %d",
			compressedSize, len(frame)-pageImageHeaderSize)
	}
	payload := frame[pageImageHeaderSize:]

	switch compressionType {
	case CompressionNone:
		out := make([]byte, PageSize)
		copy(out, payload)
		return out, nil

	case CompressionLZ4:
		out := make([]byte, PageSize)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompression failed: %w", err)
		}
		if n != PageSize {
			return nil, fmt.Errorf("lz4 decompression size mismatch: got %d", n)
		}
		return out, nil

	case CompressionSnappy:
		out, err := snappy.Decode(nil, payload)
		if err != nil {
			return nil, fmt.Errorf("snappy decompression failed: %w", err)
		}
		if len(out) != PageSize {
			return nil, fmt.Errorf("snappy decompression size mismatch: got %d", len(out))
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported compression type: %d", compressionType)
	}
}
