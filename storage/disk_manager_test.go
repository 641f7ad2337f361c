package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileDiskManagerRoundTrip(t *testing.T) {
	dm, err := NewFileDiskManager(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer dm.Close()

	out := make([]byte, PageSize)
	copy(out, []byte("on disk"))
	require.NoError(t, dm.WritePage(3, out))

	in := make([]byte, PageSize)
	require.NoError(t, dm.ReadPage(3, in))
	assert.Equal(t, out, in)
}

func TestFileDiskManagerReadUnwrittenPage(t *testing.T) {
	dm, err := NewFileDiskManager(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer dm.Close()

	// Reading past the end of the file zero-fills: the page was
	// allocated but never written.
	buf := make([]byte, PageSize)
	buf[0] = 0xFF
	require.NoError(t, dm.ReadPage(7, buf))
	assert.Equal(t, make([]byte, PageSize), buf)
}

func TestFileDiskManagerValidation(t *testing.T) {
	dm, err := NewFileDiskManager(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer dm.Close()

	assert.Error(t, dm.WritePage(0, make([]byte, 100)), "short buffer")
	assert.Error(t, dm.ReadPage(-1, make([]byte, PageSize)), "negative page id")
}

func TestFileDiskManagerBatchWrite(t *testing.T) {
	dm, err := NewFileDiskManager(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer dm.Close()

	writes := make([]PageWrite, 3)
	for i := range writes {
		data := make([]byte, PageSize)
		data[0] = byte(i + 1)
		writes[i] = PageWrite{PageID: PageID(i), Data: data}
	}
	require.NoError(t, dm.WritePagesV(writes))

	for i := range writes {
		buf := make([]byte, PageSize)
		require.NoError(t, dm.ReadPage(PageID(i), buf))
		assert.Equal(t, byte(i+1), buf[0])
	}
}

func TestMemoryDiskManagerCounters(t *testing.T) {
	dm := NewMemoryDiskManager()

	buf := make([]byte, PageSize)
	buf[0] = 42
	require.NoError(t, dm.WritePage(1, buf))
	assert.Equal(t, uint64(1), dm.WriteCount())

	in := make([]byte, PageSize)
	require.NoError(t, dm.ReadPage(1, in))
	assert.Equal(t, uint64(1), dm.ReadCount())
	assert.Equal(t, byte(42), in[0])

	// Unwritten pages read as zeroes.
	require.NoError(t, dm.ReadPage(2, in))
	assert.Equal(t, make([]byte, PageSize), in)

	// The stored copy is isolated from the caller's buffer.
	buf[0] = 99
	stored := dm.PageBytes(1)
	require.NotNil(t, stored)
	assert.Equal(t, byte(42), stored[0])
	assert.Nil(t, dm.PageBytes(5))
}
