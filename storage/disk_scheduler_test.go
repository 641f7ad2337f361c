package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskSchedulerRoundTrip(t *testing.T) {
	dm := NewMemoryDiskManager()
	ds := NewDiskScheduler(dm, nil)
	defer ds.Shutdown()

	out := make([]byte, PageSize)
	copy(out, []byte("scheduled write"))
	done := ds.CreatePromise()
	ds.Schedule(DiskRequest{IsWrite: true, Data: out, PageID: 5, Done: done})
	require.True(t, <-done)

	in := make([]byte, PageSize)
	done = ds.CreatePromise()
	ds.Schedule(DiskRequest{IsWrite: false, Data: in, PageID: 5, Done: done})
	require.True(t, <-done)

	assert.Equal(t, out, in)
	assert.Equal(t, uint64(1), dm.WriteCount())
	assert.Equal(t, uint64(1), dm.ReadCount())
}

func TestDiskSchedulerFIFO(t *testing.T) {
	dm := NewMemoryDiskManager()
	ds := NewDiskScheduler(dm, nil)
	defer ds.Shutdown()

	// Two writes to the same page: the later one must win.
	first := make([]byte, PageSize)
	first[0] = 1
	second := make([]byte, PageSize)
	second[0] = 2

	d1 := ds.CreatePromise()
	d2 := ds.CreatePromise()
	ds.Schedule(DiskRequest{IsWrite: true, Data: first, PageID: 9, Done: d1})
	ds.Schedule(DiskRequest{IsWrite: true, Data: second, PageID: 9, Done: d2})
	<-d1
	<-d2

	stored := dm.PageBytes(9)
	require.NotNil(t, stored)
	assert.Equal(t, byte(2), stored[0])
}

func TestDiskSchedulerShutdownDrains(t *testing.T) {
	dm := NewMemoryDiskManager()
	ds := NewDiskScheduler(dm, nil)

	promises := make([]chan bool, 0, 10)
	buf := make([]byte, PageSize)
	for i := 0; i < 10; i++ {
		done := ds.CreatePromise()
		ds.Schedule(DiskRequest{IsWrite: true, Data: buf, PageID: PageID(i), Done: done})
		promises = append(promises, done)
	}

	ds.Shutdown()
	// Every scheduled request completed before the worker exited.
	assert.Equal(t, uint64(10), dm.WriteCount())
	for _, done := range promises {
		assert.True(t, <-done)
	}

	// Shutdown is safe to repeat.
	ds.Shutdown()
}
