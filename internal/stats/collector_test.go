package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()
	const goroutines = 100
	const opsPerGoroutine = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < opsPerGoroutine; j++ {
				c.AddFilesSynced(1)
				c.AddFilesUnchanged(1)
				c.AddFilesFailed(1)
				c.AddDirsCreated(1)
				c.AddBytesTotal(256)
				c.AddBytesWritten(64)
			}
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	expected := int64(goroutines * opsPerGoroutine)
	assert.Equal(t, expected, s.FilesSynced)
	assert.Equal(t, expected, s.FilesUnchanged)
	assert.Equal(t, expected, s.FilesFailed)
	assert.Equal(t, expected, s.DirsCreated)
	assert.Equal(t, expected*256, s.BytesTotal)
	assert.Equal(t, expected*64, s.BytesWritten)
	assert.Equal(t, expected*192, s.BytesSaved())
}

func TestSnapshotString(t *testing.T) {
	s := Snapshot{
		FilesSynced:    8,
		FilesUnchanged: 12,
		FilesFailed:    1,
		DirsCreated:    3,
		BytesTotal:     4096,
		BytesWritten:   1024,
	}
	expected := "synced=8 unchanged=12 failed=1 dirs=3 bytes=4096 written=1024"
	assert.Equal(t, expected, s.String())
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1048576, "1.0 MiB"},
		{1073741824, "1.0 GiB"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			require.Equal(t, tt.expected, FormatBytes(tt.input))
		})
	}
}

func TestElapsed(t *testing.T) {
	c := NewCollector()
	time.Sleep(10 * time.Millisecond)
	assert.GreaterOrEqual(t, c.Elapsed(), 10*time.Millisecond)
}
