package stats

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Collector tracks sync statistics using lock-free atomic counters. It is
// shared by all workers of one run.
type Collector struct {
	filesSynced       atomic.Int64
	filesUnchanged    atomic.Int64
	filesFailed       atomic.Int64
	dirsCreated       atomic.Int64
	bytesTotal        atomic.Int64
	bytesWritten      atomic.Int64
	filesVerified     atomic.Int64
	filesVerifyFailed atomic.Int64
	startTime         time.Time
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	FilesSynced       int64
	FilesUnchanged    int64
	FilesFailed       int64
	DirsCreated       int64
	BytesTotal        int64
	BytesWritten      int64
	FilesVerified     int64
	FilesVerifyFailed int64
	Elapsed           time.Duration
}

func (c *Collector) AddFilesSynced(n int64)       { c.filesSynced.Add(n) }
func (c *Collector) AddFilesUnchanged(n int64)    { c.filesUnchanged.Add(n) }
func (c *Collector) AddFilesFailed(n int64)       { c.filesFailed.Add(n) }
func (c *Collector) AddDirsCreated(n int64)       { c.dirsCreated.Add(n) }
func (c *Collector) AddBytesTotal(n int64)        { c.bytesTotal.Add(n) }
func (c *Collector) AddBytesWritten(n int64)      { c.bytesWritten.Add(n) }
func (c *Collector) AddFilesVerified(n int64)     { c.filesVerified.Add(n) }
func (c *Collector) AddFilesVerifyFailed(n int64) { c.filesVerifyFailed.Add(n) }

// Snapshot returns a consistent point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		FilesSynced:       c.filesSynced.Load(),
		FilesUnchanged:    c.filesUnchanged.Load(),
		FilesFailed:       c.filesFailed.Load(),
		DirsCreated:       c.dirsCreated.Load(),
		BytesTotal:        c.bytesTotal.Load(),
		BytesWritten:      c.bytesWritten.Load(),
		FilesVerified:     c.filesVerified.Load(),
		FilesVerifyFailed: c.filesVerifyFailed.Load(),
		Elapsed:           c.Elapsed(),
	}
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

// BytesSaved is the number of destination bytes that were already in sync
// and never rewritten.
func (s Snapshot) BytesSaved() int64 {
	return s.BytesTotal - s.BytesWritten
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"synced=%d unchanged=%d failed=%d dirs=%d bytes=%d written=%d",
		s.FilesSynced, s.FilesUnchanged, s.FilesFailed, s.DirsCreated,
		s.BytesTotal, s.BytesWritten,
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
