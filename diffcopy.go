// Package diffcopy brings a destination file byte-for-byte in line with a
// source stream while writing as little as possible. The destination is
// read in lockstep with the source, chunk by chunk, and rewritten only
// from the first chunk where the two diverge. A destination that already
// matches is only read, which keeps idempotent regeneration from wearing
// flash, churning network-backed filesystems, or waking file watchers.
package diffcopy

import (
	"bytes"
	"io"
	"os"
)

// DefaultBufferSize is the chunk size used for comparison when the caller
// does not supply a buffer.
const DefaultBufferSize = 8 * 1024

// Result reports what a sync did to the destination.
type Result struct {
	// Total is the number of bytes the destination holds on return,
	// equal to the number of bytes drained from the source.
	Total int64

	// Written is the number of bytes physically written to the
	// destination. Zero when the destination already matched.
	Written int64
}

// Copy makes the file at destPath identical to the contents of src,
// creating the file if it does not exist. It returns the total number of
// bytes the destination holds on success. Errors from the underlying
// open, read, write, seek, and truncate calls are returned as-is.
//
// The destination must not be mutated by anyone else for the duration of
// the call.
func Copy(src io.Reader, destPath string) (int64, error) {
	res, err := Sync(src, destPath)
	return res.Total, err
}

// CopyBuffer is like Copy but compares using the supplied buffer. If buf
// is nil or empty, one of DefaultBufferSize is allocated.
func CopyBuffer(src io.Reader, destPath string, buf []byte) (int64, error) {
	res, err := SyncBuffer(src, destPath, buf)
	return res.Total, err
}

// Sync is like Copy but also reports how many bytes were physically
// written, so callers can see the writes that were avoided.
func Sync(src io.Reader, destPath string) (Result, error) {
	return SyncBuffer(src, destPath, nil)
}

// SyncBuffer is like Sync but compares using the supplied buffer. If buf
// is nil or empty, one of DefaultBufferSize is allocated.
func SyncBuffer(src io.Reader, destPath string, buf []byte) (Result, error) {
	if len(buf) == 0 {
		buf = make([]byte, DefaultBufferSize)
	}

	dest, err := os.OpenFile(destPath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return Result{}, err
	}

	res, err := sync(src, dest, buf, make([]byte, len(buf)))
	if cerr := dest.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return res, err
}

func sync(src io.Reader, dest *os.File, srcBuf, dstBuf []byte) (Result, error) {
	var res Result

	for {
		sn, err := readChunk(src, srcBuf)
		if err != nil {
			return res, err
		}
		if sn == 0 {
			break
		}

		dn, err := readChunk(dest, dstBuf)
		if err != nil {
			return res, err
		}

		if dn == sn && bytes.Equal(srcBuf[:sn], dstBuf[:dn]) {
			// Chunk already matches; the read advanced the cursor
			// past it.
			res.Total += int64(sn)
			continue
		}

		// Divergence. Rewind past the destination bytes just read and
		// overwrite the chunk with the source bytes.
		if _, err := dest.Seek(int64(-dn), io.SeekCurrent); err != nil {
			return res, err
		}
		if _, err := dest.Write(srcBuf[:sn]); err != nil {
			return res, err
		}
		res.Total += int64(sn)
		res.Written += int64(sn)

		if dn > sn {
			// A short source chunk means the source is exhausted;
			// whatever the destination holds past it is removed by
			// the truncate below.
			break
		}

		// Content differed or the destination ran out. Nothing left to
		// compare against, so stream the rest of the source through.
		preallocateFor(src, dest, res.Total)
		n, err := io.CopyBuffer(dest, src, srcBuf)
		res.Total += n
		res.Written += n
		if err != nil {
			return res, err
		}
		break
	}

	// Drop any stale tail. No-op when the length already matches.
	if err := dest.Truncate(res.Total); err != nil {
		return res, err
	}
	return res, nil
}

// readChunk fills buf from r until it is full or r is exhausted. Treating
// a chunk as the full buffer, rather than whatever one Read call happened
// to return, keeps a short-reading source from being mistaken for
// end-of-stream mid-comparison.
func readChunk(r io.Reader, buf []byte) (int, error) {
	n, err := io.ReadFull(r, buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return n, nil
	}
	return n, err
}

// preallocateFor reserves space for the verbatim tail copy when the
// source size is knowable, so a large divergent copy lands contiguously.
// Best effort; non-file sources are left alone.
func preallocateFor(src io.Reader, dest *os.File, copied int64) {
	f, ok := src.(*os.File)
	if !ok {
		return
	}
	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		return
	}
	pos, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return
	}
	if remaining := info.Size() - pos; remaining > 0 {
		preallocate(dest, copied+remaining)
	}
}
