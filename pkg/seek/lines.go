// Package seek finds line boundaries and binary searches newline-delimited,
// sorted files without an index. Every function works on the current
// position of an io.ReadSeeker and leaves the stream at the offset it
// returns, so callers can chain them or hand the stream to a line reader.
package seek

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

const newline = '\n'

// chunkSize is the window used when scanning for line feeds. It is a
// variable so tests can force scans across window boundaries.
var chunkSize int64 = 4096

// StartOfCurrentLine returns the offset of the first byte of the line that
// contains the current position. A line feed belongs to the line it
// terminates, so a position sitting on a line feed resolves to the start of
// that line. Positions at or past the end of the file resolve to the start of
// the last line, which is the file size when the file ends in a line feed.
// An empty file yields 0.
func StartOfCurrentLine(r io.ReadSeeker) (int64, error) {
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("failed to read position: %w", err)
	}
	size, err := Size(r)
	if err != nil {
		return 0, err
	}
	if pos > size {
		pos = size
	}

	start, err := lineStartBefore(r, pos)
	if err != nil {
		return 0, err
	}
	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return 0, fmt.Errorf("failed to seek to %d: %w", start, err)
	}
	return start, nil
}

// StartOfNextLine scans forward from the current position for a line feed
// and returns the offset just after it. ok is false when the end of the file
// is reached first, in which case the stream is left at the end of the file.
func StartOfNextLine(r io.ReadSeeker) (off int64, ok bool, err error) {
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, false, fmt.Errorf("failed to read position: %w", err)
	}

	buf := make([]byte, chunkSize)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			if i := bytes.IndexByte(buf[:n], newline); i >= 0 {
				next := pos + int64(i) + 1
				if _, err := r.Seek(next, io.SeekStart); err != nil {
					return 0, false, fmt.Errorf("failed to seek to %d: %w", next, err)
				}
				return next, true, nil
			}
			pos += int64(n)
		}
		if errors.Is(rerr, io.EOF) {
			return pos, false, nil
		}
		if rerr != nil {
			return 0, false, fmt.Errorf("failed to read at %d: %w", pos, rerr)
		}
	}
}

// StartOfPrevLine moves to the start of the line before the one containing
// the current position. ok is false only when the current line is the first
// line of the file, in which case the stream is left at offset 0.
func StartOfPrevLine(r io.ReadSeeker) (off int64, ok bool, err error) {
	cur, err := StartOfCurrentLine(r)
	if err != nil {
		return 0, false, err
	}
	if cur == 0 {
		return 0, false, nil
	}

	// cur-1 is the line feed that terminates the previous line.
	start, err := lineStartBefore(r, cur-1)
	if err != nil {
		return 0, false, err
	}
	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return 0, false, fmt.Errorf("failed to seek to %d: %w", start, err)
	}
	return start, true, nil
}

// Size returns the length of the stream, restoring the current position.
func Size(r io.Seeker) (int64, error) {
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("failed to read position: %w", err)
	}
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("failed to seek to end: %w", err)
	}
	if _, err := r.Seek(pos, io.SeekStart); err != nil {
		return 0, fmt.Errorf("failed to restore position %d: %w", pos, err)
	}
	return size, nil
}

// lineStartBefore returns one past the last line feed in [0, end), or 0 when
// there is none. The stream position is unspecified afterwards.
func lineStartBefore(r io.ReadSeeker, end int64) (int64, error) {
	buf := make([]byte, chunkSize)
	for end > 0 {
		n := min(end, chunkSize)
		off := end - n
		if _, err := r.Seek(off, io.SeekStart); err != nil {
			return 0, fmt.Errorf("failed to seek to %d: %w", off, err)
		}
		if _, err := io.ReadFull(r, buf[:n]); err != nil {
			return 0, fmt.Errorf("failed to read %d bytes at %d: %w", n, off, err)
		}
		if i := bytes.LastIndexByte(buf[:n], newline); i >= 0 {
			return off + int64(i) + 1, nil
		}
		end = off
	}
	return 0, nil
}
