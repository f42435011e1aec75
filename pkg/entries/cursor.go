// Package entries navigates the entries of a journal file one line at a time.
//
// A Cursor walks forwards and backwards over a timestamp-sorted journal
// without reading the whole file. Alternating Next and Prev calls return
// each entry exactly once in each direction: after Next returns entry k,
// Prev returns entry k-1, and after Prev returns entry k, Next returns k+1.
package entries

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/hmmjournal/hmm/pkg/common/log"
	"github.com/hmmjournal/hmm/pkg/entry"
	"github.com/hmmjournal/hmm/pkg/seek"
	"github.com/hmmjournal/hmm/pkg/stats"
	"github.com/hmmjournal/hmm/pkg/telemetry"
)

// ErrNegativeOffset is returned by At for offsets below zero.
var ErrNegativeOffset = errors.New("negative offset")

// Cursor is a position in a journal file. It is not safe for concurrent
// use. The position only ever holds a line boundary or PastEnd.
type Cursor struct {
	r   io.ReadSeeker
	br  *bufio.Reader
	pos Position

	logger  log.Logger
	stats   stats.Collector
	metrics CursorMetrics
}

// Option configures a Cursor.
type Option func(*Cursor)

// WithLogger sets the logger used for debug output.
func WithLogger(logger log.Logger) Option {
	return func(c *Cursor) {
		c.logger = logger
	}
}

// WithCollector counts cursor operations in collector.
func WithCollector(collector stats.Collector) Option {
	return func(c *Cursor) {
		c.stats = collector
	}
}

// WithTelemetry reports cursor metrics through tel.
func WithTelemetry(tel telemetry.Telemetry) Option {
	return func(c *Cursor) {
		c.metrics = NewCursorMetrics(tel)
	}
}

// New creates a Cursor at offset 0 of r.
func New(r io.ReadSeeker, opts ...Option) *Cursor {
	c := &Cursor{
		r:       r,
		br:      bufio.NewReader(r),
		logger:  log.NewNop(),
		metrics: NewCursorMetrics(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Len returns the size of the underlying file in bytes.
func (c *Cursor) Len() (int64, error) {
	return seek.Size(c.r)
}

// IsEmpty reports whether the underlying file is empty.
func (c *Cursor) IsEmpty() (bool, error) {
	size, err := c.Len()
	return size == 0, err
}

// Position returns the current position.
func (c *Cursor) Position() Position {
	return c.pos
}

// Next returns the entry starting at the current position and moves past
// it. At the end of the file it returns nil and the cursor becomes PastEnd;
// further calls keep returning nil.
func (c *Cursor) Next() (*entry.Entry, error) {
	start := time.Now()
	if c.pos.pastEnd {
		c.track(stats.OpNext, start, 0, false)
		return nil, nil
	}

	e, n, err := c.readAt(c.pos.offset)
	c.track(stats.OpNext, start, n, e != nil)
	return e, err
}

// Prev returns the entry before the one most recently returned and moves
// the cursor so that the following Next returns the entry after it. At the
// start of the file it returns nil and the cursor is left at offset 0.
//
// From PastEnd, Prev returns the last entry in the file.
func (c *Cursor) Prev() (*entry.Entry, error) {
	start := time.Now()
	e, n, err := c.prev()
	c.track(stats.OpPrev, start, n, e != nil)
	return e, err
}

func (c *Cursor) prev() (*entry.Entry, int, error) {
	// just is the start of the line most recently returned. From PastEnd
	// that is the empty line at the end of the file.
	var just int64
	if c.pos.pastEnd {
		size, err := c.Len()
		if err != nil {
			return nil, 0, err
		}
		just = size
	} else {
		start, ok, err := c.lineEndingAt(c.pos.offset)
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			c.pos = Offset(0)
			return nil, 0, c.seekTo(0)
		}
		just = start
	}

	target, ok, err := c.lineEndingAt(just)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		c.pos = Offset(0)
		return nil, 0, c.seekTo(0)
	}
	return c.readAt(target)
}

// At moves the cursor to the start of the line containing byte off and
// returns that entry, as if by Next. An offset past the end of the file
// leaves the cursor PastEnd and returns nil.
func (c *Cursor) At(off int64) (*entry.Entry, error) {
	start := time.Now()
	e, n, err := c.at(off)
	c.track(stats.OpAt, start, n, e != nil)
	return e, err
}

func (c *Cursor) at(off int64) (*entry.Entry, int, error) {
	if off < 0 {
		return nil, 0, fmt.Errorf("%w: %d", ErrNegativeOffset, off)
	}
	size, err := c.Len()
	if err != nil {
		return nil, 0, err
	}
	if off > size {
		c.pos = PastEnd
		return nil, 0, c.seekTo(size)
	}

	if err := c.seekTo(off); err != nil {
		return nil, 0, err
	}
	lineStart, err := seek.StartOfCurrentLine(c.r)
	if err != nil {
		return nil, 0, err
	}
	return c.readAt(lineStart)
}

// SeekToEnd moves the cursor past the last entry, so Prev returns it. On an
// empty file the cursor is left at offset 0.
func (c *Cursor) SeekToEnd() error {
	start := time.Now()
	defer c.track(stats.OpSeekEnd, start, 0, true)

	size, err := c.Len()
	if err != nil {
		return err
	}
	if size == 0 {
		c.pos = Offset(0)
		return c.seekTo(0)
	}
	c.pos = PastEnd
	return c.seekTo(size)
}

// SeekToFirst positions the cursor so that Next returns the first entry
// whose time is not before t. When every entry is earlier than t the
// cursor becomes PastEnd.
//
// Each probe decodes a whole line, so the file must be sorted by time and
// every line must decode.
func (c *Cursor) SeekToFirst(t time.Time) error {
	start := time.Now()
	size, err := c.Len()
	if err != nil {
		return err
	}

	lo, hi := int64(0), size
	probes := 0
	var read int
	for lo < hi {
		mid := lo + (hi-lo)/2
		if err := c.seekTo(mid); err != nil {
			return err
		}
		lineStart, err := seek.StartOfCurrentLine(c.r)
		if err != nil {
			return err
		}
		e, n, err := c.readAt(lineStart)
		read += n
		probes++
		if err != nil {
			return err
		}

		switch {
		case e == nil:
			hi = lineStart
		case !e.Time.Before(t):
			hi = lineStart
		default:
			lo = c.pos.offset
		}
	}

	found := lo < size
	if found {
		c.pos = Offset(lo)
	} else {
		c.pos = PastEnd
	}

	c.logger.Debug("seek to %s: %s after %d probes", entry.FormatTime(t), c.pos, probes)
	c.metrics.RecordSearch(context.Background(), time.Since(start), probes, found)
	if c.stats != nil {
		c.stats.TrackProbes(uint64(probes), 0)
	}
	c.track(stats.OpSeekFirst, start, read, found)
	return c.seekTo(lo)
}

// Random returns the entry containing a uniformly chosen byte of the file.
// Longer entries are proportionally more likely. It returns nil for an
// empty file. A nil rng uses the global source.
func (c *Cursor) Random(rng *rand.Rand) (*entry.Entry, error) {
	start := time.Now()
	size, err := c.Len()
	if err != nil {
		return nil, err
	}
	if size == 0 {
		c.track(stats.OpRandom, start, 0, false)
		return nil, nil
	}

	var off int64
	if rng == nil {
		off = rand.Int64N(size)
	} else {
		off = rng.Int64N(size)
	}
	e, n, err := c.at(off)
	c.track(stats.OpRandom, start, n, e != nil)
	return e, err
}

// readAt reads the line starting at off. On success the cursor ends up just
// past the line, or PastEnd when there is nothing left to read.
func (c *Cursor) readAt(off int64) (*entry.Entry, int, error) {
	if err := c.seekTo(off); err != nil {
		return nil, 0, err
	}
	c.br.Reset(c.r)
	line, err := c.br.ReadBytes('\n')
	if err != nil && err != io.EOF {
		return nil, len(line), fmt.Errorf("failed to read line at %d: %w", off, err)
	}
	if len(line) == 0 {
		c.pos = PastEnd
		return nil, 0, nil
	}

	end := off + int64(len(line))
	c.pos = Offset(end)
	if err := c.seekTo(end); err != nil {
		return nil, len(line), err
	}

	e, err := entry.Decode(line)
	if err != nil {
		c.metrics.RecordDecodeError(context.Background(), off)
		if c.stats != nil {
			c.stats.TrackError("decode")
		}
		return nil, len(line), &entry.DecodeError{
			Offset: off,
			Line:   append([]byte(nil), line...),
			Err:    err,
		}
	}
	return e, len(line), nil
}

// lineEndingAt returns the start of the line that ends at boundary end,
// that is the line whose terminator is byte end-1. ok is false for end 0.
func (c *Cursor) lineEndingAt(end int64) (int64, bool, error) {
	if end <= 0 {
		return 0, false, nil
	}
	if err := c.seekTo(end - 1); err != nil {
		return 0, false, err
	}
	start, err := seek.StartOfCurrentLine(c.r)
	if err != nil {
		return 0, false, err
	}
	return start, true, nil
}

func (c *Cursor) seekTo(off int64) error {
	if _, err := c.r.Seek(off, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to %d: %w", off, err)
	}
	return nil
}

func (c *Cursor) track(op stats.OperationType, start time.Time, bytes int, found bool) {
	elapsed := time.Since(start)
	c.metrics.RecordRead(context.Background(), string(op), elapsed, int64(bytes), found)
	if c.stats == nil {
		return
	}
	c.stats.TrackOperationWithLatency(op, uint64(elapsed.Nanoseconds()))
	if bytes > 0 {
		c.stats.TrackBytes(false, uint64(bytes))
	}
}
