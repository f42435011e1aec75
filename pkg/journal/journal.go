// Package journal appends entries to a journal file.
//
// Every write holds an exclusive advisory lock on the whole file, re-reads
// the last entry under that lock and refuses to write anything that would
// break the time order of the file. Readers never take the lock.
package journal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hmmjournal/hmm/pkg/archive"
	"github.com/hmmjournal/hmm/pkg/common/log"
	"github.com/hmmjournal/hmm/pkg/entries"
	"github.com/hmmjournal/hmm/pkg/entry"
	"github.com/hmmjournal/hmm/pkg/stats"
	"github.com/hmmjournal/hmm/pkg/telemetry"
	"golang.org/x/sys/unix"
)

var (
	// ErrClockSkew is returned when the last entry in the journal is later
	// than the current time, so appending now would unsort the file.
	ErrClockSkew = errors.New("last entry is in the future, refusing to write (clock skew?)")

	// ErrOutOfOrder is returned when a batch is not sorted or starts before
	// the last entry in the journal.
	ErrOutOfOrder = errors.New("entries out of order")

	// ErrEmptyMessage is returned when asked to append an empty message.
	ErrEmptyMessage = errors.New("empty message")

	// ErrClosed is returned when using a closed journal.
	ErrClosed = errors.New("journal is closed")
)

// Journal is an open journal file.
type Journal struct {
	mu     sync.Mutex
	f      *os.File
	path   string
	closed bool

	now     func() time.Time
	sync    bool
	logger  log.Logger
	stats   stats.Collector
	metrics Metrics
}

// Option configures a Journal.
type Option func(*Journal)

// WithClock replaces time.Now as the source of entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(j *Journal) { j.now = now }
}

// WithSync makes every append fsync the file before returning.
func WithSync(sync bool) Option {
	return func(j *Journal) { j.sync = sync }
}

// WithLogger sets the journal's logger.
func WithLogger(logger log.Logger) Option {
	return func(j *Journal) { j.logger = logger }
}

// WithCollector counts appends and bytes written.
func WithCollector(c stats.Collector) Option {
	return func(j *Journal) { j.stats = c }
}

// WithTelemetry reports append metrics through tel.
func WithTelemetry(tel telemetry.Telemetry) Option {
	return func(j *Journal) { j.metrics = NewMetrics(tel) }
}

// Open opens the journal at path for appending, creating it and any missing
// parent directories.
func Open(path string, opts ...Option) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	j := &Journal{
		f:       f,
		path:    path,
		now:     time.Now,
		logger:  log.NewNop(),
		metrics: NewMetrics(nil),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Path returns the journal's file name.
func (j *Journal) Path() string {
	return j.path
}

// Append writes message as a new entry timestamped now and returns it.
func (j *Journal) Append(ctx context.Context, message string) (*entry.Entry, error) {
	e := entry.New(j.now(), strings.TrimSpace(message))
	if e.Message == "" {
		return nil, ErrEmptyMessage
	}

	err := j.write(ctx, func(last *entry.Entry) error {
		if last != nil && last.Time.After(e.Time) {
			j.logger.Warn("last entry at %s is after now %s", entry.FormatTime(last.Time), entry.FormatTime(e.Time))
			return ErrClockSkew
		}
		return nil
	}, e)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// AppendBatch writes es in one locked write. The batch must be sorted and
// must not start before the last entry already in the journal.
func (j *Journal) AppendBatch(ctx context.Context, es []*entry.Entry) error {
	if len(es) == 0 {
		return nil
	}
	for i := 1; i < len(es); i++ {
		if es[i].Time.Before(es[i-1].Time) {
			return fmt.Errorf("%w: entry %d at %s precedes entry %d", ErrOutOfOrder, i, entry.FormatTime(es[i].Time), i-1)
		}
	}

	return j.write(ctx, func(last *entry.Entry) error {
		if last != nil && es[0].Time.Before(last.Time) {
			return fmt.Errorf("%w: batch starts at %s, journal ends at %s",
				ErrOutOfOrder, entry.FormatTime(es[0].Time), entry.FormatTime(last.Time))
		}
		return nil
	}, es...)
}

// Last returns the last entry in the journal, or nil if it is empty.
func (j *Journal) Last() (*entry.Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil, ErrClosed
	}
	if err := j.lock(unix.LOCK_SH); err != nil {
		return nil, err
	}
	defer j.unlock()
	return j.last()
}

// Snapshot copies the whole journal to w compressed with codec while
// holding a shared lock, so no append can interleave with the copy.
func (j *Journal) Snapshot(ctx context.Context, w io.Writer, codec archive.Codec) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return 0, ErrClosed
	}

	start := time.Now()
	if err := j.lock(unix.LOCK_SH); err != nil {
		return 0, err
	}
	defer j.unlock()

	n, err := archive.Export(w, io.NewSectionReader(j.f, 0, 1<<62), codec)
	j.metrics.RecordSnapshot(ctx, time.Since(start), n, codec.String(), err)
	if err != nil {
		return n, err
	}
	j.logger.Info("snapshot of %s: %d bytes as %s", j.path, n, codec)
	return n, nil
}

// Close releases the journal's file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	j.metrics.Close()
	return j.f.Close()
}

// write appends es under an exclusive lock after check has approved them
// against the current last entry.
func (j *Journal) write(ctx context.Context, check func(last *entry.Entry) error, es ...*entry.Entry) (err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}

	start := time.Now()
	var written int
	defer func() {
		j.metrics.RecordAppend(ctx, time.Since(start), len(es), int64(written), err)
		if j.stats == nil {
			return
		}
		if err != nil {
			j.stats.TrackError("append")
			return
		}
		j.stats.TrackOperationWithLatency(stats.OpAppend, uint64(time.Since(start).Nanoseconds()))
		j.stats.TrackBytes(true, uint64(written))
	}()

	if err := j.lock(unix.LOCK_EX); err != nil {
		return err
	}
	defer j.unlock()

	last, err := j.last()
	if err != nil {
		return err
	}
	if err := check(last); err != nil {
		return err
	}

	var buf bytes.Buffer
	terminated, err := j.endsWithNewline()
	if err != nil {
		return err
	}
	if !terminated {
		j.logger.Debug("terminating the last line of %s", j.path)
		buf.WriteByte('\n')
	}
	for _, e := range es {
		line, err := entry.Encode(e)
		if err != nil {
			return err
		}
		buf.Write(line)
	}

	written, err = j.f.Write(buf.Bytes())
	if err != nil {
		return fmt.Errorf("failed to write journal: %w", err)
	}
	if j.sync {
		if err := j.f.Sync(); err != nil {
			return fmt.Errorf("failed to sync journal: %w", err)
		}
	}
	return nil
}

func (j *Journal) last() (*entry.Entry, error) {
	c := entries.New(j.f, entries.WithLogger(j.logger))
	if err := c.SeekToEnd(); err != nil {
		return nil, err
	}
	return c.Prev()
}

// endsWithNewline reports whether the file is empty or its last byte is a
// line terminator.
func (j *Journal) endsWithNewline() (bool, error) {
	info, err := j.f.Stat()
	if err != nil {
		return false, fmt.Errorf("failed to stat journal: %w", err)
	}
	if info.Size() == 0 {
		return true, nil
	}
	var b [1]byte
	if _, err := j.f.ReadAt(b[:], info.Size()-1); err != nil {
		return false, fmt.Errorf("failed to read journal: %w", err)
	}
	return b[0] == '\n', nil
}

func (j *Journal) lock(how int) error {
	if err := unix.Flock(int(j.f.Fd()), how); err != nil {
		return fmt.Errorf("failed to lock %s: %w", j.path, err)
	}
	return nil
}

func (j *Journal) unlock() {
	if err := unix.Flock(int(j.f.Fd()), unix.LOCK_UN); err != nil {
		j.logger.Error("failed to unlock %s: %v", j.path, err)
	}
}
