// Package query selects ranges of journal entries.
package query

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/hmmjournal/hmm/pkg/common/log"
	"github.com/hmmjournal/hmm/pkg/entries"
	"github.com/hmmjournal/hmm/pkg/entry"
	"github.com/hmmjournal/hmm/pkg/stats"
	"github.com/hmmjournal/hmm/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// ErrInvalidLimit is returned for a negative limit.
	ErrInvalidLimit = errors.New("-n must be greater than or equal to 1")

	// ErrStop can be returned by an EmitFunc to end a query early without error.
	ErrStop = errors.New("stop query")
)

// Options selects which entries a query returns.
type Options struct {
	// Start, when set, excludes entries before it.
	Start *time.Time
	// End, when set, excludes entries after it. An entry exactly at End is
	// included.
	End *time.Time
	// Limit caps the number of entries emitted. Zero means no limit.
	Limit int
	// Descending emits the latest entries first.
	Descending bool
	// Contains, when non-empty, skips entries whose message lacks it.
	// Skipped entries do not count towards Limit.
	Contains string
}

// Validate checks the options for invalid values.
func (o Options) Validate() error {
	if o.Limit < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidLimit, o.Limit)
	}
	return nil
}

// EmitFunc receives each selected entry in order.
type EmitFunc func(*entry.Entry) error

// Runner executes queries against a cursor.
type Runner struct {
	logger log.Logger
	stats  stats.Collector
	tel    telemetry.Telemetry
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(logger log.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// WithCollector counts queries and emitted entries.
func WithCollector(c stats.Collector) RunnerOption {
	return func(r *Runner) { r.stats = c }
}

// WithTelemetry traces each query.
func WithTelemetry(tel telemetry.Telemetry) RunnerOption {
	return func(r *Runner) { r.tel = tel }
}

// NewRunner creates a Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		logger: log.NewNop(),
		tel:    telemetry.NewNoop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run walks c according to opts and passes every selected entry to emit.
// It returns the number of entries emitted.
func (r *Runner) Run(ctx context.Context, c *entries.Cursor, opts Options, emit EmitFunc) (int, error) {
	if err := opts.Validate(); err != nil {
		return 0, err
	}

	direction := "ascending"
	if opts.Descending {
		direction = "descending"
	}
	ctx, span := r.tel.StartSpan(ctx, "hmm.query",
		attribute.String(telemetry.AttrComponent, telemetry.ComponentQuery),
		attribute.String(telemetry.AttrDirection, direction),
	)
	defer span.End()

	start := time.Now()
	var (
		n   int
		err error
	)
	if opts.Descending {
		n, err = r.descending(c, opts, emit)
	} else {
		n, err = r.ascending(c, opts, emit)
	}
	if errors.Is(err, ErrStop) {
		err = nil
	}

	status := telemetry.StatusSuccess
	if err != nil {
		status = telemetry.StatusError
		span.RecordError(err)
	}
	r.tel.RecordCounter(ctx, "hmm.query.entries", int64(n),
		attribute.String(telemetry.AttrDirection, direction),
	)
	telemetry.RecordDuration(ctx, r.tel, "hmm.query.duration", start,
		attribute.String(telemetry.AttrDirection, direction),
		attribute.String(telemetry.AttrStatus, status),
	)
	if r.stats != nil {
		r.stats.TrackOperationWithLatency(stats.OpQuery, uint64(time.Since(start).Nanoseconds()))
		r.stats.TrackEntries(uint64(n))
	}
	r.logger.Debug("query %s emitted %d entries in %s", direction, n, time.Since(start))
	return n, err
}

func (r *Runner) ascending(c *entries.Cursor, opts Options, emit EmitFunc) (int, error) {
	if opts.Start != nil {
		if err := c.SeekToFirst(*opts.Start); err != nil {
			return 0, err
		}
	}

	n := 0
	for opts.Limit == 0 || n < opts.Limit {
		e, err := c.Next()
		if err != nil {
			return n, err
		}
		if e == nil {
			break
		}
		if opts.End != nil && e.Time.After(*opts.End) {
			break
		}
		if opts.Contains != "" && !e.Contains(opts.Contains) {
			continue
		}
		if err := emit(e); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (r *Runner) descending(c *entries.Cursor, opts Options, emit EmitFunc) (int, error) {
	if opts.End != nil {
		// Land after the last entry at or before End. Several entries can
		// share End's timestamp, so walk forward past all of them.
		if err := c.SeekToFirst(*opts.End); err != nil {
			return 0, err
		}
		for {
			e, err := c.Next()
			if err != nil {
				return 0, err
			}
			if e == nil {
				break
			}
			if e.Time.After(*opts.End) {
				break
			}
		}
	} else if err := c.SeekToEnd(); err != nil {
		return 0, err
	}

	n := 0
	for opts.Limit == 0 || n < opts.Limit {
		e, err := c.Prev()
		if err != nil {
			return n, err
		}
		if e == nil {
			break
		}
		if opts.Start != nil && e.Time.Before(*opts.Start) {
			break
		}
		if opts.Contains != "" && !e.Contains(opts.Contains) {
			continue
		}
		if err := emit(e); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Random emits one entry chosen by c.Random. It emits nothing for an empty
// journal.
func (r *Runner) Random(c *entries.Cursor, rng *rand.Rand, emit EmitFunc) (int, error) {
	e, err := c.Random(rng)
	if err != nil || e == nil {
		return 0, err
	}
	if r.stats != nil {
		r.stats.TrackEntries(1)
	}
	return 1, emit(e)
}
