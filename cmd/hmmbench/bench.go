package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/hmmjournal/hmm/pkg/archive"
	"github.com/hmmjournal/hmm/pkg/common/log"
	"github.com/hmmjournal/hmm/pkg/entries"
	"github.com/hmmjournal/hmm/pkg/entry"
	"github.com/hmmjournal/hmm/pkg/query"
	"github.com/hmmjournal/hmm/pkg/seek"
	"github.com/hmmjournal/hmm/pkg/stats"
	"github.com/hmmjournal/hmm/pkg/telemetry"
)

var benchmarkTypes = []string{"scan", "reverse-scan", "seek", "find", "random", "query"}

var errEmptyJournal = errors.New("journal is empty, generate one with hmmdg first")

// bench runs read benchmarks against one open journal.
type bench struct {
	file     archive.File
	size     int64
	first    time.Time
	last     time.Time
	duration time.Duration
	rng      *rand.Rand
	logger   log.Logger
	tel      telemetry.Telemetry
}

func newBench(f archive.File, duration time.Duration, seed uint64, logger log.Logger, tel telemetry.Telemetry) (*bench, error) {
	b := &bench{
		file:     f,
		duration: duration,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		logger:   logger,
		tel:      tel,
	}

	c := entries.New(f)
	var err error
	if b.size, err = c.Len(); err != nil {
		return nil, err
	}
	first, err := c.Next()
	if err != nil {
		return nil, err
	}
	if first == nil {
		return nil, errEmptyJournal
	}
	if err := c.SeekToEnd(); err != nil {
		return nil, err
	}
	last, err := c.Prev()
	if err != nil {
		return nil, err
	}
	b.first, b.last = first.Time, last.Time
	return b, nil
}

// cursor returns a fresh cursor counting into its own collector.
func (b *bench) cursor() (*entries.Cursor, *stats.AtomicCollector) {
	collector := stats.NewAtomicCollector()
	return entries.New(b.file,
		entries.WithLogger(b.logger),
		entries.WithCollector(collector),
		entries.WithTelemetry(b.tel),
	), collector
}

func (b *bench) randomTime() time.Time {
	span := b.last.Sub(b.first)
	if span <= 0 {
		return b.first
	}
	return b.first.Add(time.Duration(b.rng.Int64N(int64(span))))
}

func (b *bench) run(typ string) (BenchmarkResult, error) {
	b.logger.Info("running %s benchmark for %s", typ, b.duration)
	switch typ {
	case "scan":
		return b.measure("Scan", b.scan(false))
	case "reverse-scan":
		return b.measure("Reverse Scan", b.scan(true))
	case "seek":
		return b.measure("Seek", b.seekToFirst)
	case "find":
		return b.measure("Find", b.find)
	case "random":
		return b.measure("Random", b.random)
	case "query":
		return b.measure("Query", b.query)
	default:
		return BenchmarkResult{}, fmt.Errorf("unknown benchmark type: %s", typ)
	}
}

// op performs one benchmark operation and returns the entries it read.
type op func(c *entries.Cursor, collector *stats.AtomicCollector) (int, error)

func (b *bench) measure(name string, fn op) (BenchmarkResult, error) {
	c, collector := b.cursor()

	start := time.Now()
	deadline := start.Add(b.duration)
	var ops, read int
	for time.Now().Before(deadline) {
		n, err := fn(c, collector)
		if err != nil {
			return BenchmarkResult{}, fmt.Errorf("%s benchmark: %w", name, err)
		}
		ops++
		read += n
	}
	elapsed := time.Since(start)

	result := BenchmarkResult{
		BenchmarkType: name,
		FileSize:      b.size,
		Operations:    ops,
		Entries:       read,
		Duration:      elapsed.Seconds(),
		Timestamp:     start,
	}
	if ops > 0 {
		result.Throughput = float64(ops) / elapsed.Seconds()
		result.Latency = 1000000.0 / result.Throughput
	}
	if read > 0 {
		result.EntriesPerSec = float64(read) / elapsed.Seconds()
	}
	if search, ok := collector.GetStats()["search"].(map[string]interface{}); ok {
		if count := search["count"].(uint64); count > 0 {
			result.AvgProbes = float64(search["probes"].(uint64)) / float64(count)
		}
	}
	return result, nil
}

// scan reads the whole journal in one direction.
func (b *bench) scan(reverse bool) op {
	return func(c *entries.Cursor, _ *stats.AtomicCollector) (int, error) {
		move := c.Next
		if reverse {
			if err := c.SeekToEnd(); err != nil {
				return 0, err
			}
			move = c.Prev
		} else if _, err := c.At(0); err != nil {
			return 0, err
		} else if _, err := c.Prev(); err != nil {
			return 0, err
		}

		n := 0
		for {
			e, err := move()
			if err != nil {
				return n, err
			}
			if e == nil {
				return n, nil
			}
			n++
		}
	}
}

func (b *bench) seekToFirst(c *entries.Cursor, _ *stats.AtomicCollector) (int, error) {
	if err := c.SeekToFirst(b.randomTime()); err != nil {
		return 0, err
	}
	e, err := c.Next()
	if e == nil {
		return 0, err
	}
	return 1, err
}

// find binary searches the raw timestamp prefix of a random hour.
func (b *bench) find(c *entries.Cursor, collector *stats.AtomicCollector) (int, error) {
	prefix := entry.FormatTime(b.randomTime())[:len("2006-01-02T15")]
	res, err := seek.SeekPrefix(b.file, []byte(prefix), seek.FirstGreaterOrEqual)
	if err != nil {
		return 0, err
	}
	collector.TrackProbes(uint64(res.Probes), uint64(res.TieRun))
	if !res.Found {
		return 0, nil
	}
	e, err := c.At(res.Offset)
	if e == nil {
		return 0, err
	}
	return 1, err
}

func (b *bench) random(c *entries.Cursor, _ *stats.AtomicCollector) (int, error) {
	e, err := c.Random(b.rng)
	if e == nil {
		return 0, err
	}
	return 1, err
}

// query reads one random day, alternating direction.
func (b *bench) query(c *entries.Cursor, collector *stats.AtomicCollector) (int, error) {
	start := b.randomTime()
	end := start.Add(24 * time.Hour)
	runner := query.NewRunner(query.WithCollector(collector), query.WithTelemetry(b.tel))
	opts := query.Options{Start: &start, End: &end, Descending: b.rng.IntN(2) == 0}
	return runner.Run(context.Background(), c, opts, func(*entry.Entry) error { return nil })
}
