package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hmmjournal/hmm/pkg/archive"
	"github.com/hmmjournal/hmm/pkg/common/log"
	"github.com/hmmjournal/hmm/pkg/dateparse"
	"github.com/hmmjournal/hmm/pkg/entries"
	"github.com/hmmjournal/hmm/pkg/entry"
	"github.com/hmmjournal/hmm/pkg/format"
	"github.com/hmmjournal/hmm/pkg/query"
	"github.com/hmmjournal/hmm/pkg/seek"
	"github.com/hmmjournal/hmm/pkg/stats"
	"github.com/hmmjournal/hmm/pkg/telemetry"
)

const helpText = `
hmmsh - browse an hmm file one entry at a time

Commands:
  .help                   - Show this help message
  .open PATH              - Open the journal at PATH
  .close                  - Close the current journal
  .exit                   - Exit the program
  .stats                  - Show read statistics

  NEXT [n]                - Print the next n entries (default 1)
  PREV [n]                - Print the previous n entries (default 1)
  HEAD                    - Move before the first entry
  END                     - Move after the last entry
  SEEK date               - Move before the first entry at or after date
  AT offset               - Print the entry containing byte offset
  RANDOM                  - Print a random entry
  FIND [FIRST|LAST|UPTO] prefix
                          - Binary search raw line prefixes, e.g. FIND 2020-03
                            FIRST: first line >= prefix (default)
                            LAST:  last line < prefix
                            UPTO:  last line <= prefix
  RANGE start [end]       - Print entries from start to end, inclusive
  GREP text               - Print entries containing text
  POS                     - Show the cursor position
`

var errNoJournal = errors.New("no journal open")

// shell is the state behind the interactive prompt.
type shell struct {
	out       io.Writer
	formatter *format.Formatter
	logger    log.Logger
	stats     *stats.AtomicCollector
	tel       telemetry.Telemetry

	path   string
	file   archive.File
	cursor *entries.Cursor
}

func (s *shell) open(path string) error {
	f, codec, err := archive.Open(path)
	if err != nil {
		return err
	}
	s.close()

	s.path = path
	s.file = f
	s.cursor = entries.New(f,
		entries.WithLogger(s.logger),
		entries.WithCollector(s.stats),
		entries.WithTelemetry(s.tel),
	)
	size, err := s.cursor.Len()
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Opened %s (%d bytes, %s)\n", path, size, codec)
	return nil
}

func (s *shell) close() {
	if s.file == nil {
		return
	}
	if err := s.file.Close(); err != nil {
		s.logger.Warn("failed to close %s: %v", s.path, err)
	}
	s.file, s.cursor, s.path = nil, nil, ""
}

func (s *shell) prompt() string {
	if s.path == "" {
		return "hmmsh> "
	}
	return fmt.Sprintf("hmmsh:%s> ", s.path)
}

// execute runs one line of input. It returns true when the shell should exit.
func (s *shell) execute(line string) (bool, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false, nil
	}
	cmd := strings.ToUpper(parts[0])
	args := parts[1:]

	if strings.HasPrefix(cmd, ".") {
		switch strings.ToLower(cmd) {
		case ".help":
			fmt.Fprint(s.out, helpText)
		case ".open":
			if len(args) < 1 {
				return false, errors.New("missing path argument")
			}
			return false, s.open(args[0])
		case ".close":
			if s.cursor == nil {
				return false, errNoJournal
			}
			fmt.Fprintf(s.out, "Closed %s\n", s.path)
			s.close()
		case ".exit":
			s.close()
			return true, nil
		case ".stats":
			s.printStats()
		default:
			return false, fmt.Errorf("unknown command: %s", parts[0])
		}
		return false, nil
	}

	if s.cursor == nil {
		return false, errNoJournal
	}

	switch cmd {
	case "NEXT", "N":
		return false, s.step(args, s.cursor.Next)
	case "PREV", "P":
		return false, s.step(args, s.cursor.Prev)
	case "HEAD":
		// At(0) reads the first entry, so step back over it.
		if _, err := s.cursor.At(0); err != nil {
			return false, err
		}
		_, err := s.cursor.Prev()
		return false, err
	case "END":
		return false, s.cursor.SeekToEnd()
	case "SEEK":
		if len(args) < 1 {
			return false, errors.New("SEEK requires a date")
		}
		t, err := dateparse.Parse(strings.Join(args, " "))
		if err != nil {
			return false, err
		}
		if err := s.cursor.SeekToFirst(t); err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "%s\n", s.cursor.Position())
	case "AT":
		if len(args) < 1 {
			return false, errors.New("AT requires an offset")
		}
		off, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return false, fmt.Errorf("invalid offset %q: %w", args[0], err)
		}
		return false, s.print(s.cursor.At(off))
	case "RANDOM":
		return false, s.print(s.cursor.Random(nil))
	case "FIND":
		return false, s.find(args)
	case "RANGE":
		return false, s.rangeQuery(args)
	case "GREP":
		if len(args) < 1 {
			return false, errors.New("GREP requires some text")
		}
		return false, s.run(query.Options{Contains: strings.Join(args, " ")})
	case "POS":
		fmt.Fprintf(s.out, "%s\n", s.cursor.Position())
	default:
		return false, fmt.Errorf("unknown command: %s", parts[0])
	}
	return false, nil
}

func (s *shell) step(args []string, move func() (*entry.Entry, error)) error {
	n := 1
	if len(args) > 0 {
		var err error
		if n, err = strconv.Atoi(args[0]); err != nil || n < 1 {
			return fmt.Errorf("invalid count %q", args[0])
		}
	}
	for i := 0; i < n; i++ {
		e, err := move()
		if err != nil {
			return err
		}
		if e == nil {
			fmt.Fprintln(s.out, "No more entries")
			return nil
		}
		if err := s.formatter.Fprintln(s.out, e); err != nil {
			return err
		}
	}
	return nil
}

func (s *shell) print(e *entry.Entry, err error) error {
	if err != nil {
		return err
	}
	if e == nil {
		fmt.Fprintln(s.out, "No entry")
		return nil
	}
	return s.formatter.Fprintln(s.out, e)
}

func (s *shell) find(args []string) error {
	policy := seek.FirstGreaterOrEqual
	if len(args) > 1 {
		switch strings.ToUpper(args[0]) {
		case "FIRST":
		case "LAST":
			policy = seek.LastLessThan
		case "UPTO":
			policy = seek.LastLessOrEqual
		default:
			return fmt.Errorf("unknown FIND policy %q", args[0])
		}
		args = args[1:]
	}
	if len(args) != 1 {
		return errors.New("FIND requires a prefix")
	}

	start := time.Now()
	res, err := seek.SeekPrefix(s.file, []byte(args[0]), policy)
	if err != nil {
		return err
	}
	s.stats.TrackOperationWithLatency(stats.OpSearch, uint64(time.Since(start).Nanoseconds()))
	s.stats.TrackProbes(uint64(res.Probes), uint64(res.TieRun))
	s.logger.Debug("find %s %q: %d probes, %d tie steps", policy, args[0], res.Probes, res.TieRun)

	if !res.Found {
		fmt.Fprintln(s.out, "No entry")
		return nil
	}
	return s.print(s.cursor.At(res.Offset))
}

func (s *shell) rangeQuery(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("RANGE requires a start and an optional end")
	}
	var opts query.Options
	start, err := dateparse.Parse(args[0])
	if err != nil {
		return err
	}
	opts.Start = &start
	if len(args) == 2 {
		end, err := dateparse.Parse(args[1])
		if err != nil {
			return err
		}
		opts.End = &end
	}
	return s.run(opts)
}

// run executes a query from the start of the journal and leaves the cursor
// after the last entry printed.
func (s *shell) run(opts query.Options) error {
	if opts.Start == nil {
		if _, err := s.cursor.At(0); err != nil {
			return err
		}
		if _, err := s.cursor.Prev(); err != nil {
			return err
		}
	}
	runner := query.NewRunner(
		query.WithLogger(s.logger),
		query.WithCollector(s.stats),
		query.WithTelemetry(s.tel),
	)
	n, err := runner.Run(context.Background(), s.cursor, opts, func(e *entry.Entry) error {
		return s.formatter.Fprintln(s.out, e)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%d entries\n", n)
	return nil
}

func (s *shell) printStats() {
	all := s.stats.GetStats()
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintln(s.out, "Read Statistics:")
	for _, k := range keys {
		fmt.Fprintf(s.out, "  %s: %v\n", k, all[k])
	}
}
