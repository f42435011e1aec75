package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"syscall"
	"time"

	"github.com/hmmjournal/hmm/pkg/cli"
	"github.com/hmmjournal/hmm/pkg/dateparse"
	"github.com/hmmjournal/hmm/pkg/entry"
	"github.com/hmmjournal/hmm/pkg/query"
)

type options struct {
	configPath string
	path       string
	format     string
	random     bool
	stats      bool
	query      query.Options
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		cli.Fail(err)
	}

	env, err := cli.Setup(opts.configPath)
	if err != nil {
		cli.Fail(err)
	}

	err = run(env, opts)
	if opts.stats {
		printStats(env)
	}
	env.Close()
	if err != nil {
		cli.Fail(err)
	}
}

func parseFlags() (options, error) {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "hmmq - query your hmm file\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: hmmq [options]\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Dates are read in local time and can be any prefix of an RFC3339 date:\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  %s\n\n", dateparse.Examples())
		fmt.Fprintf(flag.CommandLine.Output(), "Options:\n")
		flag.PrintDefaults()
	}

	var opts options
	var start, end string
	flag.StringVar(&opts.configPath, "config", "", "Path to the config file")
	flag.StringVar(&opts.path, "path", "", "Path to the journal, which may be zstd or snappy compressed")
	flag.StringVar(&opts.format, "format", "", "Template used to print each entry")
	flag.BoolVar(&opts.query.Descending, "descending", false, "Print entries in reverse chronological order")
	flag.BoolVar(&opts.random, "random", false, "Print one random entry, ignoring the other filters")
	flag.IntVar(&opts.query.Limit, "n", 0, "Number of entries to print")
	flag.StringVar(&start, "start", "", "Print entries from this date, inclusive")
	flag.StringVar(&end, "end", "", "Print entries up to this date")
	flag.StringVar(&opts.query.Contains, "contains", "", "Only print entries containing this text")
	flag.BoolVar(&opts.stats, "stats", false, "Print read statistics to stderr when done")
	flag.Parse()

	// -n 0 given explicitly is an error, but leaving -n out means no limit.
	var limitSet bool
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "n" {
			limitSet = true
		}
	})
	if limitSet && opts.query.Limit < 1 {
		return opts, query.ErrInvalidLimit
	}

	var err error
	if opts.query.Start, err = parseDate(start); err != nil {
		return opts, err
	}
	if opts.query.End, err = parseDate(end); err != nil {
		return opts, err
	}
	return opts, nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := dateparse.Parse(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func run(env *cli.Env, opts options) error {
	path := opts.path
	if path == "" {
		path = env.Config.Path
	}

	formatter, err := env.Formatter(opts.format, os.Stdout)
	if err != nil {
		return err
	}

	c, closeJournal, err := env.OpenCursor(path)
	if err != nil {
		return err
	}
	defer closeJournal()

	out := bufio.NewWriter(os.Stdout)
	emit := func(e *entry.Entry) error {
		return formatter.Fprintln(out, e)
	}

	runner := query.NewRunner(
		query.WithLogger(env.Logger),
		query.WithCollector(env.Stats),
		query.WithTelemetry(env.Telemetry),
	)
	if opts.random {
		_, err = runner.Random(c, nil, emit)
	} else {
		_, err = runner.Run(context.Background(), c, opts.query, emit)
	}
	if flushErr := out.Flush(); err == nil {
		err = flushErr
	}
	if errors.Is(err, syscall.EPIPE) {
		return nil
	}
	return err
}

func printStats(env *cli.Env) {
	s := env.Stats.GetStats()
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(os.Stderr, "%s: %v\n", k, s[k])
	}
}
