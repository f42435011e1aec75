package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/hmmjournal/hmm/pkg/cli"
	"github.com/hmmjournal/hmm/pkg/common/log"
	"github.com/hmmjournal/hmm/pkg/entry"
	"github.com/hmmjournal/hmm/pkg/journal"
)

var words = strings.Fields(`lorem ipsum dolor sit amet consectetur adipiscing elit sed do
eiusmod tempor incididunt ut labore et dolore magna aliqua enim ad minim veniam
quis nostrud exercitation ullamco laboris nisi aliquip ex ea commodo consequat
duis aute irure in reprehenderit voluptate velit esse cillum eu fugiat nulla
pariatur excepteur sint occaecat cupidatat non proident sunt culpa qui officia
deserunt mollit anim id est laborum`)

type options struct {
	path          string
	entriesPerDay int
	numDays       int
	wordsPerEntry int
	seed          uint64
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "hmmdg - generate a synthetic hmm file for benchmarking\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: hmmdg -path FILE [options]\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Options:\n")
		flag.PrintDefaults()
	}

	var opts options
	configPath := flag.String("config", "", "Path to the config file")
	flag.StringVar(&opts.path, "path", "", "File to create; it must not exist")
	flag.IntVar(&opts.entriesPerDay, "entries-per-day", 1440, "Entries generated for each day")
	flag.IntVar(&opts.numDays, "num-days", 3650, "Number of days ending now to cover")
	flag.IntVar(&opts.wordsPerEntry, "words", 20, "Words in each entry")
	flag.Uint64Var(&opts.seed, "seed", uint64(time.Now().UnixNano()), "Random seed for entry text")
	flag.Parse()

	if opts.path == "" {
		flag.Usage()
		os.Exit(2)
	}

	env, err := cli.Setup(*configPath)
	if err != nil {
		cli.Fail(err)
	}

	start := time.Now()
	n, err := run(env, opts, time.Now())
	env.Close()
	if err != nil {
		cli.Fail(err)
	}
	env.Logger.Info("wrote %d entries to %s in %s", n, opts.path, time.Since(start).Round(time.Millisecond))
}

func run(env *cli.Env, opts options, now time.Time) (int, error) {
	if opts.entriesPerDay < 1 || opts.numDays < 1 {
		return 0, errors.New("-entries-per-day and -num-days must be at least 1")
	}
	if _, err := os.Stat(opts.path); err == nil {
		return 0, fmt.Errorf("error creating file at %s: %w", opts.path, os.ErrExist)
	}

	j, err := journal.Open(opts.path,
		journal.WithLogger(env.Logger),
		journal.WithCollector(env.Stats),
		journal.WithTelemetry(env.Telemetry),
	)
	if err != nil {
		return 0, err
	}
	defer j.Close()

	return generate(context.Background(), j, opts, now, env.Logger)
}

// generate writes one batch per day, spacing entries evenly across the day
// and ending at now.
func generate(ctx context.Context, j *journal.Journal, opts options, now time.Time, logger log.Logger) (int, error) {
	rng := rand.New(rand.NewPCG(opts.seed, opts.seed>>1|1))
	first := now.AddDate(0, 0, -opts.numDays)
	step := 24 * time.Hour / time.Duration(opts.entriesPerDay)

	total := opts.entriesPerDay * opts.numDays
	batch := make([]*entry.Entry, 0, opts.entriesPerDay)
	written := 0
	for day := 0; day < opts.numDays; day++ {
		batch = batch[:0]
		for i := 0; i < opts.entriesPerDay; i++ {
			t := first.Add(step * time.Duration(written+i))
			batch = append(batch, entry.New(t, lipsum(rng, opts.wordsPerEntry)))
		}
		if err := j.AppendBatch(ctx, batch); err != nil {
			return written, err
		}
		written += len(batch)

		if tenth := opts.numDays / 10; tenth > 0 && (day+1)%tenth == 0 {
			logger.Info("%d/%d entries (%d%%)", written, total, written*100/total)
		}
	}
	return written, nil
}

func lipsum(rng *rand.Rand, n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = words[rng.IntN(len(words))]
	}
	return strings.Join(out, " ")
}
