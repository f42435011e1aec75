package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/hmmjournal/hmm/pkg/archive"
	"github.com/hmmjournal/hmm/pkg/cli"
)

var (
	// Command line flags
	configPath    = flag.String("config", "", "Path to the config file")
	journalPath   = flag.String("path", "", "Journal to benchmark, defaults to the configured journal")
	benchmarkType = flag.String("type", "all", "Benchmarks to run: "+strings.Join(benchmarkTypes, ", ")+", or all")
	duration      = flag.Duration("duration", 5*time.Second, "Duration to run each benchmark")
	seed          = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Random seed for probe targets")
	cpuProfile    = flag.String("cpu-profile", "", "Write CPU profile to file")
	memProfile    = flag.String("mem-profile", "", "Write memory profile to file")
	resultsFile   = flag.String("results", "", "File to write results to (in addition to stdout)")
	csvFile       = flag.String("csv", "", "File to write results to as CSV")
)

func main() {
	flag.Parse()

	env, err := cli.Setup(*configPath)
	if err != nil {
		cli.Fail(err)
	}
	defer env.Close()

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			cli.Fail(fmt.Errorf("could not create CPU profile: %w", err))
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			cli.Fail(fmt.Errorf("could not start CPU profile: %w", err))
		}
		defer pprof.StopCPUProfile()
	}

	path := *journalPath
	if path == "" {
		path = env.Config.Path
	}
	f, codec, err := archive.Open(path)
	if err != nil {
		cli.Fail(err)
	}
	defer f.Close()

	b, err := newBench(f, *duration, *seed, env.Logger, env.Telemetry)
	if err != nil {
		cli.Fail(err)
	}

	types := benchmarkTypes
	if *benchmarkType != "all" {
		types = strings.Split(*benchmarkType, ",")
	}

	report := []string{
		fmt.Sprintf("Benchmark Report (%s)", time.Now().Format(time.RFC3339)),
		fmt.Sprintf("Journal: %s, %d bytes (%s), %s to %s, Duration: %s",
			path, b.size, codec, b.first.Format(time.RFC3339), b.last.Format(time.RFC3339), *duration),
	}
	var results []BenchmarkResult
	for _, typ := range types {
		result, err := b.run(strings.ToLower(strings.TrimSpace(typ)))
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		results = append(results, result)
		report = append(report, result.String())
	}

	for _, line := range report {
		fmt.Println(line)
	}
	fmt.Println()
	PrintResultTable(os.Stdout, results)

	if *resultsFile != "" {
		if err := os.WriteFile(*resultsFile, []byte(strings.Join(report, "\n")), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write results to file: %v\n", err)
		}
	}
	if *csvFile != "" {
		if err := SaveResultCSV(results, *csvFile); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write CSV results: %v\n", err)
		}
	}

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create memory profile: %v\n", err)
			return
		}
		defer f.Close()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Could not write memory profile: %v\n", err)
		}
	}
}
