package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hmmjournal/hmm/pkg/common/log"
	"github.com/hmmjournal/hmm/pkg/entry"
	"github.com/hmmjournal/hmm/pkg/telemetry"
)

type memFile struct {
	*bytes.Reader
}

func (memFile) Close() error { return nil }

func journal(t *testing.T, n int) memFile {
	t.Helper()
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	for i := 0; i < n; i++ {
		line, err := entry.Encode(entry.New(base.Add(time.Duration(i)*time.Hour), "entry"))
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		buf.Write(line)
	}
	return memFile{bytes.NewReader(buf.Bytes())}
}

func TestBenchmarks(t *testing.T) {
	b, err := newBench(journal(t, 100), 5*time.Millisecond, 1, log.NewNop(), telemetry.NewNoop())
	if err != nil {
		t.Fatalf("newBench failed: %v", err)
	}

	for _, typ := range benchmarkTypes {
		t.Run(typ, func(t *testing.T) {
			result, err := b.run(typ)
			if err != nil {
				t.Fatalf("run failed: %v", err)
			}
			if result.Operations == 0 {
				t.Fatalf("Expected at least one operation")
			}
			if result.Entries == 0 {
				t.Errorf("Expected entries to be read")
			}
			if (typ == "seek" || typ == "find") && result.AvgProbes == 0 {
				t.Errorf("Expected probes to be counted")
			}
		})
	}

	if _, err := b.run("sideways"); err == nil {
		t.Errorf("Expected an unknown benchmark to fail")
	}
}

func TestScanReadsEverything(t *testing.T) {
	b, err := newBench(journal(t, 10), time.Millisecond, 1, log.NewNop(), telemetry.NewNoop())
	if err != nil {
		t.Fatalf("newBench failed: %v", err)
	}
	for _, reverse := range []bool{false, true} {
		c, collector := b.cursor()
		n, err := b.scan(reverse)(c, collector)
		if err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		if n != 10 {
			t.Errorf("reverse=%v: expected 10 entries, got %d", reverse, n)
		}
	}
}

func TestEmptyJournal(t *testing.T) {
	_, err := newBench(memFile{bytes.NewReader(nil)}, time.Millisecond, 1, log.NewNop(), telemetry.NewNoop())
	if !errors.Is(err, errEmptyJournal) {
		t.Errorf("Expected errEmptyJournal, got %v", err)
	}
}

func TestResultCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.csv")
	results := []BenchmarkResult{
		{BenchmarkType: "Seek", FileSize: 4400, Operations: 10, Entries: 10, Duration: 1, Throughput: 10, Latency: 100000, AvgProbes: 7.5, Timestamp: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	if err := SaveResultCSV(results, path); err != nil {
		t.Fatalf("SaveResultCSV failed: %v", err)
	}
	loaded, err := LoadResultCSV(path)
	if err != nil {
		t.Fatalf("LoadResultCSV failed: %v", err)
	}
	if len(loaded) != 1 || loaded[0].BenchmarkType != "Seek" || loaded[0].AvgProbes != 7.5 || loaded[0].FileSize != 4400 {
		t.Errorf("Unexpected results %+v", loaded)
	}

	var out bytes.Buffer
	PrintResultTable(&out, loaded)
	if !strings.Contains(out.String(), "| Seek ") || !strings.Contains(out.String(), "7.5") {
		t.Errorf("Expected the table to show the result, got:\n%s", out.String())
	}
}
