package query

import (
	"bytes"
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/hmmjournal/hmm/pkg/entries"
	"github.com/hmmjournal/hmm/pkg/entry"
	"github.com/hmmjournal/hmm/pkg/stats"
	"github.com/hmmjournal/hmm/pkg/telemetry"
)

const testData = `2020-01-01T00:01:00.899849209+00:00,"""1"""
2020-02-12T23:08:40.987613062+00:00,"""2"""
2020-03-12T00:00:00+00:00,"""3"""
2020-04-12T23:28:45.726598931+00:00,"""4"""
2020-05-12T23:28:48.495151445+00:00,"""5"""
2020-06-13T10:12:53.353050231+00:00,"""6"""
`

func date(s string) *time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func run(t *testing.T, data string, opts Options) string {
	t.Helper()
	c := entries.New(bytes.NewReader([]byte(data)))
	var got []string
	_, err := NewRunner().Run(context.Background(), c, opts, func(e *entry.Entry) error {
		got = append(got, e.Message)
		return nil
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return strings.Join(got, ",")
}

func TestRun(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want string
	}{
		{"everything", Options{}, "1,2,3,4,5,6"},
		{"first one", Options{Limit: 1}, "1"},
		{"first two", Options{Limit: 2}, "1,2"},
		{"last two", Options{Limit: 2, Descending: true}, "6,5"},
		{"all descending", Options{Descending: true}, "6,5,4,3,2,1"},
		{"descending before end", Options{Limit: 2, Descending: true, End: date("2020-05-12T23:28:49Z")}, "5,4"},
		{"descending end exactly on entry", Options{Descending: true, End: date("2020-03-12T00:00:00Z")}, "3,2,1"},
		{"start after end descending", Options{Descending: true, Start: date("2021-01-01T00:00:00Z"), End: date("2020-01-01T00:00:00Z")}, ""},
		{"start after end", Options{Start: date("2021-01-01T00:00:00Z"), End: date("2020-01-01T00:00:00Z")}, ""},
		{"single day", Options{Start: date("2020-06-13T00:00:00Z"), End: date("2020-06-14T00:00:00Z")}, "6"},
		{"start inclusive", Options{Start: date("2020-03-12T00:00:00Z")}, "3,4,5,6"},
		{"end inclusive", Options{End: date("2020-03-12T00:00:00Z")}, "1,2,3"},
		{"descending start", Options{Descending: true, Start: date("2020-04-01T00:00:00Z")}, "6,5,4"},
		{"range descending", Options{Descending: true, Start: date("2020-02-01T00:00:00Z"), End: date("2020-05-01T00:00:00Z")}, "4,3,2"},
		{"start past everything", Options{Start: date("2030-01-01T00:00:00Z")}, ""},
		{"end before everything descending", Options{Descending: true, End: date("2019-01-01T00:00:00Z")}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := run(t, testData, tt.opts); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRunContains(t *testing.T) {
	data := `2020-01-01T00:00:00.000000000+00:00,"""went for a run"""
2020-01-02T00:00:00.000000000+00:00,"""read a book"""
2020-01-03T00:00:00.000000000+00:00,"""another run"""
2020-01-04T00:00:00.000000000+00:00,"""ran again, run"""
`

	tests := []struct {
		name string
		opts Options
		want string
	}{
		{"ascending", Options{Contains: "run"}, "went for a run,another run,ran again, run"},
		{"limit counts matches only", Options{Contains: "run", Limit: 2}, "went for a run,another run"},
		{"descending", Options{Contains: "run", Descending: true, Limit: 1}, "ran again, run"},
		{"no match", Options{Contains: "swim"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := run(t, data, tt.opts); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRunDescendingEndWithDuplicates(t *testing.T) {
	ts := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	for i, offset := range []time.Duration{0, time.Hour, time.Hour, time.Hour, 2 * time.Hour} {
		line, err := entry.Encode(entry.New(ts.Add(offset), string(rune('a'+i))))
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		buf.Write(line)
	}

	end := ts.Add(time.Hour)
	got := run(t, buf.String(), Options{Descending: true, End: &end})
	if got != "d,c,b,a" {
		t.Errorf("Expected every entry at the end time, got %q", got)
	}
}

func TestRunInvalidLimit(t *testing.T) {
	c := entries.New(bytes.NewReader([]byte(testData)))
	_, err := NewRunner().Run(context.Background(), c, Options{Limit: -1}, func(*entry.Entry) error { return nil })
	if !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("Expected ErrInvalidLimit, got %v", err)
	}
}

func TestRunStopsOnEmitError(t *testing.T) {
	c := entries.New(bytes.NewReader([]byte(testData)))
	broken := errors.New("broken pipe")

	calls := 0
	n, err := NewRunner().Run(context.Background(), c, Options{}, func(*entry.Entry) error {
		calls++
		if calls == 3 {
			return broken
		}
		return nil
	})
	if !errors.Is(err, broken) {
		t.Errorf("Expected emit error, got %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 entries emitted, got %d", n)
	}

	c = entries.New(bytes.NewReader([]byte(testData)))
	n, err = NewRunner().Run(context.Background(), c, Options{}, func(*entry.Entry) error {
		return ErrStop
	})
	if err != nil || n != 0 {
		t.Errorf("Expected ErrStop to end quietly, got n=%d err=%v", n, err)
	}
}

func TestRunPropagatesDecodeErrors(t *testing.T) {
	data := strings.Replace(testData, `"""2"""`, `not json`, 1)
	c := entries.New(bytes.NewReader([]byte(data)))
	_, err := NewRunner().Run(context.Background(), c, Options{}, func(*entry.Entry) error { return nil })
	if !errors.Is(err, entry.ErrMalformedEntry) {
		t.Errorf("Expected a malformed entry error, got %v", err)
	}
}

func TestRandom(t *testing.T) {
	c := entries.New(bytes.NewReader([]byte(testData)))
	var got *entry.Entry
	n, err := NewRunner().Random(c, rand.New(rand.NewPCG(3, 4)), func(e *entry.Entry) error {
		got = e
		return nil
	})
	if err != nil {
		t.Fatalf("Random failed: %v", err)
	}
	if n != 1 || got == nil {
		t.Fatalf("Expected one entry, got %d", n)
	}

	c = entries.New(bytes.NewReader(nil))
	n, err = NewRunner().Random(c, nil, func(*entry.Entry) error {
		t.Errorf("Did not expect an entry from an empty journal")
		return nil
	})
	if err != nil || n != 0 {
		t.Errorf("Expected nothing from an empty journal, got n=%d err=%v", n, err)
	}
}

func TestRunnerInstrumentation(t *testing.T) {
	collector := stats.NewAtomicCollector()
	rec := telemetry.NewRecorder()
	runner := NewRunner(WithCollector(collector), WithTelemetry(rec))

	c := entries.New(bytes.NewReader([]byte(testData)))
	if _, err := runner.Run(context.Background(), c, Options{Limit: 4}, func(*entry.Entry) error { return nil }); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	s := collector.GetStats()
	if n := s["query_ops"].(uint64); n != 1 {
		t.Errorf("Expected 1 query, got %d", n)
	}
	if n := s["entries_returned"].(uint64); n != 4 {
		t.Errorf("Expected 4 entries returned, got %d", n)
	}
	if n := rec.Counter("hmm.query.entries"); n != 4 {
		t.Errorf("Expected 4 entries recorded, got %d", n)
	}
	if spans := rec.Spans(); len(spans) != 1 || spans[0] != "hmm.query" {
		t.Errorf("Expected one hmm.query span, got %v", spans)
	}
}
