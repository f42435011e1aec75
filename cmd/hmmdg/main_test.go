package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hmmjournal/hmm/pkg/common/log"
	"github.com/hmmjournal/hmm/pkg/entries"
	"github.com/hmmjournal/hmm/pkg/journal"
)

func TestGenerate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.csv")
	j, err := journal.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer j.Close()

	now := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	opts := options{path: path, entriesPerDay: 24, numDays: 3, wordsPerEntry: 5, seed: 42}
	n, err := generate(context.Background(), j, opts, now, log.NewNop())
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if n != 72 {
		t.Fatalf("Expected 72 entries, got %d", n)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	c := entries.New(f)
	first, err := c.Next()
	if err != nil || first == nil {
		t.Fatalf("Expected a first entry, got %v", err)
	}
	if want := now.AddDate(0, 0, -3); !first.Time.Equal(want) {
		t.Errorf("Expected first entry at %s, got %s", want, first.Time)
	}
	if got := len(strings.Fields(first.Message)); got != 5 {
		t.Errorf("Expected 5 words, got %d", got)
	}

	if err := c.SeekToEnd(); err != nil {
		t.Fatalf("SeekToEnd failed: %v", err)
	}
	last, err := c.Prev()
	if err != nil || last == nil {
		t.Fatalf("Expected a last entry, got %v", err)
	}
	if want := now.Add(-time.Hour); !last.Time.Equal(want) {
		t.Errorf("Expected last entry at %s, got %s", want, last.Time)
	}
}

func TestRunRefusesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.csv")
	if err := os.WriteFile(path, []byte("precious\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, err := run(nil, options{path: path, entriesPerDay: 1, numDays: 1}, time.Now())
	if !errors.Is(err, os.ErrExist) {
		t.Fatalf("Expected an exists error, got %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "precious\n" {
		t.Errorf("Expected the file to be untouched, got %q", data)
	}
}
