package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// BenchmarkResult stores the results of a benchmark
type BenchmarkResult struct {
	BenchmarkType string
	FileSize      int64
	Operations    int
	Entries       int
	Duration      float64
	Throughput    float64
	Latency       float64
	AvgProbes     float64 // For seek benchmarks
	EntriesPerSec float64 // For scan and query benchmarks
	Timestamp     time.Time
}

func (r BenchmarkResult) String() string {
	s := fmt.Sprintf("\n%s Benchmark Results:", r.BenchmarkType)
	s += fmt.Sprintf("\n  Operations: %d", r.Operations)
	s += fmt.Sprintf("\n  Entries Read: %d", r.Entries)
	s += fmt.Sprintf("\n  Time: %.2f seconds", r.Duration)
	s += fmt.Sprintf("\n  Throughput: %.2f ops/sec", r.Throughput)
	s += fmt.Sprintf("\n  Latency: %.3f µs/op", r.Latency)
	if r.AvgProbes > 0 {
		s += fmt.Sprintf("\n  Probes: %.1f per seek", r.AvgProbes)
	}
	if r.EntriesPerSec > 0 {
		s += fmt.Sprintf("\n  Entries: %.2f entries/sec", r.EntriesPerSec)
	}
	return s
}

var csvHeader = []string{
	"Timestamp", "BenchmarkType", "FileSize", "Operations", "Entries",
	"Duration", "Throughput", "Latency", "AvgProbes", "EntriesPerSec",
}

// SaveResultCSV saves benchmark results to a CSV file
func SaveResultCSV(results []BenchmarkResult, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range results {
		record := []string{
			r.Timestamp.Format(time.RFC3339),
			r.BenchmarkType,
			strconv.FormatInt(r.FileSize, 10),
			strconv.Itoa(r.Operations),
			strconv.Itoa(r.Entries),
			fmt.Sprintf("%.2f", r.Duration),
			fmt.Sprintf("%.2f", r.Throughput),
			fmt.Sprintf("%.3f", r.Latency),
			fmt.Sprintf("%.2f", r.AvgProbes),
			fmt.Sprintf("%.2f", r.EntriesPerSec),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// LoadResultCSV loads benchmark results from a CSV file
func LoadResultCSV(filename string) ([]BenchmarkResult, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}

	// Skip header
	if len(records) <= 1 {
		return []BenchmarkResult{}, nil
	}
	records = records[1:]

	results := make([]BenchmarkResult, 0, len(records))
	for _, record := range records {
		if len(record) < len(csvHeader) {
			continue
		}

		timestamp, _ := time.Parse(time.RFC3339, record[0])
		fileSize, _ := strconv.ParseInt(record[2], 10, 64)
		operations, _ := strconv.Atoi(record[3])
		entries, _ := strconv.Atoi(record[4])
		duration, _ := strconv.ParseFloat(record[5], 64)
		throughput, _ := strconv.ParseFloat(record[6], 64)
		latency, _ := strconv.ParseFloat(record[7], 64)
		avgProbes, _ := strconv.ParseFloat(record[8], 64)
		entriesPerSec, _ := strconv.ParseFloat(record[9], 64)

		results = append(results, BenchmarkResult{
			Timestamp:     timestamp,
			BenchmarkType: record[1],
			FileSize:      fileSize,
			Operations:    operations,
			Entries:       entries,
			Duration:      duration,
			Throughput:    throughput,
			Latency:       latency,
			AvgProbes:     avgProbes,
			EntriesPerSec: entriesPerSec,
		})
	}

	return results, nil
}

// PrintResultTable prints a formatted table of benchmark results
func PrintResultTable(w io.Writer, results []BenchmarkResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results to display")
		return
	}

	fmt.Fprintln(w, "+-----------------+------------+------------+----------+--------+")
	fmt.Fprintln(w, "| Benchmark Type  | Operations | Throughput | Latency  | Probes |")
	fmt.Fprintln(w, "+-----------------+------------+------------+----------+--------+")

	for _, r := range results {
		probes := "-"
		if r.AvgProbes > 0 {
			probes = fmt.Sprintf("%.1f", r.AvgProbes)
		}

		latencyUnit := "µs"
		latency := r.Latency
		if latency > 1000 {
			latencyUnit = "ms"
			latency /= 1000
		}

		fmt.Fprintf(w, "| %-15s | %10d | %10.2f | %6.2f%s | %6s |\n",
			r.BenchmarkType,
			r.Operations,
			r.Throughput,
			latency, latencyUnit,
			probes)
	}
	fmt.Fprintln(w, "+-----------------+------------+------------+----------+--------+")
}
