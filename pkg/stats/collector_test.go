package stats

import (
	"sync"
	"testing"
)

func TestCollector_TrackOperation(t *testing.T) {
	collector := NewAtomicCollector()

	collector.TrackOperation(OpNext)
	collector.TrackOperation(OpNext)
	collector.TrackOperation(OpPrev)

	stats := collector.GetStats()

	if stats["next_ops"].(uint64) != 2 {
		t.Errorf("Expected 2 next operations, got %v", stats["next_ops"])
	}
	if stats["prev_ops"].(uint64) != 1 {
		t.Errorf("Expected 1 prev operation, got %v", stats["prev_ops"])
	}
	if _, exists := stats["last_next_time"]; !exists {
		t.Errorf("Expected last_next_time to exist in stats")
	}
}

func TestCollector_TrackOperationWithLatency(t *testing.T) {
	collector := NewAtomicCollector()

	collector.TrackOperationWithLatency(OpSeekFirst, 100)
	collector.TrackOperationWithLatency(OpSeekFirst, 300)
	collector.TrackOperationWithLatency(OpSeekFirst, 200)

	stats := collector.GetStats()
	latencyStats, ok := stats["seek_first_latency"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected seek_first_latency to be a map, got %T", stats["seek_first_latency"])
	}

	if count := latencyStats["count"].(uint64); count != 3 {
		t.Errorf("Expected 3 latency records, got %v", count)
	}
	if avg := latencyStats["avg_ns"].(uint64); avg != 200 {
		t.Errorf("Expected average latency 200ns, got %v", avg)
	}
	if min := latencyStats["min_ns"].(uint64); min != 100 {
		t.Errorf("Expected min latency 100ns, got %v", min)
	}
	if max := latencyStats["max_ns"].(uint64); max != 300 {
		t.Errorf("Expected max latency 300ns, got %v", max)
	}
	if ops := stats["seek_first_ops"].(uint64); ops != 3 {
		t.Errorf("Expected 3 seek_first operations, got %v", ops)
	}
}

func TestCollector_ConcurrentAccess(t *testing.T) {
	collector := NewAtomicCollector()
	const numGoroutines = 10
	const opsPerGoroutine = 999

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < opsPerGoroutine; j++ {
				switch j % 3 {
				case 0:
					collector.TrackOperation(OpNext)
				case 1:
					collector.TrackOperation(OpPrev)
				case 2:
					collector.TrackOperationWithLatency(OpAt, uint64(j+1))
				}
				collector.TrackBytes(false, 1)
			}
		}()
	}
	wg.Wait()

	stats := collector.GetStats()
	expectedOps := uint64(numGoroutines * opsPerGoroutine / 3)

	for _, key := range []string{"next_ops", "prev_ops", "at_ops"} {
		if ops := stats[key].(uint64); ops != expectedOps {
			t.Errorf("Expected %d %s, got %v", expectedOps, key, ops)
		}
	}
	if read := stats["total_bytes_read"].(uint64); read != numGoroutines*opsPerGoroutine {
		t.Errorf("Expected %d bytes read, got %v", numGoroutines*opsPerGoroutine, read)
	}
}

func TestCollector_GetStatsFiltered(t *testing.T) {
	collector := NewAtomicCollector()

	collector.TrackOperation(OpSeekFirst)
	collector.TrackOperation(OpSeekEnd)
	collector.TrackOperation(OpNext)
	collector.TrackError("decode")

	seekStats := collector.GetStatsFiltered("seek")
	if _, exists := seekStats["seek_first_ops"]; !exists {
		t.Errorf("Expected seek_first_ops in filtered stats")
	}
	if _, exists := seekStats["seek_end_ops"]; !exists {
		t.Errorf("Expected seek_end_ops in filtered stats")
	}
	if _, exists := seekStats["next_ops"]; exists {
		t.Errorf("Did not expect next_ops in seek-filtered stats")
	}

	errorStats := collector.GetStatsFiltered("error")
	errs, ok := errorStats["errors"].(map[string]uint64)
	if !ok {
		t.Fatalf("Expected errors in error-filtered stats")
	}
	if errs["decode"] != 1 {
		t.Errorf("Expected 1 decode error, got %d", errs["decode"])
	}
}

func TestCollector_TrackBytes(t *testing.T) {
	collector := NewAtomicCollector()

	collector.TrackBytes(true, 1000)
	collector.TrackBytes(false, 500)

	stats := collector.GetStats()
	if written := stats["total_bytes_written"].(uint64); written != 1000 {
		t.Errorf("Expected 1000 bytes written, got %v", written)
	}
	if read := stats["total_bytes_read"].(uint64); read != 500 {
		t.Errorf("Expected 500 bytes read, got %v", read)
	}
}

func TestCollector_TrackProbes(t *testing.T) {
	collector := NewAtomicCollector()

	collector.TrackProbes(10, 0)
	collector.TrackProbes(20, 5)
	collector.TrackEntries(7)

	stats := collector.GetStats()
	search, ok := stats["search"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected search stats to be a map")
	}

	if n := search["count"].(uint64); n != 2 {
		t.Errorf("Expected 2 searches, got %v", n)
	}
	if n := search["probes"].(uint64); n != 30 {
		t.Errorf("Expected 30 probes, got %v", n)
	}
	if n := search["avg_probes"].(uint64); n != 15 {
		t.Errorf("Expected 15 average probes, got %v", n)
	}
	if n := search["max_probes"].(uint64); n != 20 {
		t.Errorf("Expected max 20 probes, got %v", n)
	}
	if n := search["tie_steps"].(uint64); n != 5 {
		t.Errorf("Expected 5 tie steps, got %v", n)
	}
	if n := stats["entries_returned"].(uint64); n != 7 {
		t.Errorf("Expected 7 entries returned, got %v", n)
	}
}
