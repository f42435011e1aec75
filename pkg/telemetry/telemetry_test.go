// ABOUTME: Tests for the core telemetry interface, the no-op implementation, and the in-memory recorder
// ABOUTME: Validates recording helpers and span creation without an SDK

package telemetry

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

func TestNoopTelemetry(t *testing.T) {
	tel := NewNoop()
	ctx := context.Background()

	tel.RecordHistogram(ctx, "test.histogram", 1.5, attribute.String("key", "value"))
	tel.RecordCounter(ctx, "test.counter", 10, attribute.String("key", "value"))

	spanCtx, span := tel.StartSpan(ctx, "test.span", attribute.String("test", "value"))
	if spanCtx == nil {
		t.Error("StartSpan returned nil context")
	}
	if span == nil {
		t.Error("StartSpan returned nil span")
	}
	span.End()

	if err := tel.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown returned error: %v", err)
	}
}

func TestNewForTesting(t *testing.T) {
	tel := NewForTesting()
	if _, ok := tel.(*NoopTelemetry); !ok {
		t.Errorf("Expected a NoopTelemetry, got %T", tel)
	}
}

func TestRecorder(t *testing.T) {
	rec := NewRecorder()
	ctx := context.Background()

	rec.RecordCounter(ctx, "hmm.cursor.reads", 2)
	rec.RecordCounter(ctx, "hmm.cursor.reads", 3)
	RecordBytes(ctx, rec, "hmm.cursor.bytes", 44)
	RecordDuration(ctx, rec, "hmm.cursor.duration", time.Now().Add(-time.Millisecond))
	_, span := rec.StartSpan(ctx, "hmm.query")
	span.End()

	if got := rec.Counter("hmm.cursor.reads"); got != 5 {
		t.Errorf("Expected counter 5, got %d", got)
	}
	if got := rec.Counter("hmm.cursor.bytes"); got != 44 {
		t.Errorf("Expected 44 bytes, got %d", got)
	}
	samples := rec.Histogram("hmm.cursor.duration")
	if len(samples) != 1 || samples[0] <= 0 {
		t.Errorf("Expected one positive duration sample, got %v", samples)
	}
	if spans := rec.Spans(); len(spans) != 1 || spans[0] != "hmm.query" {
		t.Errorf("Expected [hmm.query], got %v", spans)
	}
	if got := rec.Counter("missing"); got != 0 {
		t.Errorf("Expected 0 for an unknown counter, got %d", got)
	}
}
