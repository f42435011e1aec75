// ABOUTME: Cursor telemetry metrics interface and implementation for tracking journal navigation
// ABOUTME: Provides instrumentation for reads, searches, and decode failures

package entries

import (
	"context"
	"time"

	"github.com/hmmjournal/hmm/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// CursorMetrics defines the telemetry a Cursor reports.
type CursorMetrics interface {
	telemetry.ComponentMetrics

	// RecordRead records one cursor operation and the bytes it consumed.
	RecordRead(ctx context.Context, op string, duration time.Duration, bytes int64, found bool)

	// RecordSearch records a timestamp binary search.
	RecordSearch(ctx context.Context, duration time.Duration, probes int, found bool)

	// RecordDecodeError records a line that could not be decoded.
	RecordDecodeError(ctx context.Context, offset int64)
}

type cursorMetrics struct {
	tel telemetry.Telemetry
}

// NewCursorMetrics creates CursorMetrics backed by tel.
// If tel is nil, returns a no-op implementation.
func NewCursorMetrics(tel telemetry.Telemetry) CursorMetrics {
	if tel == nil {
		return &noopCursorMetrics{}
	}
	return &cursorMetrics{tel: tel}
}

func (m *cursorMetrics) RecordRead(ctx context.Context, op string, duration time.Duration, bytes int64, found bool) {
	attrs := []attribute.KeyValue{
		attribute.String(telemetry.AttrComponent, telemetry.ComponentCursor),
		attribute.String(telemetry.AttrOperationType, op),
		attribute.Bool(telemetry.AttrFound, found),
	}
	m.tel.RecordHistogram(ctx, "hmm.cursor.duration", duration.Seconds(), attrs...)
	m.tel.RecordCounter(ctx, "hmm.cursor.operations.total", 1, attrs...)
	if bytes > 0 {
		m.tel.RecordCounter(ctx, "hmm.cursor.bytes_read", bytes,
			attribute.String(telemetry.AttrComponent, telemetry.ComponentCursor),
		)
	}
}

func (m *cursorMetrics) RecordSearch(ctx context.Context, duration time.Duration, probes int, found bool) {
	m.tel.RecordHistogram(ctx, "hmm.cursor.search.duration", duration.Seconds(),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentCursor),
		attribute.Bool(telemetry.AttrFound, found),
	)
	m.tel.RecordHistogram(ctx, "hmm.cursor.search.probes", float64(probes),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentCursor),
	)
}

func (m *cursorMetrics) RecordDecodeError(ctx context.Context, offset int64) {
	m.tel.RecordCounter(ctx, "hmm.cursor.decode_errors", 1,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentCursor),
		attribute.String(telemetry.AttrStatus, telemetry.StatusError),
		attribute.Int64("offset", offset),
	)
}

func (m *cursorMetrics) Close() error {
	return nil
}

type noopCursorMetrics struct{}

func (n *noopCursorMetrics) RecordRead(ctx context.Context, op string, duration time.Duration, bytes int64, found bool) {
}

func (n *noopCursorMetrics) RecordSearch(ctx context.Context, duration time.Duration, probes int, found bool) {
}

func (n *noopCursorMetrics) RecordDecodeError(ctx context.Context, offset int64) {}

func (n *noopCursorMetrics) Close() error {
	return nil
}
