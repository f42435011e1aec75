// ABOUTME: Journal telemetry metrics interface and implementation for tracking writes
// ABOUTME: Provides instrumentation for appends and compressed snapshots

package journal

import (
	"context"
	"errors"
	"time"

	"github.com/hmmjournal/hmm/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Metrics defines the telemetry a Journal reports.
type Metrics interface {
	telemetry.ComponentMetrics

	// RecordAppend records one locked write of count entries.
	RecordAppend(ctx context.Context, duration time.Duration, count int, bytes int64, err error)

	// RecordSnapshot records a compressed copy of the journal.
	RecordSnapshot(ctx context.Context, duration time.Duration, bytes int64, format string, err error)
}

type journalMetrics struct {
	tel telemetry.Telemetry
}

// NewMetrics creates Metrics backed by tel.
// If tel is nil, returns a no-op implementation.
func NewMetrics(tel telemetry.Telemetry) Metrics {
	if tel == nil {
		return &noopMetrics{}
	}
	return &journalMetrics{tel: tel}
}

func (m *journalMetrics) RecordAppend(ctx context.Context, duration time.Duration, count int, bytes int64, err error) {
	attrs := []attribute.KeyValue{
		attribute.String(telemetry.AttrComponent, telemetry.ComponentJournal),
		attribute.String(telemetry.AttrStatus, status(err)),
	}
	if err != nil {
		attrs = append(attrs, attribute.String(telemetry.AttrErrorType, errorType(err)))
	}
	m.tel.RecordHistogram(ctx, "hmm.journal.append.duration", duration.Seconds(), attrs...)
	m.tel.RecordCounter(ctx, "hmm.journal.appends.total", 1, attrs...)
	if err == nil {
		m.tel.RecordCounter(ctx, "hmm.journal.entries.written", int64(count), attrs[0])
		telemetry.RecordBytes(ctx, m.tel, "hmm.journal.bytes_written", bytes, attrs[0])
	}
}

func (m *journalMetrics) RecordSnapshot(ctx context.Context, duration time.Duration, bytes int64, format string, err error) {
	attrs := []attribute.KeyValue{
		attribute.String(telemetry.AttrComponent, telemetry.ComponentArchive),
		attribute.String(telemetry.AttrFormat, format),
		attribute.String(telemetry.AttrStatus, status(err)),
	}
	m.tel.RecordHistogram(ctx, "hmm.journal.snapshot.duration", duration.Seconds(), attrs...)
	telemetry.RecordBytes(ctx, m.tel, "hmm.journal.snapshot.bytes", bytes, attrs...)
}

func (m *journalMetrics) Close() error {
	return nil
}

func status(err error) string {
	if err != nil {
		return telemetry.StatusError
	}
	return telemetry.StatusSuccess
}

func errorType(err error) string {
	switch {
	case errors.Is(err, ErrClockSkew):
		return "clock_skew"
	case errors.Is(err, ErrOutOfOrder):
		return "out_of_order"
	default:
		return "io"
	}
}

type noopMetrics struct{}

func (n *noopMetrics) RecordAppend(ctx context.Context, duration time.Duration, count int, bytes int64, err error) {
}

func (n *noopMetrics) RecordSnapshot(ctx context.Context, duration time.Duration, bytes int64, format string, err error) {
}

func (n *noopMetrics) Close() error {
	return nil
}
