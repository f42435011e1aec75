// Package entry defines a journal entry and its on-disk line encoding.
//
// A line is a two-field CSV row: a timestamp followed by the message encoded
// as a JSON string. Timestamps are always written in UTC with nanosecond
// precision and a numeric offset, so every timestamp has the same width and
// the byte order of lines matches their chronological order. That property
// is what allows raw prefix searches over a journal file.
package entry

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	jsoniter "github.com/json-iterator/go"
)

// TimeLayout is the layout used for every timestamp written to a journal.
const TimeLayout = "2006-01-02T15:04:05.000000000-07:00"

// TimeWidth is the encoded width of a timestamp in bytes.
const TimeWidth = len(TimeLayout)

var (
	// ErrMalformedEntry is returned when a line cannot be decoded.
	ErrMalformedEntry = errors.New("malformed entry")

	// Messages are stored as JSON strings. HTML escaping is disabled so
	// messages containing <, > or & stay readable in the file.
	json = jsoniter.Config{EscapeHTML: false}.Froze()
)

// Entry is a single timestamped journal record.
type Entry struct {
	Time    time.Time
	Message string

	// Raw holds the line the entry was decoded from, without its line
	// terminator. It is empty for entries that were never read from disk.
	Raw []byte
}

// New creates an entry with the given time and message.
func New(t time.Time, message string) *Entry {
	return &Entry{Time: t, Message: message}
}

// WithMessage creates an entry timestamped now, trimming surrounding
// whitespace from the message.
func WithMessage(message string) *Entry {
	return New(time.Now(), strings.TrimSpace(message))
}

// Contains reports whether the message contains s.
func (e *Entry) Contains(s string) bool {
	return strings.Contains(e.Message, s)
}

// Timestamp returns the entry's time in the on-disk layout.
func (e *Entry) Timestamp() string {
	return FormatTime(e.Time)
}

// ID returns a short stable fingerprint of the entry's time and message.
func (e *Entry) ID() string {
	d := xxhash.New()
	d.WriteString(e.Timestamp())
	d.Write([]byte{0})
	d.WriteString(e.Message)
	return fmt.Sprintf("%016x", d.Sum64())
}

// FormatTime renders t in the fixed-width on-disk layout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Encode renders the entry as a single newline-terminated line.
func Encode(e *Entry) ([]byte, error) {
	msg, err := json.MarshalToString(e.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{e.Timestamp(), msg}); err != nil {
		return nil, fmt.Errorf("failed to write row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write row: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a single line, with or without its line terminator.
func Decode(line []byte) (*Entry, error) {
	raw := bytes.TrimRight(line, "\r\n")
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty line", ErrMalformedEntry)
	}

	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = 2
	fields, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEntry, err)
	}

	t, err := time.Parse(time.RFC3339Nano, fields[0])
	if err != nil {
		return nil, fmt.Errorf("%w: bad timestamp: %v", ErrMalformedEntry, err)
	}

	var msg string
	if err := json.UnmarshalFromString(fields[1], &msg); err != nil {
		return nil, fmt.Errorf("%w: bad message: %v", ErrMalformedEntry, err)
	}

	return &Entry{
		Time:    t,
		Message: msg,
		Raw:     append([]byte(nil), raw...),
	}, nil
}

// DecodeError records a line that failed to decode and where it was found.
type DecodeError struct {
	Offset int64
	Line   []byte
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode entry at offset %d (%q): %v", e.Offset, e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
