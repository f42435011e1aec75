package dateparse

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseInLocation(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2012", "2012-01-01T00:00:00Z"},
		{"2012-02", "2012-02-01T00:00:00Z"},
		{"2012-02-02", "2012-02-02T00:00:00Z"},
		{"2012-02-02T02", "2012-02-02T02:00:00Z"},
		{"2012-02-02T02:02", "2012-02-02T02:02:00Z"},
		{"2012-02-02T02:02:02", "2012-02-02T02:02:02Z"},
		{" 2012-02 ", "2012-02-01T00:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseInLocation(tt.in, time.UTC)
			if err != nil {
				t.Fatalf("ParseInLocation failed: %v", err)
			}
			if s := got.Format(time.RFC3339); s != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, s)
			}
		})
	}
}

func TestParseUsesLocation(t *testing.T) {
	loc := time.FixedZone("plus2", 2*60*60)
	got, err := ParseInLocation("2020-06-13", loc)
	if err != nil {
		t.Fatalf("ParseInLocation failed: %v", err)
	}
	want := time.Date(2020, 6, 12, 22, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Expected %s, got %s", want, got.UTC())
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"", "yesterday", "12", "2012-13", "2012-01-32", "2012-01-01 10:00", "2012-01-01T10:00:00Z"} {
		_, err := ParseInLocation(in, time.UTC)
		if !errors.Is(err, ErrUnrecognisedDate) {
			t.Errorf("%q: expected ErrUnrecognisedDate, got %v", in, err)
			continue
		}
		if !strings.Contains(err.Error(), "2012-01-24T16:20:30") {
			t.Errorf("%q: expected accepted formats in the error, got %v", in, err)
		}
	}
}

func TestExamplesParse(t *testing.T) {
	for _, ex := range strings.Split(Examples(), ", ") {
		if _, err := ParseInLocation(ex, time.UTC); err != nil {
			t.Errorf("Expected example %q to parse, got %v", ex, err)
		}
	}
}
