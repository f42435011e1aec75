// Package dateparse reads the partial dates accepted on the command line.
package dateparse

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnrecognisedDate is returned when no accepted layout matches.
var ErrUnrecognisedDate = errors.New("unrecognised date format")

// Layouts lists the accepted layouts from least to most precise. Missing
// fields default to the start of the period.
var Layouts = []string{
	"2006",
	"2006-01",
	"2006-01-02",
	"2006-01-02T15",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
}

var examples = []string{
	"2012",
	"2012-01",
	"2012-01-24",
	"2012-01-24T16",
	"2012-01-24T16:20",
	"2012-01-24T16:20:30",
}

// Parse reads s in the local time zone.
func Parse(s string) (time.Time, error) {
	return ParseInLocation(s, time.Local)
}

// ParseInLocation reads s as a wall clock time in loc.
func ParseInLocation(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range Layouts {
		if len(s) != len(layout) {
			continue
		}
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q, accepted formats include things like:\n  - %s",
		ErrUnrecognisedDate, s, strings.Join(examples, "\n  - "))
}

// Examples returns one example of every accepted shape, comma separated.
func Examples() string {
	return strings.Join(examples, ", ")
}
