// Package format renders entries through a user supplied text/template.
//
// Templates see four values: .datetime (RFC3339), .message, .raw (the line
// as stored, empty for entries not read from disk) and .id. Three helper
// functions are available:
//
//	indent  prefixes every line of its argument with "│ "
//	strftime formats an RFC3339 string with strftime directives
//	color   wraps its second argument in an ANSI colour
package format

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/hmmjournal/hmm/pkg/entry"
	"github.com/ncruces/go-strftime"
)

// DefaultTemplate is used by hmmq when no format is given.
const DefaultTemplate = `{{ color "blue" (strftime "%Y-%m-%d %H:%M:%S" .datetime) }}
{{ indent .message }}
`

// IndentPrefix is written before every line by the indent helper.
const IndentPrefix = "│ "

var (
	// ErrInvalidTemplate is returned when a template fails to parse.
	ErrInvalidTemplate = errors.New("invalid template")
	// ErrUnknownColor is returned by the color helper for unknown names.
	ErrUnknownColor = errors.New("unknown color")
)

var colors = map[string]string{
	"black":          "30",
	"red":            "31",
	"green":          "32",
	"yellow":         "33",
	"blue":           "34",
	"magenta":        "35",
	"purple":         "35",
	"cyan":           "36",
	"white":          "37",
	"bright black":   "90",
	"bright red":     "91",
	"bright green":   "92",
	"bright yellow":  "93",
	"bright blue":    "94",
	"bright magenta": "95",
	"bright cyan":    "96",
	"bright white":   "97",
}

// Formatter renders entries. It is safe for concurrent use.
type Formatter struct {
	tmpl  *template.Template
	loc   *time.Location
	color bool
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithLocation sets the zone strftime renders times in. Defaults to local.
func WithLocation(loc *time.Location) Option {
	return func(f *Formatter) {
		f.loc = loc
	}
}

// WithColor turns ANSI colours on or off. Colours are on by default.
func WithColor(enabled bool) Option {
	return func(f *Formatter) {
		f.color = enabled
	}
}

// New parses text into a Formatter. Referring to a value that does not
// exist is an error at render time.
func New(text string, opts ...Option) (*Formatter, error) {
	f := &Formatter{loc: time.Local, color: true}
	for _, opt := range opts {
		opt(f)
	}

	tmpl, err := template.New("entry").
		Option("missingkey=error").
		Funcs(template.FuncMap{
			"indent":   indent,
			"strftime": f.strftime,
			"color":    f.colorize,
		}).
		Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	f.tmpl = tmpl
	return f, nil
}

// Format renders e.
func (f *Formatter) Format(e *entry.Entry) (string, error) {
	var buf bytes.Buffer
	if err := f.tmpl.Execute(&buf, data(e)); err != nil {
		return "", fmt.Errorf("failed to format entry: %w", err)
	}
	return buf.String(), nil
}

// Fprintln renders e to w followed by a newline.
func (f *Formatter) Fprintln(w io.Writer, e *entry.Entry) error {
	s, err := f.Format(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, s)
	return err
}

func data(e *entry.Entry) map[string]interface{} {
	return map[string]interface{}{
		"datetime": e.Time.Format(time.RFC3339Nano),
		"message":  strings.TrimSpace(e.Message),
		"raw":      string(e.Raw),
		"id":       e.ID(),
	}
}

func indent(s string) string {
	lines := strings.SplitAfter(s, "\n")
	var b strings.Builder
	for _, line := range lines {
		if line == "" {
			continue
		}
		b.WriteString(IndentPrefix)
		b.WriteString(line)
	}
	return b.String()
}

func (f *Formatter) strftime(layout, datetime string) (string, error) {
	t, err := time.Parse(time.RFC3339Nano, datetime)
	if err != nil {
		return "", fmt.Errorf("couldn't parse date %q: %w", datetime, err)
	}
	return strftime.Format(layout, t.In(f.loc)), nil
}

func (f *Formatter) colorize(name, s string) (string, error) {
	code, ok := colors[strings.ToLower(strings.ReplaceAll(name, "_", " "))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownColor, name)
	}
	if !f.color {
		return s, nil
	}
	return "\x1b[" + code + "m" + s + "\x1b[0m", nil
}
