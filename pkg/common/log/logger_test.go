package log

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestStandardLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStandardLogger(WithOutput(&buf), WithLevel(LevelDebug))

	tests := []struct {
		name  string
		log   func(string, ...interface{})
		level string
	}{
		{"debug", logger.Debug, "[DEBUG]"},
		{"info", logger.Info, "[INFO]"},
		{"warn", logger.Warn, "[WARN]"},
		{"error", logger.Error, "[ERROR]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.log("cursor at %d", 44)
			out := buf.String()
			if !strings.Contains(out, tt.level) || !strings.Contains(out, "cursor at 44") {
				t.Errorf("Expected %s line with message, got: %s", tt.level, out)
			}
		})
	}
}

func TestStandardLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStandardLogger(WithOutput(&buf))

	logger.WithFields(map[string]interface{}{
		"path":   "journal.csv",
		"offset": 88,
	}).Info("Message with fields")

	out := buf.String()
	if !strings.Contains(out, " offset=88 path=journal.csv Message with fields") {
		t.Errorf("Expected sorted fields before the message, got: %s", out)
	}

	buf.Reset()
	logger.WithField("component", "seek").WithField("policy", "first").Warn("nested")
	out = buf.String()
	if !strings.Contains(out, "component=seek policy=first nested") {
		t.Errorf("Expected nested fields, got: %s", out)
	}
}

func TestStandardLoggerFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStandardLogger(WithOutput(&buf), WithLevel(LevelError))

	logger.Debug("should not appear")
	logger.Info("should not appear")
	logger.Warn("should not appear")
	logger.Error("should appear")

	out := buf.String()
	if strings.Contains(out, "should not appear") || !strings.Contains(out, "should appear") {
		t.Errorf("Level filtering failed, got: %s", out)
	}

	// Derived loggers pick up the level at the time they were created.
	child := logger.WithField("k", "v")
	if child.GetLevel() != LevelError {
		t.Errorf("Expected child level ERROR, got %v", child.GetLevel())
	}
}

func TestFatalCallsExit(t *testing.T) {
	var buf bytes.Buffer
	code := -1
	logger := NewStandardLogger(WithOutput(&buf), WithExitFunc(func(c int) { code = c }))

	logger.Fatal("journal is locked")
	if code != 1 {
		t.Errorf("Expected exit code 1, got %d", code)
	}
	if !strings.Contains(buf.String(), "[FATAL]") {
		t.Errorf("Expected FATAL line, got: %s", buf.String())
	}
}

func TestNop(t *testing.T) {
	logger := NewNop()
	logger.Error("nothing")
	logger.WithField("a", 1).Warn("nothing")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"", LevelInfo},
		{"warning", LevelWarn},
		{" Error ", LevelError},
		{"fatal", LevelFatal},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil {
			t.Fatalf("ParseLevel(%q) failed: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q): expected %v, got %v", tt.in, tt.want, got)
		}
	}

	if _, err := ParseLevel("loud"); !errors.Is(err, ErrUnknownLevel) {
		t.Errorf("Expected ErrUnknownLevel, got %v", err)
	}
}

func TestDefaultLogger(t *testing.T) {
	original := defaultLogger
	defer func() { defaultLogger = original }()

	var buf bytes.Buffer
	SetDefaultLogger(NewStandardLogger(WithOutput(&buf)))

	Info("Global info message")
	if !strings.Contains(buf.String(), "[INFO]") || !strings.Contains(buf.String(), "Global info message") {
		t.Errorf("Global info logging failed, got: %s", buf.String())
	}
	buf.Reset()

	SetLevel(LevelWarn)
	Info("hidden")
	WithField("global", true).Warn("Global with field")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "global=true Global with field") {
		t.Errorf("Global logging with field failed, got: %s", out)
	}
}
