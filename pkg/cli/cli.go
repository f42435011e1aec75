// Package cli holds the setup shared by the hmm commands: configuration,
// logging, telemetry and opening journals for reading.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hmmjournal/hmm/pkg/archive"
	"github.com/hmmjournal/hmm/pkg/common/log"
	"github.com/hmmjournal/hmm/pkg/config"
	"github.com/hmmjournal/hmm/pkg/entries"
	"github.com/hmmjournal/hmm/pkg/format"
	"github.com/hmmjournal/hmm/pkg/stats"
	"github.com/hmmjournal/hmm/pkg/telemetry"
	"golang.org/x/term"
)

// Env is everything a command needs once its flags are parsed.
type Env struct {
	Config    *config.Config
	Logger    *log.StandardLogger
	Telemetry telemetry.Telemetry
	Stats     *stats.AtomicCollector
}

// Setup loads the configuration at configPath, or the default location when
// it is empty, applies environment overrides and starts logging and
// telemetry.
func Setup(configPath string) (*Env, error) {
	if configPath == "" {
		var err error
		if configPath, err = config.DefaultPath(); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	cfg.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := log.NewStandardLogger(log.WithLevel(cfg.Level()))
	log.SetDefaultLogger(logger)

	tel, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to start telemetry: %w", err)
	}

	logger.Debug("loaded config from %s, journal at %s", configPath, cfg.Path)
	return &Env{
		Config:    cfg,
		Logger:    logger,
		Telemetry: tel,
		Stats:     stats.NewAtomicCollector(),
	}, nil
}

// Close flushes telemetry.
func (e *Env) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), e.Config.Telemetry.ExportTimeout)
	defer cancel()
	if err := e.Telemetry.Shutdown(ctx); err != nil {
		e.Logger.Warn("failed to flush telemetry: %v", err)
	}
}

// Formatter builds the output formatter for template text writing to out,
// colouring only when the config allows it and out is a terminal.
func (e *Env) Formatter(text string, out *os.File) (*format.Formatter, error) {
	if text == "" {
		text = e.Config.Template()
	}
	return format.New(text,
		format.WithLocation(time.Local),
		format.WithColor(UseColor(e.Config.Color, out)),
	)
}

// UseColor decides whether output to out should be coloured.
func UseColor(mode config.ColorMode, out *os.File) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	default:
		return out != nil && term.IsTerminal(int(out.Fd()))
	}
}

// OpenCursor opens the journal at path, compressed or not, and returns a
// cursor over it. A missing journal is reported as empty.
func (e *Env) OpenCursor(path string) (*entries.Cursor, func() error, error) {
	f, codec, err := archive.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		e.Logger.Debug("%s does not exist, treating it as empty", path)
		return e.cursor(newEmptyFile()), func() error { return nil }, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if codec != archive.CodecNone {
		e.Logger.Debug("loaded %s compressed with %s", path, codec)
	}
	return e.cursor(f), f.Close, nil
}

func (e *Env) cursor(f archive.File) *entries.Cursor {
	return entries.New(f,
		entries.WithLogger(e.Logger),
		entries.WithCollector(e.Stats),
		entries.WithTelemetry(e.Telemetry),
	)
}

// Fail prints err to stderr and exits with status 1.
func Fail(err error) {
	fmt.Fprintf(os.Stderr, "%s\n", err)
	os.Exit(1)
}
