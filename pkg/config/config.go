package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hmmjournal/hmm/pkg/archive"
	"github.com/hmmjournal/hmm/pkg/common/log"
	"github.com/hmmjournal/hmm/pkg/format"
	"github.com/hmmjournal/hmm/pkg/telemetry"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigDir      = "hmm"
	DefaultConfigFileName = "config.yaml"
	DefaultJournalName    = ".hmm"
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ColorMode controls when formatted output is coloured.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

type Config struct {
	// Path is the journal file.
	Path string `yaml:"path"`

	// Editor is run to compose an entry when hmm is given no arguments.
	Editor string `yaml:"editor"`

	// Format is the template used to print entries. Empty means the
	// built-in template.
	Format string    `yaml:"format"`
	Color  ColorMode `yaml:"color"`

	LogLevel   string `yaml:"log_level"`
	SyncWrites bool   `yaml:"sync_writes"`

	// ArchiveFormat is the codec used when exporting the journal.
	ArchiveFormat string `yaml:"archive_format"`

	Telemetry telemetry.Config `yaml:"telemetry"`

	mu sync.RWMutex
}

// NewDefaultConfig creates a Config with recommended default values
func NewDefaultConfig() *Config {
	path := DefaultJournalName
	if home, err := os.UserHomeDir(); err == nil {
		path = filepath.Join(home, DefaultJournalName)
	}

	return &Config{
		Path:          path,
		Editor:        "vim",
		Color:         ColorAuto,
		LogLevel:      "warn",
		ArchiveFormat: archive.CodecZstd.String(),
		Telemetry:     telemetry.DefaultConfig(),
	}
}

// DefaultPath returns the config file location, under $XDG_CONFIG_HOME or
// ~/.config.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to find config directory: %w", err)
	}
	return filepath.Join(dir, DefaultConfigDir, DefaultConfigFileName), nil
}

// Load reads the YAML config file at path on top of the defaults. A missing
// file is not an error.
func Load(path string) (*Config, error) {
	cfg := NewDefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	cfg.Path = ExpandHome(cfg.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv overrides fields from the environment.
func (c *Config) LoadFromEnv() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if val := os.Getenv("HMM_PATH"); val != "" {
		c.Path = ExpandHome(val)
	}
	if val := os.Getenv("EDITOR"); val != "" {
		c.Editor = val
	}
	if val := os.Getenv("HMM_FORMAT"); val != "" {
		c.Format = val
	}
	if val := os.Getenv("HMM_LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
	if os.Getenv("NO_COLOR") != "" {
		c.Color = ColorNever
	}
	c.Telemetry.LoadFromEnv()
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.Path == "" {
		return fmt.Errorf("%w: journal path not specified", ErrInvalidConfig)
	}

	switch c.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("%w: color must be auto, always or never, got %q", ErrInvalidConfig, c.Color)
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if _, err := archive.ParseCodec(c.ArchiveFormat); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if c.Format != "" {
		if _, err := format.New(c.Format); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("%w: telemetry: %v", ErrInvalidConfig, err)
	}

	return nil
}

// Template returns the configured output template.
func (c *Config) Template() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Format == "" {
		return format.DefaultTemplate
	}
	return c.Format
}

// Level returns the configured log level.
func (c *Config) Level() log.Level {
	c.mu.RLock()
	defer c.mu.RUnlock()
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.LevelWarn
	}
	return level
}

// Save writes the configuration to path, replacing any existing file
// atomically.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename config: %w", err)
	}

	return nil
}

// Update applies the given function to modify the configuration
func (c *Config) Update(fn func(*Config)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c)
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}
