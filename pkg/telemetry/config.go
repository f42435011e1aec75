// ABOUTME: Configuration for the telemetry provider including exporters and sampling
// ABOUTME: Supports environment variable overrides and defaults to disabled for command line use

package telemetry

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for telemetry providers and exporters.
type Config struct {
	// ServiceName identifies the service in telemetry data
	ServiceName string `yaml:"service_name"`

	// ServiceVersion identifies the service version in telemetry data
	ServiceVersion string `yaml:"service_version"`

	// Enabled controls whether telemetry is active
	Enabled bool `yaml:"enabled"`

	// Exporters lists the exporters to use (stdout, otlp)
	Exporters []string `yaml:"exporters"`

	// SampleRate controls trace sampling (0.0 to 1.0)
	SampleRate float64 `yaml:"sample_rate"`

	// OTLPEndpoint is the host:port of an OTLP gRPC trace collector
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// ExportInterval controls how often metrics are exported while running.
	// A final export always happens on shutdown.
	ExportInterval time.Duration `yaml:"export_interval"`

	// ExportTimeout controls how long to wait for exports
	ExportTimeout time.Duration `yaml:"export_timeout"`

	// BatchTimeout controls how long to wait before exporting a batch of spans
	BatchTimeout time.Duration `yaml:"batch_timeout"`

	// Output receives stdout exporter data. Defaults to os.Stderr.
	Output io.Writer `yaml:"-"`
}

// DefaultConfig returns a disabled configuration with usable values.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "hmm",
		ServiceVersion: "development",
		Enabled:        false,
		Exporters:      []string{"stdout"},
		SampleRate:     1.0,
		OTLPEndpoint:   "localhost:4317",
		ExportInterval: time.Minute,
		ExportTimeout:  30 * time.Second,
		BatchTimeout:   5 * time.Second,
	}
}

// LoadFromEnv overrides fields from HMM_TELEMETRY_* environment variables.
func (c *Config) LoadFromEnv() {
	if val := os.Getenv("HMM_TELEMETRY_SERVICE_NAME"); val != "" {
		c.ServiceName = val
	}

	if val := os.Getenv("HMM_TELEMETRY_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.Enabled = enabled
		}
	}

	if val := os.Getenv("HMM_TELEMETRY_EXPORTERS"); val != "" {
		c.Exporters = strings.Split(val, ",")
		for i := range c.Exporters {
			c.Exporters[i] = strings.TrimSpace(c.Exporters[i])
		}
	}

	if val := os.Getenv("HMM_TELEMETRY_SAMPLE_RATE"); val != "" {
		if rate, err := strconv.ParseFloat(val, 64); err == nil {
			c.SampleRate = rate
		}
	}

	if val := os.Getenv("HMM_TELEMETRY_OTLP_ENDPOINT"); val != "" {
		c.OTLPEndpoint = val
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name cannot be empty")
	}

	if c.ServiceVersion == "" {
		return fmt.Errorf("service_version cannot be empty")
	}

	if c.SampleRate < 0.0 || c.SampleRate > 1.0 {
		return fmt.Errorf("sample_rate must be between 0.0 and 1.0, got %f", c.SampleRate)
	}

	if c.ExportInterval <= 0 {
		return fmt.Errorf("export_interval must be positive, got %s", c.ExportInterval)
	}

	if c.ExportTimeout <= 0 {
		return fmt.Errorf("export_timeout must be positive, got %s", c.ExportTimeout)
	}

	if c.BatchTimeout <= 0 {
		return fmt.Errorf("batch_timeout must be positive, got %s", c.BatchTimeout)
	}

	for _, exporter := range c.Exporters {
		switch exporter {
		case "stdout":
		case "otlp":
			if c.OTLPEndpoint == "" {
				return fmt.Errorf("otlp exporter requires otlp_endpoint")
			}
		default:
			return fmt.Errorf("invalid exporter: %s, valid options are: stdout, otlp", exporter)
		}
	}

	return nil
}

// HasExporter returns true if the specified exporter is configured.
func (c *Config) HasExporter(name string) bool {
	for _, exporter := range c.Exporters {
		if exporter == name {
			return true
		}
	}
	return false
}

func (c *Config) output() io.Writer {
	if c.Output == nil {
		return os.Stderr
	}
	return c.Output
}
