// Package config loads the YAML configuration for intersection
// simulations.
//
// A configuration file is optional. [Default] returns a complete
// configuration and [LoadFile] merges a file on top of it, so a file only
// needs the keys it changes. Command line flags are applied by the caller
// after loading and before [Config.Validate].
//
// Durations use Go syntax ("250ms", "2s").
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/anggasct/crossing/pkg/policy"
	"gopkg.in/yaml.v3"
)

// Config is the configuration of one simulation run.
type Config struct {
	// Vehicles is the number of vehicles driven through the intersection.
	Vehicles int `yaml:"vehicles"`

	// Seed seeds route and delay selection. Zero picks a seed from the clock.
	Seed int64 `yaml:"seed"`

	// ArrivalRate is the number of arrivals per second.
	// Zero releases every vehicle at once.
	ArrivalRate float64 `yaml:"arrival_rate"`

	// ArrivalBurst is the number of vehicles that may arrive back to back.
	ArrivalBurst int `yaml:"arrival_burst"`

	// CrossingTime bounds how long a vehicle stays inside.
	CrossingTime CrossingTimeConfig `yaml:"crossing_time"`

	// Patience is how long a vehicle waits before giving up.
	// Zero waits forever.
	Patience time.Duration `yaml:"patience"`

	// Policy names the admission policy: greedy or ordered.
	Policy string `yaml:"policy"`

	// SampleInterval is how often the occupancy invariant is sampled.
	SampleInterval time.Duration `yaml:"sample_interval"`

	// Log configures the process logger.
	Log LogConfig `yaml:"log"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`
}

// CrossingTimeConfig is the range a crossing delay is drawn from.
type CrossingTimeConfig struct {
	Min time.Duration `yaml:"min"`
	Max time.Duration `yaml:"max"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is text or json.
	Format string `yaml:"format"`
}

// MetricsConfig configures the metrics listener.
type MetricsConfig struct {
	// Listen is the address serving /metrics. Empty disables it.
	Listen string `yaml:"listen"`
}

var logFormats = []string{"text", "json"}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Vehicles:     200,
		ArrivalRate:  500,
		ArrivalBurst: 8,
		CrossingTime: CrossingTimeConfig{
			Min: time.Millisecond,
			Max: 5 * time.Millisecond,
		},
		Policy:         policy.Greedy{}.Name(),
		SampleInterval: time.Millisecond,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFile loads a configuration file on top of the defaults. An empty
// path returns the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := Parse(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML into cfg. Unknown keys are rejected.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Vehicles < 0 {
		errs = append(errs, fmt.Errorf("vehicles must not be negative, got %d", c.Vehicles))
	}
	if c.ArrivalRate < 0 {
		errs = append(errs, fmt.Errorf("arrival_rate must not be negative, got %g", c.ArrivalRate))
	}
	if c.ArrivalRate > 0 && c.ArrivalBurst < 1 {
		errs = append(errs, fmt.Errorf("arrival_burst must be at least 1 when arrival_rate is set"))
	}
	if c.CrossingTime.Min < 0 {
		errs = append(errs, fmt.Errorf("crossing_time.min must not be negative"))
	}
	if c.CrossingTime.Max < c.CrossingTime.Min {
		errs = append(errs, fmt.Errorf("crossing_time.max (%s) is below crossing_time.min (%s)",
			c.CrossingTime.Max, c.CrossingTime.Min))
	}
	if c.Patience < 0 {
		errs = append(errs, fmt.Errorf("patience must not be negative"))
	}
	if _, err := policy.Parse(c.Policy); err != nil {
		errs = append(errs, err)
	}
	if c.SampleInterval <= 0 {
		errs = append(errs, fmt.Errorf("sample_interval must be positive"))
	}
	if _, err := c.Log.level(); err != nil {
		errs = append(errs, err)
	}
	if !slices.Contains(logFormats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: %v", logFormats))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func (l LogConfig) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// NewLogger builds a logger writing to w in the configured format.
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := l.level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	switch l.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("log.format must be one of: %v", logFormats)
	}
}
