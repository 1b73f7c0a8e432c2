package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Relay   RelayConfig
	Capture CaptureConfig
	Logging LogConfig
	Metrics MetricsConfig
}

// RelayConfig holds pipe relay tunables. Neither value is load-bearing for
// correctness: the poll interval bounds shutdown latency, the buffer size
// trades syscalls for memory.
type RelayConfig struct {
	PollInterval time.Duration `envconfig:"PIPETAP_POLL_INTERVAL" default:"1s"`
	BufferSize   int           `envconfig:"PIPETAP_BUFFER_SIZE" default:"1024"`
}

// CaptureConfig holds producer invocation configuration.
type CaptureConfig struct {
	Timeout time.Duration `envconfig:"PIPETAP_TIMEOUT" default:"0s"`
	Stderr  bool          `envconfig:"PIPETAP_STDERR" default:"false"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// MetricsConfig holds the optional Prometheus exposition endpoint.
type MetricsConfig struct {
	Addr string `envconfig:"PIPETAP_METRICS_ADDR" default:""`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Relay: RelayConfig{
			PollInterval: time.Second,
			BufferSize:   1024,
		},
		Logging: LogConfig{
			Level: "info",
		},
	}
}

// Validate rejects values a relay cannot operate with.
func (c *Config) Validate() error {
	if c.Relay.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.Relay.PollInterval)
	}
	if c.Relay.BufferSize <= 0 {
		return fmt.Errorf("buffer size must be positive, got %d", c.Relay.BufferSize)
	}
	if c.Capture.Timeout < 0 {
		return fmt.Errorf("capture timeout must not be negative, got %s", c.Capture.Timeout)
	}
	return nil
}
