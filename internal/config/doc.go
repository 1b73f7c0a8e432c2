// Package config provides 12-factor configuration management for pipetap.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Relay: drain poll interval and read buffer size
//   - Capture: producer timeout and stderr capture toggle
//   - Logging: log level and output format
//   - Metrics: optional Prometheus exposition address
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("polling every %s\n", cfg.Relay.PollInterval)
//
// Environment Variables:
//   - PIPETAP_POLL_INTERVAL, PIPETAP_BUFFER_SIZE
//   - PIPETAP_TIMEOUT, PIPETAP_STDERR
//   - LOG_LEVEL, LOG_DEV
//   - PIPETAP_METRICS_ADDR
package config
