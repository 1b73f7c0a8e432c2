// Package main is the pipetap command-line entry point.
//
// pipetap runs a command and captures its diagnostic output through a pipe
// that is drained continuously while the command runs, so the command never
// blocks on a full pipe buffer and teardown never hangs on a stalled
// producer.
//
// Configuration:
//   - Environment variables (12-factor): PIPETAP_POLL_INTERVAL,
//     PIPETAP_BUFFER_SIZE, PIPETAP_TIMEOUT, PIPETAP_STDERR,
//     PIPETAP_METRICS_ADDR, LOG_LEVEL, LOG_DEV
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Capture a service dump to a file, killing it after 30s
//	pipetap -o dump.txt -timeout 30s -- dumpsys audio
//
//	# Capture stderr too, under a pseudo-terminal
//	pipetap -pty -stderr -- some-diagnostic-tool
//
// Signals:
//   - SIGINT, SIGTERM: kill the child; output written so far is flushed
//
// The exit code mirrors the child's exit code; 1 means the capture itself
// failed or the child was killed, 2 means usage error.
package main
