// Package logging provides structured logging using uber/zap.
//
// This package offers production-ready logging with two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// The relay and capture packages take a *Logger for lifecycle events;
// pass NewNop() to silence them. Note that relay diagnostic lines (the
// error sink) are a separate contract and never go through this logger.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("capture starting", zap.String("label", label))
//	logger.Error("capture failed", zap.Error(err))
package logging
