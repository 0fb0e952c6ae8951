// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: colored console output for humans
//
// Logs go to stderr by default so a host that pipes terminal output on
// stdout never sees them interleaved.
//
// Example Usage:
//
//	logger := logging.NewFor("info", false)
//	logger.Info("Session started", zap.String("project_id", "notes"))
package logging
