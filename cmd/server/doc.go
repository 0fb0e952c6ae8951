// Package main is the entry point for termhost, a host for per-project
// interactive shells.
//
// Each project gets one login shell in a pseudo-terminal. Clients drive it
// over a JSON control API and a WebSocket terminal stream, and can hand it
// documents as pasted context.
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./server -port 8787 -state-dir ~/.termhost
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown, persisting every session
package main
