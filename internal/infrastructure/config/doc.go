// Package config provides 12-factor configuration for termhost.
//
// Configuration is loaded from environment variables with defaults.
// CLI flags in cmd/server override environment variables.
//
// Configuration Sections:
//   - Server: HTTP listen address
//   - Terminal: shell, size, history bound, paste delay tiers, lifecycle policies
//   - State: optional on-disk persistence of per-project session state
//   - Logging: log level and output format
//   - RateLimit: per-IP rate limiting of the control API
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Listening on %s\n", cfg.Server.Addr())
package config
