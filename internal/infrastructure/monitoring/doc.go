/*
Package monitoring provides Prometheus metrics for termhost.

# Overview

Each Metrics value owns a private registry, so tests and embedded hosts can
create as many as they need without duplicate-registration panics.

# Metrics

- HTTP request count and latency by route template
- Running sessions, spawn attempts, exits by reason
- Outbox submissions and writes dropped after process exit
- Context deliveries by result and contextLost fan-out
- Terminal stream connections and messages

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
*/
package monitoring
