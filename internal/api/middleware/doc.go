// Package middleware provides HTTP middleware for the terminal host API.
//
// Middleware stack includes:
//   - CORS: Cross-origin resource sharing, including WebSocket upgrades for
//     the terminal stream
//   - RateLimit: Per-IP token bucket rate limiting with idle client eviction
//   - GlobalRateLimit: One bucket shared by every client
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
