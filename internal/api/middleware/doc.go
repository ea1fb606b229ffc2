// Package middleware provides HTTP middleware for the shmbus status endpoint.
//
// Middleware stack includes:
//   - CORS: Cross-origin access for dashboards on other origins
//   - RateLimit: Per-IP token bucket rate limiting
//   - RequestID: X-Request-ID tagging and request logging
//
// CORS is only installed when origins are configured; without it the
// endpoint is same-origin only.
//
// Rate Limiting:
//   - Per-IP tracking with idle client cleanup
//   - Token bucket algorithm
//   - Configurable RPS and burst capacity
//
// Example Usage:
//
//	router.Use(middleware.RequestID(logger))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins)))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
