// Package config provides 12-factor configuration management for shmbus.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables.
//
// Configuration Sections:
//   - Bus: namespace directory, name prefix and object permissions
//   - Logging: Log level and output format
//   - Server: status endpoint listen address, CORS origins and rate limits
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	bus := topic.New(cfg.Bus.Namespace())
//
// Environment Variables:
//   - SHMBUS_DIR, SHMBUS_PREFIX, SHMBUS_PERM
//   - LOG_LEVEL, LOG_DEV
//   - SHMBUS_HTTP_HOST, SHMBUS_HTTP_PORT, SHMBUS_HTTP_ENABLED, SHMBUS_CORS_ORIGINS
//   - SHMBUS_HTTP_RPS, SHMBUS_HTTP_BURST
package config
