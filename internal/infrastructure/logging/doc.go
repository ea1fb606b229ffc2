// Package logging provides structured logging using uber/zap.
//
// This package offers production-ready logging with two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Logs are written to stderr by default; the shmbus command prints its
// results on stdout.
//
// Log Levels:
//   - Debug: object creation and attachment, per-message delivery
//   - Info: provisioning, teardown, server lifecycle
//   - Warn: recoverable failures (missing objects during teardown)
//   - Error: failed publishes and subscriptions
//
// Example Usage:
//
//	logger, err := logging.FromSettings("info", false)
//	logger.Info("Segment provisioned", logging.Segment("imu"), logging.Size(64))
//	logger.Error("Publish failed", logging.Topic("imu"), zap.Error(err))
package logging
