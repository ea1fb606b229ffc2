// Package main is the shmbus command line tool.
//
// It publishes to and subscribes from topics on the local host, and gives
// the designated owner of a deployment the commands to provision and
// destroy kernel objects, which the bus itself never removes.
//
// Configuration:
//   - Environment variables (SHMBUS_DIR, SHMBUS_PREFIX, LOG_LEVEL, ...)
//   - Global flags (override env vars)
//
// Usage:
//
//	# Publish a payload read from stdin and notify two topics
//	echo -n hello | shmbus publish -topic imu,log -segment imu
//
//	# Print every notification until interrupted
//	shmbus subscribe -topic imu -follow
//
//	# Fixed-size segment with a framed, compressed payload
//	shmbus publish -topic cfg -frame 4096 -zstd -file config.json
//	shmbus subscribe -topic cfg -frame 4096 -zstd -mode timeout -timeout 5s
//
//	# Lifecycle
//	shmbus provision deploy.yaml
//	shmbus list -pattern 'imu*'
//	shmbus teardown -ignore-missing deploy.yaml
//
//	# Status endpoint with Prometheus metrics
//	shmbus serve -port 9477
//
// Exit status is 0 on success, 1 on failure, 2 when a nowait or timeout
// subscribe delivered nothing, and 64 on a usage error.
//
// Signals:
//   - SIGINT, SIGTERM: stop following, shut the status endpoint down gracefully
package main
