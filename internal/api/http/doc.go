// Package http provides the read-only HTTP handlers of the shmbus status
// endpoint: health, Prometheus and JSON metrics, and kernel object
// listing and inspection.
//
// The handlers never create or destroy objects.
package http
