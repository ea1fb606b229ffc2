// Package server assembles the shmbus status endpoint: a gin router and its
// middleware stack in front of the read-only handlers.
//
// Routes:
//
//	GET /health          liveness and namespace
//	GET /metrics         Prometheus exposition
//	GET /metrics/json    metrics snapshot
//	GET /objects         kernel objects, ?pattern= glob filter
//	GET /objects/:name   segment and topic state of one name
package server
