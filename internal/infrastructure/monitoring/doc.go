/*
Package monitoring provides metrics collection for the topic bus.

# Overview

This package implements Prometheus-based metrics for publishes, topic
notifications, subscribe outcomes and the status endpoint's HTTP traffic.

# Features

- Publish counts, latency and payload size per segment
- Notifications split into signaled and coalesced per topic
- Subscribe outcomes (delivered, busy, timeout, error) per topic and mode
- Open topic and segment handles
- HTTP request metrics for the status endpoint
- Process uptime

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	bus := topic.New(ns, topic.WithMetrics(metrics))
	router.Use(monitoring.Middleware(metrics))

A nil *Metrics is valid and records nothing.

# Metrics Endpoint

Expose metrics from the same registry:

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
*/
package monitoring
