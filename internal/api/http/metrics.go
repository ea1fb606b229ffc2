package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GriffinCanCode/shmbus/internal/infrastructure/monitoring"
)

// MetricsHandlers serves the metrics endpoints
type MetricsHandlers struct {
	metrics  *monitoring.Metrics
	exporter http.Handler
}

// NewMetricsHandlers exposes metrics gathered from g
func NewMetricsHandlers(metrics *monitoring.Metrics, g prometheus.Gatherer) *MetricsHandlers {
	return &MetricsHandlers{
		metrics:  metrics,
		exporter: promhttp.HandlerFor(g, promhttp.HandlerOpts{}),
	}
}

// Prometheus serves the exposition format
func (m *MetricsHandlers) Prometheus(c *gin.Context) {
	m.exporter.ServeHTTP(c.Writer, c.Request)
}

// MetricsResponse is the JSON metrics document
type MetricsResponse struct {
	Timestamp time.Time                  `json:"timestamp"`
	Bus       monitoring.MetricsSnapshot `json:"bus"`
	Summary   MetricsSummary             `json:"summary"`
}

// MetricsSummary provides derived ratios
type MetricsSummary struct {
	CoalesceRate     float64 `json:"coalesce_rate"`
	PublishErrorRate float64 `json:"publish_error_rate"`
	HTTPErrorRate    float64 `json:"http_error_rate"`
}

// JSON serves a snapshot with derived ratios
func (m *MetricsHandlers) JSON(c *gin.Context) {
	snap := m.metrics.GetSnapshot()
	c.JSON(http.StatusOK, MetricsResponse{
		Timestamp: time.Now(),
		Bus:       snap,
		Summary:   summarize(snap),
	})
}

func summarize(snap monitoring.MetricsSnapshot) MetricsSummary {
	var s MetricsSummary
	if n := snap.Signaled + snap.Coalesced; n > 0 {
		s.CoalesceRate = float64(snap.Coalesced) / float64(n)
	}
	if snap.Publishes > 0 {
		s.PublishErrorRate = float64(snap.PublishErrors) / float64(snap.Publishes)
	}
	if snap.TotalRequests > 0 {
		s.HTTPErrorRate = float64(snap.TotalErrors) / float64(snap.TotalRequests)
	}
	return s
}
