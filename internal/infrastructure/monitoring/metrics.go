package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values
const (
	StatusOK    = "ok"
	StatusError = "error"

	NotifySignaled  = "signaled"
	NotifyCoalesced = "coalesced"

	ModeWait    = "wait"
	ModeNoWait  = "nowait"
	ModeTimeout = "timeout"

	OutcomeDelivered = "delivered"
	OutcomeBusy      = "busy"
	OutcomeTimeout   = "timeout"
	OutcomeError     = "error"

	KindTopic   = "topic"
	KindSegment = "segment"
)

// Metrics holds all Prometheus metrics.
// Every method is safe to call on a nil *Metrics, which records nothing.
type Metrics struct {
	// Publish metrics
	Publishes       *prometheus.CounterVec
	PublishDuration *prometheus.HistogramVec
	PayloadBytes    *prometheus.HistogramVec

	// Notification metrics
	Notifications *prometheus.CounterVec

	// Subscribe metrics
	Subscribes        *prometheus.CounterVec
	SubscribeDuration *prometheus.HistogramVec

	// Registry metrics
	RegisteredObjects *prometheus.GaugeVec

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	Publishes       int64   `json:"publishes"`
	PublishErrors   int64   `json:"publish_errors"`
	BytesPublished  int64   `json:"bytes_published"`
	Signaled        int64   `json:"signaled"`
	Coalesced       int64   `json:"coalesced"`
	Delivered       int64   `json:"delivered"`
	Busy            int64   `json:"busy"`
	TimedOut        int64   `json:"timed_out"`
	SubscribeErrors int64   `json:"subscribe_errors"`
	Topics          int64   `json:"topics"`
	Segments        int64   `json:"segments"`
	TotalRequests   int64   `json:"total_requests"`
	TotalErrors     int64   `json:"total_errors"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector registered on reg. Pass a fresh
// prometheus.NewRegistry() per instance; registering twice on the same
// registry panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{startTime: time.Now()}

	// Publish metrics
	m.Publishes = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shmbus_publishes_total",
			Help: "Total number of payloads written to segments",
		},
		[]string{"segment", "status"},
	)
	m.PublishDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shmbus_publish_duration_seconds",
			Help:    "Time from acquiring the segment mutex to the last notification",
			Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"segment"},
	)
	m.PayloadBytes = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shmbus_payload_bytes",
			Help:    "Size of published payloads in bytes",
			Buckets: prometheus.ExponentialBuckets(16, 4, 8),
		},
		[]string{"segment"},
	)

	// Notification metrics
	m.Notifications = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shmbus_notifications_total",
			Help: "Topic notifications, by whether they raised the semaphore or coalesced",
		},
		[]string{"topic", "result"},
	)

	// Subscribe metrics
	m.Subscribes = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shmbus_subscribes_total",
			Help: "Subscribe attempts by mode and outcome",
		},
		[]string{"topic", "mode", "outcome"},
	)
	m.SubscribeDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shmbus_subscribe_duration_seconds",
			Help:    "Time spent in a subscribe call including waiting and the callback",
			Buckets: []float64{.00001, .0001, .001, .01, .1, .5, 1, 5, 30},
		},
		[]string{"topic", "mode"},
	)

	// Registry metrics
	m.RegisteredObjects = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shmbus_registered_objects",
			Help: "Topics and segments held open by this process",
		},
		[]string{"kind"},
	)

	// HTTP metrics
	m.RequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shmbus_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	m.RequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shmbus_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// System metrics
	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "shmbus_uptime_seconds",
			Help: "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordPublish records one segment write and its fan-out
func (m *Metrics) RecordPublish(segment, status string, size int, duration time.Duration) {
	if m == nil {
		return
	}
	m.Publishes.WithLabelValues(segment, status).Inc()
	if status == StatusOK {
		m.PublishDuration.WithLabelValues(segment).Observe(duration.Seconds())
		m.PayloadBytes.WithLabelValues(segment).Observe(float64(size))
	}

	m.mu.Lock()
	m.snapshot.Publishes++
	if status == StatusOK {
		m.snapshot.BytesPublished += int64(size)
	} else {
		m.snapshot.PublishErrors++
	}
	m.mu.Unlock()
}

// RecordNotification records whether a topic notification raised the
// semaphore or coalesced into one already pending
func (m *Metrics) RecordNotification(topic string, signaled bool) {
	if m == nil {
		return
	}
	result := NotifyCoalesced
	if signaled {
		result = NotifySignaled
	}
	m.Notifications.WithLabelValues(topic, result).Inc()

	m.mu.Lock()
	if signaled {
		m.snapshot.Signaled++
	} else {
		m.snapshot.Coalesced++
	}
	m.mu.Unlock()
}

// RecordSubscribe records a subscribe attempt
func (m *Metrics) RecordSubscribe(topic, mode, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Subscribes.WithLabelValues(topic, mode, outcome).Inc()
	m.SubscribeDuration.WithLabelValues(topic, mode).Observe(duration.Seconds())

	m.mu.Lock()
	switch outcome {
	case OutcomeDelivered:
		m.snapshot.Delivered++
	case OutcomeBusy:
		m.snapshot.Busy++
	case OutcomeTimeout:
		m.snapshot.TimedOut++
	default:
		m.snapshot.SubscribeErrors++
	}
	m.mu.Unlock()
}

// SetRegistered sets the number of open objects of a kind
func (m *Metrics) SetRegistered(kind string, count int) {
	if m == nil {
		return
	}
	m.RegisteredObjects.WithLabelValues(kind).Set(float64(count))

	m.mu.Lock()
	switch kind {
	case KindTopic:
		m.snapshot.Topics = int64(count)
	case KindSegment:
		m.snapshot.Segments = int64(count)
	}
	m.mu.Unlock()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// GetSnapshot returns a copy of the current values
func (m *Metrics) GetSnapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.RLock()
	snap := m.snapshot
	m.mu.RUnlock()

	snap.UptimeSeconds = time.Since(m.startTime).Seconds()
	return snap
}
