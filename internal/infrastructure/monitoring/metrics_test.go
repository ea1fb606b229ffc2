package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordPublish(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordPublish("imu", StatusOK, 64, time.Millisecond)
	m.RecordPublish("imu", StatusOK, 64, time.Millisecond)
	m.RecordPublish("imu", StatusError, 0, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Publishes.WithLabelValues("imu", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Publishes.WithLabelValues("imu", StatusError)))

	snap := m.GetSnapshot()
	assert.Equal(t, int64(3), snap.Publishes)
	assert.Equal(t, int64(1), snap.PublishErrors)
	assert.Equal(t, int64(128), snap.BytesPublished)
}

func TestRecordNotification(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordNotification("cam", true)
	m.RecordNotification("cam", false)
	m.RecordNotification("cam", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("cam", NotifySignaled)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Notifications.WithLabelValues("cam", NotifyCoalesced)))

	snap := m.GetSnapshot()
	assert.Equal(t, int64(1), snap.Signaled)
	assert.Equal(t, int64(2), snap.Coalesced)
}

func TestRecordSubscribe(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	tests := []struct {
		mode    string
		outcome string
	}{
		{ModeWait, OutcomeDelivered},
		{ModeNoWait, OutcomeBusy},
		{ModeTimeout, OutcomeTimeout},
		{ModeWait, OutcomeError},
	}
	for _, tt := range tests {
		m.RecordSubscribe("cam", tt.mode, tt.outcome, time.Microsecond)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.Subscribes.WithLabelValues("cam", tt.mode, tt.outcome)))
	}

	snap := m.GetSnapshot()
	assert.Equal(t, int64(1), snap.Delivered)
	assert.Equal(t, int64(1), snap.Busy)
	assert.Equal(t, int64(1), snap.TimedOut)
	assert.Equal(t, int64(1), snap.SubscribeErrors)
}

func TestSetRegistered(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.SetRegistered(KindTopic, 3)
	m.SetRegistered(KindSegment, 2)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.RegisteredObjects.WithLabelValues(KindTopic)))
	snap := m.GetSnapshot()
	assert.Equal(t, int64(3), snap.Topics)
	assert.Equal(t, int64(2), snap.Segments)
}

func TestIndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics(prometheus.NewRegistry())
		NewMetrics(prometheus.NewRegistry())
	})
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordPublish("s", StatusOK, 1, time.Millisecond)
		m.RecordNotification("t", true)
		m.RecordSubscribe("t", ModeWait, OutcomeDelivered, time.Millisecond)
		m.SetRegistered(KindTopic, 1)
		m.RecordHTTPRequest("GET", "/health", "200", time.Millisecond)
	})
	assert.Equal(t, MetricsSnapshot{}, m.GetSnapshot())
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics(prometheus.NewRegistry())

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/objects/:name", func(c *gin.Context) {
		c.Status(http.StatusNotFound)
	})

	for _, name := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/objects/"+name, nil)
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusNotFound, w.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/objects/:name", "404")))
	snap := m.GetSnapshot()
	assert.Equal(t, int64(2), snap.TotalRequests)
	assert.Equal(t, int64(2), snap.TotalErrors)
}
