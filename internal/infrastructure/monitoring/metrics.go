package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Conversation store metrics
	SessionsActive   prometheus.Gauge
	SessionsCreated  prometheus.Counter
	SessionsDeleted  prometheus.Counter
	PersistWrites    prometheus.Counter
	PersistFailures  prometheus.Counter
	RestoreCorrupted prometheus.Counter

	// Auth metrics
	UserSignedIn prometheus.Gauge
	AuthEvents   *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shell_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shell_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),

		SessionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "shell_sessions_active",
				Help: "Number of conversation sessions in the store",
			},
		),
		SessionsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "shell_sessions_created_total",
				Help: "Total number of conversation sessions created",
			},
		),
		SessionsDeleted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "shell_sessions_deleted_total",
				Help: "Total number of conversation sessions deleted",
			},
		),
		PersistWrites: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "shell_persist_writes_total",
				Help: "Total number of collection writes to durable storage",
			},
		),
		PersistFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "shell_persist_failures_total",
				Help: "Total number of failed collection writes",
			},
		),
		RestoreCorrupted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "shell_restore_corrupted_total",
				Help: "Times the persisted collection failed to parse on restore",
			},
		),

		UserSignedIn: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "shell_user_signed_in",
				Help: "1 when a user session is active, 0 otherwise",
			},
		),
		AuthEvents: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shell_auth_events_total",
				Help: "Total number of auth state transitions",
			},
			[]string{"event"},
		),

		WSConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "shell_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shell_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),

		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "shell_uptime_seconds",
				Help: "Shell core uptime in seconds",
			},
		),
	}

	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// SetSessionsActive sets the number of sessions in the store
func (m *Metrics) SetSessionsActive(count int) {
	m.SessionsActive.Set(float64(count))
}

// IncSessionsCreated increments the sessions created counter
func (m *Metrics) IncSessionsCreated() {
	m.SessionsCreated.Inc()
}

// IncSessionsDeleted increments the sessions deleted counter
func (m *Metrics) IncSessionsDeleted() {
	m.SessionsDeleted.Inc()
}

// IncPersistWrites increments the persisted-write counter
func (m *Metrics) IncPersistWrites() {
	m.PersistWrites.Inc()
}

// IncPersistFailures increments the failed-write counter
func (m *Metrics) IncPersistFailures() {
	m.PersistFailures.Inc()
}

// IncRestoreCorrupted increments the corrupt-restore counter
func (m *Metrics) IncRestoreCorrupted() {
	m.RestoreCorrupted.Inc()
}

// SetUserSignedIn records whether a user session is active
func (m *Metrics) SetUserSignedIn(signedIn bool) {
	if signedIn {
		m.UserSignedIn.Set(1)
	} else {
		m.UserSignedIn.Set(0)
	}
}

// RecordAuthEvent records an auth state transition
func (m *Metrics) RecordAuthEvent(event string) {
	m.AuthEvents.WithLabelValues(event).Inc()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}
