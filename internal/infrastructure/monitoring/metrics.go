package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Session lifecycle metrics
	SessionsActive  prometheus.Gauge
	SessionsCreated prometheus.Counter
	Spawns          *prometheus.CounterVec
	Exits           *prometheus.CounterVec

	// Outbox and delivery metrics
	Submits       prometheus.Counter
	DroppedWrites prometheus.Counter
	ContextSends  *prometheus.CounterVec
	ContextLost   prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current metric values for the JSON health endpoint
type Snapshot struct {
	TotalRequests   int64   `json:"total_requests"`
	TotalErrors     int64   `json:"total_errors"`
	RunningSessions int64   `json:"running_sessions"`
	SpawnFailures   int64   `json:"spawn_failures"`
	DroppedWrites   int64   `json:"dropped_writes"`
	ContextSends    int64   `json:"context_sends"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector backed by its own registry, so
// several instances can coexist in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termhost_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "termhost_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "termhost_sessions_running",
				Help: "Number of sessions with a live child process",
			},
		),
		SessionsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termhost_sessions_created_total",
				Help: "Total number of sessions created by the registry",
			},
		),
		Spawns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termhost_spawns_total",
				Help: "Child shell spawn attempts by result",
			},
			[]string{"result"},
		),
		Exits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termhost_exits_total",
				Help: "Child shell terminations by reason",
			},
			[]string{"reason"},
		),

		Submits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termhost_submits_total",
				Help: "Total number of outbox submissions",
			},
		),
		DroppedWrites: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termhost_dropped_writes_total",
				Help: "Writes dropped because the child process had terminated",
			},
		),
		ContextSends: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termhost_context_sends_total",
				Help: "Document context deliveries by result",
			},
			[]string{"result"},
		),
		ContextLost: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termhost_context_lost_total",
				Help: "Documents marked contextLost by a session clear",
			},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "termhost_ws_connections",
				Help: "Number of active terminal stream connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termhost_ws_messages_total",
				Help: "Total number of terminal stream messages",
			},
			[]string{"direction", "type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "termhost_uptime_seconds",
			Help: "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Handler serves the Prometheus exposition format for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Snapshot returns a copy of the JSON-friendly counters
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordSessionCreated counts a session created by the registry
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreated.Inc()
}

// RecordSpawn records a spawn attempt
func (m *Metrics) RecordSpawn(ok bool) {
	if !ok {
		m.Spawns.WithLabelValues("failed").Inc()
		m.mu.Lock()
		m.snapshot.SpawnFailures++
		m.mu.Unlock()
		return
	}

	m.Spawns.WithLabelValues("ok").Inc()
	m.SessionsActive.Inc()
	m.mu.Lock()
	m.snapshot.RunningSessions++
	m.mu.Unlock()
}

// RecordExit records a child process leaving the running state.
// reason is "stopped" for explicit stops and "exited" otherwise.
func (m *Metrics) RecordExit(reason string) {
	m.Exits.WithLabelValues(reason).Inc()
	m.SessionsActive.Dec()
	m.mu.Lock()
	m.snapshot.RunningSessions--
	m.mu.Unlock()
}

// RecordSubmit counts an outbox submission
func (m *Metrics) RecordSubmit() {
	m.Submits.Inc()
}

// RecordDroppedWrite counts a write to a terminated process
func (m *Metrics) RecordDroppedWrite() {
	m.DroppedWrites.Inc()
	m.mu.Lock()
	m.snapshot.DroppedWrites++
	m.mu.Unlock()
}

// RecordContextSend records the outcome of a document delivery:
// "delivered", "cancelled" or "rejected".
func (m *Metrics) RecordContextSend(result string) {
	m.ContextSends.WithLabelValues(result).Inc()
	if result == "delivered" {
		m.mu.Lock()
		m.snapshot.ContextSends++
		m.mu.Unlock()
	}
}

// RecordContextLost counts documents moved to contextLost
func (m *Metrics) RecordContextLost(count int) {
	m.ContextLost.Add(float64(count))
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
