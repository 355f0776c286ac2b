// Package metrics provides Prometheus metrics for the tabroom service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector the service exposes.
type Manager struct {
	namespace    string
	subsystem    string
	enabled      bool
	constLabels  map[string]string
	metricPrefix string
	registry     prometheus.Registerer
	latencyScale []float64

	// Draw generation
	drawGenerations  *prometheus.CounterVec
	drawSolveLatency prometheus.Histogram
	drawRooms        prometheus.Histogram
	drawPullups      prometheus.Counter
	ticketAcquires   *prometheus.CounterVec

	// Ballots and results
	ballotSubmissions *prometheus.CounterVec
	aggregations      *prometheus.CounterVec
	standingsLatency  prometheus.Histogram

	// Persistence
	snapshotsTaken  prometheus.Counter
	snapshotBytes   prometheus.Histogram
	txLatency       *prometheus.HistogramVec
	broadcastsTotal *prometheus.CounterVec

	// Service operations
	operationLatency *prometheus.HistogramVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	rateLimited         prometheus.Counter

	// Queue and workers
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueRejected    *prometheus.CounterVec
	workerCount      prometheus.Gauge
	workerBusy       prometheus.Gauge
	workerPanics     prometheus.Counter

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // registry served on /metrics

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// GetRegistry returns the registry holding the service metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:    "tabroom",
		enabled:      true,
		constLabels:  make(map[string]string),
		registry:     prometheus.DefaultRegisterer,
		latencyScale: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.constLabels)
	msBuckets := m.latencyScale

	m.drawGenerations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("draw_generations_total"),
		Help: "Draw generation attempts by outcome.", ConstLabels: labels,
	}, []string{"outcome"})
	m.drawSolveLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("draw_solve_duration_milliseconds"),
		Help: "Time spent inside the draw generator.", Buckets: msBuckets, ConstLabels: labels,
	})
	m.drawRooms = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("draw_rooms"),
		Help: "Rooms per generated draw.", Buckets: prometheus.LinearBuckets(2, 8, 12), ConstLabels: labels,
	})
	m.drawPullups = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("draw_pullups_total"),
		Help: "Teams pulled up across all committed draws.", ConstLabels: labels,
	})
	m.ticketAcquires = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("ticket_acquisitions_total"),
		Help: "Round ticket acquisition attempts by outcome.", ConstLabels: labels,
	}, []string{"outcome"})

	m.ballotSubmissions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("ballot_submissions_total"),
		Help: "Ballot submissions by outcome.", ConstLabels: labels,
	}, []string{"outcome"})
	m.aggregations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("aggregations_total"),
		Help: "Ballot aggregations by method and outcome.", ConstLabels: labels,
	}, []string{"method", "outcome"})
	m.standingsLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("standings_duration_milliseconds"),
		Help: "Standings computation time.", Buckets: msBuckets, ConstLabels: labels,
	})

	m.snapshotsTaken = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("snapshots_total"),
		Help: "Snapshots written.", ConstLabels: labels,
	})
	m.snapshotBytes = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("snapshot_bytes"),
		Help: "Size of snapshot contents.", Buckets: prometheus.ExponentialBuckets(1024, 4, 10), ConstLabels: labels,
	})
	m.txLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("transaction_duration_milliseconds"),
		Help: "Transaction time by operation.", Buckets: msBuckets, ConstLabels: labels,
	}, []string{"operation", "outcome"})
	m.operationLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("operation_duration_milliseconds"),
		Help: "Service operation time by outcome.", Buckets: msBuckets, ConstLabels: labels,
	}, []string{"operation", "outcome"})
	m.broadcastsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("broadcasts_total"),
		Help: "UI refresh broadcasts by kind.", ConstLabels: labels,
	}, []string{"kind"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("http_requests_total"),
		Help: "HTTP requests by endpoint, method and status.", ConstLabels: labels,
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("http_request_duration_milliseconds"),
		Help: "HTTP request duration.", Buckets: msBuckets, ConstLabels: labels,
	}, []string{"endpoint", "method", "status_code"})
	m.rateLimited = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("http_rate_limited_total"),
		Help: "Requests rejected by the rate limiter.", ConstLabels: labels,
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("queue_size"),
		Help: "Jobs waiting in the draw queue.", ConstLabels: labels,
	})
	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("queue_capacity"),
		Help: "Draw queue capacity.", ConstLabels: labels,
	})
	m.queueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("queue_utilization_ratio"),
		Help: "Draw queue fill ratio.", ConstLabels: labels,
	})
	m.queueRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("queue_rejected_total"),
		Help: "Jobs rejected by the queue.", ConstLabels: labels,
	}, []string{"reason"})
	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("worker_count"),
		Help: "Blocking workers in the pool.", ConstLabels: labels,
	})
	m.workerBusy = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("worker_busy"),
		Help: "Workers currently running a job.", ConstLabels: labels,
	})
	m.workerPanics = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("worker_panics_total"),
		Help: "Jobs that panicked.", ConstLabels: labels,
	})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("errors_by_component_total"),
		Help: "Errors by component and type.", ConstLabels: labels,
	}, []string{"component", "error_type"})
	m.errorsByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("errors_by_endpoint_total"),
		Help: "HTTP errors by endpoint.", ConstLabels: labels,
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("system_memory_usage_bytes"),
		Help: "Heap bytes allocated.", ConstLabels: labels,
	})
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("system_goroutine_count"),
		Help: "Live goroutines.", ConstLabels: labels,
	})
}

func (m *Manager) on() bool { return m != nil && m.enabled }

// RecordDrawGeneration counts a draw attempt with its outcome (committed, expired, invalid, ...).
func RecordDrawGeneration(outcome string) {
	if globalManager.on() {
		globalManager.drawGenerations.WithLabelValues(outcome).Inc()
	}
}

// RecordDrawSolveLatency records generator time in milliseconds.
func RecordDrawSolveLatency(ms float64) {
	if globalManager.on() {
		globalManager.drawSolveLatency.Observe(ms)
	}
}

// RecordDrawShape records the rooms and pull-ups of a committed draw.
func RecordDrawShape(rooms, pullups int) {
	if globalManager.on() {
		globalManager.drawRooms.Observe(float64(rooms))
		globalManager.drawPullups.Add(float64(pullups))
	}
}

// RecordTicketAcquire counts a ticket acquisition outcome.
func RecordTicketAcquire(outcome string) {
	if globalManager.on() {
		globalManager.ticketAcquires.WithLabelValues(outcome).Inc()
	}
}

// RecordBallotSubmission counts a ballot submission outcome.
func RecordBallotSubmission(outcome string) {
	if globalManager.on() {
		globalManager.ballotSubmissions.WithLabelValues(outcome).Inc()
	}
}

// RecordAggregation counts an aggregation attempt.
func RecordAggregation(method, outcome string) {
	if globalManager.on() {
		globalManager.aggregations.WithLabelValues(method, outcome).Inc()
	}
}

// RecordStandingsLatency records standings computation time in milliseconds.
func RecordStandingsLatency(ms float64) {
	if globalManager.on() {
		globalManager.standingsLatency.Observe(ms)
	}
}

// RecordSnapshot counts a written snapshot and its size.
func RecordSnapshot(bytes int) {
	if globalManager.on() {
		globalManager.snapshotsTaken.Inc()
		globalManager.snapshotBytes.Observe(float64(bytes))
	}
}

// RecordTransaction records a transaction duration.
func RecordTransaction(operation, outcome string, ms float64) {
	if globalManager.on() {
		globalManager.txLatency.WithLabelValues(operation, outcome).Observe(ms)
	}
}

// RecordOperation records a service operation duration.
func RecordOperation(operation, outcome string, ms float64) {
	if globalManager.on() {
		globalManager.operationLatency.WithLabelValues(operation, outcome).Observe(ms)
	}
}

// RecordBroadcast counts a published UI refresh message.
func RecordBroadcast(kind string) {
	if globalManager.on() {
		globalManager.broadcastsTotal.WithLabelValues(kind).Inc()
	}
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if globalManager.on() {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if globalManager.on() {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
	}
}

// RecordRateLimited counts a request rejected by the limiter.
func RecordRateLimited() {
	if globalManager.on() {
		globalManager.rateLimited.Inc()
	}
}

// UpdateQueueSize sets the current queue depth and utilisation.
func UpdateQueueSize(size, capacity int) {
	if !globalManager.on() {
		return
	}
	globalManager.queueSize.Set(float64(size))
	if capacity > 0 {
		globalManager.queueUtilization.Set(float64(size) / float64(capacity))
	}
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	if globalManager.on() {
		globalManager.queueCapacity.Set(float64(capacity))
	}
}

// RecordQueueRejected counts a rejected enqueue.
func RecordQueueRejected(reason string) {
	if globalManager.on() {
		globalManager.queueRejected.WithLabelValues(reason).Inc()
	}
}

// UpdateWorkerCount sets the pool size.
func UpdateWorkerCount(count int) {
	if globalManager.on() {
		globalManager.workerCount.Set(float64(count))
	}
}

// AddWorkerBusy adjusts the busy worker gauge by delta.
func AddWorkerBusy(delta int) {
	if globalManager.on() {
		globalManager.workerBusy.Add(float64(delta))
	}
}

// RecordWorkerPanic counts a recovered job panic.
func RecordWorkerPanic() {
	if globalManager.on() {
		globalManager.workerPanics.Inc()
	}
}

// RecordErrorByComponent counts an error raised inside a component.
func RecordErrorByComponent(component, errorType string) {
	if globalManager.on() {
		globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// RecordErrorByEndpoint counts an HTTP error.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if globalManager.on() {
		globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
	}
}

// UpdateSystemMemoryUsage sets heap bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	if globalManager.on() {
		globalManager.systemMemoryUsage.Set(float64(bytes))
	}
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	if globalManager.on() {
		globalManager.systemGoroutineCount.Set(float64(count))
	}
}
