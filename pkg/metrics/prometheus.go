// Package metrics provides Prometheus metrics for the InternOS grading service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Grading
	attemptsStarted  prometheus.Counter
	gradings         *prometheus.CounterVec
	gradingLatency   prometheus.Histogram
	overallScore     prometheus.Histogram
	submitsRejected  *prometheus.CounterVec
	snapshotsBuilt   prometheus.Counter
	aggregateLatency prometheus.Histogram

	// Collectors
	collectorRuns    *prometheus.CounterVec
	collectorLatency *prometheus.HistogramVec
	signalsDefaulted *prometheus.CounterVec

	// Store
	storeQueryLatency *prometheus.HistogramVec
	storeErrors       *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec

	// System
	inFlightGradings     prometheus.Gauge
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by package-level recorders

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // shared registry served on /healthz

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "internos",
		subsystem:        "grader",
		histogramBuckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 30000, 120000, 300000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.attemptsStarted = auto.NewCounter(m.counterOpts("attempts_started_total",
		"Total number of ticket attempts started"))
	m.gradings = auto.NewCounterVec(m.counterOpts("gradings_total",
		"Total number of grading runs by result"), []string{"result"})
	m.gradingLatency = auto.NewHistogram(m.histogramOpts("grading_latency_milliseconds",
		"End-to-end grading latency in milliseconds", m.histogramBuckets))
	m.overallScore = auto.NewHistogram(m.histogramOpts("overall_score",
		"Distribution of overall scores of graded attempts", prometheus.LinearBuckets(0, 0.1, 11)))
	m.submitsRejected = auto.NewCounterVec(m.counterOpts("submits_rejected_total",
		"Submissions rejected before grading by reason"), []string{"reason"})
	m.snapshotsBuilt = auto.NewCounter(m.counterOpts("snapshots_built_total",
		"Total number of recruiter snapshots built"))
	m.aggregateLatency = auto.NewHistogram(m.histogramOpts("aggregate_latency_milliseconds",
		"Latency of cross-attempt aggregation in milliseconds", m.histogramBuckets))

	m.collectorRuns = auto.NewCounterVec(m.counterOpts("collector_runs_total",
		"Collector runs by collector and outcome"), []string{"collector", "outcome"})
	m.collectorLatency = auto.NewHistogramVec(m.histogramOpts("collector_latency_milliseconds",
		"Collector latency in milliseconds", m.histogramBuckets), []string{"collector"})
	m.signalsDefaulted = auto.NewCounterVec(m.counterOpts("signals_defaulted_total",
		"Signals that fell back to their default by signal and reason"), []string{"signal", "reason"})

	m.storeQueryLatency = auto.NewHistogramVec(m.histogramOpts("store_query_latency_milliseconds",
		"Attempt store operation latency in milliseconds", m.histogramBuckets), []string{"operation"})
	m.storeErrors = auto.NewCounterVec(m.counterOpts("store_errors_total",
		"Attempt store errors by operation"), []string{"operation"})

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"Total number of HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", m.histogramBuckets), []string{"endpoint", "method", "status_code"})
	m.errorRateByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total",
		"Total number of errors by endpoint"), []string{"endpoint", "method", "error_type"})

	m.inFlightGradings = auto.NewGauge(m.gaugeOpts("in_flight_gradings",
		"Attempts currently being graded"))
	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes",
		"Heap memory in use in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count",
		"Number of goroutines"))
}

// RecordAttemptStarted counts a started attempt.
func RecordAttemptStarted() { globalManager.attemptsStarted.Inc() }

// RecordGrading records a finished grading run.
func RecordGrading(result string, latencyMs float64) {
	globalManager.gradings.WithLabelValues(result).Inc()
	globalManager.gradingLatency.Observe(latencyMs)
}

// RecordOverallScore observes the overall score of a graded attempt.
func RecordOverallScore(score float64) { globalManager.overallScore.Observe(score) }

// RecordSubmitRejected counts a submission refused before any collector ran.
func RecordSubmitRejected(reason string) { globalManager.submitsRejected.WithLabelValues(reason).Inc() }

// RecordSnapshot records a recruiter snapshot build.
func RecordSnapshot(latencyMs float64) {
	globalManager.snapshotsBuilt.Inc()
	globalManager.aggregateLatency.Observe(latencyMs)
}

// RecordCollectorRun records one collector execution.
func RecordCollectorRun(collector, outcome string, latencyMs float64) {
	globalManager.collectorRuns.WithLabelValues(collector, outcome).Inc()
	globalManager.collectorLatency.WithLabelValues(collector).Observe(latencyMs)
}

// RecordSignalDefaulted counts a signal that was replaced by its default.
func RecordSignalDefaulted(signal, reason string) {
	globalManager.signalsDefaulted.WithLabelValues(signal, reason).Inc()
}

// RecordStoreQuery records store latency and, when failed is true, an error.
func RecordStoreQuery(operation string, latencyMs float64, failed bool) {
	globalManager.storeQueryLatency.WithLabelValues(operation).Observe(latencyMs)
	if failed {
		globalManager.storeErrors.WithLabelValues(operation).Inc()
	}
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateInFlightGradings adds delta to the in-flight gauge.
func UpdateInFlightGradings(delta int) { globalManager.inFlightGradings.Add(float64(delta)) }

// UpdateSystemMemoryUsage sets the heap memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// GetRegistry returns the registry backing the package-level recorders.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
