// Package metrics provides Prometheus metrics for the progression service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns all Prometheus metrics for the progression pipeline.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Event ingestion
	eventsAccepted  *prometheus.CounterVec
	eventsStale     prometheus.Counter
	eventsDuplicate prometheus.Counter
	eventsRejected  prometheus.Counter

	// Progression state
	applyLatency   prometheus.Histogram
	activeUsers    prometheus.Gauge
	levelUps       prometheus.Counter
	transitions    prometheus.Counter
	baselinedUsers prometheus.Counter

	// Notification pipeline
	jobsEnqueued    prometheus.Counter
	jobsDelivered   prometheus.Counter
	jobsFailed      prometheus.Counter
	jobsDropped     prometheus.Counter
	deliveryLatency prometheus.Histogram
	dispatchRetries prometheus.Counter

	// Queue health
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueueErrs prometheus.Counter

	// Workers
	workerCount prometheus.Gauge

	// Poll fallback
	pollFetches     prometheus.Counter
	pollFetchErrors prometheus.Counter
	pushSubscribers prometheus.Gauge

	// HTTP surface
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid the default Go collectors.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // singleton registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "quizarena",
		subsystem:        "progression",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // metrics registration is one long list
	auto := promauto.With(m.registry)

	m.eventsAccepted = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "events_accepted_total",
			Help:      "Total number of events accepted by the progression store, by source",
		},
		[]string{"source"},
	)

	m.eventsStale = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_stale_total",
		Help:      "Total number of events dropped because their sequence was not newer",
	})

	m.eventsDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_duplicate_total",
		Help:      "Total number of duplicate events suppressed by the ingress dedupe cache",
	})

	m.eventsRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_rejected_total",
		Help:      "Total number of malformed events rejected at ingress",
	})

	m.applyLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "apply_latency_milliseconds",
		Help:      "Latency of the serialized per-user apply path in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.activeUsers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "active_users",
		Help:      "Number of users with progression state held in memory",
	})

	m.levelUps = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "level_ups_total",
		Help:      "Total number of level-up events derived from experience gains",
	})

	m.transitions = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "unlock_transitions_total",
		Help:      "Total number of genuine unlock transitions detected",
	})

	m.baselinedUsers = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "baselined_users_total",
		Help:      "Total number of first observations that established a baseline",
	})

	m.jobsEnqueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notification_jobs_enqueued_total",
		Help:      "Total number of notification jobs enqueued for delivery",
	})

	m.jobsDelivered = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notification_jobs_delivered_total",
		Help:      "Total number of notification jobs delivered downstream",
	})

	m.jobsFailed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notification_jobs_failed_total",
		Help:      "Total number of notification jobs that exhausted delivery retries",
	})

	m.jobsDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notification_jobs_dropped_total",
		Help:      "Total number of jobs dropped at enqueue time and logged for replay",
	})

	m.deliveryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notification_delivery_latency_milliseconds",
		Help:      "Downstream notification delivery latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.dispatchRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notification_delivery_retries_total",
		Help:      "Total number of delivery retry attempts",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "job_queue_size",
		Help:      "Current size of the notification job queue",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "job_queue_capacity",
		Help:      "Maximum notification job queue capacity",
	})

	m.queueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "job_queue_utilization_ratio",
		Help:      "Job queue utilization ratio (current size / capacity)",
	})

	m.queueEnqueueErrs = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "job_queue_enqueue_errors_total",
		Help:      "Total number of failed job enqueue attempts",
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dispatch_worker_count",
		Help:      "Number of notification dispatch workers",
	})

	m.pollFetches = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "poll_fetches_total",
		Help:      "Total number of fallback poll fetches against the stats service",
	})

	m.pollFetchErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "poll_fetch_errors_total",
		Help:      "Total number of failed fallback poll fetches",
	})

	m.pushSubscribers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "push_subscribers",
		Help:      "Number of active push-channel subscriptions",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint, method and status",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)
}

// Package-level recorders operating on the global manager.

func RecordEventAccepted(source string) {
	globalManager.eventsAccepted.WithLabelValues(source).Inc()
}

func RecordEventStale() {
	globalManager.eventsStale.Inc()
}

func RecordEventDuplicate() {
	globalManager.eventsDuplicate.Inc()
}

func RecordEventRejected() {
	globalManager.eventsRejected.Inc()
}

func RecordApplyLatency(latencyMs float64) {
	globalManager.applyLatency.Observe(latencyMs)
}

func UpdateActiveUsers(count int) {
	globalManager.activeUsers.Set(float64(count))
}

func RecordLevelUp() {
	globalManager.levelUps.Inc()
}

func RecordTransitions(count int) {
	globalManager.transitions.Add(float64(count))
}

func RecordBaseline() {
	globalManager.baselinedUsers.Inc()
}

func RecordJobEnqueued() {
	globalManager.jobsEnqueued.Inc()
}

func RecordJobDelivered() {
	globalManager.jobsDelivered.Inc()
}

func RecordJobFailed() {
	globalManager.jobsFailed.Inc()
}

func RecordJobDropped() {
	globalManager.jobsDropped.Inc()
}

func RecordDeliveryLatency(latencyMs float64) {
	globalManager.deliveryLatency.Observe(latencyMs)
}

func RecordDispatchRetry() {
	globalManager.dispatchRetries.Inc()
}

func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrs.Inc()
}

func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

func RecordPollFetch() {
	globalManager.pollFetches.Inc()
}

func RecordPollFetchError() {
	globalManager.pollFetchErrors.Inc()
}

func UpdatePushSubscribers(count int) {
	globalManager.pushSubscribers.Set(float64(count))
}

func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// GetRegistry returns the custom registry used by the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
