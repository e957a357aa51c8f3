package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics registers and updates the service's prometheus collectors on a
// private registry, exposed at /metrics. Every record method tolerates a nil
// receiver so code paths without metrics wiring (the one-shot CLI) need no
// guards.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpErrors   *prometheus.CounterVec

	notificationsSent    *prometheus.CounterVec
	notificationsFailed  prometheus.Counter
	notificationsSkipped *prometheus.CounterVec
	sendLatency          prometheus.Histogram

	queueDepth  prometheus.Gauge
	queueFailed prometheus.Gauge

	jobRuns     *prometheus.CounterVec
	jobDuration prometheus.Histogram
}

// NewMetrics initializes the registry and all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests processed, by method, path and status.",
		}, []string{"method", "path", "status"}),
		httpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_request_errors_total",
			Help: "HTTP requests that ended in an error response.",
		}, []string{"method", "path", "code"}),
		notificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Notifications delivered, by job mode.",
		}, []string{"mode"}),
		notificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Notification delivery attempts that failed.",
		}),
		notificationsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_skipped_total",
			Help: "Notifications deliberately not sent, by reason.",
		}, []string{"reason"}),
		sendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "send_latency_seconds",
			Help:    "Time spent delivering one message to the relay.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Items waiting in the delivery queue.",
		}),
		queueFailed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "queue_items_failed",
			Help: "Items parked as failed after exhausting their retries.",
		}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "job_runs_total",
			Help: "Notification job runs, by mode.",
		}, []string{"mode"}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "job_run_duration_seconds",
			Help:    "Wall time of one notification job run.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpErrors,
		m.notificationsSent,
		m.notificationsFailed,
		m.notificationsSkipped,
		m.sendLatency,
		m.queueDepth,
		m.queueFailed,
		m.jobRuns,
		m.jobDuration,
	)
	return m
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.httpErrors.WithLabelValues(method, path, code).Inc()
}

// RecordSent counts one delivered notification.
func (m *Metrics) RecordSent(mode string, latency time.Duration) {
	if m == nil {
		return
	}
	m.notificationsSent.WithLabelValues(mode).Inc()
	m.sendLatency.Observe(latency.Seconds())
}

// RecordFailed counts one failed delivery attempt.
func (m *Metrics) RecordFailed() {
	if m == nil {
		return
	}
	m.notificationsFailed.Inc()
}

// RecordSkipped counts one deliberately suppressed notification.
func (m *Metrics) RecordSkipped(reason string) {
	if m == nil {
		return
	}
	m.notificationsSkipped.WithLabelValues(reason).Inc()
}

// SetQueueGauges records a queue depth sample.
func (m *Metrics) SetQueueGauges(pending, failed int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(pending))
	m.queueFailed.Set(float64(failed))
}

// RecordJobRun counts a finished job run and its duration.
func (m *Metrics) RecordJobRun(mode string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(mode).Inc()
	m.jobDuration.Observe(duration.Seconds())
}
