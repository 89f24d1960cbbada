// Package metrics exports the extractor's Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "extractor"

// Metrics holds every collector. A nil *Metrics records nothing.
type Metrics struct {
	Extractions       *prometheus.CounterVec
	UpstreamDuration  *prometheus.HistogramVec
	SecondaryFailures prometheus.Counter
	BackgroundTasks   *prometheus.CounterVec
	PreviewErrors     *prometheus.CounterVec
	QueueDepth        prometheus.Gauge
	HTTPDuration      *prometheus.HistogramVec
	registry          *prometheus.Registry
}

// New registers the collectors on a fresh registry that also carries the Go
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := NewWith(reg)
	m.registry = reg
	return m
}

// NewWith registers the collectors on reg.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Extractions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Extraction runs by mode (preview, full, dependent) and final status",
		}, []string{"mode", "status"}),
		UpstreamDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Shopify Admin API call latency by operation and outcome",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		}, []string{"operation", "outcome"}),
		SecondaryFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dependent_secondary_failures_total",
			Help:      "Secondary queries of dependent extractions that failed",
		}),
		BackgroundTasks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "background_tasks_total",
			Help:      "Background tasks by outcome (ok, failed, panicked, dropped)",
		}, []string{"outcome"}),
		PreviewErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "preview_errors_total",
			Help:      "Classified preview failures by category",
		}, []string{"category"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "background_queue_depth",
			Help:      "Tasks waiting in the background queue",
		}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency by method, route and status",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// Handler serves the registry created by New, or the default gatherer.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveExtraction(mode, status string) {
	if m == nil {
		return
	}
	m.Extractions.WithLabelValues(mode, status).Inc()
}

// ObserveUpstream matches shopify.Observer.
func (m *Metrics) ObserveUpstream(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamDuration.WithLabelValues(operation, outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) SecondaryFailed() {
	if m == nil {
		return
	}
	m.SecondaryFailures.Inc()
}

func (m *Metrics) ObserveTask(outcome string) {
	if m == nil {
		return
	}
	m.BackgroundTasks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

func (m *Metrics) ObservePreviewError(category string) {
	if m == nil {
		return
	}
	m.PreviewErrors.WithLabelValues(category).Inc()
}

// ObserveHTTP matches infrastructure/metrics.Observer.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
