package core

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/dataprep/internal/engine"
)

const metricsNamespace = "dataprep"

// Metrics holds the Prometheus collectors for dataset sessions. Each Metrics
// owns its registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	uploadsTotal      *prometheus.CounterVec
	uploadBytes       prometheus.Histogram
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	chartsTotal       *prometheus.CounterVec
	activeSessions    prometheus.Gauge
	sessionsEvicted   prometheus.Counter
	uploadsInFlight   prometheus.Gauge
}

// NewMetrics creates and registers every collector, including the Go runtime
// and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		uploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "uploads_total",
			Help:      "Dataset uploads by result.",
		}, []string{"result"}),
		uploadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "upload_bytes",
			Help:      "Size of uploaded files in bytes.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
		}),
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "operations_total",
			Help:      "Cleaning operations by kind and result.",
		}, []string{"kind", "result"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "operation_duration_seconds",
			Help:      "Time spent applying cleaning operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		chartsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "charts_total",
			Help:      "Chart plans by kind and result.",
		}, []string{"kind", "result"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_sessions",
			Help:      "Dataset sessions currently held in memory.",
		}),
		sessionsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_evicted_total",
			Help:      "Sessions removed by the idle reaper.",
		}),
		uploadsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "uploads_in_flight",
			Help:      "Uploads currently holding a limiter slot.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.uploadsTotal,
		m.uploadBytes,
		m.operationsTotal,
		m.operationDuration,
		m.chartsTotal,
		m.activeSessions,
		m.sessionsEvicted,
		m.uploadsInFlight,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// opLabel and chartLabel keep label cardinality bounded to the known kinds.
func opLabel(k engine.OpKind) string {
	for _, known := range engine.OpKinds() {
		if k == known {
			return string(k)
		}
	}
	return "unknown"
}

func chartLabel(k engine.ChartKind) string {
	for _, known := range engine.ChartKinds() {
		if k == known {
			return string(k)
		}
	}
	return "unknown"
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) observeUpload(size int, err error) {
	m.uploadsTotal.WithLabelValues(resultLabel(err)).Inc()
	if err == nil {
		m.uploadBytes.Observe(float64(size))
	}
}

func (m *Metrics) observeOperation(kind string, start time.Time, err error) {
	m.operationsTotal.WithLabelValues(kind, resultLabel(err)).Inc()
	m.operationDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeChart(kind string, err error) {
	m.chartsTotal.WithLabelValues(kind, resultLabel(err)).Inc()
}
