package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder records analysis metrics using Prometheus
// nil Recorder 는 모든 기록을 무시함
type Recorder struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	errors     *prometheus.CounterVec
	retained   prometheus.Gauge
	latency    *prometheus.HistogramVec
}

// New creates a recorder with its own registry
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_operations_total",
				Help: "Total number of analysis operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_errors_total",
				Help: "Total number of errors by kind",
			},
			[]string{"kind"},
		),
		retained: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "screener_last_retained_entities",
				Help: "Entities retained by the last screening run",
			},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "screener_operation_duration_seconds",
				Help:    "Duration of analysis operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// Observe records the outcome and latency of one operation
func (r *Recorder) Observe(op string, start time.Time, err error) {
	if r == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	r.operations.WithLabelValues(op, outcome).Inc()
	r.latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// RecordError records an error occurrence
func (r *Recorder) RecordError(kind string) {
	if r == nil {
		return
	}
	r.errors.WithLabelValues(kind).Inc()
}

// RecordRetained records the size of the last screened subset
func (r *Recorder) RecordRetained(n int) {
	if r == nil {
		return
	}
	r.retained.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
