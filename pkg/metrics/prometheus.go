package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	evaluations *prometheus.CounterVec
	score       *prometheus.GaugeVec
	confidence  *prometheus.GaugeVec
	driverValue *prometheus.GaugeVec
	snapshots   *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpSize     *prometheus.HistogramVec
}

// NewWithRegistry registers the collectors on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "macrogate_evaluations_total",
			Help: "Evaluations by instrument and verdict",
		}, []string{"instrument", "verdict"}),
		score: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "macrogate_execution_score",
			Help: "Latest execution score (0-100)",
		}, []string{"instrument"}),
		confidence: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "macrogate_bias_confidence",
			Help: "Latest directional bias confidence",
		}, []string{"instrument", "direction"}),
		driverValue: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "macrogate_driver_last_value",
			Help: "Last value of a reference driver",
		}, []string{"driver"}),
		snapshots: f.NewCounterVec(prometheus.CounterOpts{
			Name: "macrogate_audit_snapshots_total",
			Help: "Audit snapshots appended per backend",
		}, []string{"backend"}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "macrogate_errors_total",
			Help: "Errors by kind",
		}, []string{"kind"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "macrogate_operation_duration_seconds",
			Help:    "Duration of operations in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"route", "method", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"route", "method", "class"}),
		httpSize: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: []float64{200, 500, 1_000, 5_000, 10_000, 50_000, 100_000, 500_000},
		}, []string{"route", "method"}),
	}
}

// RecordEvaluation counts an evaluation and sets the latest score.
func (r *Recorder) RecordEvaluation(instrument, verdict string, score int) {
	r.evaluations.WithLabelValues(instrument, verdict).Inc()
	r.score.WithLabelValues(instrument).Set(float64(score))
}

// RecordBias sets the confidence gauge for the current direction only.
func (r *Recorder) RecordBias(instrument, direction string, confidence int) {
	r.confidence.DeletePartialMatch(prometheus.Labels{"instrument": instrument})
	r.confidence.WithLabelValues(instrument, direction).Set(float64(confidence))
}

func (r *Recorder) RecordDriver(name string, value float64) {
	r.driverValue.WithLabelValues(name).Set(value)
}

func (r *Recorder) RecordSnapshot(backend string) {
	r.snapshots.WithLabelValues(backend).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// ObserveHTTP is called by the HTTP metrics middleware.
func (r *Recorder) ObserveHTTP(route, method string, status int, seconds float64, bytes int64) {
	r.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(route, method, statusClass(status)).Observe(seconds)
	r.httpSize.WithLabelValues(route, method).Observe(float64(bytes))
}

func statusClass(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
