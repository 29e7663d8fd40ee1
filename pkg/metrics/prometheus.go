package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	refreshTotal     *prometheus.CounterVec
	fetchLatency     *prometheus.HistogramVec
	planTransitions  *prometheus.CounterVec
	confluence       *prometheus.GaugeVec
	threshold        *prometheus.GaugeVec
	errorsTotal      *prometheus.CounterVec
	operationLatency *prometheus.HistogramVec
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder on a custom registry (useful for tests).
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		refreshTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plansentry_refresh_total",
				Help: "Bar refresh attempts by symbol and result",
			},
			[]string{"symbol", "result"},
		),
		fetchLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plansentry_fetch_duration_seconds",
				Help:    "Bar source fetch latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"symbol"},
		),
		planTransitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plansentry_plan_transitions_total",
				Help: "Plan status transitions",
			},
			[]string{"status"},
		),
		confluence: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "plansentry_confluence_score",
				Help: "Last evaluated confluence score per symbol",
			},
			[]string{"symbol"},
		),
		threshold: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "plansentry_activation_threshold",
				Help: "Last calibrated activation threshold per symbol",
			},
			[]string{"symbol"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plansentry_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		operationLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plansentry_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordRefresh(symbol, result string) {
	r.refreshTotal.WithLabelValues(symbol, result).Inc()
}

func (r *Recorder) RecordFetchLatency(symbol string, seconds float64) {
	r.fetchLatency.WithLabelValues(symbol).Observe(seconds)
}

func (r *Recorder) RecordPlanTransition(status string) {
	r.planTransitions.WithLabelValues(status).Inc()
}

func (r *Recorder) RecordEvaluation(symbol string, confluence, threshold float64) {
	r.confluence.WithLabelValues(symbol).Set(confluence)
	r.threshold.WithLabelValues(symbol).Set(threshold)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.operationLatency.WithLabelValues(op).Observe(seconds)
}

// Nop discards all observations.
type Nop struct{}

func (Nop) RecordRefresh(string, string)              {}
func (Nop) RecordFetchLatency(string, float64)        {}
func (Nop) RecordPlanTransition(string)               {}
func (Nop) RecordEvaluation(string, float64, float64) {}
func (Nop) RecordError(string)                        {}
func (Nop) RecordLatency(string, float64)             {}
