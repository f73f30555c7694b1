package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	signalsTotal    *prometheus.CounterVec
	executionsTotal *prometheus.CounterVec
	queueRetries    *prometheus.CounterVec
	queueDepth      prometheus.Gauge
	integrityChecks prometheus.Counter
	integrityFails  prometheus.Counter
	tampersTotal    prometheus.Counter
	riskLevel       *prometheus.GaugeVec
	errorsTotal     *prometheus.CounterVec
	latency         *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		signalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigrelay_signals_total",
				Help: "Signal lifecycle transitions by resulting status",
			},
			[]string{"status"},
		),
		executionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigrelay_executions_total",
				Help: "Executor call outcomes",
			},
			[]string{"executor", "result"},
		),
		queueRetries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigrelay_queue_retries_total",
				Help: "Retry attempts by executor",
			},
			[]string{"executor"},
		),
		queueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sigrelay_queue_depth",
				Help: "Due queue entries in the last cycle",
			},
		),
		integrityChecks: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sigrelay_integrity_checked_total",
				Help: "Records verified by the integrity monitor",
			},
		),
		integrityFails: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sigrelay_integrity_failed_total",
				Help: "Records that failed hash verification",
			},
		),
		tampersTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sigrelay_tamper_detected_total",
				Help: "Individual hash mismatches detected",
			},
		),
		riskLevel: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sigrelay_risk_level",
				Help: "Risk level severity per executor (0 normal, 3 breach)",
			},
			[]string{"executor"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigrelay_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sigrelay_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordSignal counts one lifecycle transition.
func (r *Recorder) RecordSignal(status string) {
	r.signalsTotal.WithLabelValues(status).Inc()
}

// RecordExecution counts one executor call outcome.
func (r *Recorder) RecordExecution(executorID, result string) {
	r.executionsTotal.WithLabelValues(executorID, result).Inc()
}

// RecordQueueRetry counts one retry attempt.
func (r *Recorder) RecordQueueRetry(executorID string) {
	r.queueRetries.WithLabelValues(executorID).Inc()
}

// RecordQueueDepth sets the due-entry gauge.
func (r *Recorder) RecordQueueDepth(n int) {
	r.queueDepth.Set(float64(n))
}

// RecordIntegrityCheck counts verified and failed records of one pass.
func (r *Recorder) RecordIntegrityCheck(checked, failed int) {
	r.integrityChecks.Add(float64(checked))
	r.integrityFails.Add(float64(failed))
}

// RecordTamper counts one hash mismatch.
func (r *Recorder) RecordTamper() {
	r.tampersTotal.Inc()
}

// RecordRiskLevel sets an executor's risk severity gauge.
func (r *Recorder) RecordRiskLevel(executorID string, severity int) {
	r.riskLevel.WithLabelValues(executorID).Set(float64(severity))
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
