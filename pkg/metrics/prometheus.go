package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ingested  *prometheus.CounterVec
	deduped   prometheus.Counter
	rejected  *prometheus.CounterVec
	rebuilds  *prometheus.CounterVec
	toolCalls *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		ingested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finfuse_records_ingested_total",
				Help: "Total records committed by the ingestors",
			},
			[]string{"kind", "instrument"},
		),
		deduped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "finfuse_news_deduped_total",
				Help: "News items skipped as already-seen duplicates",
			},
		),
		rejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finfuse_records_rejected_total",
				Help: "Rows or items rejected during validation",
			},
			[]string{"kind"},
		),
		rebuilds: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finfuse_fusion_rebuilds_total",
				Help: "Fusion bucket rebuilds performed",
			},
			[]string{"instrument"},
		),
		toolCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finfuse_agent_tool_calls_total",
				Help: "Agent tool calls by tool and outcome",
			},
			[]string{"tool", "outcome"},
		),
		errors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finfuse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finfuse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordIngested records committed records for an instrument.
func (r *Recorder) RecordIngested(kind, instrument string, n int) {
	r.ingested.WithLabelValues(kind, instrument).Add(float64(n))
}

// RecordDeduped records skipped duplicate news items.
func (r *Recorder) RecordDeduped(n int) {
	r.deduped.Add(float64(n))
}

// RecordRejected records rows rejected by validation.
func (r *Recorder) RecordRejected(kind string, n int) {
	r.rejected.WithLabelValues(kind).Add(float64(n))
}

// RecordRebuild records a fusion bucket rebuild.
func (r *Recorder) RecordRebuild(instrument string) {
	r.rebuilds.WithLabelValues(instrument).Inc()
}

// RecordToolCall records an agent tool call outcome.
func (r *Recorder) RecordToolCall(tool string, failed bool) {
	outcome := "ok"
	if failed {
		outcome = "failed"
	}
	r.toolCalls.WithLabelValues(tool, outcome).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errors.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
