package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	plansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colplan_plans_total",
			Help: "Total number of column plan requests by outcome.",
		},
		[]string{"outcome"},
	)
	planInferenceRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "colplan_plan_inference_retries_total",
			Help: "Total number of inference retries triggered by unparseable model output.",
		},
	)
	generatorLatencySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "colplan_generator_latency_seconds",
			Help:    "Text generation backend call latency in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
	)
	reportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colplan_reports_total",
			Help: "Total number of report executions by outcome.",
		},
		[]string{"outcome"},
	)
	exportArchivesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "colplan_export_archives_total",
			Help: "Total number of report exports archived to object storage.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		plansTotal,
		planInferenceRetriesTotal,
		generatorLatencySeconds,
		reportsTotal,
		exportArchivesTotal,
	)
}

// Plan outcomes used as the colplan_plans_total label value.
const (
	PlanOutcomeComplete = "complete"
	PlanOutcomePartial  = "partial"
	PlanOutcomeNoMatch  = "no_match"
	PlanOutcomeError    = "error"
)

func ObservePlan(outcome string) {
	plansTotal.WithLabelValues(outcome).Inc()
}

func ObserveInferenceRetry() {
	planInferenceRetriesTotal.Inc()
}

func ObserveGeneratorLatency(elapsed time.Duration) {
	generatorLatencySeconds.Observe(elapsed.Seconds())
}

// Report outcomes used as the colplan_reports_total label value.
const (
	ReportOutcomeOK       = "ok"
	ReportOutcomeRejected = "rejected"
	ReportOutcomeError    = "error"
)

func ObserveReport(outcome string) {
	reportsTotal.WithLabelValues(outcome).Inc()
}

func ObserveExportArchive() {
	exportArchivesTotal.Inc()
}
