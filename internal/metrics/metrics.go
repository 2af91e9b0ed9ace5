// Package metrics exposes Prometheus instrumentation for claim assessment.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ppiankov/claimlink/internal/model"
)

// Metrics tracks assessments, extraction outcomes and notarization.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	AssessmentsTotal   *prometheus.CounterVec
	AssessDuration     prometheus.Histogram
	AggregateScore     prometheus.Histogram
	ErrorKindsTotal    *prometheus.CounterVec
	ExtractionsTotal   *prometheus.CounterVec
	LedgerPublishTotal *prometheus.CounterVec
	ConfigErrorsTotal  prometheus.Counter
}

// New registers claimlink metrics with reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AssessmentsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "claimlink_assessments_total",
			Help: "Total claim assessments by verdict status and severity",
		}, []string{"status", "severity"}),
		AssessDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "claimlink_assess_duration_seconds",
			Help:    "Duration of claim assessments including extraction",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		AggregateScore: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "claimlink_aggregate_risk_score",
			Help:    "Distribution of aggregate risk scores",
			Buckets: []float64{0, 0.1, 0.2, 0.3, 0.5, 0.75, 1, 1.5, 2, 3},
		}),
		ErrorKindsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "claimlink_error_kinds_total",
			Help: "Violations recorded per error kind",
		}, []string{"kind"}),
		ExtractionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "claimlink_extractions_total",
			Help: "Document extraction outcomes by document and state",
		}, []string{"document", "state", "cached"}),
		LedgerPublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "claimlink_ledger_publish_total",
			Help: "Claim snapshot notarization attempts by result",
		}, []string{"result"}),
		ConfigErrorsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "claimlink_configuration_errors_total",
			Help: "Assessments aborted because an error kind had no weight",
		}),
	}
}

// ObserveVerdict records a completed assessment.
// Call with time.Now() at the start of the assessment.
func (m *Metrics) ObserveVerdict(v model.Verdict, start time.Time) {
	if m == nil {
		return
	}
	m.AssessmentsTotal.WithLabelValues(string(v.Status), string(v.Severity)).Inc()
	m.AssessDuration.Observe(time.Since(start).Seconds())
	m.AggregateScore.Observe(v.Aggregate)
	for _, kind := range v.Errors.Kinds() {
		m.ErrorKindsTotal.WithLabelValues(string(kind)).Inc()
	}
}

// ObserveExtraction records one document's extraction outcome
func (m *Metrics) ObserveExtraction(o model.ExtractionOutcome) {
	if m == nil {
		return
	}
	cached := "false"
	if o.Cached {
		cached = "true"
	}
	m.ExtractionsTotal.WithLabelValues(string(o.Document), string(o.State), cached).Inc()
}

// ObserveLedger records a notarization attempt
func (m *Metrics) ObserveLedger(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.LedgerPublishTotal.WithLabelValues(result).Inc()
}

// IncConfigError records an assessment aborted by a configuration error
func (m *Metrics) IncConfigError() {
	if m == nil {
		return
	}
	m.ConfigErrorsTotal.Inc()
}
