package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for credit evaluations.
type Metrics struct {
	// Terminal outcomes by status
	EvaluationOutcome *prometheus.CounterVec

	// Full evaluation latency including fact gathering
	EvaluateLatency prometheus.Histogram

	// Pipeline stage latency by stage and resulting state
	StageLatency *prometheus.HistogramVec

	// Advisor consultations by result: approve, reject, manual_review, error
	AdvisorCalls *prometheus.CounterVec

	// Fact provider latency and degradations by category
	FactLatency  *prometheus.HistogramVec
	FactDegraded *prometheus.CounterVec

	// Fact cache lookups by category and result: hit, miss
	FactCache *prometheus.CounterVec
}

// New creates a new Metrics instance registered on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers evaluation metrics on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EvaluationOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "creditflow_evaluation_outcomes_total",
			Help: "Total credit evaluation outcomes by status",
		}, []string{"status"}),

		EvaluateLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "creditflow_evaluation_duration_seconds",
			Help:    "Duration of a full credit evaluation including fact gathering",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		StageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "creditflow_pipeline_stage_duration_seconds",
			Help:    "Duration of pipeline stages by stage and resulting state",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}, []string{"stage", "state"}),

		AdvisorCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "creditflow_advisor_calls_total",
			Help: "Advisor consultations by result",
		}, []string{"result"}),

		FactLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "creditflow_fact_load_duration_seconds",
			Help:    "Duration of fact provider loads by category",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"category"}),

		FactDegraded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "creditflow_fact_degraded_total",
			Help: "Fact loads that failed and were replaced by an unavailable payload",
		}, []string{"category"}),

		FactCache: f.NewCounterVec(prometheus.CounterOpts{
			Name: "creditflow_fact_cache_lookups_total",
			Help: "Fact cache lookups by category and result",
		}, []string{"category", "result"}),
	}
}

// IncrementOutcome records a terminal evaluation status.
func (m *Metrics) IncrementOutcome(status string) {
	if m != nil {
		m.EvaluationOutcome.WithLabelValues(status).Inc()
	}
}

// ObserveEvaluateLatency records the total evaluation duration.
func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}

// ObserveStage records a stage duration and the state it ended in.
func (m *Metrics) ObserveStage(stage, state string, d time.Duration) {
	if m != nil {
		m.StageLatency.WithLabelValues(stage, state).Observe(d.Seconds())
	}
}

// IncrementAdvisorCall records an advisor consultation result.
func (m *Metrics) IncrementAdvisorCall(result string) {
	if m != nil {
		m.AdvisorCalls.WithLabelValues(result).Inc()
	}
}

// ObserveFactLatency records the duration of a fact provider load.
func (m *Metrics) ObserveFactLatency(category string, d time.Duration) {
	if m != nil {
		m.FactLatency.WithLabelValues(category).Observe(d.Seconds())
	}
}

// IncrementFactDegraded records a fact load that fell back to unavailable.
func (m *Metrics) IncrementFactDegraded(category string) {
	if m != nil {
		m.FactDegraded.WithLabelValues(category).Inc()
	}
}

// ObserveFactCache records a fact cache hit or miss.
func (m *Metrics) ObserveFactCache(category string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.FactCache.WithLabelValues(category, result).Inc()
}
