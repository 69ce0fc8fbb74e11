package verification

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage results.
const (
	resultPassed   = "passed"
	resultRejected = "rejected"
	resultFailed   = "failed"
	resultTimedOut = "timed_out"
	resultInvalid  = "invalid"
)

type Metrics struct {
	Outcomes         *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	PipelineDuration prometheus.Histogram
	StagePanics      *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docverify_verification_outcomes_total",
			Help: "Terminal outcomes by deciding stage and result",
		}, []string{"stage", "result"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docverify_verification_stage_duration_seconds",
			Help:    "Duration of each pipeline stage",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		PipelineDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "docverify_verification_duration_seconds",
			Help:    "End-to-end duration of a submission",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		StagePanics: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docverify_verification_stage_panics_total",
			Help: "Panics recovered at a stage boundary",
		}, []string{"stage"}),
	}
}

func (m *Metrics) ObserveOutcome(stage Stage, result string) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(string(stage), result).Inc()
}

func (m *Metrics) ObserveStage(stage Stage, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
}

func (m *Metrics) ObservePipeline(d time.Duration) {
	if m == nil {
		return
	}
	m.PipelineDuration.Observe(d.Seconds())
}

func (m *Metrics) IncPanic(stage Stage) {
	if m == nil {
		return
	}
	m.StagePanics.WithLabelValues(string(stage)).Inc()
}
