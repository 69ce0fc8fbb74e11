package ocr

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for text extraction.
type Metrics struct {
	Duration      prometheus.Histogram
	Failures      *prometheus.CounterVec
	SessionsInUse prometheus.Gauge
	BreakerOpen   prometheus.Gauge
}

// NewMetrics registers extraction metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "docverify_ocr_extract_duration_seconds",
			Help:    "Duration of text extraction including session wait",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}),
		Failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docverify_ocr_failures_total",
			Help: "Extraction failures by kind",
		}, []string{"kind"}), // kind: "engine", "decode", "timeout"
		SessionsInUse: f.NewGauge(prometheus.GaugeOpts{
			Name: "docverify_ocr_sessions_in_use",
			Help: "OCR sessions currently checked out",
		}),
		BreakerOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "docverify_ocr_circuit_breaker_state",
			Help: "OCR circuit breaker state (0=closed, 1=open)",
		}),
	}
}

func (m *Metrics) observeDuration(d time.Duration) {
	if m != nil {
		m.Duration.Observe(d.Seconds())
	}
}

func (m *Metrics) incFailure(kind string) {
	if m != nil {
		m.Failures.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) sessionAcquired() {
	if m != nil {
		m.SessionsInUse.Inc()
	}
}

func (m *Metrics) sessionReleased() {
	if m != nil {
		m.SessionsInUse.Dec()
	}
}

func (m *Metrics) setBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerOpen.Set(1)
	} else {
		m.BreakerOpen.Set(0)
	}
}
