package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Enqueue results.
const (
	resultCreated   = "created"
	resultDuplicate = "duplicate"
	resultInFlight  = "in_flight"
	resultFailed    = "failed"
)

type Metrics struct {
	Enqueued       *prometheus.CounterVec
	StoreRetries   prometheus.Counter
	NotifyFailures prometheus.Counter
	GuardErrors    prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Enqueued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docverify_moderation_enqueue_total",
			Help: "Enqueue attempts by result",
		}, []string{"result"}),
		StoreRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "docverify_moderation_store_retries_total",
			Help: "Retried moderation store writes",
		}),
		NotifyFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "docverify_moderation_notify_failures_total",
			Help: "Pending-review notifications that failed to publish",
		}),
		GuardErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "docverify_moderation_guard_errors_total",
			Help: "Enqueue guard errors; the enqueue proceeds unguarded",
		}),
	}
}

func (m *Metrics) IncEnqueued(result string) {
	if m == nil {
		return
	}
	m.Enqueued.WithLabelValues(result).Inc()
}

func (m *Metrics) IncStoreRetry() {
	if m == nil {
		return
	}
	m.StoreRetries.Inc()
}

func (m *Metrics) IncNotifyFailure() {
	if m == nil {
		return
	}
	m.NotifyFailures.Inc()
}

func (m *Metrics) IncGuardError() {
	if m == nil {
		return
	}
	m.GuardErrors.Inc()
}
