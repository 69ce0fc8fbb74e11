package kafkatransport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultProcessed = "processed"
	resultMalformed = "malformed"
	resultFailed    = "failed"
)

type Metrics struct {
	Records *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Records: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "docverify_submission_records_total",
			Help: "Consumed submission records by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) IncRecord(result string) {
	if m == nil {
		return
	}
	m.Records.WithLabelValues(result).Inc()
}
