package admission

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	OutcomesTotal *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		OutcomesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "folio_admission_outcomes_total",
			Help: "Finished requests by endpoint, last state reached before responding, and status",
		}, []string{"endpoint", "state", "status"}),
	}
}

func (m *Metrics) ObserveOutcome(endpoint string, state State, status int) {
	m.OutcomesTotal.WithLabelValues(endpoint, state.String(), strconv.Itoa(status)).Inc()
}
