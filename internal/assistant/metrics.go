package assistant

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	CircuitOpen     prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_assistant_requests_total",
			Help: "Generative AI calls by purpose and outcome (success, failure, rejected)",
		}, []string{"purpose", "outcome"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "folio_assistant_request_duration_seconds",
			Help:    "Generative AI call latency",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 25},
		}, []string{"purpose"}),
		CircuitOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "folio_assistant_circuit_open",
			Help: "1 while the generative AI circuit breaker is open",
		}),
	}
}

func (m *Metrics) observe(purpose Purpose, outcome string, d time.Duration) {
	m.RequestsTotal.WithLabelValues(string(purpose), outcome).Inc()
	if outcome != outcomeRejected {
		m.RequestDuration.WithLabelValues(string(purpose)).Observe(d.Seconds())
	}
}
