package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RateLimitDecisionsTotal         *prometheus.CounterVec
	RateLimitSuspiciousClientsTotal prometheus.Counter
	RateLimitTrackedViolators       prometheus.Gauge
	RateLimitSweepRunsTotal         *prometheus.CounterVec
	RateLimitSweepRemovedTotal      *prometheus.CounterVec
	RateLimitSweepDurationSeconds   prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RateLimitDecisionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_ratelimit_decisions_total",
			Help: "Rate limit decisions by class and outcome",
		}, []string{"class", "outcome"}),
		RateLimitSuspiciousClientsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "folio_ratelimit_suspicious_clients_total",
			Help: "Number of times a client crossed the suspicious violation threshold",
		}),
		RateLimitTrackedViolators: factory.NewGauge(prometheus.GaugeOpts{
			Name: "folio_ratelimit_tracked_violators",
			Help: "Clients with a live violation counter",
		}),
		RateLimitSweepRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_ratelimit_sweep_runs_total",
			Help: "Total number of sweep runs",
		}, []string{"status"}),
		RateLimitSweepRemovedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_ratelimit_sweep_removed_total",
			Help: "Entries evicted by the sweep",
		}, []string{"kind"}),
		RateLimitSweepDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name: "folio_ratelimit_sweep_duration_seconds",
			Help: "Duration of sweep runs in seconds",
		}),
	}
}

func (m *Metrics) IncrementDecision(class, outcome string) {
	m.RateLimitDecisionsTotal.WithLabelValues(class, outcome).Inc()
}

func (m *Metrics) IncrementSuspiciousClients() {
	m.RateLimitSuspiciousClientsTotal.Inc()
}

func (m *Metrics) SetTrackedViolators(count int) {
	m.RateLimitTrackedViolators.Set(float64(count))
}

func (m *Metrics) IncrementSweepRuns(status string) {
	m.RateLimitSweepRunsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) AddSweepRemoved(keys, violations int) {
	m.RateLimitSweepRemovedTotal.WithLabelValues("keys").Add(float64(keys))
	m.RateLimitSweepRemovedTotal.WithLabelValues("violations").Add(float64(violations))
}

func (m *Metrics) ObserveSweepDuration(durationSeconds float64) {
	m.RateLimitSweepDurationSeconds.Observe(durationSeconds)
}
