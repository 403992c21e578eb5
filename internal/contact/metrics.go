package contact

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	EmailsTotal     *prometheus.CounterVec
	AutoReplySource *prometheus.CounterVec
	SubmitDuration  prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EmailsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_contact_emails_total",
			Help: "Contact emails by kind and outcome",
		}, []string{"kind", "outcome"}),
		AutoReplySource: f.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_contact_auto_reply_source_total",
			Help: "Where the auto-reply text came from (generated or fallback)",
		}, []string{"source"}),
		SubmitDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "folio_contact_submit_duration_seconds",
			Help:    "Time to compose and send both contact emails",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}),
	}
}

func (m *Metrics) ObserveEmail(kind Kind, err error) {
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	m.EmailsTotal.WithLabelValues(string(kind), outcome).Inc()
}

func (m *Metrics) ObserveAutoReplySource(fallback bool) {
	source := "generated"
	if fallback {
		source = "fallback"
	}
	m.AutoReplySource.WithLabelValues(source).Inc()
}
