package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	SendsTotal        *prometheus.CounterVec
	SendDuration      prometheus.Histogram
	ResponsesTotal    *prometheus.CounterVec
	ExpiredTotal      prometheus.Counter
	ReconcileDuration prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		SendsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "intromarket_introduction_sends_total",
			Help: "Introduction send attempts by outcome (sent or the deny reason)",
		}, []string{"outcome"}),
		SendDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "intromarket_introduction_send_duration_seconds",
			Help:    "Duration of introduction sends including the admission transaction",
			Buckets: prometheus.DefBuckets,
		}),
		ResponsesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "intromarket_introduction_responses_total",
			Help: "Accept and decline attempts by target status and outcome",
		}, []string{"status", "outcome"}),
		ExpiredTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "intromarket_introductions_expired_total",
			Help: "Requests flipped to EXPIRED by reconciliation",
		}),
		ReconcileDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "intromarket_introduction_reconcile_duration_seconds",
			Help:    "Duration of reconcile runs",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncSend(outcome string) {
	m.SendsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveSend(start time.Time) {
	m.SendDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncResponse(status, outcome string) {
	m.ResponsesTotal.WithLabelValues(status, outcome).Inc()
}

func (m *Metrics) AddExpired(n int) {
	m.ExpiredTotal.Add(float64(n))
}

func (m *Metrics) ObserveReconcile(start time.Time) {
	m.ReconcileDuration.Observe(time.Since(start).Seconds())
}
