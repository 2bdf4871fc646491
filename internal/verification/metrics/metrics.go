package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks verification verdicts and LinkedIn probe latency.
type Metrics struct {
	Outcomes      *prometheus.CounterVec
	ProbeDuration prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "intromarket_verification_outcomes_total",
			Help: "Verification verdicts by subject kind and outcome",
		}, []string{"kind", "outcome"}),
		ProbeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "intromarket_linkedin_probe_duration_seconds",
			Help:    "Duration of LinkedIn reachability probes including the retry",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

func (m *Metrics) IncOutcome(kind, outcome string) {
	m.Outcomes.WithLabelValues(kind, outcome).Inc()
}

// ObserveProbe records a probe duration. Call with time.Now() taken before the probe.
func (m *Metrics) ObserveProbe(start time.Time) {
	m.ProbeDuration.Observe(time.Since(start).Seconds())
}
