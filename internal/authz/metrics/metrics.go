package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Decision outcomes recorded per check.
const (
	OutcomeAllowed = "allowed"
	OutcomeDenied  = "denied"
	OutcomeError   = "error"
)

// Grant sources for allowed decisions.
const (
	SourceRole       = "role"
	SourceContextual = "contextual"
	SourceNone       = "none"
)

type Metrics struct {
	Decisions     *prometheus.CounterVec
	CheckDuration prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "talentgate_authorization_decisions_total",
			Help: "Authorization decisions, by outcome and grant source",
		}, []string{"outcome", "source"}),
		CheckDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "talentgate_authorization_check_duration_seconds",
			Help:    "Duration of permission checks including membership and ownership lookups",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
	}
}

func (m *Metrics) IncrementDecision(outcome, source string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(outcome, source).Inc()
}

func (m *Metrics) ObserveCheck(start time.Time) {
	if m == nil {
		return
	}
	m.CheckDuration.Observe(time.Since(start).Seconds())
}
