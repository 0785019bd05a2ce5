package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Rejected    *prometheus.CounterVec
	StoreErrors prometheus.Counter
}

// New registers the rate limit metrics with reg. A nil *Metrics is safe to use.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "talentgate_ratelimit_rejected_total",
			Help: "Requests rejected by a rate limit rule",
		}, []string{"rule"}),
		StoreErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "talentgate_ratelimit_store_errors_total",
			Help: "Rate limit checks skipped because the store failed",
		}),
	}
}

func (m *Metrics) IncrementRejected(rule string) {
	if m == nil {
		return
	}
	m.Rejected.WithLabelValues(rule).Inc()
}

func (m *Metrics) IncrementStoreErrors() {
	if m == nil {
		return
	}
	m.StoreErrors.Inc()
}
