package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestDecisionsAreCountedBySource(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementDecision(OutcomeAllowed, SourceRole)
	m.IncrementDecision(OutcomeAllowed, SourceContextual)
	m.IncrementDecision(OutcomeDenied, SourceNone)
	m.IncrementDecision(OutcomeDenied, SourceNone)
	m.ObserveCheck(time.Now())

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Decisions.WithLabelValues(OutcomeAllowed, SourceRole)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Decisions.WithLabelValues(OutcomeAllowed, SourceContextual)))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Decisions.WithLabelValues(OutcomeDenied, SourceNone)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.CheckDuration))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementDecision(OutcomeError, SourceNone)
		m.ObserveCheck(time.Now())
	})
}
