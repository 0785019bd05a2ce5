package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for auth operations.
type Metrics struct {
	UsersCreated             prometheus.Counter
	SessionsCreated          prometheus.Counter
	SessionsRevoked          prometheus.Counter
	TokenRequests            *prometheus.CounterVec
	AuthFailures             *prometheus.CounterVec
	AuthenticationOutcomes   *prometheus.CounterVec
	RefreshReplayDetections  prometheus.Counter
	LogoutAllSessions        prometheus.Histogram
	LoginDurationMs          prometheus.Histogram
	TokenRefreshDurationMs   prometheus.Histogram
	ExpiredSessionsCollected prometheus.Counter
}

// New registers the auth collectors with reg. A nil registerer yields
// working collectors that are not exported, which keeps tests isolated.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		UsersCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "talentgate_users_created_total",
			Help: "Total number of users created",
		}),
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "talentgate_sessions_created_total",
			Help: "Total number of sessions opened",
		}),
		SessionsRevoked: factory.NewCounter(prometheus.CounterOpts{
			Name: "talentgate_sessions_revoked_total",
			Help: "Total number of sessions revoked",
		}),
		TokenRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "talentgate_token_requests_total",
			Help: "Total number of token pairs issued, by grant",
		}, []string{"grant"}),
		AuthFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "talentgate_auth_failures_total",
			Help: "Total number of failed login, signup and refresh attempts, by reason",
		}, []string{"operation", "reason"}),
		AuthenticationOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "talentgate_request_authentication_total",
			Help: "Request authentication results, by outcome code",
		}, []string{"outcome"}),
		RefreshReplayDetections: factory.NewCounter(prometheus.CounterOpts{
			Name: "talentgate_refresh_token_replay_total",
			Help: "Total number of refresh tokens presented after their session was rotated or revoked",
		}),
		LogoutAllSessions: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "talentgate_logout_all_sessions",
			Help:    "Number of sessions revoked per logout-all operation",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
		}),
		LoginDurationMs: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "talentgate_login_duration_ms",
			Help:    "Duration of password login in milliseconds",
			Buckets: []float64{25, 50, 100, 250, 500, 1000, 2500},
		}),
		TokenRefreshDurationMs: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "talentgate_token_refresh_duration_ms",
			Help:    "Duration of token refresh operations in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		ExpiredSessionsCollected: factory.NewCounter(prometheus.CounterOpts{
			Name: "talentgate_expired_sessions_deleted_total",
			Help: "Total number of expired sessions removed by the cleanup worker",
		}),
	}
}

func (m *Metrics) IncrementUsersCreated() {
	if m == nil {
		return
	}
	m.UsersCreated.Inc()
}

func (m *Metrics) IncrementSessionsCreated() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
}

func (m *Metrics) AddSessionsRevoked(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.SessionsRevoked.Add(float64(count))
}

func (m *Metrics) IncrementTokenRequests(grant string) {
	if m == nil {
		return
	}
	m.TokenRequests.WithLabelValues(grant).Inc()
}

func (m *Metrics) IncrementAuthFailures(operation, reason string) {
	if m == nil {
		return
	}
	m.AuthFailures.WithLabelValues(operation, reason).Inc()
}

func (m *Metrics) IncrementAuthenticationOutcome(outcome string) {
	if m == nil {
		return
	}
	m.AuthenticationOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementRefreshReplayDetections() {
	if m == nil {
		return
	}
	m.RefreshReplayDetections.Inc()
}

func (m *Metrics) ObserveLogoutAll(sessionCount int) {
	if m == nil {
		return
	}
	m.LogoutAllSessions.Observe(float64(sessionCount))
}

func (m *Metrics) ObserveLoginDuration(durationMs float64) {
	if m == nil {
		return
	}
	m.LoginDurationMs.Observe(durationMs)
}

func (m *Metrics) ObserveTokenRefreshDuration(durationMs float64) {
	if m == nil {
		return
	}
	m.TokenRefreshDurationMs.Observe(durationMs)
}

func (m *Metrics) AddExpiredSessionsCollected(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.ExpiredSessionsCollected.Add(float64(count))
}
