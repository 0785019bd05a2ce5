package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"talentgate/internal/platform/privacy"
	"talentgate/internal/ratelimit/models"
	"talentgate/pkg/platform/httputil"
	"talentgate/pkg/requestcontext"
)

// Store consumes from a sliding window.
type Store interface {
	AllowN(ctx context.Context, key string, cost, limit int, window time.Duration) (*models.RateLimitResult, error)
}

// Recorder counts rejections per rule and store failures.
type Recorder interface {
	IncrementRejected(rule string)
	IncrementStoreErrors()
}

type Middleware struct {
	store    Store
	rules    []models.Rule
	logger   *slog.Logger
	recorder Recorder
	exempt   func(path string) bool
}

type Option func(*Middleware)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Middleware) {
		m.logger = logger
	}
}

func WithRecorder(recorder Recorder) Option {
	return func(m *Middleware) {
		m.recorder = recorder
	}
}

func New(store Store, rules []models.Rule, opts ...Option) *Middleware {
	m := &Middleware{
		store:  store,
		rules:  rules,
		exempt: isProbe,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// Handler checks every rule that applies to the request. The response
// carries the X-RateLimit-* headers of the most constrained rule. A store
// failure skips that rule rather than rejecting the request.
//
// Per-user rules read the user id set by the authentication middleware, so
// Handler must run after it.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.exempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		ip := requestcontext.ClientIP(ctx)

		var tightest *models.RateLimitResult
		var denied *models.Rule
		retryAfter := 0
		for i := range m.rules {
			rule := &m.rules[i]
			if !rule.Applies(r.Method, r.URL.Path) {
				continue
			}
			result, err := m.store.AllowN(ctx, key(ctx, rule, ip), 1, rule.Limit, rule.Window)
			if err != nil {
				m.logger.ErrorContext(ctx, "rate limit check failed",
					"rule", rule.Name,
					"error", err,
					"client_ip_prefix", privacy.AnonymizeIP(ip),
				)
				if m.recorder != nil {
					m.recorder.IncrementStoreErrors()
				}
				continue
			}
			if !result.Allowed {
				if denied == nil {
					denied = rule
				}
				retryAfter = max(retryAfter, result.RetryAfter)
			}
			if tightest == nil || result.Remaining < tightest.Remaining {
				tightest = result
			}
		}

		addRateLimitHeaders(w, tightest)
		if denied != nil {
			m.logger.WarnContext(ctx, "rate limit exceeded",
				"rule", denied.Name,
				"path", r.URL.Path,
				"client_ip_prefix", privacy.AnonymizeIP(ip),
				"request_id", requestcontext.RequestID(ctx),
			)
			if m.recorder != nil {
				m.recorder.IncrementRejected(denied.Name)
			}
			writeRateLimitExceeded(w, retryAfter)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func key(ctx context.Context, rule *models.Rule, ip string) string {
	subject := "ip:" + ip
	if rule.Strategy == models.StrategyUser {
		if userID := requestcontext.UserID(ctx); !userID.IsNil() {
			subject = "user:" + userID.String()
		}
	}
	return rule.Name + ":" + subject
}

func isProbe(path string) bool {
	return path == "/metrics" || strings.HasPrefix(path, "/health")
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, retryAfter int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
		Error:            "rate_limit_exceeded",
		ErrorDescription: "too many requests, try again later",
		RetryAfter:       retryAfter,
	})
}
