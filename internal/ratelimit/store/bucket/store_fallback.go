package bucket

import (
	"context"
	"log/slog"
	"time"

	"talentgate/internal/ratelimit/models"
	"talentgate/pkg/platform/circuit"
)

// Limiter is the window operation shared by every bucket store.
type Limiter interface {
	AllowN(ctx context.Context, key string, cost, limit int, window time.Duration) (*models.RateLimitResult, error)
}

// FallbackStore sends checks to primary while its breaker is closed and to
// the local fallback while it is open. Counts kept by the fallback are per
// instance, so limits loosen while the primary is down.
type FallbackStore struct {
	primary  Limiter
	fallback Limiter
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

func NewFallbackStore(primary, fallback Limiter, breaker *circuit.Breaker, logger *slog.Logger) *FallbackStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackStore{
		primary:  primary,
		fallback: fallback,
		breaker:  breaker,
		logger:   logger,
	}
}

func (s *FallbackStore) AllowN(ctx context.Context, key string, cost, limit int, window time.Duration) (*models.RateLimitResult, error) {
	if !s.breaker.Allow() {
		return s.fallback.AllowN(ctx, key, cost, limit, window)
	}

	result, err := s.primary.AllowN(ctx, key, cost, limit, window)
	if err != nil {
		if s.breaker.RecordFailure() {
			s.logger.WarnContext(ctx, "rate limit store unavailable, using local windows",
				"breaker", s.breaker.Name(),
				"error", err,
			)
		}
		return s.fallback.AllowN(ctx, key, cost, limit, window)
	}
	if s.breaker.RecordSuccess() {
		s.logger.InfoContext(ctx, "rate limit store recovered", "breaker", s.breaker.Name())
	}
	return result, nil
}
