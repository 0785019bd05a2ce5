package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionCleaner purges sessions whose deadline has passed.
type SessionCleaner interface {
	DeleteExpired(ctx context.Context) (int, error)
}

// Recorder receives the number of sessions removed per run.
type Recorder interface {
	AddExpiredSessionsCollected(count int)
}

// CleanupResult summarizes the deletions performed by a cleanup run.
type CleanupResult struct {
	DeletedSessions int
}

// CleanupService periodically removes expired sessions.
type CleanupService struct {
	sessions SessionCleaner
	recorder Recorder
	interval time.Duration
	logger   *slog.Logger
}

// CleanupOption configures CleanupService.
type CleanupOption func(*CleanupService)

// WithCleanupInterval overrides the cleanup interval when greater than zero.
func WithCleanupInterval(interval time.Duration) CleanupOption {
	return func(s *CleanupService) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithCleanupLogger overrides the logger used for cleanup errors.
func WithCleanupLogger(logger *slog.Logger) CleanupOption {
	return func(s *CleanupService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithRecorder(recorder Recorder) CleanupOption {
	return func(s *CleanupService) {
		s.recorder = recorder
	}
}

// New constructs a CleanupService with options applied.
func New(sessions SessionCleaner, opts ...CleanupOption) (*CleanupService, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session cleaner is required")
	}
	svc := &CleanupService{
		sessions: sessions,
		interval: 5 * time.Minute,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Start runs cleanup periodically until ctx is cancelled.
func (s *CleanupService) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.ErrorContext(ctx, "session cleanup failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce performs a single cleanup pass.
func (s *CleanupService) RunOnce(ctx context.Context) (CleanupResult, error) {
	deleted, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		return CleanupResult{}, fmt.Errorf("delete expired sessions: %w", err)
	}
	if s.recorder != nil {
		s.recorder.AddExpiredSessionsCollected(deleted)
	}
	if deleted > 0 {
		s.logger.InfoContext(ctx, "expired sessions removed", "count", deleted)
	}
	return CleanupResult{DeletedSessions: deleted}, nil
}
