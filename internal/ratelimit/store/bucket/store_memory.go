package bucket

import (
	"context"
	"time"

	"talentgate/internal/ratelimit/models"
	platformsync "talentgate/pkg/platform/sync"
)

// InMemoryBucketStore keeps one sliding window per key in process memory.
// For more than one instance use RedisBucketStore instead.
type InMemoryBucketStore struct {
	buckets *platformsync.ShardedMap[*slidingWindow]
	now     func() time.Time
}

// slidingWindow holds the timestamps of the requests still inside the window.
type slidingWindow struct {
	timestamps []time.Time
	window     time.Duration
}

func (sw *slidingWindow) tryConsume(cost, limit int, now time.Time) (allowed bool, remaining int, resetAt time.Time) {
	sw.cleanupExpired(now)

	if len(sw.timestamps)+cost > limit {
		resetAt = now.Add(sw.window)
		if len(sw.timestamps) > 0 {
			resetAt = sw.timestamps[0].Add(sw.window)
		}
		return false, limit - len(sw.timestamps), resetAt
	}

	for range cost {
		sw.timestamps = append(sw.timestamps, now)
	}
	return true, limit - len(sw.timestamps), sw.timestamps[0].Add(sw.window)
}

func (sw *slidingWindow) cleanupExpired(now time.Time) {
	cutoff := now.Add(-sw.window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}

type Option func(*InMemoryBucketStore)

func WithClock(now func() time.Time) Option {
	return func(s *InMemoryBucketStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewInMemoryBucketStore creates a new in-memory bucket store.
func NewInMemoryBucketStore(opts ...Option) *InMemoryBucketStore {
	s := &InMemoryBucketStore{
		buckets: platformsync.NewShardedMap[*slidingWindow](0),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AllowN consumes cost units from key when they fit under limit.
func (s *InMemoryBucketStore) AllowN(_ context.Context, key string, cost, limit int, window time.Duration) (*models.RateLimitResult, error) {
	var (
		now       time.Time
		allowed   bool
		remaining int
		resetAt   time.Time
	)
	// Timestamps are taken under the shard lock so each window stays ordered.
	s.buckets.With(key, func(buckets map[string]*slidingWindow) {
		now = s.now()
		bucket, ok := buckets[key]
		if !ok {
			bucket = &slidingWindow{window: window}
			buckets[key] = bucket
		}
		allowed, remaining, resetAt = bucket.tryConsume(cost, limit, now)
	})

	return &models.RateLimitResult{
		Allowed:    allowed,
		Limit:      limit,
		Remaining:  max(remaining, 0),
		ResetAt:    resetAt,
		RetryAfter: retryAfterSeconds(allowed, resetAt, now),
	}, nil
}

// Reset clears the window for a key.
func (s *InMemoryBucketStore) Reset(_ context.Context, key string) error {
	s.buckets.With(key, func(buckets map[string]*slidingWindow) {
		delete(buckets, key)
	})
	return nil
}

// Prune drops windows with no request left inside them and returns how many
// were removed.
func (s *InMemoryBucketStore) Prune(now time.Time) int {
	removed := 0
	s.buckets.Each(func(buckets map[string]*slidingWindow) {
		for key, bucket := range buckets {
			bucket.cleanupExpired(now)
			if len(bucket.timestamps) == 0 {
				delete(buckets, key)
				removed++
			}
		}
	})
	return removed
}

// RunPruner prunes every interval until ctx is done.
func (s *InMemoryBucketStore) RunPruner(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Prune(s.now())
		}
	}
}

// retryAfterSeconds rounds up so a client that waits the advertised time is
// always admitted.
func retryAfterSeconds(allowed bool, resetAt, now time.Time) int {
	if allowed {
		return 0
	}
	wait := resetAt.Sub(now)
	if wait <= 0 {
		return 0
	}
	seconds := int(wait / time.Second)
	if wait%time.Second != 0 {
		seconds++
	}
	return seconds
}
