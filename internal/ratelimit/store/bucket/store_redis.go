package bucket

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"talentgate/internal/ratelimit/models"
)

// slidingWindowScript trims the sorted set to the window, then admits the
// request only when cost more members fit under the limit. It runs atomically
// so concurrent instances cannot both take the last slot.
//
// Returns {allowed (0|1), count after the call, oldest score + window}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])
local member = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count + cost <= limit then
	for i = 1, cost do
		redis.call('ZADD', key, now, member .. ':' .. i)
	end
	redis.call('PEXPIRE', key, window)
	count = count + cost
	allowed = 1
end

local reset = now + window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
	reset = tonumber(oldest[2]) + window
end
return {allowed, count, reset}
`)

// RedisBucketStore shares sliding windows between instances through Redis
// sorted sets scored by request time in milliseconds.
type RedisBucketStore struct {
	client    redis.UniversalClient
	keyPrefix string
	now       func() time.Time
}

func NewRedisBucketStore(client redis.UniversalClient, keyPrefix string) *RedisBucketStore {
	if keyPrefix == "" {
		keyPrefix = "ratelimit"
	}
	return &RedisBucketStore{client: client, keyPrefix: keyPrefix, now: time.Now}
}

// AllowN consumes cost units from key when they fit under limit.
func (s *RedisBucketStore) AllowN(ctx context.Context, key string, cost, limit int, window time.Duration) (*models.RateLimitResult, error) {
	now := s.now()
	res, err := slidingWindowScript.Run(ctx, s.client,
		[]string{s.keyPrefix + ":" + key},
		now.UnixMilli(), window.Milliseconds(), limit, cost, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("run sliding window script: %w", err)
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("sliding window script returned %d values", len(res))
	}

	allowed := res[0] == 1
	resetAt := time.UnixMilli(res[2])
	return &models.RateLimitResult{
		Allowed:    allowed,
		Limit:      limit,
		Remaining:  max(limit-int(res[1]), 0),
		ResetAt:    resetAt,
		RetryAfter: retryAfterSeconds(allowed, resetAt, now),
	}, nil
}

// Reset clears the window for a key.
func (s *RedisBucketStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+":"+key).Err(); err != nil {
		return fmt.Errorf("delete rate limit key: %w", err)
	}
	return nil
}
