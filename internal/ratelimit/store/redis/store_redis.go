package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"folio/internal/ratelimit/models"
)

// slidingWindowScript prunes, counts and conditionally records in one round trip.
// Scores are unix milliseconds. Returns {allowed, count, oldest}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, member)
  redis.call('PEXPIRE', key, window)
  count = count + 1
  allowed = 1
end

local oldest = 0
local first = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if first[2] then
  oldest = tonumber(first[2])
end
return {allowed, count, oldest}
`)

// Store keeps sliding windows in Redis sorted sets so that every instance
// shares one budget per client.
type Store struct {
	client redis.UniversalClient
	prefix string
}

// Option configures the store.
type Option func(*Store)

// WithKeyPrefix namespaces keys, e.g. per deployment.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Redis-backed store.
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{client: client, prefix: "folio:"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allow runs the sliding-window script for key.
func (s *Store) Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (*models.WindowResult, error) {
	values, err := slidingWindowScript.Run(ctx, s.client,
		[]string{s.prefix + key},
		now.UnixMilli(), window.Milliseconds(), limit, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("sliding window script: %w", err)
	}
	if len(values) != 3 {
		return nil, fmt.Errorf("sliding window script: unexpected reply length %d", len(values))
	}

	result := &models.WindowResult{
		Allowed: values[0] == 1,
		Count:   int(values[1]),
	}
	if values[2] > 0 {
		result.Oldest = time.UnixMilli(values[2])
	}
	return result, nil
}

// Count returns the number of members newer than now - window.
func (s *Store) Count(ctx context.Context, key string, window time.Duration, now time.Time) (int, error) {
	minScore := "(" + strconv.FormatInt(now.Add(-window).UnixMilli(), 10)
	n, err := s.client.ZCount(ctx, s.prefix+key, minScore, "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("count window: %w", err)
	}
	return int(n), nil
}

// Reset deletes the key.
func (s *Store) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("reset window: %w", err)
	}
	return nil
}

// Sweep is a no-op: every key carries its own PEXPIRE.
func (s *Store) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}
