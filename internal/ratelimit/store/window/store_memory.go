package window

import (
	"context"
	"slices"
	"sync"
	"time"

	"folio/internal/ratelimit/models"
	platformsync "folio/pkg/platform/sync"
)

// InMemoryStore keeps one sliding window of admit timestamps per key.
// State is per process; use the Redis store when instances must share budgets.
type InMemoryStore struct {
	records sync.Map // key -> *slidingWindow
	locks   *platformsync.ShardedMutex
}

// slidingWindow is the aggregate root for one key's rate limit state.
// Guarded by the key's shard lock.
type slidingWindow struct {
	timestamps []time.Time
	window     time.Duration
}

// tryConsume prunes, then admits when the window has room. Request times are
// pinned before the shard lock is taken, so a racing caller may arrive with an
// earlier time; it is inserted in order to keep timestamps sorted.
func (sw *slidingWindow) tryConsume(limit int, now time.Time) bool {
	sw.cleanupExpired(now)
	if len(sw.timestamps) >= limit {
		return false
	}
	i, _ := slices.BinarySearchFunc(sw.timestamps, now, time.Time.Compare)
	sw.timestamps = slices.Insert(sw.timestamps, i, now)
	return true
}

func (sw *slidingWindow) oldest() time.Time {
	if len(sw.timestamps) == 0 {
		return time.Time{}
	}
	return sw.timestamps[0]
}

// cleanupExpired drops timestamps at or before now - window.
func (sw *slidingWindow) cleanupExpired(now time.Time) {
	cutoff := now.Add(-sw.window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	if i == len(sw.timestamps) {
		sw.timestamps = nil
		return
	}
	sw.timestamps = sw.timestamps[i:]
}

// New creates an empty in-memory store.
func New() *InMemoryStore {
	return &InMemoryStore{
		locks: platformsync.NewShardedMutex(platformsync.DefaultShards),
	}
}

// Allow atomically prunes the key's window and records now when under limit.
func (s *InMemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration, now time.Time) (*models.WindowResult, error) {
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	value, _ := s.records.LoadOrStore(key, &slidingWindow{window: window})
	sw := value.(*slidingWindow)
	sw.window = window

	allowed := sw.tryConsume(limit, now)
	return &models.WindowResult{
		Allowed: allowed,
		Count:   len(sw.timestamps),
		Oldest:  sw.oldest(),
	}, nil
}

// Count returns the number of timestamps inside the window.
func (s *InMemoryStore) Count(_ context.Context, key string, window time.Duration, now time.Time) (int, error) {
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	value, ok := s.records.Load(key)
	if !ok {
		return 0, nil
	}
	sw := value.(*slidingWindow)
	sw.window = window
	sw.cleanupExpired(now)
	return len(sw.timestamps), nil
}

// Reset forgets the key.
func (s *InMemoryStore) Reset(_ context.Context, key string) error {
	s.locks.WithLock(key, func() {
		s.records.Delete(key)
	})
	return nil
}

// Sweep prunes every record and evicts those left empty.
func (s *InMemoryStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	var err error
	s.records.Range(func(k, _ any) bool {
		if err = ctx.Err(); err != nil {
			return false
		}
		key := k.(string)
		s.locks.WithLock(key, func() {
			value, ok := s.records.Load(key)
			if !ok {
				return
			}
			sw := value.(*slidingWindow)
			sw.cleanupExpired(now)
			if len(sw.timestamps) == 0 {
				s.records.Delete(key)
				removed++
			}
		})
		return true
	})
	return removed, err
}

// Len returns the number of live records.
func (s *InMemoryStore) Len() int {
	n := 0
	s.records.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
