package sync

import (
	"hash/maphash"
	"sync"
)

// DefaultShards is used when NewShardedMutex is given a non-positive count.
const DefaultShards = 32

// ShardedMutex serialises work per key without a single global lock.
// Keys hashing to the same shard share a mutex, so holders must never
// acquire a second key while holding one.
type ShardedMutex struct {
	seed   maphash.Seed
	shards []sync.Mutex
}

// NewShardedMutex creates a ShardedMutex with n shards.
func NewShardedMutex(n int) *ShardedMutex {
	if n <= 0 {
		n = DefaultShards
	}
	return &ShardedMutex{
		seed:   maphash.MakeSeed(),
		shards: make([]sync.Mutex, n),
	}
}

// Lock acquires the mutex guarding key.
func (m *ShardedMutex) Lock(key string) {
	m.shards[m.shardFor(key)].Lock()
}

// Unlock releases the mutex guarding key.
func (m *ShardedMutex) Unlock(key string) {
	m.shards[m.shardFor(key)].Unlock()
}

// WithLock runs fn while holding the mutex for key.
func (m *ShardedMutex) WithLock(key string, fn func()) {
	m.Lock(key)
	defer m.Unlock(key)
	fn()
}

func (m *ShardedMutex) shardFor(key string) int {
	if key == "" {
		return 0
	}
	return int(maphash.String(m.seed, key) % uint64(len(m.shards)))
}
