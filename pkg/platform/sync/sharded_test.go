package sync

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShardedMutex_LockUnlock(t *testing.T) {
	m := NewShardedMutex(0)
	assert.Len(t, m.shards, DefaultShards)

	m.Lock("chatbot:203.0.113.1")
	m.Unlock("chatbot:203.0.113.1")

	m.Lock("")
	m.Unlock("")
}

func TestShardedMutex_SameKeySerializes(t *testing.T) {
	m := NewShardedMutex(8)
	counter := 0
	var wg sync.WaitGroup

	for range 200 {
		wg.Go(func() {
			m.WithLock("same-key", func() { counter++ })
		})
	}
	wg.Wait()

	assert.Equal(t, 200, counter)
}

func TestShardedMutex_ShardDistribution(t *testing.T) {
	m := NewShardedMutex(32)
	shards := make(map[int]bool)
	for i := range 64 {
		shards[m.shardFor(fmt.Sprintf("contact:198.51.100.%d", i))] = true
	}
	assert.GreaterOrEqual(t, len(shards), 8, "expected keys to spread across shards")
}

func TestShardedMutex_StableShardPerKey(t *testing.T) {
	m := NewShardedMutex(16)
	assert.Equal(t, m.shardFor("global:10.0.0.1"), m.shardFor("global:10.0.0.1"))
	assert.Equal(t, 0, m.shardFor(""))
}
