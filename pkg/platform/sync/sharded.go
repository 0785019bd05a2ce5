// Package sync holds concurrency helpers for in-process stores.
package sync

import (
	"hash/maphash"
	"sync"
)

const defaultShards = 32

// ShardedMap spreads keys over independently locked maps so that unrelated
// keys do not contend on a single mutex.
type ShardedMap[V any] struct {
	seed   maphash.Seed
	shards []shard[V]
}

type shard[V any] struct {
	mu    sync.Mutex
	items map[string]V
}

// NewShardedMap creates a map with n shards, or 32 when n is not positive.
func NewShardedMap[V any](n int) *ShardedMap[V] {
	if n <= 0 {
		n = defaultShards
	}
	m := &ShardedMap[V]{
		seed:   maphash.MakeSeed(),
		shards: make([]shard[V], n),
	}
	for i := range m.shards {
		m.shards[i].items = make(map[string]V)
	}
	return m
}

// With runs fn holding the lock of key's shard. fn may read and write any
// entry of that shard, including key.
func (m *ShardedMap[V]) With(key string, fn func(items map[string]V)) {
	s := &m.shards[m.index(key)]
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.items)
}

// Each runs fn on every shard in turn, holding one shard lock at a time.
func (m *ShardedMap[V]) Each(fn func(items map[string]V)) {
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		fn(s.items)
		s.mu.Unlock()
	}
}

// Len counts entries across all shards.
func (m *ShardedMap[V]) Len() int {
	total := 0
	m.Each(func(items map[string]V) {
		total += len(items)
	})
	return total
}

func (m *ShardedMap[V]) index(key string) int {
	return int(maphash.String(m.seed, key) % uint64(len(m.shards)))
}
