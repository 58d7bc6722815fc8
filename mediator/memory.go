package mediator

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/jonwraymond/courier/result"
)

// ShardedStore is an in-memory IdempotencyStore split into shards to
// bound lock contention: operations serialize within a shard and run
// concurrently across shards.
type ShardedStore struct {
	shards []*storeShard
}

type storeShard struct {
	mu      sync.Mutex
	entries map[string]storeEntry
}

type storeEntry struct {
	res       result.Result[any]
	expiresAt time.Time
}

// NewShardedStore creates a store with the given shard count.
// A count below one falls back to 32.
func NewShardedStore(shardCount int) *ShardedStore {
	if shardCount < 1 {
		shardCount = 32
	}

	shards := make([]*storeShard, shardCount)
	for i := range shards {
		shards[i] = &storeShard{entries: make(map[string]storeEntry)}
	}
	return &ShardedStore{shards: shards}
}

func (s *ShardedStore) shard(key string) *storeShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// TryGet returns the cached result for key. Expired entries are
// cleaned up lazily and reported as misses.
func (s *ShardedStore) TryGet(_ context.Context, key string) (result.Result[any], bool) {
	sh := s.shard(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	entry, ok := sh.entries[key]
	if !ok {
		return result.Result[any]{}, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(sh.entries, key)
		return result.Result[any]{}, false
	}
	return entry.res, true
}

// Put stores res under key. A non-positive retention stores nothing.
func (s *ShardedStore) Put(_ context.Context, key string, res result.Result[any], retention time.Duration) error {
	if retention <= 0 {
		return nil
	}

	sh := s.shard(key)

	sh.mu.Lock()
	sh.entries[key] = storeEntry{res: res, expiresAt: time.Now().Add(retention)}
	sh.mu.Unlock()
	return nil
}

// Len returns the number of live entries across all shards.
func (s *ShardedStore) Len() int {
	now := time.Now()
	total := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for _, entry := range sh.entries {
			if now.Before(entry.expiresAt) {
				total++
			}
		}
		sh.mu.Unlock()
	}
	return total
}

// Ensure ShardedStore implements IdempotencyStore
var _ IdempotencyStore = (*ShardedStore)(nil)
