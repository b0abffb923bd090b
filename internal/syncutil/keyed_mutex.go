package syncutil

import (
	"context"
	"hash/fnv"
	"sync"
)

// KeyedMutex serializes work per string key across a fixed pool of
// channel-based locks. The trade service keys it by trade id so that only
// one state transition per trade can run at a time, while transitions on
// different trades proceed in parallel. A transition never holds more than
// one key, so there is no lock ordering to get wrong.
//
// The channel implementation allows callers to bail out when their context
// is cancelled while waiting.
type KeyedMutex struct {
	shards [128]chanLock
	once   sync.Once
}

type chanLock struct {
	ch chan struct{}
}

// NewKeyedMutex creates a keyed mutex with all locks released.
func NewKeyedMutex() *KeyedMutex {
	m := &KeyedMutex{}
	m.init()
	return m
}

func (m *KeyedMutex) init() {
	m.once.Do(func() {
		for i := range m.shards {
			m.shards[i].ch = make(chan struct{}, 1)
			m.shards[i].ch <- struct{}{}
		}
	})
}

// Lock acquires the lock for key, respecting context cancellation. On
// success it returns an unlock function the caller must invoke; on
// cancellation it returns nil and the context error.
func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	m.init()
	shard := &m.shards[m.shardIdx(key)]

	select {
	case <-shard.ch:
		return func() { shard.ch <- struct{}{} }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *KeyedMutex) shardIdx(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % uint32(len(m.shards))
}
