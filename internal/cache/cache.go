// Package cache implements the query service's response cache (§4.10):
// responses are keyed by full query string with a per-endpoint TTL
// (24h search, 10m status, 1h subreddit list/favicon/index). Two
// backends are supported per the config surface's cache_backend
// selector (§6): an in-process memory cache and Redis.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the interface both backends satisfy.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// memoryEntry pairs a cached value with its absolute expiry.
type memoryEntry struct {
	value  []byte
	expiry time.Time
}

// Memory is an in-process cache backed by a map guarded by a
// sync.RWMutex, with a periodic sweep, matching the teacher's in-memory broadcaster/frameEntry state
// patterns rather than a third-party in-process cache library.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemory builds a Memory cache and starts its background sweep,
// which runs until ctx is cancelled.
func NewMemory(ctx context.Context) *Memory {
	m := &Memory{entries: make(map[string]memoryEntry)}
	go m.sweepLoop(ctx)
	return m
}

func (m *Memory) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.sweep(now)
		}
	}
}

func (m *Memory) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.entries {
		if now.After(v.expiry) {
			delete(m.entries, k)
		}
	}
}

// Get returns the cached value for key, if present and unexpired.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok || time.Now().After(e.expiry) {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key for ttl.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: value, expiry: time.Now().Add(ttl)}
}

// Redis wraps a go-redis client as a Cache.
type Redis struct {
	client *redis.Client
}

// NewRedis builds a Redis cache against addr (host:port).
func NewRedis(addr string) *Redis {
	return &Redis{client: redis.NewClient(&redis.Options{Addr: addr})}
}

// Get returns the cached value for key, if present.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return val, true
}

// Set stores value under key for ttl.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	r.client.Set(ctx, key, value, ttl)
}

// TTLs for the endpoints named in §4.10.
const (
	TTLSearch     = 24 * time.Hour
	TTLStatus     = 10 * time.Minute
	TTLStaticList = time.Hour
)
