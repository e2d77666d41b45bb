// Package ratelimit provides fixed-window request counting keyed by
// (client identity, bucket). The in-memory limiter is the default; a
// Redis-backed variant with the same semantics exists for multi-instance
// deployments.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// BucketConfig is the counting policy for one named bucket.
type BucketConfig struct {
	Limit  int
	Window time.Duration
}

// Limiter answers whether one more request is allowed for a key within a
// bucket. Implementations must make the check-and-increment a single
// atomic step.
type Limiter interface {
	Allow(ctx context.Context, key, bucket string) (bool, error)
}

type windowCounter struct {
	windowStart time.Time
	count       int
}

// Memory is a process-local fixed-window limiter. Counters are ephemeral
// and recreated whenever their window elapses; state is never persisted.
type Memory struct {
	mu       sync.Mutex
	counters map[string]*windowCounter
	buckets  map[string]BucketConfig
	now      func() time.Time
}

// NewMemory builds a limiter with one counter namespace per configured
// bucket. Construct a fresh instance per process (or per test); there is
// no global state.
func NewMemory(buckets map[string]BucketConfig) *Memory {
	return &Memory{
		counters: make(map[string]*windowCounter),
		buckets:  buckets,
		now:      time.Now,
	}
}

// Allow reports whether the request fits the bucket's window. Unknown
// buckets bypass limiting. The counter mutation and the limit check happen
// under one lock so concurrent callers can never under-report.
func (m *Memory) Allow(_ context.Context, key, bucket string) (bool, error) {
	cfg, ok := m.buckets[bucket]
	if !ok {
		return true, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	counterKey := key + ":" + bucket
	counter, exists := m.counters[counterKey]
	if !exists || now.Sub(counter.windowStart) >= cfg.Window {
		m.counters[counterKey] = &windowCounter{windowStart: now, count: 1}
		return true, nil
	}

	counter.count++
	return counter.count <= cfg.Limit, nil
}
