package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testBuckets() map[string]BucketConfig {
	return map[string]BucketConfig{
		"auth":      {Limit: 3, Window: time.Minute},
		"sensitive": {Limit: 5, Window: time.Minute},
	}
}

func TestMemoryAllowUpToLimit(t *testing.T) {
	m := NewMemory(testBuckets())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := m.Allow(ctx, "1.2.3.4", "auth")
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if !allowed {
			t.Fatalf("request %d rejected under the limit", i+1)
		}
	}
	allowed, err := m.Allow(ctx, "1.2.3.4", "auth")
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if allowed {
		t.Fatal("request over the limit allowed")
	}
}

func TestMemoryKeysAndBucketsAreIndependent(t *testing.T) {
	m := NewMemory(testBuckets())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if allowed, _ := m.Allow(ctx, "1.2.3.4", "auth"); !allowed {
			t.Fatalf("seeding request %d rejected", i+1)
		}
	}
	if allowed, _ := m.Allow(ctx, "1.2.3.4", "auth"); allowed {
		t.Fatal("exhausted key still allowed")
	}

	// Another client is unaffected.
	if allowed, _ := m.Allow(ctx, "5.6.7.8", "auth"); !allowed {
		t.Fatal("different key rejected")
	}
	// Same client, different bucket is unaffected.
	if allowed, _ := m.Allow(ctx, "1.2.3.4", "sensitive"); !allowed {
		t.Fatal("different bucket rejected")
	}
}

func TestMemoryWindowReset(t *testing.T) {
	m := NewMemory(testBuckets())
	ctx := context.Background()

	base := time.Unix(1700000000, 0)
	m.now = func() time.Time { return base }

	for i := 0; i < 3; i++ {
		if allowed, _ := m.Allow(ctx, "1.2.3.4", "auth"); !allowed {
			t.Fatalf("seeding request %d rejected", i+1)
		}
	}
	if allowed, _ := m.Allow(ctx, "1.2.3.4", "auth"); allowed {
		t.Fatal("over-limit request allowed")
	}

	// A fresh window starts a fresh count.
	m.now = func() time.Time { return base.Add(time.Minute) }
	if allowed, _ := m.Allow(ctx, "1.2.3.4", "auth"); !allowed {
		t.Fatal("request rejected after window elapsed")
	}
}

func TestMemoryUnknownBucketBypasses(t *testing.T) {
	m := NewMemory(testBuckets())
	for i := 0; i < 100; i++ {
		allowed, err := m.Allow(context.Background(), "1.2.3.4", "unconfigured")
		if err != nil || !allowed {
			t.Fatalf("unconfigured bucket limited: allowed=%v err=%v", allowed, err)
		}
	}
}

func TestMemoryConcurrentCountingIsExact(t *testing.T) {
	limit := 50
	m := NewMemory(map[string]BucketConfig{
		"auth": {Limit: limit, Window: time.Minute},
	})
	ctx := context.Background()

	var wg sync.WaitGroup
	var allowedCount atomic.Int64
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed, err := m.Allow(ctx, "1.2.3.4", "auth")
			if err != nil {
				t.Errorf("Allow failed: %v", err)
				return
			}
			if allowed {
				allowedCount.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := allowedCount.Load(); got != int64(limit) {
		t.Fatalf("allowed %d requests, want exactly %d", got, limit)
	}
}
