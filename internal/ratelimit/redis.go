package ratelimit

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis is a fixed-window limiter backed by Redis counters, for
// deployments running more than one instance behind a balancer. INCR
// provides the atomic check-and-increment; the TTL is set only on the
// first hit of a window so the window does not slide.
type Redis struct {
	client  redis.UniversalClient
	prefix  string
	buckets map[string]BucketConfig
}

func NewRedis(client redis.UniversalClient, prefix string, buckets map[string]BucketConfig) *Redis {
	if prefix == "" {
		prefix = "rl"
	}
	return &Redis{client: client, prefix: prefix, buckets: buckets}
}

func (r *Redis) Allow(ctx context.Context, key, bucket string) (bool, error) {
	cfg, ok := r.buckets[bucket]
	if !ok {
		return true, nil
	}

	counterKey := r.prefix + ":" + bucket + ":" + key
	count, err := r.client.Incr(ctx, counterKey).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit incr: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, counterKey, cfg.Window).Err(); err != nil {
			return false, fmt.Errorf("rate limit expire: %w", err)
		}
	}

	return count <= int64(cfg.Limit), nil
}
