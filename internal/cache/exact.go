package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// exactTier is the Tier A keyed cache: a normalized-prompt keyed store with
// an optional per-write TTL. Any read error (including a missing key) is
// treated as a miss, never surfaced as a failure.
type exactTier struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// newExactTier builds a Tier A cache. redisURL may be empty, in which case
// the cache operates with Tier A disabled (every lookup misses).
func newExactTier(redisURL string, ttlSeconds int) (*exactTier, error) {
	if redisURL == "" {
		return &exactTier{}, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	ttl := time.Duration(0)
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}
	return &exactTier{client: client, ttl: ttl}, nil
}

func (t *exactTier) get(ctx context.Context, key string) (string, bool) {
	if t.client == nil {
		return "", false
	}
	val, err := t.client.Get(ctx, key).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

func (t *exactTier) set(ctx context.Context, key, value string) error {
	if t.client == nil {
		return nil
	}
	if t.ttl > 0 {
		return t.client.Set(ctx, key, value, t.ttl).Err()
	}
	return t.client.Set(ctx, key, value, 0).Err()
}
