// Package redisstore is the optional distributed backing store for the
// rate limiter's token buckets and the cache's entries, so a fleet of
// gateway processes can share state instead of each holding its own
// in-memory map. Every operation degrades to a no-op error when Redis is
// unreachable; callers fall back to their in-memory store on error.
package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store wraps a go-redis client with the handful of operations the rate
// limiter and cache need.
type Store struct {
	client *redis.Client
}

// New connects to addr (host:port). The connection is lazy; go-redis
// dials on first command.
func New(addr, password string, db int) *Store {
	return &Store{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

// Ping verifies connectivity, used at startup to decide whether to enable
// the distributed path at all.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// GetBucketTokens reads the current token count for a rate-limit bucket
// key, returning ok=false when the key is absent (first request from that
// source).
func (s *Store) GetBucketTokens(ctx context.Context, key string) (float64, bool, error) {
	v, err := s.client.Get(ctx, key).Float64()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

// SetBucketTokens writes the token count with a TTL so abandoned buckets
// expire instead of accumulating forever, mirroring the in-memory
// limiter's staleness eviction.
func (s *Store) SetBucketTokens(ctx context.Context, key string, tokens float64, ttl time.Duration) error {
	return s.client.Set(ctx, key, tokens, ttl).Err()
}

// GetCachedResponse reads a cached response body by key.
func (s *Store) GetCachedResponse(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// SetCachedResponse writes a cached response body with an absolute TTL.
func (s *Store) SetCachedResponse(ctx context.Context, key string, body []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, body, ttl).Err()
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
