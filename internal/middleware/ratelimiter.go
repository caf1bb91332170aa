package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/sbaralfred/gatewaycore/internal/message"
	"github.com/sbaralfred/gatewaycore/internal/pipeline"
	"github.com/sbaralfred/gatewaycore/internal/redisstore"
	"github.com/sbaralfred/gatewaycore/internal/reqcontext"
)

const (
	rateBucketHighWaterMark = 10_000
	rateBucketStaleAfter    = 300 * time.Second
	rateLimiterRedisTimeout = 200 * time.Millisecond
)

type rateBucket struct {
	tokens     float64
	lastRefill time.Time
}

// RateLimiterConfig holds the token-bucket parameters.
type RateLimiterConfig struct {
	Rate  float64 // tokens per second
	Burst float64 // maximum tokens
}

// DefaultRateLimiterConfig returns the module's default option set.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{Rate: 50, Burst: 100}
}

// RateLimiter is a token bucket keyed by client IP. The in-memory map is
// the fast path; when store is non-nil, a newly seen IP's starting token
// count is hydrated from the shared store and every update is persisted
// back to it, so a fleet of gateway processes shares rate-limit state
// instead of each enforcing its own independent quota.
type RateLimiter struct {
	pipeline.Base
	cfg     RateLimiterConfig
	mu      sync.Mutex
	buckets map[string]*rateBucket
	store   *redisstore.Store
}

// NewRateLimiter constructs a RateLimiter from cfg. store may be nil, in
// which case buckets live only in this process's memory.
func NewRateLimiter(cfg RateLimiterConfig, store *redisstore.Store) *RateLimiter {
	return &RateLimiter{cfg: cfg, buckets: make(map[string]*rateBucket), store: store}
}

func (m *RateLimiter) Name() string { return "rate_limiter" }

func (m *RateLimiter) Handle(req *message.Request, ctx *reqcontext.Context, resp *message.Response) pipeline.Outcome {
	ip := ctx.GetOr(reqcontext.KeyClientIP, "unknown")
	now := time.Now()

	m.mu.Lock()

	if len(m.buckets) > rateBucketHighWaterMark {
		m.evictStaleLocked(now)
	}

	b, ok := m.buckets[ip]
	if !ok {
		tokens := m.cfg.Burst
		if remote, hit := m.fetchRemoteTokens(ip); hit {
			tokens = remote
		}
		b = &rateBucket{tokens: tokens, lastRefill: now}
		m.buckets[ip] = b
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens += elapsed * m.cfg.Rate
	if b.tokens > m.cfg.Burst {
		b.tokens = m.cfg.Burst
	}
	b.lastRefill = now

	admitted := b.tokens >= 1
	if admitted {
		b.tokens--
	}
	tokensAfter := b.tokens
	m.mu.Unlock()

	m.persistRemoteTokens(ip, tokensAfter)

	if admitted {
		return pipeline.Continue
	}
	*resp = *message.Error(429, "Too Many Requests")
	return pipeline.Produced
}

func (m *RateLimiter) evictStaleLocked(now time.Time) {
	for ip, b := range m.buckets {
		if now.Sub(b.lastRefill) > rateBucketStaleAfter {
			delete(m.buckets, ip)
		}
	}
}

// fetchRemoteTokens loads a bucket's starting token count from the shared
// store for an IP this process hasn't seen yet. Called with m.mu held,
// bounded by rateLimiterRedisTimeout.
func (m *RateLimiter) fetchRemoteTokens(ip string) (float64, bool) {
	if m.store == nil {
		return 0, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), rateLimiterRedisTimeout)
	defer cancel()
	tokens, hit, err := m.store.GetBucketTokens(ctx, m.redisKey(ip))
	if err != nil || !hit {
		return 0, false
	}
	return tokens, true
}

func (m *RateLimiter) persistRemoteTokens(ip string, tokens float64) {
	if m.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), rateLimiterRedisTimeout)
	defer cancel()
	m.store.SetBucketTokens(ctx, m.redisKey(ip), tokens, rateBucketStaleAfter)
}

func (m *RateLimiter) redisKey(ip string) string {
	return "gatewaycore:ratelimit:" + ip
}
