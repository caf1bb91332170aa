package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/sbaralfred/gatewaycore/internal/codec"
	"github.com/sbaralfred/gatewaycore/internal/message"
	"github.com/sbaralfred/gatewaycore/internal/pipeline"
	"github.com/sbaralfred/gatewaycore/internal/redisstore"
	"github.com/sbaralfred/gatewaycore/internal/reqcontext"
)

const cacheSweepInterval = 30 * time.Second
const cacheRedisOpTimeout = 200 * time.Millisecond

type cacheEntry struct {
	resp   *message.Response
	expiry time.Time
}

// CacheConfig holds the TTL cache's options.
type CacheConfig struct {
	TTLSeconds int
}

// DefaultCacheConfig returns the module's default option set.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTLSeconds: 60}
}

// Cache is a GET-only TTL response cache keyed by full request path. It
// keeps a fast in-memory map as the primary store and, when store is
// non-nil, backs it with a shared Redis store so a fleet of gateway
// processes can serve each other's cache entries.
type Cache struct {
	pipeline.Base
	cfg     CacheConfig
	mu      sync.Mutex
	entries map[string]*cacheEntry
	done    chan struct{}
	store   *redisstore.Store
}

// NewCache constructs a Cache and starts its background sweep goroutine.
// store may be nil, in which case the cache is purely in-memory.
// Callers must call Close to stop the sweep on shutdown.
func NewCache(cfg CacheConfig, store *redisstore.Store) *Cache {
	c := &Cache{cfg: cfg, entries: make(map[string]*cacheEntry), done: make(chan struct{}), store: store}
	go c.sweepLoop()
	return c
}

func (m *Cache) Name() string { return "cache" }

func (m *Cache) Handle(req *message.Request, ctx *reqcontext.Context, resp *message.Response) pipeline.Outcome {
	if req.Method != "GET" {
		return pipeline.Continue
	}

	cached, ok := m.lookupLocal(req.Path)
	if !ok {
		cached, ok = m.lookupRemote(req.Path)
		if !ok {
			return pipeline.Continue
		}
	}

	if inm, has := req.Header("If-None-Match"); has {
		if etag, hasEtag := cached.Header("ETag"); hasEtag && inm == etag {
			*resp = *message.Error(304, "Not Modified")
			resp.SetHeader("X-Cache", "HIT")
			resp.Body = nil
			resp.RemoveHeader("Content-Length")
			return pipeline.Produced
		}
	}

	clone := cached.Clone()
	clone.SetHeader("X-Cache", "HIT")
	*resp = *clone
	return pipeline.Produced
}

func (m *Cache) OnResponse(req *message.Request, resp *message.Response, ctx *reqcontext.Context) {
	if req.Method != "GET" {
		return
	}
	if _, has := resp.Header("X-Cache"); has {
		return
	}
	if resp.StatusCode != 200 {
		return
	}

	clone := resp.Clone()
	ttl := time.Duration(m.cfg.TTLSeconds) * time.Second

	m.mu.Lock()
	m.entries[req.Path] = &cacheEntry{resp: clone, expiry: time.Now().Add(ttl)}
	m.mu.Unlock()

	if m.store == nil {
		return
	}
	rctx, cancel := context.WithTimeout(context.Background(), cacheRedisOpTimeout)
	defer cancel()
	m.store.SetCachedResponse(rctx, m.redisKey(req.Path), codec.SerializeResponse(clone), ttl)
}

// lookupLocal returns the cached response for path from the in-memory map,
// evicting it first if its TTL has already elapsed.
func (m *Cache) lookupLocal(path string) (*message.Response, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[path]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiry) {
		delete(m.entries, path)
		return nil, false
	}
	return entry.resp, true
}

// lookupRemote falls back to the shared Redis store on a local miss,
// rehydrating the in-memory map on a hit so repeat requests stay local.
func (m *Cache) lookupRemote(path string) (*message.Response, bool) {
	if m.store == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheRedisOpTimeout)
	defer cancel()
	raw, hit, err := m.store.GetCachedResponse(ctx, m.redisKey(path))
	if err != nil || !hit {
		return nil, false
	}
	resp, perr := codec.ParseResponse(raw)
	if perr != nil {
		return nil, false
	}
	m.mu.Lock()
	m.entries[path] = &cacheEntry{resp: resp, expiry: time.Now().Add(time.Duration(m.cfg.TTLSeconds) * time.Second)}
	m.mu.Unlock()
	return resp, true
}

func (m *Cache) redisKey(path string) string {
	return "gatewaycore:cache:" + path
}

func (m *Cache) sweepLoop() {
	ticker := time.NewTicker(cacheSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.purgeExpired()
		case <-m.done:
			return
		}
	}
}

func (m *Cache) purgeExpired() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.entries {
		if now.After(e.expiry) {
			delete(m.entries, k)
		}
	}
}

// Close stops the background sweep goroutine.
func (m *Cache) Close() {
	close(m.done)
}

// WarmUp seeds cache entries by calling fetch for each of the given paths
// and storing every 200 response. It runs synchronously in the caller;
// fetch errors are collected and returned for the caller to log, not fatal,
// matching the original cache's warm_cache routine.
func (m *Cache) WarmUp(fetch func(path string) (*message.Response, error), paths []string) []error {
	var errs []error
	for _, p := range paths {
		resp, err := fetch(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if resp.StatusCode == 200 {
			m.mu.Lock()
			m.entries[p] = &cacheEntry{resp: resp.Clone(), expiry: time.Now().Add(time.Duration(m.cfg.TTLSeconds) * time.Second)}
			m.mu.Unlock()
		}
	}
	return errs
}
