package middleware

import (
	"testing"
	"time"

	"github.com/sbaralfred/gatewaycore/internal/message"
	"github.com/sbaralfred/gatewaycore/internal/pipeline"
	"github.com/sbaralfred/gatewaycore/internal/reqcontext"
	"github.com/sbaralfred/gatewaycore/internal/script"
)

func runHealthPipeline(p *pipeline.Pipeline, path string) *message.Response {
	req := &message.Request{Method: "GET", Path: path, Version: "HTTP/1.1"}
	return p.Handle(req, reqcontext.New())
}

func TestHealthProbeRoundTrip(t *testing.T) {
	p := pipeline.New()
	p.Add(NewHealthCheck(HealthCheckConfig{Endpoint: "/health"}), PriorityHealthCheck)
	p.Sort()

	resp := runHealthPipeline(p, "/health")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	ct, _ := resp.Header("Content-Type")
	if ct != "application/json" {
		t.Fatalf("expected application/json, got %q", ct)
	}
	if string(resp.Body) != `{"status":"ok"}` {
		t.Fatalf("unexpected body %q", resp.Body)
	}
}

func TestRateLimitSaturation(t *testing.T) {
	p := pipeline.New()
	p.Add(NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 3}, nil), PriorityRateLimiter)
	p.Add(NewHealthCheck(HealthCheckConfig{Endpoint: "/health"}), PriorityHealthCheck)
	p.Sort()

	var statuses []int
	for i := 0; i < 4; i++ {
		req := &message.Request{Method: "GET", Path: "/health", Version: "HTTP/1.1"}
		ctx := reqcontext.New()
		ctx.Set(reqcontext.KeyClientIP, "10.0.0.1")
		resp := p.Handle(req, ctx)
		statuses = append(statuses, resp.StatusCode)
	}

	want := []int{200, 200, 200, 429}
	for i, w := range want {
		if statuses[i] != w {
			t.Fatalf("request %d: expected %d, got %d (all: %v)", i, w, statuses[i], statuses)
		}
	}
}

type stubBackendModule struct {
	pipeline.Base
	calls      *int
	statusCode int
	body       string
}

func (s *stubBackendModule) Name() string { return "stub_backend" }

func (s *stubBackendModule) Handle(req *message.Request, ctx *reqcontext.Context, resp *message.Response) pipeline.Outcome {
	*s.calls++
	*resp = *message.Error(s.statusCode, "stub")
	resp.Body = []byte(s.body)
	resp.SetHeader("Content-Type", "text/plain")
	return pipeline.Produced
}

func TestCacheHitOnSecondGet(t *testing.T) {
	calls := 0
	cache := NewCache(CacheConfig{TTLSeconds: 300}, nil)
	defer cache.Close()

	p := pipeline.New()
	p.Add(cache, PriorityCache)
	p.Add(&stubBackendModule{calls: &calls, statusCode: 200, body: "hello"}, PriorityProxyCore)
	p.Sort()

	req1 := &message.Request{Method: "GET", Path: "/page", Version: "HTTP/1.1"}
	resp1 := p.Handle(req1, reqcontext.New())
	if resp1.StatusCode != 200 {
		t.Fatalf("expected 200 on first request, got %d", resp1.StatusCode)
	}
	if _, has := resp1.Header("X-Cache"); has {
		t.Fatal("expected no X-Cache on first response")
	}

	req2 := &message.Request{Method: "GET", Path: "/page", Version: "HTTP/1.1"}
	resp2 := p.Handle(req2, reqcontext.New())
	if resp2.StatusCode != 200 {
		t.Fatalf("expected 200 on second request, got %d", resp2.StatusCode)
	}
	if v, has := resp2.Header("X-Cache"); !has || v != "HIT" {
		t.Fatalf("expected X-Cache: HIT on second response, got %q (has=%v)", v, has)
	}
	if string(resp2.Body) != "hello" {
		t.Fatalf("expected identical body, got %q", resp2.Body)
	}
	if calls != 1 {
		t.Fatalf("expected stub backend invoked exactly once, got %d", calls)
	}
}

type toggleBackendModule struct {
	pipeline.Base
	statusCode int
}

func (s *toggleBackendModule) Name() string { return "toggle_backend" }

func (s *toggleBackendModule) Handle(req *message.Request, ctx *reqcontext.Context, resp *message.Response) pipeline.Outcome {
	*resp = *message.Error(s.statusCode, "toggle")
	return pipeline.Produced
}

func TestCircuitBreakerTripAndRecover(t *testing.T) {
	backend := &toggleBackendModule{statusCode: 500}
	breaker := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, RecoverySeconds: 1}, nil)

	p := pipeline.New()
	p.Add(breaker, PriorityCircuitBreaker)
	p.Add(backend, PriorityProxyCore)
	p.Sort()

	var statuses []int
	for i := 0; i < 4; i++ {
		resp := p.Handle(&message.Request{Method: "GET", Path: "/x", Version: "HTTP/1.1"}, reqcontext.New())
		statuses = append(statuses, resp.StatusCode)
	}
	want := []int{500, 500, 500, 503}
	for i, w := range want {
		if statuses[i] != w {
			t.Fatalf("request %d: expected %d, got %d (all: %v)", i, w, statuses[i], statuses)
		}
	}

	time.Sleep(1100 * time.Millisecond)
	backend.statusCode = 200
	resp := p.Handle(&message.Request{Method: "GET", Path: "/x", Version: "HTTP/1.1"}, reqcontext.New())
	if resp.StatusCode != 200 {
		t.Fatalf("expected half-open probe to succeed with 200, got %d", resp.StatusCode)
	}
}

func TestLoadBalancerRoundRobin(t *testing.T) {
	backends := []string{"A:1", "B:2", "C:3"}
	lb := NewLoadBalancer(LoadBalancerConfig{Backends: backends}, nil)

	p := pipeline.New()
	p.Add(lb, PriorityLoadBalancer)
	p.Sort()

	seen := make(map[string]bool)
	var sequence []string
	for i := 0; i < 6; i++ {
		ctx := reqcontext.New()
		p.Handle(&message.Request{Method: "GET", Path: "/", Version: "HTTP/1.1"}, ctx)
		addr, _ := ctx.Get(reqcontext.KeyBackendAddr)
		seen[addr] = true
		sequence = append(sequence, addr)
	}

	for _, b := range backends {
		if !seen[b] {
			t.Fatalf("expected backend %s to appear in round-robin sequence %v", b, sequence)
		}
	}
	if len(seen) != len(backends) {
		t.Fatalf("expected exactly %d distinct backends, got %v", len(backends), sequence)
	}
}

func TestCompressionSkipsSmallBodies(t *testing.T) {
	c := NewCompression(CompressionConfig{MinSize: 256})
	req := &message.Request{Headers: []message.Header{{Name: "Accept-Encoding", Value: "gzip"}}}
	ctx := reqcontext.New()
	c.Handle(req, ctx, message.NoHandlerSentinel())

	resp := message.JSON(200, "OK", "short")
	c.OnResponse(req, resp, ctx)

	if _, has := resp.Header("Content-Encoding"); has {
		t.Fatal("expected no compression for a body under MinSize")
	}
}

func TestRequestIDSynthesizedAndEchoed(t *testing.T) {
	m := NewRequestID()
	req := &message.Request{}
	ctx := reqcontext.New()
	resp := message.NoHandlerSentinel()

	m.Handle(req, ctx, resp)
	id, has := req.Header("X-Request-Id")
	if !has || id == "" {
		t.Fatal("expected a synthesized X-Request-Id")
	}

	m.OnResponse(req, resp, ctx)
	echoed, has := resp.Header("X-Request-Id")
	if !has || echoed != id {
		t.Fatalf("expected response to echo %q, got %q", id, echoed)
	}
}

func TestScriptHookNoOpWithoutRegistry(t *testing.T) {
	m := NewScriptHook(ScriptHookConfig{HookName: "pre_request"}, nil)
	req := &message.Request{Path: "/x"}
	resp := message.NoHandlerSentinel()
	if outcome := m.Handle(req, reqcontext.New(), resp); outcome != pipeline.Continue {
		t.Fatal("expected Continue with a nil registry")
	}
}

func TestScriptHookInvokesNamedHook(t *testing.T) {
	reg := script.NewRegistry()
	reg.Register("pre_request", func(req *message.Request, ctx *reqcontext.Context) *message.Response {
		return message.Error(403, "blocked by script")
	})
	m := NewScriptHook(ScriptHookConfig{HookName: "pre_request"}, reg)

	req := &message.Request{Path: "/x"}
	resp := message.NoHandlerSentinel()
	if outcome := m.Handle(req, reqcontext.New(), resp); outcome != pipeline.Produced {
		t.Fatal("expected Produced when the hook returns a response")
	}
	if resp.StatusCode != 403 {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestURLRewriterFirstMatchWins(t *testing.T) {
	rw := NewURLRewriter(URLRewriterConfig{Rules: []RewriteRule{
		{Prefix: "/api/v1", Replacement: "/internal"},
		{Prefix: "/api", Replacement: "/other"},
	}})
	req := &message.Request{Path: "/api/v1/widgets"}
	rw.Handle(req, reqcontext.New(), message.NoHandlerSentinel())

	if req.Path != "/internal/widgets" {
		t.Fatalf("expected /internal/widgets, got %q", req.Path)
	}
}
