package middleware

import (
	"sync/atomic"

	"github.com/sbaralfred/gatewaycore/internal/message"
	"github.com/sbaralfred/gatewaycore/internal/pipeline"
	"github.com/sbaralfred/gatewaycore/internal/reqcontext"
)

// HealthChecker reports whether a backend address is presumed up. The
// active-health prober implements this; a nil checker means every backend
// is treated as healthy.
type HealthChecker interface {
	IsHealthy(addr string) bool
}

// LoadBalancerConfig holds the backend list. An empty Backends list makes
// the module emit DefaultBackend unconditionally.
type LoadBalancerConfig struct {
	Backends       []string
	DefaultBackend string
}

// DefaultLoadBalancerConfig returns the module's default option set.
func DefaultLoadBalancerConfig() LoadBalancerConfig {
	return LoadBalancerConfig{}
}

// LoadBalancer writes _backend_addr into context. With a configured
// backend list it round-robins with health-aware skipping; otherwise it
// emits the single default backend.
type LoadBalancer struct {
	pipeline.Base
	cfg    LoadBalancerConfig
	health HealthChecker
	next   atomic.Uint64
}

// NewLoadBalancer constructs a LoadBalancer. health may be nil.
func NewLoadBalancer(cfg LoadBalancerConfig, health HealthChecker) *LoadBalancer {
	return &LoadBalancer{cfg: cfg, health: health}
}

func (m *LoadBalancer) Name() string { return "load_balancer" }

func (m *LoadBalancer) Handle(req *message.Request, ctx *reqcontext.Context, resp *message.Response) pipeline.Outcome {
	n := len(m.cfg.Backends)
	if n == 0 {
		ctx.Set(reqcontext.KeyBackendAddr, m.cfg.DefaultBackend)
		return pipeline.Continue
	}

	start := int(m.next.Add(1)-1) % n
	for offset := 0; offset < n; offset++ {
		idx := (start + offset) % n
		addr := m.cfg.Backends[idx]
		if m.healthy(addr) {
			ctx.Set(reqcontext.KeyBackendAddr, addr)
			return pipeline.Continue
		}
	}

	ctx.Set(reqcontext.KeyBackendAddr, m.cfg.Backends[start])
	return pipeline.Continue
}

func (m *LoadBalancer) healthy(addr string) bool {
	if m.health == nil {
		return true
	}
	return m.health.IsHealthy(addr)
}
