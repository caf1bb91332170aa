package middleware

import "github.com/sbaralfred/gatewaycore/internal/pipeline"

// Canonical default priorities, lower runs first.
const (
	PriorityScriptHook      = 5
	PriorityActiveHealth    = 10
	PriorityRequestID       = 20
	PriorityRateLimiter     = 30
	PriorityCircuitBreaker  = 40
	PriorityHealthCheck     = 50
	PriorityMetricsExporter = 60
	PriorityAdmin           = 70
	PriorityCache           = 80
	PriorityURLRewriter     = 90
	PriorityCompression     = 100
	PriorityLoadBalancer    = 110
	PriorityProxyCore       = 120
	PriorityRawTCP          = 130
)

// Set bundles the constructed middleware instances so the caller can close
// the ones with background goroutines on shutdown.
type Set struct {
	ScriptHook      *ScriptHook
	ActiveHealth    *ActiveHealthProber
	RequestID       *RequestID
	RateLimiter     *RateLimiter
	CircuitBreaker  *CircuitBreaker
	HealthCheck     *HealthCheck
	MetricsExporter *MetricsExporter
	Cache           *Cache
	URLRewriter     *URLRewriter
	Compression     *Compression
	LoadBalancer    *LoadBalancer
	ProxyCore       *ProxyCore
}

// RegisterAll installs every module in the canonical priority order
// explicitly (no auto-discovery), the language-neutral equivalent of the
// source's build-time registration.
func (s *Set) RegisterAll(p *pipeline.Pipeline) {
	if s.ScriptHook != nil {
		p.Add(s.ScriptHook, PriorityScriptHook)
	}
	if s.ActiveHealth != nil {
		p.Add(s.ActiveHealth, PriorityActiveHealth)
	}
	if s.RequestID != nil {
		p.Add(s.RequestID, PriorityRequestID)
	}
	if s.RateLimiter != nil {
		p.Add(s.RateLimiter, PriorityRateLimiter)
	}
	if s.CircuitBreaker != nil {
		p.Add(s.CircuitBreaker, PriorityCircuitBreaker)
	}
	if s.HealthCheck != nil {
		p.Add(s.HealthCheck, PriorityHealthCheck)
	}
	if s.MetricsExporter != nil {
		p.Add(s.MetricsExporter, PriorityMetricsExporter)
	}
	if s.Cache != nil {
		p.Add(s.Cache, PriorityCache)
	}
	if s.URLRewriter != nil {
		p.Add(s.URLRewriter, PriorityURLRewriter)
	}
	if s.Compression != nil {
		p.Add(s.Compression, PriorityCompression)
	}
	if s.LoadBalancer != nil {
		p.Add(s.LoadBalancer, PriorityLoadBalancer)
	}
	if s.ProxyCore != nil {
		p.Add(s.ProxyCore, PriorityProxyCore)
	}
	p.Sort()
}
