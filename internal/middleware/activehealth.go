package middleware

import (
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sbaralfred/gatewaycore/internal/message"
	"github.com/sbaralfred/gatewaycore/internal/pipeline"
	"github.com/sbaralfred/gatewaycore/internal/reqcontext"
)

// ActiveHealthConfig holds probing parameters.
type ActiveHealthConfig struct {
	Backends        []string
	IntervalSeconds int
	TimeoutSeconds  int
}

// DefaultActiveHealthConfig returns the module's default option set.
func DefaultActiveHealthConfig() ActiveHealthConfig {
	return ActiveHealthConfig{IntervalSeconds: 10, TimeoutSeconds: 2}
}

// ActiveHealthProber maintains a HealthMap backed by a background goroutine
// that periodically attempts a TCP connect against every configured
// backend. It implements LoadBalancer's HealthChecker.
type ActiveHealthProber struct {
	pipeline.Base
	cfg  ActiveHealthConfig
	log  zerolog.Logger
	mu   sync.RWMutex
	up   map[string]bool
	done chan struct{}
}

// NewActiveHealthProber seeds every syntactically-valid configured backend
// as healthy and starts the background probe loop. Call Close to stop it.
func NewActiveHealthProber(cfg ActiveHealthConfig, log zerolog.Logger) *ActiveHealthProber {
	p := &ActiveHealthProber{cfg: cfg, log: log, up: make(map[string]bool), done: make(chan struct{})}
	for _, addr := range cfg.Backends {
		if _, _, err := net.SplitHostPort(addr); err == nil {
			p.up[addr] = true
		}
	}
	if cfg.IntervalSeconds > 0 {
		go p.loop()
	}
	return p
}

func (p *ActiveHealthProber) Name() string { return "active_health" }

// Handle is a no-op: this module's real work happens on its background
// probe goroutine. It is still installed into the pipeline at its
// canonical priority so registration order and diagnostics (Pipeline.Names)
// reflect the full module roster.
func (p *ActiveHealthProber) Handle(*message.Request, *reqcontext.Context, *message.Response) pipeline.Outcome {
	return pipeline.Continue
}

// IsHealthy reports the last-known state for addr. Unknown addresses are
// treated as healthy so an unconfigured backend is never silently skipped.
func (p *ActiveHealthProber) IsHealthy(addr string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	up, known := p.up[addr]
	if !known {
		return true
	}
	return up
}

func (p *ActiveHealthProber) loop() {
	interval := time.Duration(p.cfg.IntervalSeconds) * time.Second
	timeout := time.Duration(p.cfg.TimeoutSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.probeAll(timeout)
		case <-p.done:
			return
		}
	}
}

func (p *ActiveHealthProber) probeAll(timeout time.Duration) {
	p.mu.RLock()
	addrs := make([]string, 0, len(p.up))
	for addr := range p.up {
		addrs = append(addrs, addr)
	}
	p.mu.RUnlock()

	for _, addr := range addrs {
		up := probeTCP(addr, timeout)

		p.mu.Lock()
		was := p.up[addr]
		p.up[addr] = up
		p.mu.Unlock()

		if was != up {
			if up {
				p.log.Info().Str("backend", addr).Msg("backend transitioned down to up")
			} else {
				p.log.Warn().Str("backend", addr).Msg("backend transitioned up to down")
			}
		}
	}
}

func probeTCP(addr string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Close stops the background probe loop.
func (p *ActiveHealthProber) Close() {
	close(p.done)
}

// Snapshot returns a copy of the current health map, for the admin surface.
func (p *ActiveHealthProber) Snapshot() map[string]bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]bool, len(p.up))
	for addr, up := range p.up {
		out[addr] = up
	}
	return out
}
