package middleware

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sbaralfred/gatewaycore/internal/message"
	"github.com/sbaralfred/gatewaycore/internal/pipeline"
	"github.com/sbaralfred/gatewaycore/internal/reqcontext"
	"github.com/sbaralfred/gatewaycore/internal/telemetry"
)

type breakerState int32

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// CircuitBreakerConfig holds the breaker's thresholds.
type CircuitBreakerConfig struct {
	FailureThreshold int
	RecoverySeconds  int
}

// DefaultCircuitBreakerConfig returns the module's default option set.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{FailureThreshold: 5, RecoverySeconds: 30}
}

// CircuitBreaker guards the downstream against a failing backend with the
// standard closed/open/half-open state machine, transitions via CAS on a
// single atomic state variable.
type CircuitBreaker struct {
	pipeline.Base
	cfg CircuitBreakerConfig
	tel *telemetry.Telemetry

	state       atomic.Int32
	failures    atomic.Int64
	openMu      sync.Mutex
	openedAt    time.Time
}

// NewCircuitBreaker constructs a CircuitBreaker. tel may be nil.
func NewCircuitBreaker(cfg CircuitBreakerConfig, tel *telemetry.Telemetry) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg, tel: tel}
}

func (m *CircuitBreaker) Name() string { return "circuit_breaker" }

func (m *CircuitBreaker) Handle(req *message.Request, ctx *reqcontext.Context, resp *message.Response) pipeline.Outcome {
	if breakerState(m.state.Load()) != stateOpen {
		return pipeline.Continue
	}

	m.openMu.Lock()
	openedAt := m.openedAt
	m.openMu.Unlock()

	if time.Since(openedAt) < time.Duration(m.cfg.RecoverySeconds)*time.Second {
		*resp = *message.Error(503, "Circuit breaker open")
		if m.tel != nil {
			m.tel.IncCircuitRejects()
		}
		return pipeline.Produced
	}

	// Elapsed >= recovery: the first request to observe this flips the
	// breaker to half-open and is allowed through as a probe. Concurrent
	// probes may slip through during the CAS window; accepted per spec.
	m.state.CompareAndSwap(int32(stateOpen), int32(stateHalfOpen))
	return pipeline.Continue
}

func (m *CircuitBreaker) OnResponse(req *message.Request, resp *message.Response, ctx *reqcontext.Context) {
	failure := resp.StatusCode >= 500

	switch breakerState(m.state.Load()) {
	case stateHalfOpen:
		if failure {
			m.tripOpen()
		} else {
			m.state.Store(int32(stateClosed))
			m.failures.Store(0)
		}
	case stateClosed:
		if failure {
			if m.failures.Add(1) >= int64(m.cfg.FailureThreshold) {
				m.tripOpen()
			}
		} else {
			m.failures.Store(0)
		}
	}
}

func (m *CircuitBreaker) tripOpen() {
	m.openMu.Lock()
	m.openedAt = time.Now()
	m.openMu.Unlock()
	m.state.Store(int32(stateOpen))
	if m.tel != nil {
		m.tel.IncCircuitTrips()
	}
}
