// Package telemetry holds the process-wide, lock-free counters the server
// and its modules update as requests flow through.
package telemetry

import "sync/atomic"

// maxLatencyMs caps a single latency sample before it is folded into the
// running sum, so one pathological request cannot dominate the average.
const maxLatencyMs = 600_000

// Telemetry is a fixed roster of monotonic counters plus a max-gauge for
// latency. Every field is updated with relaxed atomics; there is no lock.
type Telemetry struct {
	requestsTotal       atomic.Uint64
	requestsOK          atomic.Uint64
	requestsErr         atomic.Uint64
	bytesIn             atomic.Uint64
	bytesOut            atomic.Uint64
	connectionsTotal    atomic.Uint64
	poolHits            atomic.Uint64
	poolMisses          atomic.Uint64
	circuitBreakerTrips atomic.Uint64
	circuitRejects      atomic.Uint64
	latencySumMs        atomic.Uint64
	latencyMaxMs        atomic.Uint64
}

// New returns a zeroed Telemetry.
func New() *Telemetry {
	return &Telemetry{}
}

func (t *Telemetry) IncRequestsTotal()    { t.requestsTotal.Add(1) }
func (t *Telemetry) IncRequestsOK()       { t.requestsOK.Add(1) }
func (t *Telemetry) IncRequestsErr()      { t.requestsErr.Add(1) }
func (t *Telemetry) AddBytesIn(n uint64)  { t.bytesIn.Add(n) }
func (t *Telemetry) AddBytesOut(n uint64) { t.bytesOut.Add(n) }
func (t *Telemetry) IncConnectionsTotal() { t.connectionsTotal.Add(1) }
func (t *Telemetry) IncPoolHits()         { t.poolHits.Add(1) }
func (t *Telemetry) IncPoolMisses()       { t.poolMisses.Add(1) }
func (t *Telemetry) IncCircuitTrips()     { t.circuitBreakerTrips.Add(1) }
func (t *Telemetry) IncCircuitRejects()   { t.circuitRejects.Add(1) }

// ObserveLatencyMs folds a latency sample into the running sum and updates
// the max-gauge via a CAS retry loop. Samples above maxLatencyMs are
// clamped first.
func (t *Telemetry) ObserveLatencyMs(ms int64) {
	if ms < 0 {
		ms = 0
	}
	if ms > maxLatencyMs {
		ms = maxLatencyMs
	}
	t.latencySumMs.Add(uint64(ms))

	for {
		cur := t.latencyMaxMs.Load()
		if uint64(ms) <= cur {
			return
		}
		if t.latencyMaxMs.CompareAndSwap(cur, uint64(ms)) {
			return
		}
	}
}

// Snapshot is a point-in-time copy of every counter, safe to serialize.
type Snapshot struct {
	RequestsTotal       uint64 `json:"requests_total"`
	RequestsOK          uint64 `json:"requests_ok"`
	RequestsErr         uint64 `json:"requests_err"`
	BytesIn             uint64 `json:"bytes_in"`
	BytesOut            uint64 `json:"bytes_out"`
	ConnectionsTotal    uint64 `json:"connections_total"`
	PoolHits            uint64 `json:"pool_hits"`
	PoolMisses          uint64 `json:"pool_misses"`
	CircuitBreakerTrips uint64 `json:"circuit_breaker_trips"`
	CircuitRejects      uint64 `json:"circuit_rejects"`
	LatencySumMs        uint64 `json:"latency_sum_ms"`
	LatencyMaxMs        uint64 `json:"latency_max_ms"`
}

// Snapshot reads every counter into a Snapshot. Individual fields may be
// slightly inconsistent with one another under concurrent updates; this is
// acceptable for a diagnostics surface.
func (t *Telemetry) Snapshot() Snapshot {
	return Snapshot{
		RequestsTotal:       t.requestsTotal.Load(),
		RequestsOK:          t.requestsOK.Load(),
		RequestsErr:         t.requestsErr.Load(),
		BytesIn:             t.bytesIn.Load(),
		BytesOut:            t.bytesOut.Load(),
		ConnectionsTotal:    t.connectionsTotal.Load(),
		PoolHits:            t.poolHits.Load(),
		PoolMisses:          t.poolMisses.Load(),
		CircuitBreakerTrips: t.circuitBreakerTrips.Load(),
		CircuitRejects:      t.circuitRejects.Load(),
		LatencySumMs:        t.latencySumMs.Load(),
		LatencyMaxMs:        t.latencyMaxMs.Load(),
	}
}
