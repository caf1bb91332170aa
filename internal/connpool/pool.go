// Package connpool implements the process-wide backend connection pool:
// per-peer LIFO idle queues with liveness probing and age expiry.
package connpool

import (
	"net"
	"sync"
	"time"
)

const (
	// MaxIdlePerHost bounds the idle queue length for any single peer.
	MaxIdlePerHost = 8
	// MaxIdleAge is how long an idle connection may sit in the queue before
	// it is considered unusable and silently dropped.
	MaxIdleAge = 30 * time.Second
)

type pooledConn struct {
	conn    net.Conn
	pooledAt time.Time
}

// Pool is a mapping from peer address to a bounded LIFO queue of pooled
// connections, guarded by a single mutex. A Pool is safe for concurrent use.
type Pool struct {
	mu    sync.Mutex
	queue map[string][]pooledConn

	hits   func()
	misses func()
}

// New returns an empty Pool. onHit/onMiss, if non-nil, are invoked for each
// Get outcome so the caller can feed telemetry without this package
// depending on the telemetry package directly.
func New(onHit, onMiss func()) *Pool {
	return &Pool{
		queue:  make(map[string][]pooledConn),
		hits:   onHit,
		misses: onMiss,
	}
}

// Get returns a pooled connection for addr if a healthy one is idle,
// otherwise dials a fresh one with connectTimeout.
func (p *Pool) Get(addr string, connectTimeout time.Duration) (net.Conn, error) {
	p.mu.Lock()
	q := p.queue[addr]
	for len(q) > 0 {
		last := q[len(q)-1]
		q = q[:len(q)-1]

		if time.Since(last.pooledAt) > MaxIdleAge {
			last.conn.Close()
			continue
		}

		if !probeAlive(last.conn) {
			last.conn.Close()
			continue
		}

		p.queue[addr] = q
		p.mu.Unlock()
		if p.hits != nil {
			p.hits()
		}
		return last.conn, nil
	}
	p.queue[addr] = q
	p.mu.Unlock()

	if p.misses != nil {
		p.misses()
	}

	conn, err := net.DialTimeout("tcp", addr, connectTimeout)
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
	}
	return conn, nil
}

// Put returns conn to addr's idle queue, pruning stale entries first. If
// the queue is already at MaxIdlePerHost, conn is closed instead of pooled.
func (p *Pool) Put(addr string, conn net.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()

	q := p.queue[addr]
	kept := q[:0]
	now := time.Now()
	for _, pc := range q {
		if now.Sub(pc.pooledAt) > MaxIdleAge {
			pc.conn.Close()
			continue
		}
		kept = append(kept, pc)
	}

	if len(kept) >= MaxIdlePerHost {
		conn.Close()
		p.queue[addr] = kept
		return
	}

	p.queue[addr] = append(kept, pooledConn{conn: conn, pooledAt: now})
}

// probeAlive issues a one-byte read under a 1 ms read deadline: if the read
// times out, the peer has not closed the connection and it is still usable. Any other
// outcome (EOF, error, or unexpected readable bytes) means the peer closed
// and the connection must be discarded. This is the "moved stream" form of
// the liveness probe, not the try-clone form: the probed connection is
// either returned to the caller or closed here, never duplicated.
func probeAlive(conn net.Conn) bool {
	type deadlineSetter interface {
		SetReadDeadline(time.Time) error
	}
	ds, ok := conn.(deadlineSetter)
	if !ok {
		return true
	}
	if err := ds.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
		return false
	}
	defer ds.SetReadDeadline(time.Time{})

	var buf [1]byte
	n, err := conn.Read(buf[:])
	if n > 0 {
		return false
	}
	if err == nil {
		return false
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return true
	}
	return false
}
