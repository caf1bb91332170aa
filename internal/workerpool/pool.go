// Package workerpool implements the bounded dispatch queue and fixed
// worker goroutines that drain accepted client connections.
package workerpool

import (
	"net"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// Pool is a fixed-size set of workers receiving accepted connections from a
// bounded channel. golang.org/x/sync/semaphore backstops admission so a
// burst of accepts cannot pile up unbounded work beyond the channel's own
// capacity; TryEnqueue never blocks on either.
type Pool struct {
	work    chan net.Conn
	handle  func(net.Conn)
	log     zerolog.Logger
	sem     *semaphore.Weighted
	active  atomic.Int64
	done    chan struct{}
}

// New starts workerCount goroutines, each invoking handle for every
// connection it receives. queueSize bounds the dispatch channel.
func New(workerCount, queueSize int, handle func(net.Conn), log zerolog.Logger) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 1 {
		queueSize = workerCount
	}
	p := &Pool{
		work:   make(chan net.Conn, queueSize),
		handle: handle,
		log:    log,
		sem:    semaphore.NewWeighted(int64(queueSize)),
		done:   make(chan struct{}),
	}
	for i := 0; i < workerCount; i++ {
		go p.runWorker()
	}
	return p
}

func (p *Pool) runWorker() {
	for conn := range p.work {
		p.sem.Release(1)
		p.active.Add(1)
		p.process(conn)
		p.active.Add(-1)
	}
}

// process invokes the handler under a panic guard: a panicking handler is
// logged and the connection closed, but the worker goroutine keeps running.
func (p *Pool) process(conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Msg("worker recovered from panic")
			conn.Close()
		}
	}()
	p.handle(conn)
}

// TryEnqueue attempts to admit conn without blocking. It returns false when
// the semaphore backstop or the channel itself is saturated, signalling the
// caller to respond with a 503 and close the connection itself.
func (p *Pool) TryEnqueue(conn net.Conn) bool {
	if !p.sem.TryAcquire(1) {
		return false
	}
	select {
	case p.work <- conn:
		return true
	default:
		p.sem.Release(1)
		return false
	}
}

// Active returns the number of connections currently being processed.
func (p *Pool) Active() int64 {
	return p.active.Load()
}

// Close stops accepting new work; already-queued connections still drain.
// Workers exit once the channel is closed and drained.
func (p *Pool) Close() {
	close(p.work)
}
