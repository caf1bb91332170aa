// Package server implements the accept loop, TLS/ALPN branching, graceful
// shutdown, and per-connection HTTP/1 handling.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/sbaralfred/gatewaycore/internal/codec"
	"github.com/sbaralfred/gatewaycore/internal/message"
	"github.com/sbaralfred/gatewaycore/internal/pipeline"
	"github.com/sbaralfred/gatewaycore/internal/reqcontext"
	"github.com/sbaralfred/gatewaycore/internal/telemetry"
	"github.com/sbaralfred/gatewaycore/internal/tlsutil"
	"github.com/sbaralfred/gatewaycore/internal/transcode"
	"github.com/sbaralfred/gatewaycore/internal/workerpool"
)

// Config holds the server-level settings consumed from the external
// configuration collaborator (see internal/config).
type Config struct {
	ListenAddr          string
	BufferSize          int
	ClientTimeoutSeconds int
	MaxConnections      int
	WorkerThreads       int
	ShutdownTimeoutSeconds int
	TLSCertPath         string
	TLSKeyPath          string
	HTTP2Enabled        bool
	HTTP3Enabled        bool
	HTTP3Port           int
}

// Server owns the accept loop and its worker pool.
type Server struct {
	cfg      Config
	pipeline *pipeline.Pipeline
	tel      *telemetry.Telemetry
	log      zerolog.Logger
	pool     *workerpool.Pool

	listener  net.Listener
	tlsConfig *tls.Config
	http3     *transcode.HTTP3Listener
	shutdown  atomic.Bool
	stopped   chan struct{}
}

// New constructs a Server. The pipeline must already be sorted.
func New(cfg Config, pl *pipeline.Pipeline, tel *telemetry.Telemetry, log zerolog.Logger) *Server {
	return &Server{cfg: cfg, pipeline: pl, tel: tel, log: log, stopped: make(chan struct{})}
}

// Run binds the listener and serves until a shutdown signal arrives or ctx
// is cancelled, then drains in-flight connections. Returns the process exit
// code per spec.md §6 (0 on clean shutdown, 1 on bind failure).
func (s *Server) Run(ctx context.Context) int {
	if s.pipeline.RawTCP != nil && s.cfg.TLSCertPath != "" {
		s.log.Error().Msg("raw-tcp mode is incompatible with TLS-terminated acceptance")
		return 1
	}

	ln, err := s.listen()
	if err != nil {
		s.log.Error().Err(err).Str("addr", s.cfg.ListenAddr).Msg("failed to bind listener")
		return 1
	}
	s.listener = ln
	defer ln.Close()

	workers := s.cfg.WorkerThreads
	if workers <= 0 {
		workers = 2 * runtime.NumCPU()
	}
	s.pool = workerpool.New(workers, s.cfg.MaxConnections, s.handleConn, s.log)

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go s.acceptLoop(ln)

	if s.cfg.HTTP3Enabled && s.tlsConfig != nil {
		h3Addr := ":" + strconv.Itoa(s.cfg.HTTP3Port)
		s.http3 = transcode.NewHTTP3Listener(h3Addr, s.tlsConfig, s.pipeline)
		go func() {
			if err := s.http3.ListenAndServe(sigCtx); err != nil {
				s.log.Warn().Err(err).Msg("http/3 listener stopped")
			}
		}()
	}

	<-sigCtx.Done()
	s.requestShutdown(ln)
	s.drain()
	return 0
}

// listen binds the TCP listener. With TLS configured it advertises h2 then
// http/1.1 via ALPN (spec.md §6); handleConn inspects the negotiated
// protocol per connection and branches to the HTTP/2 transcoder when it
// settled on h2, per the "synchronous per worker" design spec.md §9
// sanctions for a pure-thread-pool implementation.
func (s *Server) listen() (net.Listener, error) {
	if s.cfg.TLSCertPath == "" || s.cfg.TLSKeyPath == "" {
		return net.Listen("tcp", s.cfg.ListenAddr)
	}

	tlsCfg, err := tlsutil.LoadConfig(s.cfg.TLSCertPath, s.cfg.TLSKeyPath, s.cfg.HTTP2Enabled)
	if err != nil {
		return nil, err
	}
	s.tlsConfig = tlsCfg
	return tls.Listen("tcp", s.cfg.ListenAddr, tlsCfg)
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		if s.shutdown.Load() {
			return
		}
		conn, err := ln.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			s.log.Warn().Err(err).Msg("accept error")
			continue
		}

		s.tel.IncConnectionsTotal()

		if int64(s.cfg.MaxConnections) > 0 && s.pool.Active() >= int64(s.cfg.MaxConnections) {
			writeOverloaded(conn)
			conn.Close()
			continue
		}

		if !s.pool.TryEnqueue(conn) {
			writeOverloaded(conn)
			conn.Close()
		}
	}
}

func writeOverloaded(conn net.Conn) {
	resp := message.Error(503, "Server overloaded")
	conn.Write(codec.SerializeResponse(resp))
}

// requestShutdown flips the shutdown flag and self-connects to the listen
// address so a blocked Accept unblocks promptly.
func (s *Server) requestShutdown(ln net.Listener) {
	s.shutdown.Store(true)
	if conn, err := net.DialTimeout("tcp", ln.Addr().String(), time.Second); err == nil {
		conn.Close()
	}
}

// drain polls the active-connection gauge until it reaches zero or the
// shutdown timeout elapses.
func (s *Server) drain() {
	deadline := time.Now().Add(time.Duration(s.cfg.ShutdownTimeoutSeconds) * time.Second)
	for time.Now().Before(deadline) {
		if s.pool.Active() == 0 {
			s.pool.Close()
			close(s.stopped)
			s.log.Info().Msg("graceful shutdown complete")
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	s.log.Warn().Msg("shutdown timeout elapsed with connections still active; forcing stop")
	s.pool.Close()
	close(s.stopped)
}

// Stopped is closed once the drain sequence has finished.
func (s *Server) Stopped() <-chan struct{} { return s.stopped }

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	if s.pipeline.RawTCP != nil {
		s.pipeline.RawTCP(conn)
		return
	}

	if tlsConn, ok := conn.(*tls.Conn); ok && s.cfg.HTTP2Enabled {
		tlsConn.SetDeadline(time.Now().Add(time.Duration(s.cfg.ClientTimeoutSeconds) * time.Second))
		if err := tlsConn.Handshake(); err != nil {
			return
		}
		tlsConn.SetDeadline(time.Time{})
		if transcode.NegotiatedProtocol(tlsConn) == "h2" {
			transcode.ServeHTTP2(tlsConn, s.pipeline)
			return
		}
	}

	timeout := time.Duration(s.cfg.ClientTimeoutSeconds) * time.Second
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
	}
	conn.SetDeadline(time.Now().Add(timeout))

	raw, outcome, err := codec.ReadMessage(conn, s.cfg.BufferSize)
	if outcome == codec.ReadTimedOut {
		return
	}

	// Every read that did not time out is counted here, whether or not it
	// goes on to parse cleanly (a connection that closed before sending
	// anything included), so requests_total == requests_ok + requests_err
	// holds for every terminal outcome below this point.
	s.tel.AddBytesIn(uint64(len(raw)))
	s.tel.IncRequestsTotal()

	if outcome != codec.ReadComplete {
		s.writeErrorAndClose(conn, mapReadOutcome(err))
		return
	}

	req, perr := codec.ParseRequest(raw)
	if perr != nil {
		s.writeErrorAndClose(conn, 400)
		return
	}

	if requiresLength(req.Method) {
		_, hasCL := req.Header("Content-Length")
		_, hasTE := req.Header("Transfer-Encoding")
		if !hasCL && !hasTE {
			s.writeErrorAndClose(conn, 411)
			return
		}
	}

	ctx := reqcontext.New()
	ctx.Set(reqcontext.KeyProtocol, "h1")
	if host, _, err := net.SplitHostPort(conn.RemoteAddr().String()); err == nil {
		ctx.Set(reqcontext.KeyClientIP, host)
	}
	if tlsConn, ok := conn.(*tls.Conn); ok {
		ctx.Set(reqcontext.KeyTLSVersion, tlsVersionName(tlsConn.ConnectionState().Version))
	}

	resp := s.pipeline.Handle(req, ctx)

	if s.cfg.HTTP3Enabled && s.cfg.TLSCertPath != "" {
		resp.SetHeader("Alt-Svc", `h3=":`+strconv.Itoa(s.cfg.HTTP3Port)+`"; ma=86400`)
	}

	if resp.StatusCode >= 500 {
		s.tel.IncRequestsErr()
	} else {
		s.tel.IncRequestsOK()
	}
	s.tel.ObserveLatencyMs(ctx.Elapsed().Milliseconds())

	out := codec.SerializeResponse(resp)
	s.tel.AddBytesOut(uint64(len(out)))
	conn.Write(out)
	if tc, ok := conn.(interface{ CloseWrite() error }); ok {
		tc.CloseWrite()
	}
}

func (s *Server) writeErrorAndClose(conn net.Conn, status int) {
	var resp *message.Response
	switch status {
	case 400:
		resp = message.Error(400, "Bad Request")
	case 411:
		resp = message.Error(411, "Length Required")
	case 413:
		resp = message.Error(413, "Payload Too Large")
	case 431:
		resp = message.Error(431, "Request Header Fields Too Large")
	default:
		resp = message.Error(400, "Bad Request")
	}
	resp.SetHeader("Connection", "close")
	s.tel.IncRequestsErr()
	conn.Write(codec.SerializeResponse(resp))
}

func mapReadOutcome(err error) int {
	switch {
	case errors.Is(err, codec.ErrHeadersTooLarge):
		return 431
	case errors.Is(err, codec.ErrBodyTooLarge):
		return 413
	default:
		return 400
	}
}

func requiresLength(method string) bool {
	return method == "POST" || method == "PUT" || method == "PATCH"
}

func tlsVersionName(v uint16) string {
	switch v {
	case tls.VersionTLS10:
		return "TLS1.0"
	case tls.VersionTLS11:
		return "TLS1.1"
	case tls.VersionTLS12:
		return "TLS1.2"
	case tls.VersionTLS13:
		return "TLS1.3"
	default:
		return "unknown"
	}
}
