package middleware

import (
	"net"
	"strings"
	"time"

	"github.com/sbaralfred/gatewaycore/internal/codec"
	"github.com/sbaralfred/gatewaycore/internal/connpool"
	"github.com/sbaralfred/gatewaycore/internal/message"
	"github.com/sbaralfred/gatewaycore/internal/pipeline"
	"github.com/sbaralfred/gatewaycore/internal/reqcontext"
)

// ProxyCoreConfig holds the forwarder's timeouts.
type ProxyCoreConfig struct {
	BackendTimeoutSeconds int
	ConnectTimeoutSeconds int
	BufferSize            int
}

// DefaultProxyCoreConfig returns the module's default option set.
func DefaultProxyCoreConfig() ProxyCoreConfig {
	return ProxyCoreConfig{BackendTimeoutSeconds: 10, ConnectTimeoutSeconds: 5, BufferSize: 8192}
}

// ProxyCore forwards the request to _backend_addr using the shared
// connection pool and writes the backend's response as this request's
// response. Pool hit/miss telemetry is recorded by connpool itself via the
// callbacks passed to its constructor, not by this module.
type ProxyCore struct {
	pipeline.Base
	cfg  ProxyCoreConfig
	pool *connpool.Pool
}

// NewProxyCore constructs a ProxyCore over the given shared pool.
func NewProxyCore(cfg ProxyCoreConfig, pool *connpool.Pool) *ProxyCore {
	return &ProxyCore{cfg: cfg, pool: pool}
}

func (m *ProxyCore) Name() string { return "proxy_core" }

func (m *ProxyCore) Handle(req *message.Request, ctx *reqcontext.Context, resp *message.Response) pipeline.Outcome {
	addr, ok := ctx.Get(reqcontext.KeyBackendAddr)
	if !ok || addr == "" {
		*resp = *message.Error(502, "Bad Gateway")
		return pipeline.Produced
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		*resp = *message.Error(502, "Bad Gateway")
		return pipeline.Produced
	}

	connectTimeout := time.Duration(m.cfg.ConnectTimeoutSeconds) * time.Second
	conn, err := m.pool.Get(addr, connectTimeout)
	if err != nil {
		*resp = *message.Error(502, "Bad Gateway")
		return pipeline.Produced
	}

	deadline := time.Duration(m.cfg.BackendTimeoutSeconds) * time.Second
	conn.SetDeadline(time.Now().Add(deadline))

	if _, err := conn.Write(codec.SerializeRequest(req)); err != nil {
		conn.Close()
		*resp = *message.Error(502, "Bad Gateway")
		return pipeline.Produced
	}

	raw, outcome, err := codec.ReadMessage(conn, m.cfg.BufferSize)
	switch {
	case outcome == codec.ReadTimedOut:
		conn.Close()
		*resp = *message.Error(504, "Gateway Timeout")
		return pipeline.Produced
	case err != nil || outcome == codec.ReadError:
		conn.Close()
		*resp = *message.Error(502, "Bad Gateway")
		return pipeline.Produced
	}

	backendResp, perr := codec.ParseResponse(raw)
	if perr != nil {
		conn.Close()
		*resp = *message.Error(502, "Bad Gateway")
		return pipeline.Produced
	}

	if keepAlive(req, backendResp) {
		conn.SetDeadline(time.Time{})
		m.pool.Put(addr, conn)
	} else {
		conn.Close()
	}

	*resp = *backendResp
	return pipeline.Produced
}

func keepAlive(req *message.Request, resp *message.Response) bool {
	connHeader, _ := resp.Header("Connection")
	if req.Version == "HTTP/1.0" {
		return strings.EqualFold(connHeader, "keep-alive")
	}
	return !strings.EqualFold(connHeader, "close")
}
