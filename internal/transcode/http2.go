package transcode

import (
	"crypto/tls"

	"golang.org/x/net/http2"

	"github.com/sbaralfred/gatewaycore/internal/pipeline"
)

// ServeHTTP2 takes over an already-ALPN-negotiated TLS connection and
// serves HTTP/2 streams on it, dispatching each to the pipeline through
// PipelineHandler. Each stream is a cooperative task on golang.org/x/net's
// event loop; the pipeline call itself may block on backend I/O, which is
// the accepted trade-off spec.md §5 documents for the HTTP/2 path.
func ServeHTTP2(conn *tls.Conn, pl *pipeline.Pipeline) {
	srv := &http2.Server{}
	srv.ServeConn(conn, &http2.ServeConnOpts{
		Handler: &PipelineHandler{Pipeline: pl, Protocol: "h2"},
	})
}

// NegotiatedProtocol returns the ALPN protocol the handshake settled on,
// used by the server's per-connection handler to decide whether to hand
// the connection to ServeHTTP2 or to the HTTP/1 codec path.
func NegotiatedProtocol(conn *tls.Conn) string {
	return conn.ConnectionState().NegotiatedProtocol
}
