package transcode

import (
	"context"
	"crypto/tls"
	"strconv"

	"github.com/quic-go/quic-go/http3"

	"github.com/sbaralfred/gatewaycore/internal/pipeline"
)

// HTTP3Listener owns the QUIC-backed HTTP/3 boundary. Every accepted
// request is transcoded through PipelineHandler exactly like the HTTP/2
// path; only the wire framing differs.
type HTTP3Listener struct {
	server *http3.Server
}

// NewHTTP3Listener builds an HTTP/3 server bound to udpAddr, sharing
// tlsConfig with the TCP listener so both advertise the same certificate.
func NewHTTP3Listener(udpAddr string, tlsConfig *tls.Config, pl *pipeline.Pipeline) *HTTP3Listener {
	return &HTTP3Listener{
		server: &http3.Server{
			Addr:      udpAddr,
			TLSConfig: tlsConfig,
			Handler:   &PipelineHandler{Pipeline: pl, Protocol: "h3"},
		},
	}
}

// ListenAndServe blocks serving HTTP/3 until ctx is cancelled.
func (l *HTTP3Listener) ListenAndServe(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		l.server.Close()
	}()
	return l.server.ListenAndServe()
}

// AltSvcValue builds the Alt-Svc header value advertising this listener's
// port on HTTP/1 and HTTP/2 responses, per spec.md §6.
func AltSvcValue(port int) string {
	return `h3=":` + strconv.Itoa(port) + `"; ma=86400`
}
