// Package transcode bridges the HTTP/2 and HTTP/3 wire formats into the
// same in-memory message.Request/message.Response the HTTP/1 codec
// produces, so the pipeline never has to know which transport carried a
// request. Per spec.md §1 these transcoders are boundary-only: nothing
// here implements request semantics, only frame-to-struct conversion.
package transcode

import (
	"io"
	"net/http"

	"github.com/sbaralfred/gatewaycore/internal/message"
	"github.com/sbaralfred/gatewaycore/internal/pipeline"
	"github.com/sbaralfred/gatewaycore/internal/reqcontext"
)

// PipelineHandler adapts net/http's handler contract to the pipeline,
// shared by the HTTP/2 and HTTP/3 listeners below.
type PipelineHandler struct {
	Pipeline *pipeline.Pipeline
	Protocol string // "h2" or "h3"
}

func (h *PipelineHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := fromStdRequest(r)

	ctx := reqcontext.New()
	ctx.Set(reqcontext.KeyProtocol, h.Protocol)
	if host, _, err := splitHostPort(r.RemoteAddr); err == nil {
		ctx.Set(reqcontext.KeyClientIP, host)
	}
	if r.TLS != nil {
		ctx.Set(reqcontext.KeyTLSVersion, tlsVersionName(r.TLS.Version))
	}

	resp := h.Pipeline.Handle(req, ctx)
	writeStdResponse(w, resp)
}

func fromStdRequest(r *http.Request) *message.Request {
	var headers []message.Header
	for name, values := range r.Header {
		for _, v := range values {
			headers = append(headers, message.Header{Name: name, Value: v})
		}
	}

	body, _ := io.ReadAll(io.LimitReader(r.Body, 16*1024*1024))

	path := r.URL.Path
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}

	return &message.Request{
		Method:  r.Method,
		Path:    path,
		Version: r.Proto,
		Headers: headers,
		Body:    body,
	}
}

func writeStdResponse(w http.ResponseWriter, resp *message.Response) {
	h := w.Header()
	for _, hdr := range resp.Headers {
		h.Add(hdr.Name, hdr.Value)
	}
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body)
}
