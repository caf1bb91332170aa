package middleware

import (
	"bytes"
	"compress/gzip"
	"strconv"
	"strings"

	"github.com/sbaralfred/gatewaycore/internal/message"
	"github.com/sbaralfred/gatewaycore/internal/pipeline"
	"github.com/sbaralfred/gatewaycore/internal/reqcontext"
)

// CompressionConfig holds the response compressor's threshold.
type CompressionConfig struct {
	MinSize int
}

// DefaultCompressionConfig returns the module's default option set.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{MinSize: 256}
}

// Compression marks gzip acceptance on the request side and gzip-encodes
// eligible textual responses on the response side.
type Compression struct {
	pipeline.Base
	cfg CompressionConfig
}

// NewCompression constructs a Compression module from cfg.
func NewCompression(cfg CompressionConfig) *Compression {
	return &Compression{cfg: cfg}
}

func (m *Compression) Name() string { return "compression" }

func (m *Compression) Handle(req *message.Request, ctx *reqcontext.Context, resp *message.Response) pipeline.Outcome {
	if ae, ok := req.Header("Accept-Encoding"); ok && strings.Contains(ae, "gzip") {
		ctx.Set(reqcontext.KeyAcceptsGzip, "true")
	}
	return pipeline.Continue
}

func (m *Compression) OnResponse(req *message.Request, resp *message.Response, ctx *reqcontext.Context) {
	if ctx.GetOr(reqcontext.KeyAcceptsGzip, "") != "true" {
		return
	}
	if len(resp.Body) < m.cfg.MinSize {
		return
	}
	if _, has := resp.Header("Content-Encoding"); has {
		return
	}
	ct, _ := resp.Header("Content-Type")
	if !isTextual(ct) {
		return
	}

	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return
	}
	if _, err := w.Write(resp.Body); err != nil {
		w.Close()
		return
	}
	if err := w.Close(); err != nil {
		return
	}

	if buf.Len() >= len(resp.Body) {
		return
	}

	resp.Body = buf.Bytes()
	resp.SetHeader("Content-Encoding", "gzip")
	resp.SetHeader("Content-Length", strconv.Itoa(len(resp.Body)))
	resp.RemoveHeader("Transfer-Encoding")
}

func isTextual(contentType string) bool {
	ct := strings.ToLower(contentType)
	if strings.HasPrefix(ct, "text/") {
		return true
	}
	for _, marker := range []string{"json", "xml", "javascript", "svg", "css"} {
		if strings.Contains(ct, marker) {
			return true
		}
	}
	return false
}
