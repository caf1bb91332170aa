package middleware

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/sbaralfred/gatewaycore/internal/message"
	"github.com/sbaralfred/gatewaycore/internal/pipeline"
	"github.com/sbaralfred/gatewaycore/internal/reqcontext"
)

var requestIDCounter atomic.Uint64

// RequestID assigns a stable request identifier to every request, reusing
// an incoming X-Request-Id when present.
type RequestID struct {
	pipeline.Base
}

// NewRequestID constructs a RequestID module.
func NewRequestID() *RequestID { return &RequestID{} }

func (m *RequestID) Name() string { return "request_id" }

func (m *RequestID) Handle(req *message.Request, ctx *reqcontext.Context, resp *message.Response) pipeline.Outcome {
	id, has := req.Header("X-Request-Id")
	if !has || id == "" {
		id = synthesizeID()
		req.SetHeader("X-Request-Id", id)
	}
	ctx.Set(reqcontext.KeyRequestID, id)
	return pipeline.Continue
}

func (m *RequestID) OnResponse(req *message.Request, resp *message.Response, ctx *reqcontext.Context) {
	if id, ok := ctx.Get(reqcontext.KeyRequestID); ok {
		resp.SetHeader("X-Request-Id", id)
	}
}

func synthesizeID() string {
	micros := time.Now().UnixMicro()
	seq := requestIDCounter.Add(1)
	return strconv.FormatInt(micros, 16) + "-" + strconv.FormatUint(seq, 16)
}
