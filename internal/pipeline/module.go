// Package pipeline implements the ordered, priority-sorted chain of modules
// that process a request and its response.
package pipeline

import (
	"github.com/sbaralfred/gatewaycore/internal/message"
	"github.com/sbaralfred/gatewaycore/internal/reqcontext"
)

// Outcome is the result of a module's request handler.
type Outcome int

const (
	// Continue lets the next module in priority order run.
	Continue Outcome = iota
	// Produced means the module has written a final response; the pipeline
	// short-circuits the request side immediately.
	Produced
)

// Module is the capability set every piece of middleware implements: a
// stable name, the names it supplants when loaded, a request handler, and
// an optional response post-processor.
type Module interface {
	// Name returns the module's stable identifier.
	Name() string
	// Overrides lists module names this module removes from the pipeline
	// when it is added.
	Overrides() []string
	// Handle runs on the request side. Returning Produced sets resp as the
	// final response and stops further request-side processing.
	Handle(req *message.Request, ctx *reqcontext.Context, resp *message.Response) Outcome
	// OnResponse runs on the response side, in reverse order of the
	// request-side modules actually visited. It may mutate resp.
	OnResponse(req *message.Request, resp *message.Response, ctx *reqcontext.Context)
}

// Base provides a no-op OnResponse and empty Overrides so concrete modules
// only need to implement what they actually use.
type Base struct{}

func (Base) Overrides() []string { return nil }

func (Base) OnResponse(*message.Request, *message.Response, *reqcontext.Context) {}
