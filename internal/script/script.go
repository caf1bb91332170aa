// Package script is the boundary for the optional scripting layer named in
// spec.md §1 as an external collaborator outside CORE scope. It exposes
// just enough surface for a module to delegate a decision to a
// user-supplied function without the pipeline depending on any particular
// scripting engine.
package script

import (
	"github.com/sbaralfred/gatewaycore/internal/message"
	"github.com/sbaralfred/gatewaycore/internal/reqcontext"
)

// Hook is a user-supplied function invoked with the same mutable
// request/context a pipeline module would see. It returns a response to
// short-circuit, or nil to let the pipeline continue.
type Hook func(req *message.Request, ctx *reqcontext.Context) *message.Response

// Registry holds named hooks, looked up by a module at request time. It
// carries no scripting runtime itself; embedding one (Lua, JavaScript,
// WASM) is left to the deployment, matching the collaborator boundary
// spec.md §1 describes.
type Registry struct {
	hooks map[string]Hook
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{hooks: make(map[string]Hook)}
}

// Register adds a named hook, overwriting any previous hook with the same name.
func (r *Registry) Register(name string, h Hook) {
	r.hooks[name] = h
}

// Invoke runs the named hook if present, returning (nil, false) otherwise.
func (r *Registry) Invoke(name string, req *message.Request, ctx *reqcontext.Context) (*message.Response, bool) {
	h, ok := r.hooks[name]
	if !ok {
		return nil, false
	}
	return h(req, ctx), true
}
