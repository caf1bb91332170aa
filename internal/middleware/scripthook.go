package middleware

import (
	"github.com/sbaralfred/gatewaycore/internal/message"
	"github.com/sbaralfred/gatewaycore/internal/pipeline"
	"github.com/sbaralfred/gatewaycore/internal/reqcontext"
	"github.com/sbaralfred/gatewaycore/internal/script"
)

// ScriptHookConfig names which registered hook this module invokes.
type ScriptHookConfig struct {
	HookName string
}

// DefaultScriptHookConfig returns the module's default option set.
func DefaultScriptHookConfig() ScriptHookConfig {
	return ScriptHookConfig{HookName: "pre_request"}
}

// ScriptHook is the pipeline's boundary to the optional external scripting
// layer (spec.md §1 names this collaborator but leaves its interface
// external to CORE). It delegates a single named hook lookup to
// internal/script's Registry; with no hook registered under that name it
// is a pure no-op, so the module is safe to install unconditionally.
type ScriptHook struct {
	pipeline.Base
	cfg ScriptHookConfig
	reg *script.Registry
}

// NewScriptHook constructs a ScriptHook over reg. reg may be nil, in which
// case Handle always continues.
func NewScriptHook(cfg ScriptHookConfig, reg *script.Registry) *ScriptHook {
	return &ScriptHook{cfg: cfg, reg: reg}
}

func (m *ScriptHook) Name() string { return "script_hook" }

func (m *ScriptHook) Handle(req *message.Request, ctx *reqcontext.Context, resp *message.Response) pipeline.Outcome {
	if m.reg == nil {
		return pipeline.Continue
	}
	produced, ok := m.reg.Invoke(m.cfg.HookName, req, ctx)
	if !ok || produced == nil {
		return pipeline.Continue
	}
	*resp = *produced
	return pipeline.Produced
}
