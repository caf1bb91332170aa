package middleware

import (
	"github.com/sbaralfred/gatewaycore/internal/message"
	"github.com/sbaralfred/gatewaycore/internal/pipeline"
	"github.com/sbaralfred/gatewaycore/internal/reqcontext"
)

// HealthCheckConfig holds the health endpoint's path.
type HealthCheckConfig struct {
	Endpoint string
}

// DefaultHealthCheckConfig returns the module's default option set.
func DefaultHealthCheckConfig() HealthCheckConfig {
	return HealthCheckConfig{Endpoint: "/health"}
}

// HealthCheck answers a fixed liveness path with a JSON 200, short-circuiting
// the rest of the pipeline.
type HealthCheck struct {
	pipeline.Base
	cfg HealthCheckConfig
}

// NewHealthCheck constructs a HealthCheck module from cfg.
func NewHealthCheck(cfg HealthCheckConfig) *HealthCheck {
	return &HealthCheck{cfg: cfg}
}

func (m *HealthCheck) Name() string { return "health_check" }

func (m *HealthCheck) Handle(req *message.Request, ctx *reqcontext.Context, resp *message.Response) pipeline.Outcome {
	if req.Path != m.cfg.Endpoint {
		return pipeline.Continue
	}
	*resp = *message.JSON(200, "OK", `{"status":"ok"}`)
	return pipeline.Produced
}
