package middleware

import (
	"strings"

	"github.com/sbaralfred/gatewaycore/internal/message"
	"github.com/sbaralfred/gatewaycore/internal/pipeline"
	"github.com/sbaralfred/gatewaycore/internal/reqcontext"
)

// RewriteRule is a single (prefix, replacement) pair.
type RewriteRule struct {
	Prefix      string
	Replacement string
}

// URLRewriterConfig holds the compiled rewrite rule list.
type URLRewriterConfig struct {
	Rules []RewriteRule
}

// DefaultURLRewriterConfig returns the module's default option set.
func DefaultURLRewriterConfig() URLRewriterConfig {
	return URLRewriterConfig{}
}

// URLRewriter replaces the first matching path prefix with its
// replacement, first-match-wins, at most one substitution per request.
type URLRewriter struct {
	pipeline.Base
	cfg URLRewriterConfig
}

// NewURLRewriter constructs a URLRewriter from cfg.
func NewURLRewriter(cfg URLRewriterConfig) *URLRewriter {
	return &URLRewriter{cfg: cfg}
}

func (m *URLRewriter) Name() string { return "url_rewriter" }

func (m *URLRewriter) Handle(req *message.Request, ctx *reqcontext.Context, resp *message.Response) pipeline.Outcome {
	for _, rule := range m.cfg.Rules {
		if strings.HasPrefix(req.Path, rule.Prefix) {
			req.Path = rule.Replacement + strings.TrimPrefix(req.Path, rule.Prefix)
			return pipeline.Continue
		}
	}
	return pipeline.Continue
}
