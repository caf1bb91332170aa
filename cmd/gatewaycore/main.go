// Command gatewaycore is the gateway entry point: it wires configuration,
// logging, telemetry, the backend connection pool, every pipeline module,
// and the admin HTTP surface together, then runs the server until a
// shutdown signal arrives.
package main

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sbaralfred/gatewaycore/internal/admin"
	"github.com/sbaralfred/gatewaycore/internal/config"
	"github.com/sbaralfred/gatewaycore/internal/connpool"
	"github.com/sbaralfred/gatewaycore/internal/logging"
	"github.com/sbaralfred/gatewaycore/internal/middleware"
	"github.com/sbaralfred/gatewaycore/internal/pipeline"
	"github.com/sbaralfred/gatewaycore/internal/redisstore"
	"github.com/sbaralfred/gatewaycore/internal/script"
	"github.com/sbaralfred/gatewaycore/internal/server"
	"github.com/sbaralfred/gatewaycore/internal/telemetry"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)

	log.Info().Str("addr", cfg.ListenAddr).Msg("gatewaycore starting")

	moduleTables, err := config.LoadModuleTables(cfg.ModuleTOMLPath)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.ModuleTOMLPath).Msg("module config load failed — using defaults")
	}

	tel := telemetry.New()
	pool := connpool.New(tel.IncPoolHits, tel.IncPoolMisses)

	// store backs the rate limiter's token buckets and the cache's entries
	// with Redis when GATEWAYCORE_REDIS_ADDR is set and reachable; it stays
	// nil (and both modules fall back to purely in-memory state) otherwise.
	var store *redisstore.Store
	if addr := os.Getenv("GATEWAYCORE_REDIS_ADDR"); addr != "" {
		candidate := redisstore.New(addr, os.Getenv("GATEWAYCORE_REDIS_PASSWORD"), 0)
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := candidate.Ping(pingCtx); err != nil {
			log.Warn().Err(err).Msg("redis ping failed — continuing with in-memory state only")
			candidate.Close()
		} else {
			log.Info().Str("addr", addr).Msg("redis connected")
			store = candidate
		}
		cancel()
	}
	if store != nil {
		defer store.Close()
	}

	backends := moduleTables.StringSlice("load_balancer", "backends", []string{cfg.BackendAddr})

	health := middleware.NewActiveHealthProber(middleware.ActiveHealthConfig{
		Backends:        backends,
		IntervalSeconds: moduleTables.Int("active_health", "interval_seconds", 10),
		TimeoutSeconds:  moduleTables.Int("active_health", "timeout_seconds", 2),
	}, log)

	set := &middleware.Set{}

	// The scripting layer itself is an external collaborator out of CORE
	// scope (spec.md §1); the registry starts empty and ScriptHook is a
	// pure no-op until a deployment registers a named hook into it.
	scriptRegistry := script.NewRegistry()
	if moduleTables.Enabled("script_hook", true) {
		set.ScriptHook = middleware.NewScriptHook(middleware.ScriptHookConfig{
			HookName: moduleTables.String("script_hook", "hook_name", "pre_request"),
		}, scriptRegistry)
	}

	if moduleTables.Enabled("active_health", true) {
		set.ActiveHealth = health
	}
	if moduleTables.Enabled("request_id", true) {
		set.RequestID = middleware.NewRequestID()
	}
	if moduleTables.Enabled("rate_limiter", true) {
		set.RateLimiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  float64(moduleTables.Int("rate_limiter", "rate", 50)),
			Burst: float64(moduleTables.Int("rate_limiter", "burst", 100)),
		}, store)
	}
	if moduleTables.Enabled("circuit_breaker", true) {
		set.CircuitBreaker = middleware.NewCircuitBreaker(middleware.CircuitBreakerConfig{
			FailureThreshold: moduleTables.Int("circuit_breaker", "failure_threshold", 5),
			RecoverySeconds:  moduleTables.Int("circuit_breaker", "recovery_seconds", 30),
		}, tel)
	}
	if moduleTables.Enabled("health_check", true) {
		set.HealthCheck = middleware.NewHealthCheck(middleware.HealthCheckConfig{
			Endpoint: moduleTables.String("health_check", "endpoint", "/health"),
		})
	}
	if moduleTables.Enabled("metrics_exporter", true) {
		set.MetricsExporter = middleware.NewMetricsExporter(middleware.MetricsExporterConfig{
			Endpoint: moduleTables.String("metrics_exporter", "endpoint", "/metrics"),
		}, tel)
	}
	if moduleTables.Enabled("cache", true) {
		set.Cache = middleware.NewCache(middleware.CacheConfig{
			TTLSeconds: moduleTables.Int("cache", "ttl_seconds", 60),
		}, store)
	}
	if rules := moduleTables.StringSlice("url_rewriter", "rules", nil); len(rules) > 0 {
		set.URLRewriter = middleware.NewURLRewriter(middleware.URLRewriterConfig{Rules: parseRewriteRules(rules)})
	}
	if moduleTables.Enabled("compression", true) {
		set.Compression = middleware.NewCompression(middleware.CompressionConfig{
			MinSize: moduleTables.Int("compression", "min_size", 256),
		})
	}
	if moduleTables.Enabled("load_balancer", true) {
		set.LoadBalancer = middleware.NewLoadBalancer(middleware.LoadBalancerConfig{
			Backends:       backends,
			DefaultBackend: cfg.BackendAddr,
		}, health)
	}
	set.ProxyCore = middleware.NewProxyCore(middleware.ProxyCoreConfig{
		BackendTimeoutSeconds: cfg.BackendTimeoutSeconds,
		ConnectTimeoutSeconds: moduleTables.Int("proxy_core", "connect_timeout_seconds", 5),
		BufferSize:            cfg.BufferSize,
	}, pool)

	pl := pipeline.New()
	set.RegisterAll(pl)

	if moduleTables.Bool("raw_tcp", "enabled", false) {
		pl.RawTCP = middleware.NewRawTCPHandler(middleware.RawTCPConfig{
			UpstreamAddr:          moduleTables.String("raw_tcp", "upstream_addr", cfg.BackendAddr),
			ConnectTimeoutSeconds: moduleTables.Int("raw_tcp", "connect_timeout_seconds", 5),
		}, log)
	}

	if adminAddr := os.Getenv("GATEWAYCORE_ADMIN_ADDR"); adminAddr != "" {
		go func() {
			log.Info().Str("addr", adminAddr).Msg("admin surface listening")
			if err := http.ListenAndServe(adminAddr, admin.Router(tel, health)); err != nil {
				log.Warn().Err(err).Msg("admin surface stopped")
			}
		}()
	}

	srv := server.New(server.Config{
		ListenAddr:             cfg.ListenAddr,
		BufferSize:             cfg.BufferSize,
		ClientTimeoutSeconds:   cfg.ClientTimeoutSeconds,
		MaxConnections:         cfg.MaxConnections,
		WorkerThreads:          cfg.WorkerThreads,
		ShutdownTimeoutSeconds: cfg.ShutdownTimeoutSeconds,
		TLSCertPath:            cfg.TLSCertPath,
		TLSKeyPath:             cfg.TLSKeyPath,
		HTTP2Enabled:           cfg.HTTP2Enabled,
		HTTP3Enabled:           cfg.HTTP3Enabled,
		HTTP3Port:              cfg.HTTP3Port,
	}, pl, tel, log)

	code := srv.Run(context.Background())

	health.Close()
	if set.Cache != nil {
		set.Cache.Close()
	}

	if code == 0 {
		log.Info().Msg("gatewaycore stopped gracefully")
	} else {
		log.Error().Int("code", code).Msg("gatewaycore exited with error")
	}
	return code
}

// parseRewriteRules turns "prefix=replacement" TOML array entries into
// RewriteRule values, skipping malformed ones.
func parseRewriteRules(raw []string) []middleware.RewriteRule {
	rules := make([]middleware.RewriteRule, 0, len(raw))
	for _, r := range raw {
		parts := strings.SplitN(r, "=", 2)
		if len(parts) != 2 {
			continue
		}
		rules = append(rules, middleware.RewriteRule{Prefix: parts[0], Replacement: parts[1]})
	}
	return rules
}
