package middleware

import (
	"bytes"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/sbaralfred/gatewaycore/internal/message"
	"github.com/sbaralfred/gatewaycore/internal/pipeline"
	"github.com/sbaralfred/gatewaycore/internal/reqcontext"
	"github.com/sbaralfred/gatewaycore/internal/telemetry"
)

// MetricsExporterConfig holds the exporter's mount path.
type MetricsExporterConfig struct {
	Endpoint string
}

// DefaultMetricsExporterConfig returns the module's default option set.
func DefaultMetricsExporterConfig() MetricsExporterConfig {
	return MetricsExporterConfig{Endpoint: "/metrics"}
}

// MetricsExporter answers GET requests at Endpoint with a Prometheus
// text-format rendering of the telemetry snapshot, short-circuiting the
// rest of the pipeline.
type MetricsExporter struct {
	pipeline.Base
	cfg MetricsExporterConfig
	tel *telemetry.Telemetry
}

// NewMetricsExporter constructs a MetricsExporter reading from tel.
func NewMetricsExporter(cfg MetricsExporterConfig, tel *telemetry.Telemetry) *MetricsExporter {
	return &MetricsExporter{cfg: cfg, tel: tel}
}

func (m *MetricsExporter) Name() string { return "metrics_exporter" }

func (m *MetricsExporter) Handle(req *message.Request, ctx *reqcontext.Context, resp *message.Response) pipeline.Outcome {
	if req.Method != "GET" || req.Path != m.cfg.Endpoint {
		return pipeline.Continue
	}

	body := m.render()
	*resp = message.Response{
		Version:    "HTTP/1.1",
		StatusCode: 200,
		StatusText: "OK",
		Headers: []message.Header{
			{Name: "Content-Type", Value: string(expfmt.FmtText)},
			{Name: "Content-Length", Value: strconv.Itoa(len(body))},
		},
		Body: body,
	}
	return pipeline.Produced
}

// render snapshots telemetry into a throwaway Prometheus registry and
// encodes it in the standard text exposition format.
func (m *MetricsExporter) render() []byte {
	snap := m.tel.Snapshot()

	gauges := []struct {
		name  string
		help  string
		value float64
	}{
		{"gatewaycore_requests_total", "Total requests handled.", float64(snap.RequestsTotal)},
		{"gatewaycore_requests_ok", "Requests whose pipeline response had a status below 500.", float64(snap.RequestsOK)},
		{"gatewaycore_requests_err", "Requests answered with a 5xx pipeline response or rejected as malformed.", float64(snap.RequestsErr)},
		{"gatewaycore_bytes_in_total", "Bytes read from clients.", float64(snap.BytesIn)},
		{"gatewaycore_bytes_out_total", "Bytes written to clients.", float64(snap.BytesOut)},
		{"gatewaycore_connections_total", "Accepted connections.", float64(snap.ConnectionsTotal)},
		{"gatewaycore_pool_hits_total", "Backend connection pool hits.", float64(snap.PoolHits)},
		{"gatewaycore_pool_misses_total", "Backend connection pool misses.", float64(snap.PoolMisses)},
		{"gatewaycore_circuit_breaker_trips_total", "Circuit breaker open transitions.", float64(snap.CircuitBreakerTrips)},
		{"gatewaycore_circuit_breaker_rejects_total", "Requests rejected by an open circuit breaker.", float64(snap.CircuitRejects)},
		{"gatewaycore_latency_sum_ms", "Sum of observed request latencies, in milliseconds.", float64(snap.LatencySumMs)},
		{"gatewaycore_latency_max_ms", "Maximum observed request latency, in milliseconds.", float64(snap.LatencyMaxMs)},
	}

	reg := prometheus.NewRegistry()
	for _, g := range gauges {
		gv := prometheus.NewGauge(prometheus.GaugeOpts{Name: g.name, Help: g.help})
		gv.Set(g.value)
		reg.MustRegister(gv)
	}

	families, err := reg.Gather()
	if err != nil {
		return []byte("# error gathering metrics\n")
	}

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.FmtText)
	for _, mf := range families {
		_ = enc.Encode(mf)
	}
	return buf.Bytes()
}
