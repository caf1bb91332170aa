// Package admin implements the embedded admin HTTP surface: a thin
// chi-routed boundary exposing telemetry and backend health as JSON,
// outside the core request pipeline.
package admin

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sbaralfred/gatewaycore/internal/telemetry"
)

// HealthSource reports the current per-backend health map.
type HealthSource interface {
	Snapshot() map[string]bool
}

// Router builds the admin mux: GET /admin/stats and GET /admin/health.
func Router(tel *telemetry.Telemetry, health HealthSource) http.Handler {
	r := chi.NewRouter()

	r.Get("/admin/stats", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tel.Snapshot())
	})

	r.Get("/admin/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if health == nil {
			json.NewEncoder(w).Encode(map[string]bool{})
			return
		}
		json.NewEncoder(w).Encode(health.Snapshot())
	})

	return r
}
