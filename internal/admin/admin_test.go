package admin

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sbaralfred/gatewaycore/internal/telemetry"
)

type stubHealth struct{ snap map[string]bool }

func (s stubHealth) Snapshot() map[string]bool { return s.snap }

func TestAdminStatsReturnsJSON(t *testing.T) {
	tel := telemetry.New()
	tel.IncRequestsTotal()
	r := Router(tel, stubHealth{snap: map[string]bool{"A:1": true}})

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	if ct := rw.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected application/json, got %q", ct)
	}
}

func TestAdminHealthReturnsMap(t *testing.T) {
	r := Router(telemetry.New(), stubHealth{snap: map[string]bool{"A:1": true, "B:2": false}})

	req := httptest.NewRequest(http.MethodGet, "/admin/health", nil)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
}
