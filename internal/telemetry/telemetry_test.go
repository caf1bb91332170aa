package telemetry

import "testing"

func TestCountersAccumulate(t *testing.T) {
	tel := New()
	tel.IncRequestsTotal()
	tel.IncRequestsTotal()
	tel.IncRequestsOK()
	tel.AddBytesIn(128)
	tel.AddBytesOut(256)

	snap := tel.Snapshot()
	if snap.RequestsTotal != 2 {
		t.Fatalf("expected requests_total=2, got %d", snap.RequestsTotal)
	}
	if snap.RequestsOK != 1 {
		t.Fatalf("expected requests_ok=1, got %d", snap.RequestsOK)
	}
	if snap.BytesIn != 128 || snap.BytesOut != 256 {
		t.Fatalf("unexpected byte counters: %+v", snap)
	}
}

func TestObserveLatencyMsTracksMax(t *testing.T) {
	tel := New()
	tel.ObserveLatencyMs(50)
	tel.ObserveLatencyMs(200)
	tel.ObserveLatencyMs(10)

	snap := tel.Snapshot()
	if snap.LatencyMaxMs != 200 {
		t.Fatalf("expected max=200, got %d", snap.LatencyMaxMs)
	}
	if snap.LatencySumMs != 260 {
		t.Fatalf("expected sum=260, got %d", snap.LatencySumMs)
	}
}

func TestObserveLatencyMsClampsExtremeOutliers(t *testing.T) {
	tel := New()
	tel.ObserveLatencyMs(10_000_000)

	snap := tel.Snapshot()
	if snap.LatencyMaxMs != maxLatencyMs {
		t.Fatalf("expected clamp to %d, got %d", maxLatencyMs, snap.LatencyMaxMs)
	}
	if snap.LatencySumMs != maxLatencyMs {
		t.Fatalf("expected sum clamped to %d, got %d", maxLatencyMs, snap.LatencySumMs)
	}
}
