package geofence

import (
	"math"
	"testing"
)

func TestDistance_SamePoint(t *testing.T) {
	if d := Distance(-6.2, 106.8, -6.2, 106.8); d != 0 {
		t.Fatalf("expected 0 distance for identical points, got %v", d)
	}
}

func TestDistance_KnownPair(t *testing.T) {
	// Monas → Istiqlal, kira-kira 700m. Toleransi longgar: yang penting
	// orde besaran benar, bukan presisi geodesi.
	d := Distance(-6.1754, 106.8272, -6.1702, 106.8310)
	if d < 500 || d > 900 {
		t.Fatalf("unexpected distance %v m", d)
	}
}

func TestDistance_Monotonic(t *testing.T) {
	refLat, refLon := -6.2, 106.8
	prev := 0.0
	for i := 1; i <= 5; i++ {
		d := Distance(refLat, refLon, refLat, refLon+float64(i)*0.001)
		if d <= prev {
			t.Fatalf("distance not increasing: step %d gave %v after %v", i, d, prev)
		}
		prev = d
	}
}

func TestCheck_InsideOutside(t *testing.T) {
	ref := &Reference{Lat: -6.2, Lon: 106.8, RadiusM: 50}

	in := Check(ref, -6.2, 106.8)
	if in.Status != StatusInside || in.IsProxySuspected() {
		t.Fatalf("same point should be inside, got %+v", in)
	}
	if in.DistanceM != 0 {
		t.Fatalf("distance should be 0, got %v", in.DistanceM)
	}

	out := Check(ref, -6.21, 106.81)
	if out.Status != StatusOutside || !out.IsProxySuspected() {
		t.Fatalf("far point should be outside, got %+v", out)
	}
	if out.DistanceM <= 50 {
		t.Fatalf("outside distance should exceed radius, got %v", out.DistanceM)
	}
}

func TestCheck_NotConfigured(t *testing.T) {
	// Tanpa referensi: tidak boleh dievaluasi terhadap (0,0).
	o := Check(nil, -6.2, 106.8)
	if o.Status != StatusNotConfigured {
		t.Fatalf("expected not_configured, got %v", o.Status)
	}
	if o.IsProxySuspected() {
		t.Fatalf("not_configured must never be proxy-suspected")
	}
	if o.DistanceM != 0 {
		t.Fatalf("skipped evaluation should report 0 distance, got %v", o.DistanceM)
	}
	if d := Distance(0, 0, -6.2, 106.8); math.Abs(d) < 1000 {
		t.Fatalf("sanity: real coords are far from (0,0), got %v", d)
	}
}
