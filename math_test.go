package lunar

import (
	"math"
	"testing"
)

func TestClamp(t *testing.T) {
	for _, v := range []float64{1 + 1e-16, 1 + 1e-9, 2} {
		if clamp(v) != 1 {
			t.Fatalf("clamp(%v) = %v", v, clamp(v))
		}
		if clamp(-v) != -1 {
			t.Fatalf("clamp(%v) = %v", -v, clamp(-v))
		}
	}
	if clamp(0.5) != 0.5 || clamp(-0.5) != -0.5 {
		t.Fatal("clamp should not touch in-domain values")
	}
	if math.IsNaN(math.Asin(clamp(1 + 1e-12))) {
		t.Fatal("clamped arcsine argument still out of domain")
	}
}

func TestDegRadConversions(t *testing.T) {
	if got := Deg2rad(180); got != math.Pi {
		t.Fatalf("Deg2rad(180) = %v", got)
	}
	if got := Rad2deg(math.Pi / 2); got != 90 {
		t.Fatalf("Rad2deg(π/2) = %v", got)
	}
	if got := Rad2deg(Deg2rad(-33.25)); math.Abs(got+33.25) > 1e-12 {
		t.Fatalf("round trip failed: %v", got)
	}
}

func TestSign(t *testing.T) {
	if sign(-3) != -1 || sign(3) != 1 {
		t.Fatal("sign of non-zero value incorrect")
	}
	if sign(0) != 1 {
		t.Fatal("sign of zero should be positive")
	}
}

func TestEarthMoonSystem(t *testing.T) {
	s := EarthMoon
	if math.Abs(s.V-s.Ω*s.D) > 1e-9 {
		t.Fatalf("mean lunar speed inconsistent: %f", s.V)
	}
	// The SOI radius is about 66,200 km.
	if s.RSOI < 6.5e7 || s.RSOI > 6.7e7 {
		t.Fatalf("SOI radius implausible: %f", s.RSOI)
	}
	if math.Abs(s.RSOI-math.Pow(s.μMoon/s.μEarth, 0.4)*s.D) > 1e-6 {
		t.Fatalf("SOI radius inconsistent: %f", s.RSOI)
	}
}
