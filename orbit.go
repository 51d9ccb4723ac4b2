package lunar

import (
	"errors"
	"fmt"
	"math"
)

const (
	eccentricityε = 1e-12 // below this the orbit is treated as circular
	distanceε     = 2e1   // 20 m
	velocityε     = 1e-6  // in m/s
)

// ErrUnreachableRadius is returned by Orbit.At when the requested radius is
// not attainable on the conic (insufficient energy or angular momentum).
var ErrUnreachableRadius = errors.New("requested radius is not reachable on this conic")

// AnomalyBranch selects the + or - branch of true anomaly when moving a
// state along its conic.
type AnomalyBranch uint8

const (
	// Ascending is the + branch (radius increasing, positive flight path angle).
	Ascending AnomalyBranch = iota + 1
	// Descending is the - branch.
	Descending
)

func (b AnomalyBranch) String() string {
	switch b {
	case Ascending:
		return "+ν"
	case Descending:
		return "-ν"
	default:
		panic("unknown anomaly branch")
	}
}

// Orbit defines a planar two-body orbit by its scalar state: radius, speed
// and flight path angle about a center of gravitational parameter μ. The
// derived elements are computed once at construction and the value is
// immutable from then on.
type Orbit struct {
	μ    float64 // gravitational parameter
	r    float64 // radius
	v    float64 // speed
	φ    float64 // flight path angle
	ξ    float64 // specific mechanical energy
	a    float64 // semimajor axis (negative on hyperbolae)
	e    float64 // eccentricity
	h    float64 // specific angular momentum
	cosν float64 // cosine of true anomaly
	cosE float64 // cosine of eccentric anomaly
}

// NewOrbit builds a planar orbit from (μ, r, v, φ). The cosines of the
// anomalies are clamped to [-1, 1]: at periapsis departure the ratio lands
// exactly on +1 in exact arithmetic and a few ulp above it in floating point.
func NewOrbit(μ, r, v, φ float64) Orbit {
	o := Orbit{μ: μ, r: r, v: v, φ: φ}
	o.ξ = v*v/2 - μ/r
	o.a = -μ / (2 * o.ξ)
	o.h = r * v * math.Cos(φ)
	p := o.h * o.h / μ
	o.e = math.Sqrt(math.Max(0, 1-p/o.a))
	if o.e < eccentricityε {
		// Circular: ν is undefined, pick periapsis.
		o.cosν = 1
		o.cosE = 1
		return o
	}
	o.cosν = clamp((p/r - 1) / o.e)
	o.cosE = clamp((o.e + o.cosν) / (1 + o.e*o.cosν))
	return o
}

// NewCircularOrbit builds the circular orbit of radius r about a center of
// gravitational parameter μ.
func NewCircularOrbit(μ, r float64) Orbit {
	return NewOrbit(μ, r, math.Sqrt(μ/r), 0)
}

// GM returns the gravitational parameter μ.
func (o Orbit) GM() float64 { return o.μ }

// R returns the radius.
func (o Orbit) R() float64 { return o.r }

// V returns the speed.
func (o Orbit) V() float64 { return o.v }

// Φfpa returns the flight path angle.
func (o Orbit) Φfpa() float64 { return o.φ }

// Energyξ returns the specific mechanical energy ξ.
func (o Orbit) Energyξ() float64 { return o.ξ }

// SemimajorAxis returns a, negative for hyperbolic orbits.
func (o Orbit) SemimajorAxis() float64 { return o.a }

// Eccentricity returns e.
func (o Orbit) Eccentricity() float64 { return o.e }

// HNorm returns the specific angular momentum.
func (o Orbit) HNorm() float64 { return o.h }

// CosNu returns the cosine of the true anomaly.
func (o Orbit) CosNu() float64 { return o.cosν }

// CosE returns the cosine of the eccentric anomaly.
func (o Orbit) CosE() float64 { return o.cosE }

// Apoapsis returns the apoapsis radius.
func (o Orbit) Apoapsis() float64 { return o.a * (1 + o.e) }

// Periapsis returns the periapsis radius.
func (o Orbit) Periapsis() float64 { return o.a * (1 - o.e) }

// At returns the state on the same conic at radius r1, selecting the
// requested branch of true anomaly. It returns ErrUnreachableRadius when r1
// is not attainable on this conic.
func (o Orbit) At(r1 float64, branch AnomalyBranch) (Orbit, error) {
	v1sq := o.v*o.v + 2*o.μ*(1/r1-1/o.r)
	if v1sq <= 0 || math.IsNaN(v1sq) {
		return Orbit{}, fmt.Errorf("%w: r=%.1f", ErrUnreachableRadius, r1)
	}
	v1 := math.Sqrt(v1sq)
	cosφ1 := o.h / (r1 * v1)
	if math.Abs(cosφ1) > 1 {
		if math.Abs(cosφ1)-1 > 1e-9 {
			// Inside the conic's periapsis or beyond its apoapsis.
			return Orbit{}, fmt.Errorf("%w: r=%.1f", ErrUnreachableRadius, r1)
		}
		cosφ1 = sign(cosφ1)
	}
	φ1 := math.Acos(cosφ1)
	if branch == Descending {
		φ1 = -φ1
	}
	return NewOrbit(o.μ, r1, v1, φ1), nil
}

// String implements the stringer interface.
func (o Orbit) String() string {
	return fmt.Sprintf("r=%.1f v=%.4f φ=%.6f a=%.1f e=%.6f", o.r, o.v, o.φ, o.a, o.e)
}
