package lunar

import (
	"errors"
	"fmt"
	"math"

	"github.com/gonum/matrix/mat64"
)

var (
	// ErrNotElliptical is returned when the geocentric transit orbit is not
	// an ellipse, which breaks Kepler's equation for the time of flight.
	ErrNotElliptical = errors.New("expected elliptical transit orbit")
	// ErrInvalidTrajectory is returned by TransferPoint.Perturb when the
	// departure speed cannot reach the requested SOI intercept radius.
	ErrInvalidTrajectory = errors.New("invalid trajectory: SOI intercept not reachable")
)

// PatchedConic is a planar patched-conic approximation of an Earth--Moon
// transfer: a geocentric transit ellipse patched onto a selenocentric
// hyperbola at the sphere of influence. All fields are derived from the four
// constructor inputs and the value is never mutated; the optimizers advance
// by building fresh instances through TransferPoint.Perturb.
//
// The design vector of the optimization is x = (λ1, v0): the arrival phase
// angle and the departure speed.
type PatchedConic struct {
	Depart Orbit   // geocentric orbit at departure (post injection burn)
	Arrive Orbit   // geocentric orbit at SOI intercept
	Λ1     float64 // arrival phase angle (SOI intercept to Moon--Earth vector)
	Rf     float64 // target radius of the final lunar orbit

	TOF        float64 // time of flight from departure to SOI intercept [s]
	E0, E1     float64 // eccentric anomalies on the transit orbit
	Nu0, Nu1   float64 // true anomalies at departure and intercept
	Γ0, Γ1     float64 // phase angles at departure and arrival
	V2         float64 // selenocentric speed at SOI entry
	Φ2         float64 // selenocentric flight path angle
	Eps2       float64 // miss angle of the lunar hyperbola
	Q2         float64 // energy ratio r·v²/μ at SOI entry
	Ef, Af     float64 // eccentricity and semimajor axis of the lunar hyperbola
	Rpl, Vpl   float64 // perilune radius and speed
	Vf         float64 // circular speed at the target lunar radius
	ΔV1, ΔV2   float64 // injection and insertion burn magnitudes
	Cost       float64 // f = ΔV1 + ΔV2
	Deficit    float64 // g = (rf − r_perilune)/rf, the constraint driven to zero
	DfDx, DgDx *mat64.Vector // cost and constraint gradients wrt x = (λ1, v0)
	Lam        float64       // Lagrange multiplier estimate
	Faug       float64       // augmented objective F = f + λ·g
	DFDx       *mat64.Vector // augmented gradient dF/dx
	Pen        float64       // constraint penalty P = g²
	QOpt       float64       // optimality residual ‖dF/dx‖²

	sys EarthMoonSystem
}

// NewPatchedConic builds the transfer defined by the departure and SOI
// intercept orbits, the arrival phase angle λ1 and the target lunar radius
// rf. The geometry is evaluated in strict dependency order and every inverse
// trig argument is clamped to its mathematical domain first. Returns
// ErrNotElliptical when the transit orbit is not an ellipse.
func NewPatchedConic(depart, arrive Orbit, λ1, rf float64) (*PatchedConic, error) {
	if arrive.a <= 0 {
		return nil, fmt.Errorf("%w: a=%.1f", ErrNotElliptical, arrive.a)
	}
	sys := EarthMoon
	pc := &PatchedConic{Depart: depart, Arrive: arrive, Λ1: λ1, Rf: rf, sys: sys}

	// Eccentric anomalies and time of flight by Kepler's equation. The
	// eccentricity and semimajor axis are those of the intercept state.
	e := arrive.e
	pc.E0 = math.Acos(clamp(depart.cosE))
	pc.E1 = math.Acos(clamp(arrive.cosE))
	sE0 := math.Sin(pc.E0)
	sE1 := math.Sin(pc.E1)
	pc.TOF = math.Sqrt(math.Pow(arrive.a, 3)/arrive.μ) * ((pc.E1 - e*sE1) - (pc.E0 - e*sE0))

	// True anomalies, needed for the departure phase angle.
	pc.Nu0 = math.Acos(clamp(depart.cosν))
	pc.Nu1 = math.Acos(clamp(arrive.cosν))

	// Phase angle at arrival: γ1 is opposite λ1 in the arrival triangle.
	pc.Γ1 = math.Asin(clamp((sys.RSOI / arrive.r) * math.Sin(λ1)))

	// Phase angle at departure.
	pc.Γ0 = pc.Nu1 - pc.Nu0 - pc.Γ1 - sys.Ω*pc.TOF

	// Velocity relative to the Moon at SOI entry (law of cosines on the
	// velocity triangle formed with the Moon's orbital velocity).
	v1 := arrive.v
	φ1 := arrive.φ
	pc.V2 = math.Sqrt(v1*v1 + sys.V*sys.V - 2*v1*sys.V*math.Cos(φ1-pc.Γ1))

	// Miss angle of the hyperbolic trajectory.
	pc.Eps2 = math.Asin(clamp((sys.V*math.Cos(λ1) - v1*math.Cos(λ1+pc.Γ1-φ1)) / -pc.V2))

	// Selenocentric flight path angle.
	pc.Φ2 = math.Atan(-v1*math.Sin(φ1-pc.Γ1)/(sys.V-v1*math.Cos(φ1-pc.Γ1))) - λ1

	// Lunar hyperbola from the energy ratio Q, then the perilune state.
	pc.Q2 = sys.RSOI * pc.V2 * pc.V2 / sys.μMoon
	pc.Vf = math.Sqrt(sys.μMoon / rf)
	cφ2 := math.Cos(pc.Φ2)
	pc.Ef = math.Sqrt(1 + pc.Q2*(pc.Q2-2)*cφ2*cφ2)
	pc.Af = sys.RSOI / (2 - pc.Q2)
	pc.Rpl = pc.Af * (1 - pc.Ef)
	pc.Vpl = math.Sqrt(sys.μMoon * (1 + pc.Ef) / (pc.Af * (1 - pc.Ef)))

	pc.computeGradients()
	return pc, nil
}

// computeGradients evaluates the analytic first partials of every
// intermediate quantity wrt the design vector x = (λ1, v0), strictly in the
// dependency order of the reference equations (57--61, 63--69, 71, 73--80,
// 88--90 of Gagg Filho & da Silva Fernandes): each partial reuses earlier
// partials, not raw inputs, so reordering changes the numerical result.
func (pc *PatchedConic) computeGradients() {
	sys := pc.sys
	v0 := pc.Depart.v
	v1 := pc.Arrive.v
	v2 := pc.V2
	vM := sys.V
	Q2 := pc.Q2

	φ1 := pc.Arrive.φ
	γ1 := pc.Γ1
	φ2 := pc.Φ2
	cφ2 := math.Cos(φ2)
	sφ2 := math.Sin(φ2)
	sφ1 := math.Sin(φ1)
	tφ1 := math.Tan(φ1)
	cγ1 := math.Cos(γ1)
	cpmg1 := math.Cos(φ1 - γ1)
	spmg1 := math.Sin(φ1 - γ1)

	ef := pc.Ef
	af := pc.Af
	λ1 := pc.Λ1

	// Eq. 57--61: departure speed chain up to the selenocentric state.
	dv1dv0 := v0 / v1
	dφ1dv0 := (v0/v1 - v1/v0) / (v1 * tφ1)
	dv2dv0 := ((v1-vM*cpmg1)/v2)*dv1dv0 + ((v1*vM*spmg1)/v2)*dφ1dv0
	dφ2dv1 := -vM * spmg1 / (v2 * v2)
	dφ2dφ1 := (v1*v1 - v1*vM*cpmg1) / (v2 * v2)
	dφ2dv0 := dφ2dv1*dv1dv0 + dφ2dφ1*dφ1dv0

	// Eq. 63--65: lunar hyperbola and perilune radius wrt v0.
	dEfdv2 := 2 * Q2 * (Q2 - 1) * cφ2 * cφ2 / (ef * v2)
	dEfdφ2 := -Q2 * (Q2 - 2) * cφ2 * sφ2 / ef
	dEfdv0 := dEfdv2*dv2dv0 + dEfdφ2*dφ2dv0
	dAfdv0 := 2 * af * af * v2 * dv2dv0 / sys.μMoon
	dRpldv0 := (1-ef)*dAfdv0 - af*dEfdv0

	μ := pc.Depart.μ
	r0 := pc.Depart.r
	r1 := pc.Arrive.r
	r2 := sys.RSOI
	sλ1 := math.Sin(λ1)
	cλ1 := math.Cos(λ1)
	h := pc.Arrive.h

	pc.ΔV1 = math.Abs(v0 - math.Sqrt(μ/r0))
	pc.ΔV2 = pc.Vpl - pc.Vf

	// Eq. 66--68: phase angle chain. r1 varies with λ1 through the law of
	// cosines on the arrival triangle.
	dv1dλ1 := -μ * sys.D * r2 * sλ1 / (v1 * r1 * r1 * r1)
	dφ1dλ1 := h*sys.D*r2*sλ1/(v1*r1*r1*r1*sφ1) - h*sys.D*r2*μ*sλ1/(v1*v1*v1*r1*r1*r1*r1*sφ1)
	dγ1dλ1 := r2*cλ1/(r1*cγ1) - sys.D*(r2*sλ1)*(r2*sλ1)/(r1*r1*r1*cγ1)

	// Eq. 69, 71, 73.
	dv2dλ1 := ((v1-vM*cpmg1)*dv1dλ1 + (v1*vM*spmg1)*dφ1dλ1 - (v1*vM*spmg1)*dγ1dλ1) / v2
	dφ2dγ1 := (vM*v1*cpmg1 - v1*v1) / (v2 * v2)
	dφ2dλ1 := dφ2dφ1*dφ1dλ1 + dφ2dγ1*dγ1dλ1 + dφ2dv1*dv1dλ1 - 1

	// Eq. 74--80.
	dQ2dλ1 := 2 * r2 * v2 * dv2dλ1 / sys.μMoon
	dAfdQ2 := af / (2 - Q2)
	dEfdQ2 := (Q2 - 1) * cφ2 * cφ2 / ef
	dAfdλ1 := dAfdQ2 * dQ2dλ1
	dEfdλ1 := dEfdQ2*dQ2dλ1 + dEfdφ2*dφ2dλ1
	dRpldλ1 := (1-ef)*dAfdλ1 - af*dEfdλ1

	// Constraint gradient: g = (rf − r_perilune)/rf, dimensionless so that
	// the tolerance stays above the resolution of a v0 ulp. Eq. 88 carries
	// the opposite sign in the paper.
	dgdλ1 := -dRpldλ1 / pc.Rf
	dgdv0 := -dRpldv0 / pc.Rf

	// Eq. 89--90 (negated): perilune speed and the insertion burn.
	dVpldAf := 0.5 * math.Sqrt(sys.μMoon*(1+ef)/(af*af*af*(1-ef)))
	dVpldEf := -math.Sqrt(sys.μMoon / ((1 + ef) * af * (1 - ef) * (1 - ef) * (1 - ef)))
	dVpldλ1 := dVpldAf*dAfdλ1 + dVpldEf*dEfdλ1
	dVpldv0 := dVpldEf*dEfdv0 + dVpldAf*dAfdv0
	dfdλ1 := dVpldλ1
	dfdv0 := 1 + dVpldv0

	pc.Cost = pc.ΔV1 + pc.ΔV2
	pc.Deficit = (pc.Rf - pc.Rpl) / pc.Rf
	pc.DfDx = mat64.NewVector(2, []float64{dfdλ1, dfdv0})
	pc.DgDx = mat64.NewVector(2, []float64{dgdλ1, dgdv0})

	// Single-constraint SGRA quantities: the multiplier projects the cost
	// gradient onto the orthogonal complement of the constraint gradient.
	pc.Lam = -mat64.Dot(pc.DgDx, pc.DfDx) / mat64.Dot(pc.DgDx, pc.DgDx)
	pc.Pen = pc.Deficit * pc.Deficit
	pc.DFDx = mat64.NewVector(2, nil)
	pc.DFDx.AddScaledVec(pc.DfDx, pc.Lam, pc.DgDx)
	pc.Faug = pc.Cost + pc.Deficit*pc.Lam
	pc.QOpt = mat64.Dot(pc.DFDx, pc.DFDx)
}

// TransferPoint is the explicit base tuple defining a candidate transfer.
// It is the single input shape of the factory.
type TransferPoint struct {
	R0 float64 // departure radius
	V0 float64 // departure speed (post injection burn)
	Φ0 float64 // departure flight path angle
	Λ1 float64 // arrival phase angle
	Rf float64 // target radius of the final lunar orbit
}

// Point returns the base tuple of this solution.
func (pc *PatchedConic) Point() TransferPoint {
	return TransferPoint{R0: pc.Depart.r, V0: pc.Depart.v, Φ0: pc.Depart.φ, Λ1: pc.Λ1, Rf: pc.Rf}
}

// Perturb applies (δλ1, δv0) to the design variables and builds the
// resulting PatchedConic: the departure orbit is rebuilt at the perturbed
// speed, the geocentric SOI intercept radius follows from the law of cosines
// on the perturbed phase angle, and the intercept state is the + true
// anomaly branch of the departure conic at that radius. Returns
// ErrInvalidTrajectory when the departure energy cannot reach the intercept.
// This factory is the sole state advancement mechanism of the optimizers.
func (pt TransferPoint) Perturb(δλ1, δv0 float64) (*PatchedConic, error) {
	sys := EarthMoon
	v0 := pt.V0 + δv0
	λ1 := pt.Λ1 + δλ1
	r1 := math.Sqrt(sys.D*sys.D + sys.RSOI*sys.RSOI - 2*sys.D*sys.RSOI*math.Cos(λ1))
	depart := NewOrbit(sys.μEarth, pt.R0, v0, pt.Φ0)
	intercept, err := depart.At(r1, Ascending)
	if err != nil {
		return nil, fmt.Errorf("%w: v0=%.4f λ1=%.6f (%s)", ErrInvalidTrajectory, v0, λ1, err)
	}
	return NewPatchedConic(depart, intercept, λ1, pt.Rf)
}

// String implements the stringer interface.
func (pc *PatchedConic) String() string {
	return fmt.Sprintf("λ1=%.6f v0=%.4f rpl=%.1f f=%.4f g=%.4g", pc.Λ1, pc.Depart.v, pc.Rpl, pc.Cost, pc.Deficit)
}
