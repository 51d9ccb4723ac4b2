package lunar

import (
	"errors"
	"fmt"
	"math"
	"os"

	kitlog "github.com/go-kit/kit/log"
	"github.com/gonum/matrix/mat64"
)

var (
	// ErrRestorationUnderflow is returned when the damped Newton step on the
	// constraint collapses to no movement before meeting the tolerance.
	ErrRestorationUnderflow = errors.New("restoration step underflow before meeting constraint tolerance")
	// ErrStepUnderflow is returned when the line search step shrinks below
	// its floor without improving the cost.
	ErrStepUnderflow = errors.New("line search step underflow without cost improvement")
	// ErrIterationLimit is returned when an optimizer loop exhausts its
	// iteration budget before reaching its stopping criterion.
	ErrIterationLimit = errors.New("iteration budget exhausted")
)

const (
	// Line search bracket and floor for the step along -p.
	αBracketLo = 1e-14
	αBracketHi = 3e-5
	αFloor     = 1e-15
	αShrink    = 0.9
)

// SGRA is the sequential gradient-restoration optimizer of the transfer: it
// alternates a damped Newton restoration of the perilune constraint (on the
// departure speed alone) with a conjugate-gradient style descent of the
// augmented objective over both design variables.
type SGRA struct {
	Gtol                  float64 // constraint tolerance on |g|
	Ftol                  float64 // cost tolerance
	Qtol                  float64 // optimality residual tolerance
	AlphaTol              float64 // line search tolerance
	Beta0                 float64 // initial restoration damping factor
	MaxRestoreIterations  int
	MaxOptimizeIterations int
	Conjugate             bool // combine the previous search direction into the current one
	Verbose               bool // log each accepted restoration iteration

	// OnAccept, when set, is called with each state accepted by the
	// gradient phase, after its restoration. Callers use it to watch the
	// descent without owning the loop.
	OnAccept func(*PatchedConic)

	logger kitlog.Logger
}

// NewSGRA returns an optimizer configured from the optional LUNAR_CONFIG
// file, falling back to the documented defaults (cf. config.go).
func NewSGRA() *SGRA {
	c := lunarConfig()
	klog := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
	klog = kitlog.With(klog, "optim", "sgra")
	return &SGRA{
		Gtol:                  c.gtol,
		Ftol:                  c.ftol,
		Qtol:                  c.qtol,
		AlphaTol:              c.αtol,
		Beta0:                 c.β0,
		MaxRestoreIterations:  c.restoreIter,
		MaxOptimizeIterations: c.optimizeIter,
		Conjugate:             c.conjugate,
		Verbose:               c.verbose,
		logger:                klog,
	}
}

// SetLogger changes the destination of the verbose iteration logs.
func (opt *SGRA) SetLogger(l kitlog.Logger) { opt.logger = l }

// Restoration is the lazy, restartable sequence of accepted states produced
// while driving the perilune constraint to zero at fixed λ1. Use it like a
// bufio.Scanner: Next advances to the next accepted state, Solution returns
// the current one, Err reports how the sequence ended. A caller may simply
// stop calling Next; nothing is mutated besides the iterator itself.
type Restoration struct {
	opt  *SGRA
	sol  *PatchedConic
	β    float64
	iter int
	err  error
	done bool
}

// Restore returns the restoration sequence starting from sol, adjusting the
// departure speed alone by damped Newton steps δv0 = -β·g/(∂g/∂v0).
func (opt *SGRA) Restore(sol *PatchedConic) *Restoration {
	return &Restoration{opt: opt, sol: sol, β: opt.Beta0}
}

// Next advances to the next accepted state. It returns false once the
// constraint tolerance is met or the sequence failed; inspect Err to tell
// the two apart.
func (r *Restoration) Next() bool {
	if r.done || r.err != nil {
		return false
	}
	for {
		if math.Abs(r.sol.Deficit) <= r.opt.Gtol {
			r.done = true
			return false
		}
		if r.iter >= r.opt.MaxRestoreIterations {
			r.err = fmt.Errorf("restoration: %w (%d)", ErrIterationLimit, r.iter)
			return false
		}
		r.iter++
		δv0 := -r.β * r.sol.Deficit / r.sol.DgDx.At(1, 0)
		if r.sol.Depart.v+δv0 == r.sol.Depart.v {
			r.err = ErrRestorationUnderflow
			return false
		}
		trial, err := r.sol.Point().Perturb(0, δv0)
		if err == nil && math.Abs(trial.Deficit) < math.Abs(r.sol.Deficit) {
			r.sol = trial
			if r.opt.Verbose && r.opt.logger != nil {
				r.opt.logger.Log("iter", r.iter, "v0", trial.Depart.v, "g", trial.Deficit,
					"dgdv0", trial.DgDx.At(1, 0), "β", r.β, "δv0", δv0, "ε2", Rad2deg(trial.Eps2))
			}
			r.β = r.opt.Beta0
			return true
		}
		// Not an improvement (or the trial trajectory is invalid): split the
		// damping factor and retry from the same base state.
		r.β *= 0.5
	}
}

// Solution returns the most recently accepted state.
func (r *Restoration) Solution() *PatchedConic { return r.sol }

// Err returns the failure which ended the sequence, nil on convergence.
func (r *Restoration) Err() error { return r.err }

// Iterations returns the number of Newton attempts consumed so far.
func (r *Restoration) Iterations() int { return r.iter }

// restore drains a restoration sequence and returns its converged state.
func (opt *SGRA) restore(sol *PatchedConic) (*PatchedConic, error) {
	r := opt.Restore(sol)
	for r.Next() {
	}
	return r.Solution(), r.Err()
}

// ψ is the one dimensional line search objective: the augmented objective of
// the unrestored trial point at step α along -p, using the multiplier of the
// base solution. Invalid trajectories price as +Inf so the bracketed search
// steers away from them.
func (opt *SGRA) ψ(sol *PatchedConic, p *mat64.Vector, α float64) float64 {
	trial, err := sol.Point().Perturb(-α*p.At(0, 0), -α*p.At(1, 0))
	if err != nil {
		return math.Inf(1)
	}
	return trial.Cost + trial.Deficit*sol.Lam
}

// OptimizeΔv runs the full SGRA loop from sol: restore the constraint, then
// alternate golden-section line searches along the (conjugate) gradient of
// the augmented objective with re-restoration, accepting a step only if the
// cost improves. It returns the first-order optimal solution, or one of
// ErrRestorationUnderflow, ErrStepUnderflow and ErrIterationLimit.
func (opt *SGRA) OptimizeΔv(sol *PatchedConic) (*PatchedConic, error) {
	sol, err := opt.restore(sol)
	if err != nil {
		return nil, err
	}
	p := mat64.NewVector(2, nil)
	p.CloneVec(sol.DFDx)
	qPrev := sol.QOpt

	for jj := 0; jj < opt.MaxOptimizeIterations; jj++ {
		if sol.QOpt <= opt.Qtol {
			return sol, nil
		}
		α := goldenSection(func(α float64) float64 { return opt.ψ(sol, p, α) },
			αBracketLo, αBracketHi, opt.AlphaTol)
		accepted := false
		for ii := 0; ii < opt.MaxRestoreIterations; ii++ {
			δλ1 := -α * p.At(0, 0)
			δv0 := -α * p.At(1, 0)
			if sol.Λ1+δλ1 == sol.Λ1 && sol.Depart.v+δv0 == sol.Depart.v {
				return nil, ErrStepUnderflow
			}
			trial, perr := sol.Point().Perturb(δλ1, δv0)
			if perr == nil {
				restored, rerr := opt.restore(trial)
				if rerr != nil && errors.Is(rerr, ErrRestorationUnderflow) {
					return nil, rerr
				}
				if rerr == nil && restored.Cost < sol.Cost-opt.Ftol {
					// Accept: update the conjugate direction from the ratio
					// of consecutive optimality residuals.
					γ := 0.0
					if opt.Conjugate {
						γ = restored.QOpt / qPrev
					}
					pNew := mat64.NewVector(2, nil)
					pNew.AddScaledVec(restored.DFDx, γ, p)
					p = pNew
					qPrev = restored.QOpt
					sol = restored
					accepted = true
					if opt.OnAccept != nil {
						opt.OnAccept(sol)
					}
					if opt.Verbose && opt.logger != nil {
						opt.logger.Log("outer", jj, "λ1", sol.Λ1, "v0", sol.Depart.v,
							"f", sol.Cost, "Q", sol.QOpt, "α", α)
					}
					break
				}
			}
			α *= αShrink
			if α <= αFloor {
				return nil, ErrStepUnderflow
			}
		}
		if !accepted {
			return nil, fmt.Errorf("optimization step: %w", ErrIterationLimit)
		}
	}
	if sol.QOpt <= opt.Qtol {
		return sol, nil
	}
	return nil, fmt.Errorf("optimization: %w", ErrIterationLimit)
}
