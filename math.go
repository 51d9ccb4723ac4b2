package lunar

import (
	"math"

	"github.com/gonum/floats"
)

const (
	deg2rad  = math.Pi / 180
	invφgold = 0.6180339887498949 // 1/φ, golden section ratio
	goldenε  = 1e-11              // bracket collapse guard
)

// Deg2rad converts degrees to radians.
func Deg2rad(a float64) float64 {
	return a * deg2rad
}

// Rad2deg converts radians to degrees.
func Rad2deg(a float64) float64 {
	return a / deg2rad
}

// clamp bounds a to [-1, 1]. Accumulated floating point error routinely
// pushes mathematically unit-magnitude arcsine/arccosine arguments a few ulp
// out of range, and math.Asin would then return NaN.
func clamp(a float64) float64 {
	if a > 1 {
		return 1
	}
	if a < -1 {
		return -1
	}
	return a
}

// sign returns the sign of a given number.
func sign(v float64) float64 {
	if floats.EqualWithinAbs(v, 0, 1e-12) {
		return 1
	}
	return v / math.Abs(v)
}

// goldenSection minimizes f over the bracket [lo, hi] and returns the best
// abscissa found. The stopping criterion matches the classic golden search:
// the bracket has shrunk below tol relative to the probe points.
func goldenSection(f func(float64) float64, lo, hi, tol float64) float64 {
	a, b := lo, hi
	c := b - invφgold*(b-a)
	d := a + invφgold*(b-a)
	fc := f(c)
	fd := f(d)
	for iter := 0; math.Abs(b-a) > tol*(math.Abs(c)+math.Abs(d))+goldenε; iter++ {
		if iter > 100 {
			break
		}
		if fc < fd {
			b, d, fd = d, c, fc
			c = b - invφgold*(b-a)
			fc = f(c)
		} else {
			a, c, fc = c, d, fd
			d = a + invφgold*(b-a)
			fd = f(d)
		}
	}
	if fc < fd {
		return c
	}
	return d
}
