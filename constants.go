package lunar

import "math"

// EarthMoonSystem holds the physical constants of the planar Earth--Moon
// model. All values are SI (m, m/s, rad/s, m^3/s^2).
type EarthMoonSystem struct {
	D      float64 // Earth--Moon distance
	Ω      float64 // angular rate of the Moon about the Earth
	V      float64 // mean orbital speed of the Moon, Ω·D
	RMoon  float64 // lunar radius
	μMoon  float64 // lunar gravitational parameter
	μEarth float64 // Earth gravitational parameter
	RSOI   float64 // radius of the lunar sphere of influence
}

// GMEarth returns the Earth gravitational parameter (which is unexported
// because μ is a lowercase letter).
func (s EarthMoonSystem) GMEarth() float64 { return s.μEarth }

// GMMoon returns the lunar gravitational parameter.
func (s EarthMoonSystem) GMMoon() float64 { return s.μMoon }

// EarthMoon is the system every transfer in this package is computed in.
// Values follow Gagg Filho & da Silva Fernandes (2016).
var EarthMoon = newEarthMoonSystem()

func newEarthMoonSystem() EarthMoonSystem {
	s := EarthMoonSystem{
		D:      384402000.0,
		Ω:      2.649e-6,
		RMoon:  1737000.0,
		μMoon:  4.9048695e12,
		μEarth: 3.986004418e14,
	}
	s.V = s.Ω * s.D
	s.RSOI = math.Pow(s.μMoon/s.μEarth, 0.4) * s.D
	return s
}
