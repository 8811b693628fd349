package physics

import (
	"math"

	"github.com/lixenwraith/synapse/vmath"
)

// NFWDensity returns ρ(r) = ρ0 / [(r/rs)(1 + r/rs)²]
// Returns 0 where the profile is undefined (r <= 0 or rs <= 0)
func NFWDensity(r, rho0, rs float64) float64 {
	if r <= 0 || rs <= 0 {
		return 0
	}
	x := r / rs
	return rho0 / (x * (1 + x) * (1 + x))
}

// DarkMatterPotential returns the proxy potential U = -G m ρ(r) (4/3)π r²
// This is a local-density proxy, not the integrated NFW potential; the virial
// ratio is calibrated against exactly this form
func DarkMatterPotential(pos vmath.Vec3F, mass, G, rho0, rs float64) float64 {
	r := vmath.V3FMag(pos)
	rho := NFWDensity(r, rho0, rs)
	if rho == 0 {
		return 0
	}
	return -G * mass * rho * 4 * math.Pi * r * r / 3
}
