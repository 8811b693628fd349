package physics

import (
	"math"

	"github.com/lixenwraith/synapse/particle"
	"github.com/lixenwraith/synapse/vmath"
)

// SoftenedGravityAccel returns the acceleration on p from its neighbors
// a = G * Σ m_j (x_j - x_i) / (r² + ε²)^(3/2)
// Accumulated one-directionally: each particle sums over its own neighbor set
func SoftenedGravityAccel(p *particle.Particle, neighbors []*particle.Particle, G, epsilon float64) vmath.Vec3F {
	eps2 := epsilon * epsilon
	var accel vmath.Vec3F

	for _, q := range neighbors {
		delta := vmath.V3FSub(q.Position, p.Position)
		rEff2 := vmath.V3FMagSq(delta) + eps2
		if rEff2 == 0 {
			continue
		}
		rEff := math.Sqrt(rEff2)

		// G*m_i*m_j/r_eff² along delta/r_eff, divided by m_i
		scale := G * q.Mass / (rEff2 * rEff)
		accel = vmath.V3FAdd(accel, vmath.V3FScale(delta, scale))
	}
	return accel
}

// SoftenedGravityPotential returns U_i = -G * Σ m_i m_j / sqrt(r² + ε²)
func SoftenedGravityPotential(p *particle.Particle, neighbors []*particle.Particle, G, epsilon float64) float64 {
	eps2 := epsilon * epsilon
	u := 0.0

	for _, q := range neighbors {
		rEff := math.Sqrt(vmath.V3FMagSq(vmath.V3FSub(q.Position, p.Position)) + eps2)
		if rEff == 0 {
			continue
		}
		u -= G * p.Mass * q.Mass / rEff
	}
	return u
}
