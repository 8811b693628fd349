package physics

import (
	"math"

	"github.com/lixenwraith/synapse/parameter"
	"github.com/lixenwraith/synapse/particle"
	"github.com/lixenwraith/synapse/vmath"
)

// Similarity is the Gaussian kernel exp(-d² / 2σ²) over adaptive-state distance
// σ = 0 degenerates to an indicator on exact equality
func Similarity(x12a, x12b, sigma float64) float64 {
	d := x12a - x12b
	if sigma == 0 {
		if d == 0 {
			return 1
		}
		return 0
	}
	return math.Exp(-(d * d) / (2 * sigma * sigma))
}

// SynapticStrength returns Ω_i = Σ_j [G m_i m_j / ((r²+ε²) a0 m0)] * Similarity(x12_i, x12_j)
func SynapticStrength(p *particle.Particle, neighbors []*particle.Particle, phys parameter.PhysicsConfig, sigma float64) float64 {
	norm := phys.A0 * phys.M0
	if norm == 0 {
		return 0
	}
	eps2 := phys.Epsilon * phys.Epsilon
	omega := 0.0

	for _, q := range neighbors {
		rEff2 := vmath.V3FMagSq(vmath.V3FSub(q.Position, p.Position)) + eps2
		if rEff2 == 0 {
			continue
		}
		coupling := (phys.G * p.Mass * q.Mass) / (rEff2 * norm)
		omega += coupling * Similarity(p.X12, q.X12, sigma)
	}
	return omega
}

// StepAdaptive integrates dx12/dt = kΩ - γ x12 with explicit Euler, then saturates to [-1, 1]
func StepAdaptive(p *particle.Particle, dt, k, gamma float64) {
	p.X12 += (k*p.Omega - gamma*p.X12) * dt
	p.X12 = vmath.ClampFinite(p.X12, -1, 1)
}

// StepMemory integrates dm12/dt = α (x12 - m12), unclamped
func StepMemory(p *particle.Particle, dt, alpha float64) {
	p.M12 += alpha * (p.X12 - p.M12) * dt
}
