package physics

import (
	"math"

	"github.com/lixenwraith/synapse/particle"
	"github.com/lixenwraith/synapse/vmath"
)

// NaturalFrequency returns ν = Ec / h, or 0 when h <= 0
func NaturalFrequency(ec, h float64) float64 {
	if h <= 0 {
		return 0
	}
	return ec / h
}

// StepPhase advances θ by the Kuramoto rule
// dθ/dt = ν + (K / deg) Σ_j sin(θ_j - θ_i), deg = max(1, |neighbors|)
// Updates p.Nu from p.Ec before stepping; θ is wrapped into [0, 2π)
func StepPhase(p *particle.Particle, neighbors []*particle.Particle, kSync, h, dt float64) {
	p.Nu = NaturalFrequency(p.Ec, h)

	coupling := 0.0
	for _, q := range neighbors {
		coupling += math.Sin(q.Theta - p.Theta)
	}
	degree := float64(max(1, len(neighbors)))

	p.Theta = vmath.WrapAngle(p.Theta + (p.Nu+(kSync/degree)*coupling)*dt)
}

// OrderParameter returns the Kuramoto order parameter r = |Σ e^{iθ}| / N and the mean phase
// Both are 0 for an empty population
func OrderParameter(thetas []float64) (r, mean float64) {
	if len(thetas) == 0 {
		return 0, 0
	}
	sumCos, sumSin := 0.0, 0.0
	for _, th := range thetas {
		sumCos += math.Cos(th)
		sumSin += math.Sin(th)
	}
	r = math.Hypot(sumCos, sumSin) / float64(len(thetas))
	// Rounding can push r a hair past 1 when all phases agree
	r = vmath.Clamp(r, 0, 1)
	return r, math.Atan2(sumSin, sumCos)
}
