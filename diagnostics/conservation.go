package diagnostics

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/lixenwraith/synapse/parameter"
	"github.com/lixenwraith/synapse/particle"
	"github.com/lixenwraith/synapse/physics"
	"github.com/lixenwraith/synapse/vmath"
)

// Conservation holds total energy, momentum, angular momentum and energy drift
type Conservation struct {
	ETotal float64    `json:"Etotal"`
	P      [3]float64 `json:"P"`
	L      [3]float64 `json:"L"`
	DriftE float64    `json:"driftE"` // |E - E0| / |E0|, 0 when E0 == 0
}

// ComputeConservation sums K + U, m v and m (r × v) over particles
func ComputeConservation(particles []*particle.Particle, e0 float64) Conservation {
	energies := make([]float64, len(particles))
	var p, l vmath.Vec3F

	for i, q := range particles {
		energies[i] = q.Kinetic() + q.UGrav + q.UDm
		p = vmath.V3FAdd(p, vmath.V3FScale(q.Velocity, q.Mass))
		l = vmath.V3FAdd(l, vmath.V3FScale(vmath.V3FCross(q.Position, q.Velocity), q.Mass))
	}

	c := Conservation{
		ETotal: floats.Sum(energies),
		P:      vmath.V3FArray(p),
		L:      vmath.V3FArray(l),
	}
	if e0 != 0 {
		c.DriftE = math.Abs((c.ETotal - e0) / e0)
	}
	return c
}

// Virial is 2K/|U| with an equilibrium flag
type Virial struct {
	Ratio float64 `json:"ratio"`
	OK    bool    `json:"ok"`
}

// ComputeVirial returns 2K/|U|, or 1 when |U| is below VirialPotentialFloor
func ComputeVirial(particles []*particle.Particle) Virial {
	k, u := 0.0, 0.0
	for _, q := range particles {
		k += q.Kinetic()
		u += q.UGrav + q.UDm
	}

	ratio := 1.0
	if math.Abs(u) >= parameter.VirialPotentialFloor {
		ratio = 2 * k / math.Abs(u)
	}
	return Virial{Ratio: ratio, OK: math.Abs(ratio-1) < parameter.VirialTolerance}
}

// Sync is the Kuramoto order parameter of the population
type Sync struct {
	R         float64 `json:"r"`
	MeanTheta float64 `json:"meanTheta"`
}

// ComputeSync returns the order parameter over particle phases
func ComputeSync(particles []*particle.Particle) Sync {
	thetas := make([]float64, len(particles))
	for i, q := range particles {
		thetas[i] = q.Theta
	}
	r, mean := physics.OrderParameter(thetas)
	return Sync{R: r, MeanTheta: mean}
}
