package physics

import (
	"github.com/lixenwraith/synapse/parameter"
	"github.com/lixenwraith/synapse/particle"
	"github.com/lixenwraith/synapse/vmath"
)

// FlowParams are the Lorenz attractor coefficients for one tick
type FlowParams struct {
	Sigma, Rho, Beta float64
}

// ModulatedFlow scales σ and ρ by audio loudness times sensitivity
// ρ modulation is damped by LorenzRhoModulation so σ dominates
func ModulatedFlow(energy, sensitivity float64) FlowParams {
	drive := energy * sensitivity
	return FlowParams{
		Sigma: parameter.LorenzSigma * (1 + drive),
		Rho:   parameter.LorenzRho * (1 + drive*parameter.LorenzRhoModulation),
		Beta:  parameter.LorenzBeta,
	}
}

// LorenzDisplacement returns the explicit Euler displacement of pos under the flow
func LorenzDisplacement(pos vmath.Vec3F, fp FlowParams, dt float64) vmath.Vec3F {
	return vmath.Vec3F{
		X: fp.Sigma * (pos.Y - pos.X) * dt,
		Y: (pos.X*(fp.Rho-pos.Z) - pos.Y) * dt,
		Z: (pos.X*pos.Y - fp.Beta*pos.Z) * dt,
	}
}

// Integrate moves p one step and derives its velocity from the displacement
// With gravity on and an acceleration computed this tick, displacement is
// blend*chaotic + (1-blend)*a*dt; otherwise purely chaotic
// Position and velocity components are clamped independently; non-finite values reset to 0
func Integrate(p *particle.Particle, fp FlowParams, blend float64, gravity bool, dt float64) {
	d := LorenzDisplacement(p.Position, fp, dt)
	if gravity && p.HasAccel {
		d = vmath.V3FLerp(d, vmath.V3FScale(p.Accel, dt), blend)
	}

	p.Position = vmath.V3FClampEach(vmath.V3FAdd(p.Position, d), -parameter.PositionLimit, parameter.PositionLimit)

	if dt <= 0 {
		p.Velocity = vmath.Vec3F{}
		return
	}
	p.Velocity = vmath.V3FClampEach(vmath.V3FScale(d, 1/dt), -parameter.VelocityLimit, parameter.VelocityLimit)
}
