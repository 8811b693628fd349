package particle

import (
	"github.com/lixenwraith/synapse/vmath"
)

// ID is an opaque stable handle, valid for the particle's lifetime
type ID string

// Particle is a single simulated body with its adaptive, phase and energy state
type Particle struct {
	ID       ID
	ParentID ID // Empty when created directly or from audio

	Position vmath.Vec3F
	Velocity vmath.Vec3F
	Mass     float64

	Frequency float64 // Last assigned audio frequency (Hz)

	X12 float64 // Adaptive state, [-1, 1]
	M12 float64 // Memory, exponential smoothing of X12

	Ec    float64 // Cosmic energy: kinetic + UGrav + UDm
	UGrav float64
	UDm   float64
	Nu    float64 // Natural frequency ν = Ec/h
	Theta float64 // Phase, [0, 2π)
	Omega float64 // Synaptic strength

	// Entropy is carried for export but no update rule evolves it
	Entropy float64

	// Neighbors holds handles into the owning Collection, order matches the spatial query
	Neighbors []ID

	// Accel is valid only when HasAccel is set during the current tick
	Accel    vmath.Vec3F
	HasAccel bool

	Projection vmath.Projection
}

// New creates a particle at pos with unit mass and the given initial phase
func New(id ID, pos vmath.Vec3F, frequency, theta float64) *Particle {
	p := &Particle{
		ID:        id,
		Position:  pos,
		Mass:      1.0,
		Frequency: frequency,
		Theta:     vmath.WrapAngle(theta),
	}
	p.RefreshProjection()
	return p
}

// Speed returns |v|
func (p *Particle) Speed() float64 {
	return vmath.V3FMag(p.Velocity)
}

// Kinetic returns ½mv²
func (p *Particle) Kinetic() float64 {
	return 0.5 * p.Mass * vmath.V3FMagSq(p.Velocity)
}

// RefreshEnergy recomputes Ec from current kinematics and potentials
func (p *Particle) RefreshEnergy() {
	p.Ec = p.Kinetic() + p.UGrav + p.UDm
}

// RefreshProjection updates the display projection from position and velocity
func (p *Particle) RefreshProjection() {
	p.Projection = vmath.Project(p.Position, p.Velocity)
}
