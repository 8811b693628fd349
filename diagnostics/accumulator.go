package diagnostics

import (
	"math"

	"github.com/lixenwraith/synapse/particle"
)

// Integrals are the per-particle running Ψ integrals
type Integrals struct {
	Velocity float64
	X12      float64
}

// Accumulators tracks Integrals keyed by particle handle
// Entries are created on first encounter and live until Reset
type Accumulators struct {
	byID map[particle.ID]*Integrals
}

func NewAccumulators() *Accumulators {
	return &Accumulators{byID: make(map[particle.ID]*Integrals)}
}

// Update adds (|v|/vref) dt and |x12| dt for each particle; vRef of 0 falls back to 1
func (a *Accumulators) Update(particles []*particle.Particle, dt, vRef float64) {
	if vRef == 0 {
		vRef = 1
	}
	for _, p := range particles {
		in, ok := a.byID[p.ID]
		if !ok {
			in = &Integrals{}
			a.byID[p.ID] = in
		}
		in.Velocity += (p.Speed() / vRef) * dt
		in.X12 += math.Abs(p.X12) * dt
	}
}

// Get returns the integrals for id, zero when never seen
func (a *Accumulators) Get(id particle.ID) Integrals {
	if in, ok := a.byID[id]; ok {
		return *in
	}
	return Integrals{}
}

// Len returns the number of tracked particles
func (a *Accumulators) Len() int {
	return len(a.byID)
}

// Reset drops every entry
func (a *Accumulators) Reset() {
	clear(a.byID)
}
