package physics

import (
	"math"

	"github.com/lixenwraith/synapse/parameter"
	"github.com/lixenwraith/synapse/particle"
	"github.com/lixenwraith/synapse/vmath"
)

// AdaptiveTimestep derives a CFL-like step from the fastest particle and the closest tracked pair
// dt = clamp(min(dtMax, 0.1 r_min / v_max), 1e-4, dtMax)
// r_min defaults to 1 without neighbor pairs and v_max to 1 when all particles are at rest
// Returns cfg.DT unchanged when adaptation is off or the population is empty
func AdaptiveTimestep(particles []*particle.Particle, coll *particle.Collection, cfg parameter.TimestepConfig) float64 {
	if !cfg.Adaptive || len(particles) == 0 {
		return cfg.DT
	}

	rMin := math.Inf(1)
	vMax := 0.0

	for _, p := range particles {
		if v := p.Speed(); v > vMax {
			vMax = v
		}
		for _, id := range p.Neighbors {
			q, ok := coll.Get(id)
			if !ok {
				continue
			}
			// NaN distances fail the comparison and are skipped
			if r := vmath.V3FDist(p.Position, q.Position); r < rMin {
				rMin = r
			}
		}
	}

	if math.IsInf(rMin, 1) {
		rMin = 1
	}
	if vMax == 0 || !vmath.IsFinite(vMax) {
		vMax = 1
	}

	dt := min(cfg.DTMax, parameter.CourantFactor*rMin/vMax)
	return vmath.Clamp(dt, parameter.MinTimestep, cfg.DTMax)
}
