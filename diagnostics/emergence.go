package diagnostics

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/lixenwraith/synapse/particle"
	"github.com/lixenwraith/synapse/vmath"
)

const (
	// EmergenceThreshold is the score above which the population counts as emergent
	EmergenceThreshold = 0.5

	// EmergenceClusters is the number of x12 bands used for hierarchy detection
	EmergenceClusters = 5

	// Score weights for Φ, hierarchy depth and causal density
	weightPhi       = 0.4
	weightHierarchy = 0.3
	weightCausal    = 0.3
)

// Hierarchy describes the x12 clustering of the population
type Hierarchy struct {
	Levels       int     `json:"numLevels"`      // Non-empty clusters
	Depth        float64 `json:"hierarchyDepth"` // log2(levels + 1)
	LevelEntropy float64 `json:"levelEntropy"`   // Shannon entropy of cluster sizes, bits
	Sizes        []int   `json:"sizes,omitempty"`
}

// Emergence combines integrated information, hierarchy and causal density into one score
type Emergence struct {
	Phi           float64   `json:"phi"`
	Hierarchy     Hierarchy `json:"hierarchy"`
	CausalDensity float64   `json:"causalDensity"`
	Score         float64   `json:"emergenceScore"`
	Emergent      bool      `json:"isEmergent"`
}

// ComputeEmergence evaluates the population's (x12, m12, θ, Ω) state
// Non-finite state components count as 0
func ComputeEmergence(particles []*particle.Particle) Emergence {
	e := Emergence{
		Phi:           IntegratedInformation(particles),
		Hierarchy:     DetectHierarchy(particles, EmergenceClusters),
		CausalDensity: CausalDensity(particles),
	}
	e.Score = weightPhi*e.Phi + weightHierarchy*e.Hierarchy.Depth + weightCausal*e.CausalDensity
	e.Emergent = e.Score > EmergenceThreshold
	return e
}

// IntegratedInformation returns Φ = max(0, H(system) - mean H(part))
// H is the variance entropy ln(var + 1); fewer than two particles yield 0
func IntegratedInformation(particles []*particle.Particle) float64 {
	if len(particles) < 2 {
		return 0
	}

	system := make([]float64, 0, 4*len(particles))
	var parts float64
	for _, p := range particles {
		state := []float64{finite(p.X12), finite(p.M12), finite(p.Theta), finite(p.Omega)}
		system = append(system, state...)
		parts += varianceEntropy(state)
	}
	parts /= float64(len(particles))

	return max(0, varianceEntropy(system)-parts)
}

// DetectHierarchy assigns particles to k evenly spaced x12 centers and
// reports the non-empty clusters; ties go to the lower center
func DetectHierarchy(particles []*particle.Particle, k int) Hierarchy {
	if len(particles) == 0 || k < 1 {
		return Hierarchy{}
	}

	xs := make([]float64, len(particles))
	for i, p := range particles {
		xs[i] = finite(p.X12)
	}
	lo, hi := floats.Min(xs), floats.Max(xs)

	centers := make([]float64, k)
	for i := range centers {
		if k > 1 {
			centers[i] = lo + float64(i)/float64(k-1)*(hi-lo)
		} else {
			centers[i] = lo
		}
	}

	counts := make([]int, k)
	for _, x := range xs {
		nearest := 0
		for i, c := range centers {
			if math.Abs(x-c) < math.Abs(x-centers[nearest]) {
				nearest = i
			}
		}
		counts[nearest]++
	}
	sizes := slices.DeleteFunc(counts, func(n int) bool { return n == 0 })

	return Hierarchy{
		Levels:       len(sizes),
		Depth:        math.Log2(float64(len(sizes) + 1)),
		LevelEntropy: distributionEntropy(sizes, len(particles)),
		Sizes:        sizes,
	}
}

// CausalDensity returns mean Ω divided by the number of particle pairs
// Fewer than two particles yield 0
func CausalDensity(particles []*particle.Particle) float64 {
	n := len(particles)
	if n < 2 {
		return 0
	}
	var sum float64
	for _, p := range particles {
		sum += finite(p.Omega)
	}
	pairs := float64(n*(n-1)) / 2
	return sum / float64(n) / pairs
}

// varianceEntropy returns ln(population variance + 1)
func varianceEntropy(xs []float64) float64 {
	mean := floats.Sum(xs) / float64(len(xs))
	var ss float64
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return math.Log(ss/float64(len(xs)) + 1)
}

func distributionEntropy(sizes []int, total int) float64 {
	if total == 0 {
		return 0
	}
	var h float64
	for _, n := range sizes {
		p := float64(n) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}

func finite(f float64) float64 {
	if !vmath.IsFinite(f) {
		return 0
	}
	return f
}
