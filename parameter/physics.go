package parameter

// Physical and numeric scaling constants
const (
	// Phi is the golden ratio
	Phi = 1.618033988749895

	// Planck is used purely as a numeric scale for ν = Ec/h
	Planck = 6.62607015e-34

	// GravitationalConstant is the default G
	GravitationalConstant = 6.67430e-11
)

// Stability bounds
const (
	// GridCoordLimit bounds coordinates before spatial bucketing
	GridCoordLimit = 1e6

	// PositionLimit bounds each position component after integration
	PositionLimit = 1000.0

	// VelocityLimit bounds each velocity component after integration
	VelocityLimit = 1000.0

	// MinTimestep is the lower bound of the adaptive timestep
	MinTimestep = 1e-4

	// CourantFactor scales r_min/v_max in the adaptive timestep
	CourantFactor = 0.1

	// VirialTolerance is the distance from unity considered virialized
	VirialTolerance = 0.1

	// VirialPotentialFloor is the |U| below which the virial ratio falls back to 1
	VirialPotentialFloor = 1e-10

	// PsiAnomalyLimit flags Ψ terms larger than this magnitude
	PsiAnomalyLimit = 1e15
)

// Chaotic flow base parameters
const (
	LorenzSigma = 10.0
	LorenzRho   = 28.0
	LorenzBeta  = 2.667

	// LorenzRhoModulation keeps ρ modulation subordinate to σ
	LorenzRhoModulation = 0.3
)
