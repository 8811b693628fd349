package parameter

import "time"

// Engine Loop & Timing
const (
	// TickInterval is the wall-clock interval between simulation ticks in live mode
	TickInterval = 50 * time.Millisecond

	// SnapshotInterval is the interval at which diagnostics are published to feed clients
	SnapshotInterval = 250 * time.Millisecond

	// MaxFramesPerTick bounds frame ingestion work per tick, excess frames wait in the queue
	MaxFramesPerTick = 10
)

// Frame Queue Limits
const (
	// FrameQueueSize is the fixed capacity of the inbound frame ring buffer
	FrameQueueSize = 256

	// FrameBufferMask is the bitmask for fast modulo operations (256 - 1)
	FrameBufferMask = 255
)

// Particle population
const (
	// MaxParticles caps audio-driven particle creation
	MaxParticles = 20

	// CreationCandidates is how many of the most salient frequency pairs may spawn particles per frame
	CreationCandidates = 5

	// CreationMagnitudeThreshold is the magnitude a frequency pair must exceed to spawn a particle
	CreationMagnitudeThreshold = 0.1

	// SpawnHalfExtent is the half-width of the cube new particles are jittered into
	SpawnHalfExtent = 5.0

	// AudioEnergyScale maps magnitude [0,1] to initial cosmic energy
	AudioEnergyScale = 50.0

	// AudioMassScale maps magnitude [0,1] to additional mass at creation
	AudioMassScale = 5.0
)

// Token summaries
const (
	// SummaryFrequencies is how many frequency pairs and harmonics an audio_frame token carries
	SummaryFrequencies = 5

	// DefaultSeed is used when no seed is configured
	DefaultSeed uint64 = 12345
)
