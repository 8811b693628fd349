package parameter

import (
	"errors"
	"fmt"
	"time"
)

// PhysicsConfig holds gravity, softening and neighbor settings
type PhysicsConfig struct {
	G           float64 `mapstructure:"g" json:"G"`
	A0          float64 `mapstructure:"a0" json:"a0"`
	M0          float64 `mapstructure:"m0" json:"m0"`
	ERef        float64 `mapstructure:"eref" json:"Eref"`
	TRef        float64 `mapstructure:"tref" json:"tref"`
	VRef        float64 `mapstructure:"vref" json:"vref"`
	Epsilon     float64 `mapstructure:"epsilon" json:"epsilon"`
	RCutoff     float64 `mapstructure:"rcutoff" json:"rCutoff"`
	BlendLorenz float64 `mapstructure:"blend_lorenz" json:"blendLorenz"`
	GravEnabled bool    `mapstructure:"grav_enabled" json:"gravEnabled"`
	DMEnabled   bool    `mapstructure:"dm_enabled" json:"dmEnabled"`

	// RefreshNeighbors recomputes every neighbor list each tick instead of only empty ones
	// Gravity runs always refresh, since the force pass replaces the lists
	RefreshNeighbors bool `mapstructure:"refresh_neighbors" json:"refreshNeighbors"`
}

// AdaptiveConfig holds x12/m12 dynamics constants
type AdaptiveConfig struct {
	K               float64 `mapstructure:"k" json:"k"`
	Gamma           float64 `mapstructure:"gamma" json:"gamma"`
	Alpha           float64 `mapstructure:"alpha" json:"alpha"`
	SigmaSimilarity float64 `mapstructure:"sigma_similarity" json:"sigmaSimilarity"`
}

// SyncConfig holds the Kuramoto coupling gain
type SyncConfig struct {
	KSync float64 `mapstructure:"ksync" json:"Ksync"`
}

// TimestepConfig holds the integration step and its adaptive bounds
type TimestepConfig struct {
	DT       float64 `mapstructure:"dt" json:"dt"`
	DTMax    float64 `mapstructure:"dt_max" json:"dtMax"`
	Adaptive bool    `mapstructure:"adaptive" json:"adaptive"`
}

// DarkMatterConfig holds NFW profile parameters
type DarkMatterConfig struct {
	Rho0 float64 `mapstructure:"rho0" json:"rho0"`
	Rs   float64 `mapstructure:"rs" json:"rs"`
}

// AudioConfig holds audio modulation settings
type AudioConfig struct {
	Sensitivity float64 `mapstructure:"sensitivity" json:"sensitivity"`
}

// StreamConfig holds token stream settings
type StreamConfig struct {
	Window time.Duration `mapstructure:"window" json:"window"`
}

// Config aggregates every externally settable simulation parameter
type Config struct {
	Seed       uint64           `mapstructure:"seed" json:"seed"`
	Physics    PhysicsConfig    `mapstructure:"physics" json:"physics"`
	Adaptive   AdaptiveConfig   `mapstructure:"adaptive" json:"adaptive"`
	Sync       SyncConfig       `mapstructure:"sync" json:"sync"`
	Timestep   TimestepConfig   `mapstructure:"timestep" json:"timestep"`
	DarkMatter DarkMatterConfig `mapstructure:"dark_matter" json:"darkMatter"`
	Audio      AudioConfig      `mapstructure:"audio" json:"audio"`
	Stream     StreamConfig     `mapstructure:"stream" json:"stream"`
}

func DefaultPhysicsConfig() PhysicsConfig {
	return PhysicsConfig{
		G:           GravitationalConstant,
		A0:          1.0,
		M0:          1.0,
		ERef:        1.0,
		TRef:        1.0,
		VRef:        1.0,
		Epsilon:     0.1,
		RCutoff:     10.0,
		BlendLorenz: 0.7,
	}
}

func DefaultAdaptiveConfig() AdaptiveConfig {
	return AdaptiveConfig{
		K:               0.5,
		Gamma:           0.2,
		Alpha:           0.3,
		SigmaSimilarity: 0.3,
	}
}

func DefaultSyncConfig() SyncConfig {
	return SyncConfig{KSync: 0.1}
}

func DefaultTimestepConfig() TimestepConfig {
	return TimestepConfig{
		DT:       0.005,
		DTMax:    0.01,
		Adaptive: true,
	}
}

func DefaultDarkMatterConfig() DarkMatterConfig {
	return DarkMatterConfig{Rho0: 1.0, Rs: 5.0}
}

// DefaultConfig returns the documented defaults for every aggregate
func DefaultConfig() *Config {
	return &Config{
		Seed:       DefaultSeed,
		Physics:    DefaultPhysicsConfig(),
		Adaptive:   DefaultAdaptiveConfig(),
		Sync:       DefaultSyncConfig(),
		Timestep:   DefaultTimestepConfig(),
		DarkMatter: DefaultDarkMatterConfig(),
		Audio:      AudioConfig{Sensitivity: 1.0},
		Stream:     StreamConfig{Window: 2 * time.Second},
	}
}

// ErrInvalidConfig is wrapped by every Validate failure
var ErrInvalidConfig = errors.New("invalid config")

// Validate rejects settings that break caller contracts of the tick
func (c *Config) Validate() error {
	switch {
	case c.Physics.RCutoff <= 0:
		return fmt.Errorf("%w: physics.rcutoff must be positive, got %g", ErrInvalidConfig, c.Physics.RCutoff)
	case c.Physics.Epsilon < 0:
		return fmt.Errorf("%w: physics.epsilon must be non-negative, got %g", ErrInvalidConfig, c.Physics.Epsilon)
	case c.Physics.BlendLorenz < 0 || c.Physics.BlendLorenz > 1:
		return fmt.Errorf("%w: physics.blend_lorenz must be in [0,1], got %g", ErrInvalidConfig, c.Physics.BlendLorenz)
	case c.Physics.ERef == 0:
		return fmt.Errorf("%w: physics.eref must be non-zero", ErrInvalidConfig)
	case c.Physics.VRef == 0:
		return fmt.Errorf("%w: physics.vref must be non-zero", ErrInvalidConfig)
	case c.Timestep.DTMax < MinTimestep:
		return fmt.Errorf("%w: timestep.dt_max must be >= %g, got %g", ErrInvalidConfig, MinTimestep, c.Timestep.DTMax)
	case c.Timestep.DT <= 0:
		return fmt.Errorf("%w: timestep.dt must be positive, got %g", ErrInvalidConfig, c.Timestep.DT)
	case c.Stream.Window <= 0:
		return fmt.Errorf("%w: stream.window must be positive, got %s", ErrInvalidConfig, c.Stream.Window)
	}
	return nil
}
