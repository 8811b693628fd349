// Package config assembles run settings from defaults, an optional TOML/YAML/JSON
// file, SYNAPSE_* environment variables and command-line flags, in rising priority.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lixenwraith/synapse/audio"
	"github.com/lixenwraith/synapse/network"
	"github.com/lixenwraith/synapse/parameter"
)

// EnvPrefix namespaces environment overrides, e.g. SYNAPSE_SIM_SEED
const EnvPrefix = "SYNAPSE"

// ErrInvalid wraps every settings validation failure
var ErrInvalid = errors.New("invalid settings")

// RunConfig holds process-level options
type RunConfig struct {
	TickInterval     time.Duration `mapstructure:"tick_interval"`
	SnapshotInterval time.Duration `mapstructure:"snapshot_interval"`

	// Duration bounds a live run, 0 runs until interrupted
	Duration time.Duration `mapstructure:"duration"`

	// Record saves captured frames to this path on exit
	Record string `mapstructure:"record"`

	// Export writes the token stream with metadata to this path on exit
	Export string `mapstructure:"export"`

	Monitor  bool   `mapstructure:"monitor"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

// Settings is everything a synapse process is configured with
type Settings struct {
	Sim   parameter.Config `mapstructure:"sim"`
	Audio audio.Config     `mapstructure:"audio"`
	Feed  network.Config   `mapstructure:"feed"`
	Run   RunConfig        `mapstructure:"run"`

	// FeedRole is parsed into Feed.Role
	FeedRole string `mapstructure:"feed_role"`
}

// Default returns settings with every documented default applied
func Default() *Settings {
	return &Settings{
		Sim:   *parameter.DefaultConfig(),
		Audio: *audio.DefaultConfig(),
		Feed:  *network.DefaultConfig(),
		Run: RunConfig{
			TickInterval:     parameter.TickInterval,
			SnapshotInterval: parameter.SnapshotInterval,
			LogLevel:         logrus.InfoLevel.String(),
		},
		FeedRole: network.RoleNone.String(),
	}
}

// FlagKeys maps command-line flag names to settings keys
// Flags absent from a FlagSet are skipped
var FlagKeys = map[string]string{
	"seed":              "sim.seed",
	"gravity":           "sim.physics.grav_enabled",
	"dark-matter":       "sim.physics.dm_enabled",
	"blend-lorenz":      "sim.physics.blend_lorenz",
	"refresh-neighbors": "sim.physics.refresh_neighbors",
	"sensitivity":       "sim.audio.sensitivity",
	"dt":                "sim.timestep.dt",
	"adaptive-dt":       "sim.timestep.adaptive",
	"window":            "sim.stream.window",
	"input":             "audio.file",
	"frames":            "audio.max_frames",
	"keep-samples":      "audio.keep_samples",
	"realtime":          "audio.realtime",
	"feed":              "feed_role",
	"feed-addr":         "feed.address",
	"max-peers":         "feed.max_peers",
	"tick":              "run.tick_interval",
	"snapshot":          "run.snapshot_interval",
	"duration":          "run.duration",
	"record":            "run.record",
	"export":            "run.export",
	"monitor":           "run.monitor",
	"log-level":         "run.log_level",
	"log-file":          "run.log_file",
}

// Load resolves settings; path may be empty and flags may be nil
func Load(path string, flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()
	setDefaults(v, "", reflect.ValueOf(Default()).Elem())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if err := s.finish(); err != nil {
		return nil, err
	}
	return s, nil
}

// finish parses derived fields and validates every section
func (s *Settings) finish() error {
	role, err := network.ParseRole(s.FeedRole)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	s.Feed.Role = role

	if err := s.Sim.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := s.Audio.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := s.Feed.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := logrus.ParseLevel(s.Run.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if s.Run.SnapshotInterval < 0 || s.Run.Duration < 0 {
		return fmt.Errorf("%w: negative run interval", ErrInvalid)
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// setDefaults registers every leaf of val under its mapstructure key path
// Registering leaves individually lets AutomaticEnv see nested keys
func setDefaults(v *viper.Viper, prefix string, val reflect.Value) {
	t := val.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" || tag == "-" || !field.IsExported() {
			continue
		}
		key := prefix + tag
		fv := val.Field(i)
		if fv.Kind() == reflect.Struct && fv.Type() != durationType {
			setDefaults(v, key+".", fv)
			continue
		}
		v.SetDefault(key, fv.Interface())
	}
}
