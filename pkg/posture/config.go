package posture

import (
	"math"
	"time"

	"github.com/teslashibe/go-jumpstick/pkg/maneuver"
)

// Preset is a named home posture and the pose the trigger blends toward.
type Preset struct {
	Name    string        `yaml:"name"`
	Home    maneuver.Pair `yaml:"home"`
	Trigger maneuver.Pair `yaml:"trigger"`
}

// DefaultPresets returns Front, Up, Back and Mixed.
func DefaultPresets() [4]Preset {
	up := maneuver.Pair{Left: math.Pi / 2, Right: math.Pi / 2}
	return [4]Preset{
		{Name: "FRONT", Home: maneuver.Pair{}, Trigger: up},
		{Name: "UP", Home: up, Trigger: maneuver.Pair{Left: math.Pi, Right: math.Pi}},
		{Name: "BACK", Home: maneuver.Pair{Left: math.Pi, Right: math.Pi}, Trigger: up},
		{Name: "MIXED", Home: maneuver.Pair{Left: 0, Right: math.Pi}, Trigger: up},
	}
}

// Config tunes stick shaping, readiness and the maneuvers.
type Config struct {
	TickInterval time.Duration `yaml:"tick_interval"`
	MaxDt        time.Duration `yaml:"max_dt"`

	MaxJogRate float64 `yaml:"max_jog_rate"` // rad/s at full stick
	MaxSpread  float64 `yaml:"max_spread"`   // rad between arms at full stick
	Expo       float64 `yaml:"expo"`         // 0 linear, 1 cubic

	StickDeadZone   int32 `yaml:"stick_dead_zone"`
	TriggerDeadZone int32 `yaml:"trigger_dead_zone"`

	TrimStep float64 `yaml:"trim_step"` // rad per d-pad press

	AutoZero  bool          `yaml:"auto_zero"`
	InitGrace time.Duration `yaml:"init_grace"`

	// OrientationTimeout is the oldest IMU reading nose-down keeps
	// balancing on.
	OrientationTimeout time.Duration `yaml:"orientation_timeout"`

	Presets [4]Preset `yaml:"presets"`

	SelfRight  maneuver.SelfRightConfig  `yaml:"self_right"`
	NoseDown   maneuver.NoseDownConfig   `yaml:"nose_down"`
	GroundSlap maneuver.GroundSlapConfig `yaml:"ground_slap"`
}

const defaultOrientationTimeout = 500 * time.Millisecond

// DefaultConfig returns the tuning used on the robot.
func DefaultConfig() Config {
	return Config{
		TickInterval:       20 * time.Millisecond,
		MaxDt:              100 * time.Millisecond,
		MaxJogRate:         3.0,
		MaxSpread:          math.Pi / 2,
		Expo:               0.7,
		StickDeadZone:      30,
		TriggerDeadZone:    20,
		TrimStep:           0.01,
		AutoZero:           true,
		InitGrace:          300 * time.Millisecond,
		OrientationTimeout: defaultOrientationTimeout,
		Presets:            DefaultPresets(),
		SelfRight:          maneuver.DefaultSelfRightConfig(),
		NoseDown:           maneuver.DefaultNoseDownConfig(),
		GroundSlap:         maneuver.DefaultGroundSlapConfig(),
	}
}
