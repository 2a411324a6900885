// Package jumpstick wires the CAN bus, actuator registry, posture
// controller and telemetry into one robot process.
package jumpstick

import (
	"fmt"

	"github.com/teslashibe/go-jumpstick/internal/config"
	"github.com/teslashibe/go-jumpstick/pkg/robstride"
)

// MemorySettings as SettingsPath keeps settings in memory only.
const MemorySettings = ":memory:"

// Config holds all configuration for the jumpstick application.
// Flag parsing is done in cmd/jumpstick/main.go; this struct is data only.
type Config struct {
	// Debug enables verbose debug logging.
	Debug bool

	// DebugCAN traces every CAN frame.
	DebugCAN bool

	// DebugManeuvers traces maneuver state changes.
	DebugManeuvers bool

	// CAN adapter.
	CANPort    string
	CANBitrate int

	// Model selects the feedback scaling, e.g. "RS02".
	Model string

	// Sim runs against simulated actuators instead of a serial adapter.
	Sim      bool
	SimUnits []uint8

	// HTTPAddr is the telemetry and remote bridge listen address.
	HTTPAddr string

	// SettingsPath is the settings JSON file. Empty uses
	// ~/.jumpstick/settings.json.
	SettingsPath string

	// TuningPath is an optional YAML overlay for the control constants.
	TuningPath string

	// ScanOnStart runs a bus scan before the control loop starts.
	ScanOnStart bool
}

// DefaultConfig returns defaults for a 1 Mbit/s SLCAN adapter.
func DefaultConfig() Config {
	return Config{
		CANPort:     config.DefaultCANPort,
		CANBitrate:  1000000,
		Model:       robstride.DefaultSpec.Model,
		SimUnits:    []uint8{1, 2},
		HTTPAddr:    config.DefaultHTTPAddr,
		ScanOnStart: true,
	}
}

// LoadEnvConfig loads configuration values from environment variables.
// Call this after flag parsing to apply environment overrides.
func (c *Config) LoadEnvConfig() {
	c.CANPort = config.String("JUMPSTICK_CAN_PORT", c.CANPort)
	c.HTTPAddr = config.String("JUMPSTICK_HTTP_ADDR", c.HTTPAddr)
	c.SettingsPath = config.String("JUMPSTICK_SETTINGS", c.SettingsPath)
	c.TuningPath = config.String("JUMPSTICK_TUNING", c.TuningPath)
	c.Sim = config.Bool("JUMPSTICK_SIM", c.Sim)
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return &ConfigError{Field: "HTTPAddr", Message: "telemetry listen address is required"}
	}
	if _, ok := robstride.SpecFor(c.Model); !ok {
		return &ConfigError{Field: "Model", Message: fmt.Sprintf("unknown actuator model %q", c.Model)}
	}
	if c.Sim {
		if len(c.SimUnits) == 0 {
			return &ConfigError{Field: "SimUnits", Message: "simulation needs at least one unit"}
		}
		for _, a := range c.SimUnits {
			if !robstride.ValidAddress(a) {
				return &ConfigError{Field: "SimUnits", Message: fmt.Sprintf("invalid simulated unit address %d", a)}
			}
		}
		return nil
	}
	if c.CANPort == "" {
		return &ConfigError{Field: "CANPort", Message: "JUMPSTICK_CAN_PORT or --port is required"}
	}
	if c.CANBitrate <= 0 {
		return &ConfigError{Field: "CANBitrate", Message: "CAN bitrate must be positive"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
