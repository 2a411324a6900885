// Package config provides configuration helpers for jumpstick commands.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-jumpstick/pkg/actuator"
	"github.com/teslashibe/go-jumpstick/pkg/input"
	"github.com/teslashibe/go-jumpstick/pkg/orientation"
	"github.com/teslashibe/go-jumpstick/pkg/posture"
)

// Default endpoints.
const (
	DefaultHTTPAddr = ":8080"
	DefaultCANPort  = "/dev/ttyACM0"
)

// String returns the env var key, or def if it is unset or empty.
func String(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Bool returns the env var key parsed as a bool, or def.
func Bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Duration returns the env var key parsed as a duration, or def.
func Duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// Tuning holds the control constants that can be overridden from a YAML
// file. Durations are written as Go duration strings ("20ms").
type Tuning struct {
	Registry     actuator.Config    `yaml:"registry"`
	Posture      posture.Config     `yaml:"posture"`
	Orientation  orientation.Config `yaml:"orientation"`
	InputTimeout time.Duration      `yaml:"input_timeout"`
}

// DefaultTuning returns the built-in constants.
func DefaultTuning() Tuning {
	return Tuning{
		Registry:     actuator.DefaultConfig(),
		Posture:      posture.DefaultConfig(),
		Orientation:  orientation.DefaultConfig(),
		InputTimeout: input.DefaultTimeout,
	}
}

// LoadTuning reads path and overlays it on DefaultTuning. Keys missing
// from the file keep their defaults. An empty path returns the defaults.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("failed to read tuning file: %w", err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("failed to parse tuning file %s: %w", path, err)
	}
	return t, nil
}
