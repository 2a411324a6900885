// Package settings persists user configuration: actuator role
// assignment, the Y/B/A button actions and motor tuning.
package settings

import (
	"errors"
	"fmt"
)

// Sentinel errors for configuration validation.
var (
	ErrDuplicateRole  = errors.New("settings: left and right must be different actuators")
	ErrInvalidAddress = errors.New("settings: actuator address must be 0 (unassigned) or 1-127")
	ErrInvalidButton  = errors.New("settings: unknown button")
)

// ButtonMode selects what an assignable button does.
type ButtonMode uint8

// Button modes.
const (
	ModePosition    ButtonMode = 0 // hold to go to the configured pair
	ModeForward360  ButtonMode = 1 // press for a full forward turn
	ModeBackward360 ButtonMode = 2 // press for a full backward turn
	ModeGroundSlap  ButtonMode = 3 // press for the ground-slap animation
	modeCount       ButtonMode = 4
)

// ClampMode maps out-of-range values to ModePosition.
func ClampMode(m ButtonMode) ButtonMode {
	if m >= modeCount {
		return ModePosition
	}
	return m
}

func (m ButtonMode) String() string {
	switch m {
	case ModePosition:
		return "position"
	case ModeForward360:
		return "forward_360"
	case ModeBackward360:
		return "backward_360"
	case ModeGroundSlap:
		return "ground_slap"
	default:
		return "unknown"
	}
}

// Button indexes the assignable buttons.
type Button int

// Assignable buttons, in evaluation order.
const (
	ButtonY Button = iota
	ButtonB
	ButtonA
	buttonCount
)

func (b Button) String() string {
	switch b {
	case ButtonY:
		return "Y"
	case ButtonB:
		return "B"
	case ButtonA:
		return "A"
	default:
		return "?"
	}
}

// ButtonAction is the configuration of one assignable button.
type ButtonAction struct {
	Mode  ButtonMode `json:"mode"`
	Left  float64    `json:"left"`  // rad, used by ModePosition
	Right float64    `json:"right"` // rad, used by ModePosition
}

// Buttons holds the Y, B and A actions.
type Buttons [buttonCount]ButtonAction

// Tuning holds the motion profile pushed to every actuator.
type Tuning struct {
	SpeedLimit   float64 `json:"speedLimit"`   // rad/s
	Accel        float64 `json:"accel"`        // rad/s²
	CurrentLimit float64 `json:"currentLimit"` // A
}

// DefaultTuning returns the factory motion profile.
func DefaultTuning() Tuning {
	return Tuning{SpeedLimit: 25, Accel: 200, CurrentLimit: 23}
}

// Clamp limits every field to its safe range.
func (t Tuning) Clamp() Tuning {
	t.SpeedLimit = clamp(t.SpeedLimit, 0.1, 50)
	t.Accel = clamp(t.Accel, 1, 500)
	t.CurrentLimit = clamp(t.CurrentLimit, 0.5, 40)
	return t
}

// Roles is the persisted actuator assignment. Zero means unassigned.
type Roles struct {
	Left  uint8 `json:"leftId"`
	Right uint8 `json:"rightId"`
}

// Validate rejects out-of-range addresses and a shared assignment.
func (r Roles) Validate() error {
	for _, a := range []uint8{r.Left, r.Right} {
		if a > 127 {
			return fmt.Errorf("%w: got %d", ErrInvalidAddress, a)
		}
	}
	if r.Left != 0 && r.Left == r.Right {
		return fmt.Errorf("%w: both set to %d", ErrDuplicateRole, r.Left)
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
