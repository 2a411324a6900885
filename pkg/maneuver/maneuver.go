// Package maneuver implements the scripted arm sequences that take over
// posture control: self-righting, nose-down balance and ground-slap.
//
// Each machine is an owned struct stepped by the control loop. Machines
// never touch the bus directly; every position goes through Arms.
package maneuver

import "time"

// Pair is a left/right target in logical radians.
type Pair struct {
	Left  float64 `yaml:"left" json:"left"`
	Right float64 `yaml:"right" json:"right"`
}

// Lerp interpolates from a to b by u in [0, 1].
func Lerp(a, b Pair, u float64) Pair {
	return Pair{
		Left:  a.Left + (b.Left-a.Left)*u,
		Right: a.Right + (b.Right-a.Right)*u,
	}
}

// Arms is the posture side a maneuver drives.
type Arms interface {
	// CommandArms writes a target pair through readiness gating and
	// reports whether any side was written.
	CommandArms(now time.Time, left, right float64) bool

	// ResetPosture clears jog, zero offset, trim and the home preset.
	ResetPosture()

	// ResetHome clears jog, zero offset and the home preset, keeping trim.
	ResetHome()
}

func command(now time.Time, arms Arms, p Pair) bool {
	return arms.CommandArms(now, p.Left, p.Right)
}

func clamp(v, lim float64) float64 {
	if v > lim {
		return lim
	}
	if v < -lim {
		return -lim
	}
	return v
}
