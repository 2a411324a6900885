// Package debug provides global debug tracing flags
package debug

import "fmt"

// Enabled controls whether debug tracing is active
var Enabled bool

// Frames controls per-frame CAN tracing (very verbose at 1 Mbit/s)
// Use --debug-can flag to enable
var Frames bool

// Maneuvers controls per-tick maneuver state tracing
var Maneuvers bool

// Log prints a message only if debug mode is enabled
func Log(format string, args ...interface{}) {
	if Enabled || Frames {
		fmt.Printf(format, args...)
	}
}

// ManeuverLog prints a message only if maneuver tracing is enabled
func ManeuverLog(format string, args ...interface{}) {
	if Maneuvers {
		fmt.Printf(format, args...)
	}
}
