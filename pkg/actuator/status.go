// Package actuator tracks the actuators present on the bus.
package actuator

import (
	"time"

	"github.com/teslashibe/go-jumpstick/pkg/robstride"
)

// Status is the last known state of one unit.
type Status struct {
	Address     uint8
	Position    float64 // rad
	Velocity    float64 // rad/s
	Torque      float64 // Nm
	Temperature float64 // °C
	Voltage     float64 // V, from the round-robin bus voltage poll
	Fault       robstride.Fault
	Mode        robstride.State
	Enabled     bool
	Stale       bool
	LastUpdate  time.Time

	// Parameter readbacks.
	RunMode      robstride.RunMode
	ProfileSpeed float64
	ProfileAccel float64
	SpeedLimit   float64
	CurrentLimit float64
}

// HasFault reports whether any fault bit is set.
func (s Status) HasFault() bool { return s.Fault != 0 }

// Role is the logical side an address is assigned to.
type Role string

// Roles.
const (
	RoleNone  Role = ""
	RoleLeft  Role = "L"
	RoleRight Role = "R"
)

// RoleSource supplies the persisted role assignment. Zero means
// unassigned.
type RoleSource interface {
	Roles() (left, right uint8)
}

// StaticRoles is a fixed role assignment.
type StaticRoles struct{ Left, Right uint8 }

// Roles returns the fixed assignment.
func (s StaticRoles) Roles() (uint8, uint8) { return s.Left, s.Right }
