// Package robstride implements the Robstride actuator CAN protocol.
//
// Every frame uses a 29-bit extended identifier:
//
//	bits 28..24  communication type
//	bits 23..16  type-specific data
//	bits 15..8   host address (or the upper half of a 16-bit extra)
//	bits  7..0   destination address
//
// Frames sent by a unit carry the unit's address in bits 15..8 and the
// host address in bits 7..0.
package robstride

import (
	"math"
	"strings"
)

// CommType is the communication type carried in ID bits 28..24.
type CommType uint8

// Communication types.
const (
	CommGetID         CommType = 0x00
	CommMotionControl CommType = 0x01
	CommFeedback      CommType = 0x02
	CommEnable        CommType = 0x03
	CommStop          CommType = 0x04
	CommSetZero       CommType = 0x06
	CommSetID         CommType = 0x07
	CommGetParam      CommType = 0x11
	CommSetParam      CommType = 0x12
	CommFault         CommType = 0x15
	CommSave          CommType = 0x16
	CommBaud          CommType = 0x17
	CommReport        CommType = 0x18
	CommModeSet       CommType = 0x19
)

// Addressing.
const (
	HostID      uint8 = 0xFD
	BroadcastID uint8 = 0x7F
	MinAddress  uint8 = 1
	MaxAddress  uint8 = 127
)

// Param is a parameter table index.
type Param uint16

// Parameter indices.
const (
	ParamRunMode     Param = 0x7005
	ParamIqRef       Param = 0x7006
	ParamSpdRef      Param = 0x700A
	ParamLimitTorque Param = 0x700B
	ParamCurKp       Param = 0x7010
	ParamCurKi       Param = 0x7011
	ParamCurFiltGain Param = 0x7014
	ParamLocRef      Param = 0x7016
	ParamLimitSpd    Param = 0x7017
	ParamLimitCur    Param = 0x7018
	ParamMechPos     Param = 0x7019
	ParamIqf         Param = 0x701A
	ParamMechVel     Param = 0x701B
	ParamVBus        Param = 0x701C
	ParamRotation    Param = 0x701D
	ParamLocKp       Param = 0x701E
	ParamSpdKp       Param = 0x701F
	ParamSpdKi       Param = 0x7020
	ParamSpdFiltGain Param = 0x7021
	ParamPPSpeed     Param = 0x7024
	ParamPPAccel     Param = 0x7025
	ParamSpdAccel    Param = 0x7026
)

var paramNames = map[Param]string{
	ParamRunMode:     "run_mode",
	ParamIqRef:       "iq_ref",
	ParamSpdRef:      "spd_ref",
	ParamLimitTorque: "limit_torque",
	ParamCurKp:       "cur_kp",
	ParamCurKi:       "cur_ki",
	ParamCurFiltGain: "cur_filt_gain",
	ParamLocRef:      "loc_ref",
	ParamLimitSpd:    "limit_spd",
	ParamLimitCur:    "limit_cur",
	ParamMechPos:     "mech_pos",
	ParamIqf:         "iqf",
	ParamMechVel:     "mech_vel",
	ParamVBus:        "vbus",
	ParamRotation:    "rotation",
	ParamLocKp:       "loc_kp",
	ParamSpdKp:       "spd_kp",
	ParamSpdKi:       "spd_ki",
	ParamSpdFiltGain: "spd_filt_gain",
	ParamPPSpeed:     "pp_speed",
	ParamPPAccel:     "pp_accel",
	ParamSpdAccel:    "spd_accel",
}

func (p Param) String() string {
	if n, ok := paramNames[p]; ok {
		return n
	}
	return "param_unknown"
}

// RunMode is the value of ParamRunMode.
type RunMode uint8

// Run modes.
const (
	ModeOperation   RunMode = 0
	ModePositionPP  RunMode = 1 // interpolated (profile) position
	ModeSpeed       RunMode = 2
	ModeCurrent     RunMode = 3
	ModeZeroCal     RunMode = 4
	ModePositionCSP RunMode = 5
)

func (m RunMode) String() string {
	switch m {
	case ModeOperation:
		return "operation"
	case ModePositionPP:
		return "position_pp"
	case ModeSpeed:
		return "speed"
	case ModeCurrent:
		return "current"
	case ModeZeroCal:
		return "zero_cal"
	case ModePositionCSP:
		return "position_csp"
	default:
		return "unknown"
	}
}

// State is the lifecycle mode reported in feedback ID bits 23..22.
type State uint8

// Lifecycle modes.
const (
	StateReset       State = 0
	StateCalibration State = 1
	StateRunning     State = 2
)

func (s State) String() string {
	switch s {
	case StateReset:
		return "reset"
	case StateCalibration:
		return "calibrating"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Fault is the fault bit set reported in feedback ID bits 21..16.
type Fault uint8

// Fault bits.
const (
	FaultUndervoltage Fault = 0x01
	FaultOvercurrent  Fault = 0x02
	FaultOvertemp     Fault = 0x04
	FaultEncoderMag   Fault = 0x08
	FaultEncoderHall  Fault = 0x10
	FaultUncalibrated Fault = 0x20
)

var faultNames = []struct {
	bit  Fault
	name string
}{
	{FaultUndervoltage, "undervoltage"},
	{FaultOvercurrent, "overcurrent"},
	{FaultOvertemp, "overtemp"},
	{FaultEncoderMag, "encoder_mag"},
	{FaultEncoderHall, "encoder_hall"},
	{FaultUncalibrated, "uncalibrated"},
}

// Has reports whether any bit of f2 is set.
func (f Fault) Has(f2 Fault) bool { return f&f2 != 0 }

func (f Fault) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	for _, fn := range faultNames {
		if f.Has(fn.bit) {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, "|")
}

// MotorSpec holds the feedback scaling ranges of one actuator model.
type MotorSpec struct {
	Model         string
	PositionLimit float64 // rad
	VelocityLimit float64 // rad/s
	TorqueLimit   float64 // Nm
	KpMax         float64
	KdMax         float64
}

// Model specs.
var (
	RS00 = MotorSpec{"RS00", 4 * math.Pi, 50, 17, 500, 5}
	RS01 = MotorSpec{"RS01", 4 * math.Pi, 44, 17, 500, 5}
	RS02 = MotorSpec{"RS02", 4 * math.Pi, 44, 17, 500, 5}
	RS03 = MotorSpec{"RS03", 4 * math.Pi, 50, 60, 5000, 100}
	RS04 = MotorSpec{"RS04", 4 * math.Pi, 15, 120, 5000, 100}
	RS05 = MotorSpec{"RS05", 4 * math.Pi, 33, 17, 500, 5}
	RS06 = MotorSpec{"RS06", 4 * math.Pi, 20, 60, 5000, 100}

	DefaultSpec = RS02
)

var specs = map[string]MotorSpec{
	"RS00": RS00, "RS01": RS01, "RS02": RS02, "RS03": RS03,
	"RS04": RS04, "RS05": RS05, "RS06": RS06,
}

// SpecFor returns the spec for a model name such as "RS02".
func SpecFor(model string) (MotorSpec, bool) {
	s, ok := specs[strings.ToUpper(model)]
	return s, ok
}

// ValidAddress reports whether addr can belong to an actuator.
func ValidAddress(addr uint8) bool {
	return addr >= MinAddress && addr <= MaxAddress && addr != HostID
}
