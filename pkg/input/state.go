// Package input defines the normalized gamepad state consumed by posture
// control.
package input

// Button bits of State.Buttons.
const (
	ButtonA      uint16 = 0x0001
	ButtonB      uint16 = 0x0002
	ButtonX      uint16 = 0x0004
	ButtonY      uint16 = 0x0008
	ButtonL1     uint16 = 0x0010
	ButtonR1     uint16 = 0x0020
	ButtonL2     uint16 = 0x0040
	ButtonR2     uint16 = 0x0080
	ButtonThumbL uint16 = 0x0100
	ButtonThumbR uint16 = 0x0200
)

// D-pad bits of State.Dpad.
const (
	DpadUp    uint8 = 0x01
	DpadDown  uint8 = 0x02
	DpadRight uint8 = 0x04
	DpadLeft  uint8 = 0x08
)

// Misc bits of State.Misc.
const (
	MiscSystem  uint8 = 0x01
	MiscSelect  uint8 = 0x02
	MiscStart   uint8 = 0x04
	MiscCapture uint8 = 0x08
)

// Axis and trigger ranges.
const (
	AxisMax    = 512
	TriggerMax = 1023
)

// State is one gamepad sample. Axes are signed in [-AxisMax, AxisMax]
// with up and left negative. Triggers run 0..TriggerMax.
type State struct {
	Connected bool

	LX, LY int32
	RX, RY int32
	L2, R2 int32

	Buttons uint16
	Dpad    uint8
	Misc    uint8
}

// Held reports whether every bit of b is held.
func (s State) Held(b uint16) bool { return s.Buttons&b == b }

// ClampAxis limits v to the axis range.
func ClampAxis(v int32) int32 {
	if v > AxisMax {
		return AxisMax
	}
	if v < -AxisMax {
		return -AxisMax
	}
	return v
}

// ClampTrigger limits v to the trigger range.
func ClampTrigger(v int32) int32 {
	if v > TriggerMax {
		return TriggerMax
	}
	if v < 0 {
		return 0
	}
	return v
}

// DeadZone zeroes axis values whose magnitude is below dz.
func DeadZone(v, dz int32) int32 {
	if v > -dz && v < dz {
		return 0
	}
	return v
}
