package robstride

import (
	"encoding/binary"
	"math"

	"github.com/teslashibe/go-jumpstick/pkg/can"
)

// BuildID builds a host-to-unit identifier.
func BuildID(comm CommType, host, dest uint8) uint32 {
	return uint32(comm&0x1F)<<24 | uint32(host)<<8 | uint32(dest)
}

// BuildMotionID builds a motion-control identifier, which carries a
// 16-bit extra value in bits 23..8 instead of the host address.
func BuildMotionID(extra uint16, dest uint8) uint32 {
	return uint32(CommMotionControl)<<24 | uint32(extra)<<8 | uint32(dest)
}

// Header is a decoded identifier.
type Header struct {
	Comm   CommType
	Source uint8 // bits 15..8
	Dest   uint8 // bits 7..0
	Data   uint8 // bits 23..16
}

// ParseID decodes a unit-to-host identifier.
func ParseID(id uint32) Header {
	return Header{
		Comm:   CommType((id >> 24) & 0x1F),
		Data:   uint8(id >> 16),
		Source: uint8(id >> 8),
		Dest:   uint8(id),
	}
}

// Fault returns the fault bits of a feedback identifier.
func (h Header) Fault() Fault { return Fault(h.Data & 0x3F) }

// State returns the lifecycle mode of a feedback identifier.
func (h Header) State() State { return State((h.Data >> 6) & 0x03) }

// ParamPayload builds a parameter request payload with the index in
// bytes 0..1, little-endian.
func ParamPayload(p Param) [8]byte {
	var d [8]byte
	binary.LittleEndian.PutUint16(d[0:2], uint16(p))
	return d
}

// FloatParamPayload builds a write payload with a little-endian
// IEEE-754 value in bytes 4..7.
func FloatParamPayload(p Param, v float32) [8]byte {
	d := ParamPayload(p)
	binary.LittleEndian.PutUint32(d[4:8], math.Float32bits(v))
	return d
}

// ByteParamPayload builds a write payload with the value in byte 4.
func ByteParamPayload(p Param, v uint8) [8]byte {
	d := ParamPayload(p)
	d[4] = v
	return d
}

// ParamReading is a decoded parameter response.
type ParamReading struct {
	Addr  uint8
	Param Param
	Raw   [4]byte
}

// Float returns the value as a little-endian float.
func (r ParamReading) Float() float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(r.Raw[:]))
}

// Byte returns the first value byte, used by byte-wide parameters.
func (r ParamReading) Byte() uint8 { return r.Raw[0] }

// DecodeParam decodes a GetParam/SetParam response frame.
func DecodeParam(f can.Frame) (ParamReading, bool) {
	h := ParseID(f.ID)
	if h.Comm != CommGetParam && h.Comm != CommSetParam {
		return ParamReading{}, false
	}
	r := ParamReading{
		Addr:  h.Source,
		Param: Param(binary.LittleEndian.Uint16(f.Data[0:2])),
	}
	copy(r.Raw[:], f.Data[4:8])
	return r, true
}

// Feedback is a decoded feedback frame.
type Feedback struct {
	Addr        uint8
	Position    float64 // rad
	Velocity    float64 // rad/s
	Torque      float64 // Nm
	Temperature float64 // °C
	Fault       Fault
	State       State
}

// Enabled reports whether the unit is running.
func (fb Feedback) Enabled() bool { return fb.State == StateRunning }

// DecodeFeedback decodes a feedback frame using spec for scaling.
func DecodeFeedback(f can.Frame, spec MotorSpec) (Feedback, bool) {
	h := ParseID(f.ID)
	if h.Comm != CommFeedback {
		return Feedback{}, false
	}
	d := f.Data
	return Feedback{
		Addr:        h.Source,
		Position:    UintToFloat(binary.BigEndian.Uint16(d[0:2]), -spec.PositionLimit, spec.PositionLimit),
		Velocity:    UintToFloat(binary.BigEndian.Uint16(d[2:4]), -spec.VelocityLimit, spec.VelocityLimit),
		Torque:      UintToFloat(binary.BigEndian.Uint16(d[4:6]), -spec.TorqueLimit, spec.TorqueLimit),
		Temperature: float64(binary.BigEndian.Uint16(d[6:8])) * 0.1,
		Fault:       h.Fault(),
		State:       h.State(),
	}, true
}

// UintToFloat maps a 16-bit value onto [lo, hi].
func UintToFloat(x uint16, lo, hi float64) float64 {
	return float64(x)/65535*(hi-lo) + lo
}

// FloatToUint maps v on [lo, hi] onto 16 bits, saturating.
func FloatToUint(v, lo, hi float64) uint16 {
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return uint16((v - lo) / (hi - lo) * 65535)
}

// EncodeFeedback renders fb as the frame a unit sends to host.
func EncodeFeedback(fb Feedback, spec MotorSpec, host uint8) can.Frame {
	id := uint32(CommFeedback)<<24 |
		uint32(fb.State&0x03)<<22 |
		uint32(fb.Fault&0x3F)<<16 |
		uint32(fb.Addr)<<8 |
		uint32(host)
	var d [8]byte
	binary.BigEndian.PutUint16(d[0:2], FloatToUint(fb.Position, -spec.PositionLimit, spec.PositionLimit))
	binary.BigEndian.PutUint16(d[2:4], FloatToUint(fb.Velocity, -spec.VelocityLimit, spec.VelocityLimit))
	binary.BigEndian.PutUint16(d[4:6], FloatToUint(fb.Torque, -spec.TorqueLimit, spec.TorqueLimit))
	binary.BigEndian.PutUint16(d[6:8], uint16(fb.Temperature*10))
	return can.NewExtended(id, d)
}

// EncodeParamResponse renders the answer a unit sends for a read.
func EncodeParamResponse(addr, host uint8, p Param, raw [4]byte) can.Frame {
	d := ParamPayload(p)
	copy(d[4:8], raw[:])
	return can.NewExtended(BuildID(CommGetParam, addr, host), d)
}

// FloatRaw returns the little-endian bytes of v.
func FloatRaw(v float32) [4]byte {
	var raw [4]byte
	binary.LittleEndian.PutUint32(raw[:], math.Float32bits(v))
	return raw
}
