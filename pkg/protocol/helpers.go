package protocol

import (
	"time"

	"github.com/teslashibe/go-jumpstick/pkg/input"
	"github.com/teslashibe/go-jumpstick/pkg/orientation"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewInputMessage creates an input message from a gamepad state
func NewInputMessage(s input.State) (*Message, error) {
	return NewMessage(TypeInput, InputData{
		LX: s.LX, LY: s.LY, RX: s.RX, RY: s.RY,
		L2: s.L2, R2: s.R2,
		Buttons: s.Buttons,
		Dpad:    s.Dpad,
		Misc:    s.Misc,
	})
}

// NewIMUMessage creates an IMU message
func NewIMUMessage(d IMUData) (*Message, error) {
	return NewMessage(TypeIMU, d)
}

// NewStatusMessage wraps a telemetry snapshot
func NewStatusMessage(status interface{}) (*Message, error) {
	return NewMessage(TypeStatus, status)
}

// NewHelloMessage creates the greeting sent after accept
func NewHelloMessage(bootID, role string, replaced bool) (*Message, error) {
	return NewMessage(TypeHello, HelloData{BootID: bootID, Role: role, Replaced: replaced})
}

// NewErrorMessage creates an error message
func NewErrorMessage(text string) (*Message, error) {
	return NewMessage(TypeError, ErrorData{Message: text})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
	})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetInputData extracts input data from a message
func (m *Message) GetInputData() (*InputData, error) {
	var data InputData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// State converts the sample to a clamped, connected gamepad state.
func (d *InputData) State() input.State {
	return input.State{
		Connected: true,
		LX:        input.ClampAxis(d.LX),
		LY:        input.ClampAxis(d.LY),
		RX:        input.ClampAxis(d.RX),
		RY:        input.ClampAxis(d.RY),
		L2:        input.ClampTrigger(d.L2),
		R2:        input.ClampTrigger(d.R2),
		Buttons:   d.Buttons,
		Dpad:      d.Dpad,
		Misc:      d.Misc,
	}
}

// GetIMUData extracts IMU data from a message
func (m *Message) GetIMUData() (*IMUData, error) {
	var data IMUData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Sample converts the reading to an estimator sample taken at at.
func (d *IMUData) Sample(at time.Time) orientation.Sample {
	return orientation.Sample{
		Ax: d.Ax, Ay: d.Ay, Az: d.Az,
		Gx: d.Gx, Gy: d.Gy, Gz: d.Gz,
		At: at,
	}
}

// GetHelloData extracts hello data from a message
func (m *Message) GetHelloData() (*HelloData, error) {
	var data HelloData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetErrorData extracts error data from a message
func (m *Message) GetErrorData() (*ErrorData, error) {
	var data ErrorData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
