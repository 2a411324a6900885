package jumpstick

import (
	"time"

	"github.com/teslashibe/go-jumpstick/pkg/actuator"
	"github.com/teslashibe/go-jumpstick/pkg/can"
	"github.com/teslashibe/go-jumpstick/pkg/orientation"
	"github.com/teslashibe/go-jumpstick/pkg/posture"
	"github.com/teslashibe/go-jumpstick/pkg/remote"
	"github.com/teslashibe/go-jumpstick/pkg/settings"
)

// Motor is one actuator as shown on the dashboard.
type Motor struct {
	ID          uint8   `json:"id"`
	Role        string  `json:"role"` // "L", "R" or ""
	Position    float64 `json:"position"`
	Velocity    float64 `json:"velocity"`
	Torque      float64 `json:"torque"`
	Temperature float64 `json:"temperature"`
	Voltage     float64 `json:"voltage"`
	Mode        string  `json:"mode"`
	RunMode     string  `json:"runMode"`
	Enabled     bool    `json:"enabled"`
	ErrorCode   uint8   `json:"errorCode"`
	Faults      string  `json:"faults"`
	HasFault    bool    `json:"hasFault"`
	Stale       bool    `json:"stale"`
}

// MotorConfig is the role assignment and tuning in effect.
type MotorConfig struct {
	LeftID        uint8           `json:"leftId"`
	RightID       uint8           `json:"rightId"`
	ResolvedLeft  uint8           `json:"resolvedLeft"`
	ResolvedRight uint8           `json:"resolvedRight"`
	Tuning        settings.Tuning `json:"tuning"`
}

// Orientation is the estimator output.
type Orientation struct {
	Pitch      float64 `json:"pitch"` // rad, nose-down positive
	Rate       float64 `json:"rate"`  // rad/s
	UpsideDown bool    `json:"upsideDown"`
	Age        int64   `json:"ageMs"` // -1 when no sample has arrived
}

// Controller describes the remote gamepad link.
type Controller struct {
	Connected bool         `json:"connected"`
	ID        string       `json:"id,omitempty"`
	Bridge    remote.Stats `json:"bridge"`
}

// Snapshot is the status document served on /api/status and /ws/status.
type Snapshot struct {
	Motors      []Motor          `json:"motors"`
	CANRunning  bool             `json:"canRunning"`
	Bus         *can.Stats       `json:"bus,omitempty"`
	MotorConfig MotorConfig      `json:"motorConfig"`
	Posture     posture.Snapshot `json:"posture"`
	Orientation Orientation      `json:"orientation"`
	Controller  Controller       `json:"controller"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

func motorView(st actuator.Status, role actuator.Role) Motor {
	return Motor{
		ID:          st.Address,
		Role:        string(role),
		Position:    st.Position,
		Velocity:    st.Velocity,
		Torque:      st.Torque,
		Temperature: st.Temperature,
		Voltage:     st.Voltage,
		Mode:        st.Mode.String(),
		RunMode:     st.RunMode.String(),
		Enabled:     st.Enabled,
		ErrorCode:   uint8(st.Fault),
		Faults:      st.Fault.String(),
		HasFault:    st.HasFault(),
		Stale:       st.Stale,
	}
}

func orientationView(r orientation.Reading, now time.Time) Orientation {
	age := int64(-1)
	if !r.At.IsZero() {
		age = now.Sub(r.At).Milliseconds()
	}
	return Orientation{Pitch: r.Pitch, Rate: r.Rate, UpsideDown: r.UpsideDown, Age: age}
}
