package posture

import "github.com/teslashibe/go-jumpstick/pkg/maneuver"

// Snapshot is the read-only posture view published for telemetry.
type Snapshot struct {
	Connected bool    `json:"connected"`
	TrimLeft  float64 `json:"trimLeft"`
	TrimRight float64 `json:"trimRight"`
	Preset    string  `json:"preset"`
	Home      int     `json:"homeIndex"`
	Jog       float64 `json:"jog"`
	Offset    float64 `json:"offset"`
	Homing    bool    `json:"homing"`

	Active     string  `json:"activeManeuver"`
	SelfRight  string  `json:"selfRight"`
	NoseDown   string  `json:"noseDown"`
	GroundSlap string  `json:"groundSlap"`
	GainMode   string  `json:"gainMode"`
	Ramp       float64 `json:"ramp"`

	Targets    maneuver.Pair `json:"targets"`
	Pitch      float64       `json:"pitch"`
	Rate       float64       `json:"rate"`
	UpsideDown bool          `json:"upsideDown"`
}

// Snapshot copies the controller state.
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		Connected:  c.connected,
		TrimLeft:   c.state.Trim[Left],
		TrimRight:  c.state.Trim[Right],
		Preset:     c.cfg.Presets[c.state.Home].Name,
		Home:       c.state.Home,
		Jog:        c.state.Jog,
		Offset:     c.state.Offset,
		Homing:     c.state.Homing,
		Active:     c.active.String(),
		SelfRight:  c.selfRight.State().String(),
		NoseDown:   c.noseDown.State().String(),
		GroundSlap: c.groundSlap.State(),
		GainMode:   c.noseDown.Mode().String(),
		Ramp:       c.noseDown.Ramp(),
		Targets:    c.targets,
		Pitch:      c.orientation.Pitch,
		Rate:       c.orientation.Rate,
		UpsideDown: c.orientation.UpsideDown,
	}
}
