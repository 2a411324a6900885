package robstride

import (
	"sync"

	"github.com/teslashibe/go-jumpstick/pkg/can"
)

// SimUnit is the state of one simulated actuator.
type SimUnit struct {
	Addr        uint8
	State       State
	Fault       Fault
	Position    float64
	Temperature float64
	Params      map[Param][4]byte
	Zeroed      int // SetZero commands received
	Silent      bool
}

// Sim answers protocol frames on behalf of virtual units. Attach it to a
// loopback bus to run the controller without hardware.
type Sim struct {
	mu    sync.Mutex
	spec  MotorSpec
	host  uint8
	units map[uint8]*SimUnit
}

// NewSim creates a simulator with units at the given addresses.
func NewSim(addrs ...uint8) *Sim {
	s := &Sim{spec: DefaultSpec, host: HostID, units: make(map[uint8]*SimUnit)}
	for _, a := range addrs {
		s.Add(a)
	}
	return s
}

// Add creates a unit in the reset state with a 24 V bus.
func (s *Sim) Add(addr uint8) *SimUnit {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &SimUnit{
		Addr:        addr,
		Temperature: 30,
		Params: map[Param][4]byte{
			ParamVBus:    FloatRaw(24),
			ParamRunMode: {},
		},
	}
	s.units[addr] = u
	return u
}

// Unit returns a copy of the unit state.
func (s *Sim) Unit(addr uint8) (SimUnit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.units[addr]
	if !ok {
		return SimUnit{}, false
	}
	return *u, true
}

// Update mutates a unit under the simulator lock.
func (s *Sim) Update(addr uint8, fn func(u *SimUnit)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.units[addr]; ok {
		fn(u)
	}
}

// Attach installs the simulator as the bus responder.
func (s *Sim) Attach(bus *can.Loopback) {
	bus.OnSend = s.Handle
}

// Handle returns the frames the addressed units send back for f.
func (s *Sim) Handle(f can.Frame) []can.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := ParseID(f.ID)
	if h.Comm == CommGetID && h.Dest == BroadcastID {
		var out []can.Frame
		for _, u := range s.units {
			if !u.Silent {
				out = append(out, s.identify(u))
			}
		}
		return out
	}

	u, ok := s.units[h.Dest]
	if !ok || u.Silent {
		return nil
	}

	switch h.Comm {
	case CommGetID:
		return []can.Frame{s.identify(u)}
	case CommMotionControl:
	case CommEnable:
		u.State = StateRunning
	case CommStop:
		u.State = StateReset
		if f.Data[0] == 1 {
			u.Fault = 0
		}
	case CommSetZero:
		u.Position = 0
		u.Zeroed++
	case CommSetParam:
		r, _ := DecodeParam(f)
		u.Params[r.Param] = r.Raw
		if r.Param == ParamLocRef && u.State == StateRunning {
			u.Position = float64(r.Float())
		}
	case CommGetParam:
		r, _ := DecodeParam(f)
		return []can.Frame{EncodeParamResponse(u.Addr, s.host, r.Param, u.Params[r.Param])}
	default:
		return nil
	}
	return []can.Frame{s.feedback(u)}
}

func (s *Sim) identify(u *SimUnit) can.Frame {
	return can.NewExtended(BuildID(CommGetID, u.Addr, 0xFE), [8]byte{})
}

func (s *Sim) feedback(u *SimUnit) can.Frame {
	return EncodeFeedback(Feedback{
		Addr:        u.Addr,
		Position:    u.Position,
		Temperature: u.Temperature,
		Fault:       u.Fault,
		State:       u.State,
	}, s.spec, s.host)
}
