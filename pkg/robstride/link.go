package robstride

import (
	"log/slog"
	"time"

	"github.com/teslashibe/go-jumpstick/internal/log"
	"github.com/teslashibe/go-jumpstick/pkg/can"
)

// LinkConfig configures a Link.
type LinkConfig struct {
	HostID      uint8            // Address this controller answers to
	Spec        MotorSpec        // Feedback scaling for the attached units
	ReadTimeout time.Duration    // How long a parameter read may stay pending
	Clock       func() time.Time // Time source, defaults to time.Now
}

// DefaultLinkConfig returns the settings for RS02 units behind a 0xFD host.
func DefaultLinkConfig() LinkConfig {
	return LinkConfig{
		HostID:      HostID,
		Spec:        DefaultSpec,
		ReadTimeout: 200 * time.Millisecond,
	}
}

// ParamCallback receives the result of RequestParam. err is ErrTimeout
// when no response arrived in time.
type ParamCallback func(r ParamReading, err error)

type pendingRead struct {
	addr    uint8
	param   Param
	started time.Time
	done    ParamCallback
}

// Link issues protocol commands on a bus. Every call is fire-and-forget;
// only RequestParam expects an answer, and at most one may be pending.
//
// A Link is owned by a single goroutine and is not safe for concurrent use.
type Link struct {
	bus     can.Bus
	cfg     LinkConfig
	now     func() time.Time
	pending *pendingRead
	logger  *slog.Logger
}

// NewLink creates a link on bus.
func NewLink(bus can.Bus, cfg LinkConfig) *Link {
	def := DefaultLinkConfig()
	if cfg.HostID == 0 {
		cfg.HostID = def.HostID
	}
	if cfg.Spec.PositionLimit == 0 {
		cfg.Spec = def.Spec
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Link{
		bus:    bus,
		cfg:    cfg,
		now:    now,
		logger: log.With("component", "robstride"),
	}
}

// HostID returns the address of this controller.
func (l *Link) HostID() uint8 { return l.cfg.HostID }

// Spec returns the feedback scaling in use.
func (l *Link) Spec() MotorSpec { return l.cfg.Spec }

// Receive returns the next inbound frame, waiting up to timeout.
func (l *Link) Receive(timeout time.Duration) (can.Frame, bool) {
	return l.bus.Receive(timeout)
}

// Send transmits a raw frame. It fails fast when the transmit queue is full.
func (l *Link) Send(f can.Frame) error {
	return l.bus.Send(f)
}

func (l *Link) command(op string, comm CommType, addr uint8, data [8]byte) error {
	if err := l.bus.Send(can.NewExtended(BuildID(comm, l.cfg.HostID, addr), data)); err != nil {
		l.logger.Debug("send failed", "op", op, "addr", addr, "error", err)
		return &CommError{Op: op, Addr: addr, Err: err}
	}
	return nil
}

// Enable puts a unit into the running state.
func (l *Link) Enable(addr uint8) error {
	return l.command("enable", CommEnable, addr, [8]byte{})
}

// Disable stops a unit, optionally clearing latched faults.
func (l *Link) Disable(addr uint8, clearFaults bool) error {
	var d [8]byte
	if clearFaults {
		d[0] = 1
	}
	return l.command("disable", CommStop, addr, d)
}

// SetZero makes the current position the unit's mechanical zero.
func (l *Link) SetZero(addr uint8) error {
	return l.command("set_zero", CommSetZero, addr, [8]byte{1})
}

// WriteFloatParam writes a float parameter.
func (l *Link) WriteFloatParam(addr uint8, p Param, v float32) error {
	return l.command("write_param", CommSetParam, addr, FloatParamPayload(p, v))
}

// WriteByteParam writes a byte-wide parameter such as the run mode.
func (l *Link) WriteByteParam(addr uint8, p Param, v uint8) error {
	return l.command("write_param", CommSetParam, addr, ByteParamPayload(p, v))
}

// SetRunMode writes the run mode parameter.
func (l *Link) SetRunMode(addr uint8, m RunMode) error {
	return l.WriteByteParam(addr, ParamRunMode, uint8(m))
}

// Discover sends an identification request. addr may be BroadcastID.
func (l *Link) Discover(addr uint8) error {
	return l.command("get_id", CommGetID, addr, [8]byte{})
}

// Ping sends an all-zero motion-control frame. With zero gains it
// produces no torque but makes the unit answer with feedback.
func (l *Link) Ping(addr uint8) error {
	if err := l.bus.Send(can.NewExtended(BuildMotionID(0, addr), [8]byte{})); err != nil {
		return &CommError{Op: "ping", Addr: addr, Err: err}
	}
	return nil
}

// SetCANID reassigns a unit's address. The new address takes effect
// immediately.
func (l *Link) SetCANID(addr, newAddr uint8) error {
	if !ValidAddress(newAddr) {
		return &CommError{Op: "set_id", Addr: addr, Err: ErrInvalidAddress}
	}
	id := uint32(CommSetID)<<24 | uint32(newAddr)<<16 | uint32(l.cfg.HostID)<<8 | uint32(addr)
	if err := l.bus.Send(can.NewExtended(id, [8]byte{})); err != nil {
		return &CommError{Op: "set_id", Addr: addr, Err: err}
	}
	return nil
}

// SaveParams persists the unit's parameter table to flash.
func (l *Link) SaveParams(addr uint8) error {
	return l.command("save", CommSave, addr, [8]byte{1, 2, 3, 4, 5, 6, 7, 8})
}

// RequestParam asks a unit for one parameter. done is called from
// HandleParamResponse or Service, whichever settles the request first.
func (l *Link) RequestParam(addr uint8, p Param, done ParamCallback) error {
	if l.pending != nil {
		return &CommError{Op: "read_param", Addr: addr, Err: ErrRequestPending}
	}
	if err := l.command("read_param", CommGetParam, addr, ParamPayload(p)); err != nil {
		return err
	}
	l.pending = &pendingRead{addr: addr, param: p, started: l.now(), done: done}
	return nil
}

// Pending reports whether a parameter read is outstanding.
func (l *Link) Pending() bool { return l.pending != nil }

// HandleParamResponse matches f against the outstanding read. It returns
// the reading and true only when f answers that read.
func (l *Link) HandleParamResponse(f can.Frame) (ParamReading, bool) {
	h := ParseID(f.ID)
	if h.Dest != l.cfg.HostID || l.pending == nil {
		return ParamReading{}, false
	}
	r, ok := DecodeParam(f)
	if !ok || r.Param != l.pending.param || r.Addr != l.pending.addr {
		return ParamReading{}, false
	}
	done := l.pending.done
	l.pending = nil
	if done != nil {
		done(r, nil)
	}
	return r, true
}

// Service expires a pending read that outlived the read timeout.
func (l *Link) Service(now time.Time) {
	if l.pending == nil || now.Sub(l.pending.started) < l.cfg.ReadTimeout {
		return
	}
	p := l.pending
	l.pending = nil
	l.logger.Debug("parameter read timed out", "addr", p.addr, "param", p.param)
	if p.done != nil {
		p.done(ParamReading{Addr: p.addr, Param: p.param}, &CommError{Op: "read_param", Addr: p.addr, Err: ErrTimeout})
	}
}
