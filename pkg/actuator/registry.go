package actuator

import (
	"context"
	"log/slog"
	"time"

	"github.com/teslashibe/go-jumpstick/internal/log"
	"github.com/teslashibe/go-jumpstick/pkg/can"
	"github.com/teslashibe/go-jumpstick/pkg/robstride"
)

// MaxUnits is the largest table the registry supports.
const MaxUnits = 8

// Link is the subset of the protocol link the registry drives.
type Link interface {
	Receive(timeout time.Duration) (can.Frame, bool)
	Discover(addr uint8) error
	Ping(addr uint8) error
	RequestParam(addr uint8, p robstride.Param, done robstride.ParamCallback) error
	Pending() bool
	HandleParamResponse(f can.Frame) (robstride.ParamReading, bool)
	Service(now time.Time)
	HostID() uint8
	Spec() robstride.MotorSpec
}

var _ Link = (*robstride.Link)(nil)

// Config holds registry timing.
type Config struct {
	Capacity         int           `yaml:"capacity"`
	StaleAfter       time.Duration `yaml:"stale_after"`
	RemoveAfter      time.Duration `yaml:"remove_after"`
	StatusInterval   time.Duration `yaml:"status_interval"`
	VoltageInterval  time.Duration `yaml:"voltage_interval"`
	MaxFramesPerPoll int           `yaml:"max_frames_per_poll"`

	// Scan pacing.
	ProbeBatch      int           `yaml:"probe_batch"`
	ProbeDrainEvery int           `yaml:"probe_drain_every"`
	ProbeGap        time.Duration `yaml:"probe_gap"`
	ProbeSettle     time.Duration `yaml:"probe_settle"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
	ScanWindow      time.Duration `yaml:"scan_window"`
}

// DefaultConfig returns the timing used on the robot.
func DefaultConfig() Config {
	return Config{
		Capacity:         MaxUnits,
		StaleAfter:       2 * time.Second,
		RemoveAfter:      10 * time.Second,
		StatusInterval:   100 * time.Millisecond,
		VoltageInterval:  2 * time.Second,
		MaxFramesPerPoll: 50,
		ProbeBatch:       32,
		ProbeDrainEvery:  8,
		ProbeGap:         2 * time.Millisecond,
		ProbeSettle:      20 * time.Millisecond,
		RetryDelay:       10 * time.Millisecond,
		ScanWindow:       300 * time.Millisecond,
	}
}

// Registry owns the table of discovered units.
//
// All methods must be called from the goroutine that owns the bus
// session; readers elsewhere should use published Snapshot copies.
type Registry struct {
	link  Link
	roles RoleSource
	cfg   Config
	now   func() time.Time

	units []Status

	statusIdx  int
	voltageIdx int
	lastStatus time.Time
	lastVolt   time.Time

	logger *slog.Logger
}

// NewRegistry creates an empty registry. roles may be nil.
func NewRegistry(link Link, roles RoleSource, cfg Config) *Registry {
	def := DefaultConfig()
	if cfg.Capacity <= 0 || cfg.Capacity > MaxUnits {
		cfg.Capacity = def.Capacity
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = def.StaleAfter
	}
	if cfg.RemoveAfter <= cfg.StaleAfter {
		cfg.RemoveAfter = max(def.RemoveAfter, cfg.StaleAfter*2)
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = def.StatusInterval
	}
	if cfg.VoltageInterval <= 0 {
		cfg.VoltageInterval = def.VoltageInterval
	}
	if cfg.MaxFramesPerPoll <= 0 {
		cfg.MaxFramesPerPoll = def.MaxFramesPerPoll
	}
	if cfg.ProbeBatch <= 0 {
		cfg.ProbeBatch = def.ProbeBatch
	}
	if cfg.ProbeDrainEvery <= 0 {
		cfg.ProbeDrainEvery = def.ProbeDrainEvery
	}
	if roles == nil {
		roles = StaticRoles{}
	}
	return &Registry{
		link:   link,
		roles:  roles,
		cfg:    cfg,
		now:    time.Now,
		units:  make([]Status, 0, cfg.Capacity),
		logger: log.With("component", "registry"),
	}
}

// SetClock replaces the time source used by Scan.
func (r *Registry) SetClock(now func() time.Time) { r.now = now }

// Config returns the effective configuration.
func (r *Registry) Config() Config { return r.cfg }

// Len returns the number of tracked units.
func (r *Registry) Len() int { return len(r.units) }

// Addresses returns tracked addresses in table order.
func (r *Registry) Addresses() []uint8 {
	out := make([]uint8, len(r.units))
	for i, u := range r.units {
		out[i] = u.Address
	}
	return out
}

// Lookup returns the status of addr.
func (r *Registry) Lookup(addr uint8) (Status, bool) {
	if i := r.index(addr); i >= 0 {
		return r.units[i], true
	}
	return Status{}, false
}

// Snapshot returns a copy of the table.
func (r *Registry) Snapshot() []Status {
	out := make([]Status, len(r.units))
	copy(out, r.units)
	return out
}

// Track adds addr without a feedback timestamp. Such a unit is neither
// stale nor removable until it reports.
func (r *Registry) Track(addr uint8) bool {
	return r.add(addr) >= 0
}

// ResolveLeft returns the left unit: the persisted assignment, else the
// first unit in the table, else 0.
func (r *Registry) ResolveLeft() uint8 {
	left, _ := r.roles.Roles()
	if left != 0 {
		return left
	}
	if len(r.units) > 0 {
		return r.units[0].Address
	}
	return 0
}

// ResolveRight returns the right unit: the persisted assignment, else
// the second unit in the table, else 0.
func (r *Registry) ResolveRight() uint8 {
	_, right := r.roles.Roles()
	if right != 0 {
		return right
	}
	if len(r.units) > 1 {
		return r.units[1].Address
	}
	return 0
}

// RoleOf returns the persisted role label of addr.
func (r *Registry) RoleOf(addr uint8) Role {
	left, right := r.roles.Roles()
	switch {
	case addr > 0 && addr == left:
		return RoleLeft
	case addr > 0 && addr == right:
		return RoleRight
	default:
		return RoleNone
	}
}

// Scan discovers units: a broadcast identify, then a paced probe of every
// address, then a listening window for late answers. It returns the
// number of tracked units.
func (r *Registry) Scan(ctx context.Context) (int, error) {
	r.logger.Info("scanning bus", "known", len(r.units))
	r.drain()

	if err := r.link.Discover(robstride.BroadcastID); err != nil {
		r.logger.Debug("broadcast identify failed", "error", err)
	}
	if err := r.drainFor(ctx, r.cfg.ProbeSettle); err != nil {
		return len(r.units), err
	}

	host := r.link.HostID()
	probes := 0
	for start := int(robstride.MinAddress); start <= int(robstride.MaxAddress); start += r.cfg.ProbeBatch {
		end := min(start+r.cfg.ProbeBatch-1, int(robstride.MaxAddress))
		for a := start; a <= end; a++ {
			addr := uint8(a)
			if addr == host {
				continue
			}
			if err := r.link.Discover(addr); err != nil {
				// Queue full: let it drain, then retry once.
				if err := r.drainFor(ctx, r.cfg.RetryDelay); err != nil {
					return len(r.units), err
				}
				if err := r.link.Discover(addr); err != nil {
					r.logger.Debug("probe dropped", "addr", addr, "error", err)
				}
			}
			probes++
			if probes%r.cfg.ProbeDrainEvery == 0 {
				if err := r.drainFor(ctx, r.cfg.ProbeGap); err != nil {
					return len(r.units), err
				}
			}
		}
		if err := r.drainFor(ctx, r.cfg.ProbeSettle); err != nil {
			return len(r.units), err
		}
	}

	if err := r.drainFor(ctx, r.cfg.ScanWindow); err != nil {
		return len(r.units), err
	}
	r.logger.Info("scan complete", "units", len(r.units), "addresses", r.Addresses())
	return len(r.units), nil
}

// Poll drains pending frames, expires a stale parameter read, pings one
// unit, sweeps for silent units and polls one unit's bus voltage. It
// never blocks.
func (r *Registry) Poll(now time.Time) {
	for i := 0; i < r.cfg.MaxFramesPerPoll; i++ {
		f, ok := r.link.Receive(0)
		if !ok {
			break
		}
		r.process(f, now)
	}

	r.link.Service(now)
	r.pollStatus(now)
	r.sweep(now)
	r.pollVoltage(now)
}

func (r *Registry) drain() {
	now := r.now()
	for {
		f, ok := r.link.Receive(0)
		if !ok {
			return
		}
		r.process(f, now)
	}
}

// drainFor processes frames until d has elapsed.
func (r *Registry) drainFor(ctx context.Context, d time.Duration) error {
	deadline := time.Now().Add(d)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		wait := time.Until(deadline)
		if wait <= 0 {
			return nil
		}
		if f, ok := r.link.Receive(min(wait, 10*time.Millisecond)); ok {
			r.process(f, r.now())
		}
	}
}

func (r *Registry) process(f can.Frame, now time.Time) {
	if !f.Extended {
		return
	}
	h := robstride.ParseID(f.ID)
	switch h.Comm {
	case robstride.CommFeedback:
		r.applyFeedback(f, now)

	case robstride.CommGetParam, robstride.CommSetParam:
		if h.Dest != r.link.HostID() {
			return
		}
		if reading, ok := r.link.HandleParamResponse(f); ok {
			r.mirror(reading)
		}

	case robstride.CommGetID:
		if !robstride.ValidAddress(h.Source) || h.Source == r.link.HostID() {
			return
		}
		if i := r.add(h.Source); i >= 0 {
			r.units[i].LastUpdate = now
			r.units[i].Stale = false
		}
	}
}

func (r *Registry) applyFeedback(f can.Frame, now time.Time) {
	fb, _ := robstride.DecodeFeedback(f, r.link.Spec())
	i := r.index(fb.Addr)
	if i < 0 {
		if !robstride.ValidAddress(fb.Addr) {
			return
		}
		if i = r.add(fb.Addr); i < 0 {
			return
		}
	}

	u := &r.units[i]
	if fb.Fault != 0 && fb.Fault != u.Fault {
		r.logger.Warn("unit fault", "addr", fb.Addr, "fault", fb.Fault.String())
	}
	u.Position = fb.Position
	u.Velocity = fb.Velocity
	u.Torque = fb.Torque
	u.Temperature = fb.Temperature
	u.Fault = fb.Fault
	u.Mode = fb.State
	u.Enabled = fb.Enabled()
	u.LastUpdate = now
	u.Stale = false
}

// mirror copies recognized parameter readbacks into the unit status.
func (r *Registry) mirror(p robstride.ParamReading) {
	i := r.index(p.Addr)
	if i < 0 {
		return
	}
	u := &r.units[i]
	switch p.Param {
	case robstride.ParamVBus:
		u.Voltage = float64(p.Float())
		r.logger.Debug("bus voltage", "addr", p.Addr, "volts", u.Voltage)
	case robstride.ParamRunMode:
		u.RunMode = robstride.RunMode(p.Byte())
	case robstride.ParamPPSpeed:
		u.ProfileSpeed = float64(p.Float())
		r.logger.Info("profile speed readback", "addr", p.Addr, "rad_s", u.ProfileSpeed)
	case robstride.ParamPPAccel:
		u.ProfileAccel = float64(p.Float())
		r.logger.Info("profile accel readback", "addr", p.Addr, "rad_s2", u.ProfileAccel)
	case robstride.ParamLimitSpd:
		u.SpeedLimit = float64(p.Float())
		r.logger.Info("speed limit readback", "addr", p.Addr, "rad_s", u.SpeedLimit)
	case robstride.ParamLimitCur:
		u.CurrentLimit = float64(p.Float())
		r.logger.Info("current limit readback", "addr", p.Addr, "amps", u.CurrentLimit)
	}
}

func (r *Registry) pollStatus(now time.Time) {
	if len(r.units) == 0 || now.Sub(r.lastStatus) < r.cfg.StatusInterval {
		return
	}
	r.lastStatus = now
	if r.statusIdx >= len(r.units) {
		r.statusIdx = 0
	}
	addr := r.units[r.statusIdx].Address
	r.statusIdx = (r.statusIdx + 1) % len(r.units)
	if err := r.link.Ping(addr); err != nil {
		r.logger.Debug("status ping dropped", "addr", addr, "error", err)
	}
}

func (r *Registry) pollVoltage(now time.Time) {
	if len(r.units) == 0 || r.link.Pending() || now.Sub(r.lastVolt) < r.cfg.VoltageInterval {
		return
	}
	r.lastVolt = now
	if r.voltageIdx >= len(r.units) {
		r.voltageIdx = 0
	}
	addr := r.units[r.voltageIdx].Address
	r.voltageIdx = (r.voltageIdx + 1) % len(r.units)
	if err := r.link.RequestParam(addr, robstride.ParamVBus, nil); err != nil {
		r.logger.Debug("voltage poll dropped", "addr", addr, "error", err)
	}
}

// sweep marks silent units stale and removes long-silent ones. It walks
// backwards so removal does not skip entries.
func (r *Registry) sweep(now time.Time) {
	for i := len(r.units) - 1; i >= 0; i-- {
		u := &r.units[i]
		if u.LastUpdate.IsZero() {
			continue
		}
		silent := now.Sub(u.LastUpdate)
		switch {
		case silent >= r.cfg.RemoveAfter:
			r.logger.Warn("unit removed", "addr", u.Address, "silent", silent)
			r.remove(i)
		case silent >= r.cfg.StaleAfter:
			if !u.Stale {
				r.logger.Warn("unit stale", "addr", u.Address, "silent", silent)
			}
			u.Stale = true
		default:
			u.Stale = false
		}
	}
}

func (r *Registry) index(addr uint8) int {
	for i := range r.units {
		if r.units[i].Address == addr {
			return i
		}
	}
	return -1
}

// add returns the index of addr, adding it when there is room.
func (r *Registry) add(addr uint8) int {
	if i := r.index(addr); i >= 0 {
		return i
	}
	if len(r.units) >= r.cfg.Capacity {
		r.logger.Warn("motor table full", "addr", addr, "capacity", r.cfg.Capacity)
		return -1
	}
	r.units = append(r.units, Status{Address: addr})
	r.logger.Info("unit discovered", "addr", addr, "count", len(r.units))
	return len(r.units) - 1
}

func (r *Registry) remove(i int) {
	copy(r.units[i:], r.units[i+1:])
	r.units[len(r.units)-1] = Status{}
	r.units = r.units[:len(r.units)-1]

	fix := func(idx int) int {
		if idx > i {
			idx--
		}
		if idx >= len(r.units) {
			idx = 0
		}
		return idx
	}
	r.statusIdx = fix(r.statusIdx)
	r.voltageIdx = fix(r.voltageIdx)
}
