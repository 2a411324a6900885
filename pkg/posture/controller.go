// Package posture turns gamepad and orientation samples into arm
// position commands and arbitrates the maneuvers that can take over.
package posture

import (
	"log/slog"
	"math"
	"time"

	"github.com/teslashibe/go-jumpstick/internal/log"
	"github.com/teslashibe/go-jumpstick/pkg/actuator"
	"github.com/teslashibe/go-jumpstick/pkg/debug"
	"github.com/teslashibe/go-jumpstick/pkg/input"
	"github.com/teslashibe/go-jumpstick/pkg/maneuver"
	"github.com/teslashibe/go-jumpstick/pkg/orientation"
	"github.com/teslashibe/go-jumpstick/pkg/robstride"
	"github.com/teslashibe/go-jumpstick/pkg/settings"
)

// Units is the registry view the controller reads.
type Units interface {
	ResolveLeft() uint8
	ResolveRight() uint8
	Lookup(addr uint8) (actuator.Status, bool)
	Addresses() []uint8
}

// Commander is the link command surface the controller writes.
type Commander interface {
	Enable(addr uint8) error
	Disable(addr uint8, clearFaults bool) error
	SetZero(addr uint8) error
	SetRunMode(addr uint8, m robstride.RunMode) error
	WriteFloatParam(addr uint8, p robstride.Param, v float32) error
}

// Settings supplies the button actions and motor tuning.
type Settings interface {
	Buttons() settings.Buttons
	Tuning() settings.Tuning
}

var (
	_ Units     = (*actuator.Registry)(nil)
	_ Commander = (*robstride.Link)(nil)
	_ Settings  = (*settings.Store)(nil)

	_ maneuver.Arms = (*Controller)(nil)
)

// Side is a logical arm.
type Side int

// Sides.
const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

// ActiveManeuver names the maneuver that owns the current tick.
type ActiveManeuver uint8

// Maneuvers.
const (
	ActiveNone ActiveManeuver = iota
	ActiveSelfRight
	ActiveNoseDown
	ActiveGroundSlap
)

func (a ActiveManeuver) String() string {
	switch a {
	case ActiveSelfRight:
		return "self_right"
	case ActiveNoseDown:
		return "nose_down"
	case ActiveGroundSlap:
		return "ground_slap"
	default:
		return "none"
	}
}

// State is the stick-driven posture accumulator.
type State struct {
	Jog    float64    // rad
	Offset float64    // folded full turns, rad
	Home   int        // preset index
	Trim   [2]float64 // rad, per side
	Homing bool       // slewing jog back to zero after a fold
}

// Target returns the jog and offset contribution.
func (s State) Target() float64 { return s.Jog + s.Offset }

// readiness tracks the unit a side last initialized. zeroed is never
// cleared, so each address is auto-zeroed at most once per process.
type readiness struct {
	initialized bool
	addr        uint8
	at          time.Time
	zeroed      [128]bool
}

// assignable button bits in settings.Button order.
var assignable = [...]uint16{
	settings.ButtonY: input.ButtonY,
	settings.ButtonB: input.ButtonB,
	settings.ButtonA: input.ButtonA,
}

// Controller is the posture control loop body. It is not safe for
// concurrent use; the control goroutine owns it.
type Controller struct {
	cfg      Config
	units    Units
	link     Commander
	settings Settings
	logger   *slog.Logger

	state    State
	sides    [2]readiness
	edges    input.Edges
	lastTick time.Time

	active     ActiveManeuver
	selfRight  *maneuver.SelfRight
	noseDown   *maneuver.NoseDown
	groundSlap *maneuver.GroundSlap

	tuning      settings.Tuning
	targets     maneuver.Pair
	orientation orientation.Reading
	connected   bool
}

// NewController creates a controller.
func NewController(units Units, link Commander, s Settings, cfg Config) *Controller {
	return &Controller{
		cfg:        cfg,
		units:      units,
		link:       link,
		settings:   s,
		logger:     log.With("component", "posture"),
		selfRight:  maneuver.NewSelfRight(cfg.SelfRight),
		noseDown:   maneuver.NewNoseDown(cfg.NoseDown),
		groundSlap: maneuver.NewGroundSlap(cfg.GroundSlap),
		tuning:     s.Tuning(),
	}
}

// Config returns the controller configuration.
func (c *Controller) Config() Config { return c.cfg }

// State returns the posture accumulator.
func (c *Controller) State() State { return c.state }

// Active returns the maneuver that owns the tick.
func (c *Controller) Active() ActiveManeuver { return c.active }

// Tick runs one control step.
func (c *Controller) Tick(now time.Time, in input.State, o orientation.Reading) {
	c.orientation = o
	c.tuning = c.settings.Tuning()

	dt := 0.0
	if !c.lastTick.IsZero() {
		dt = math.Min(now.Sub(c.lastTick).Seconds(), c.cfg.MaxDt.Seconds())
		dt = math.Max(dt, 0)
	}
	c.lastTick = now

	if !in.Connected {
		if c.connected {
			c.logger.Info("controller disconnected", "active", c.active.String())
		}
		c.connected = false
		c.abort()
		c.edges.Reset()
		return
	}
	if !c.connected {
		c.logger.Info("controller connected")
	}
	c.connected = true

	pressed := c.edges.Update(in)

	left, right := c.units.ResolveLeft(), c.units.ResolveRight()
	if left == 0 && right == 0 {
		return
	}

	if c.active != ActiveNone {
		c.stepManeuver(now, o, pressed)
		return
	}

	switch {
	case pressed.MiscButton(input.MiscSelect):
		c.logger.Info("self-right started")
		c.selfRight.Start(now, c)
		c.active = ActiveSelfRight
		return
	case pressed.Button(input.ButtonThumbR):
		c.logger.Info("nose-down started", "upside_down", o.UpsideDown)
		c.noseDown.Start(now, o, c)
		c.active = ActiveNoseDown
		return
	}

	if pressed.MiscButton(input.MiscSystem) {
		c.logger.Info("posture zeroed")
		c.ResetPosture()
	}
	if pressed.Button(input.ButtonX) {
		c.fold()
	}
	if pressed.MiscButton(input.MiscStart) {
		c.cyclePreset()
	}
	c.applyTrim(pressed)

	buttons := c.settings.Buttons()
	if hold, ok := heldPosition(buttons, in); ok {
		c.CommandArms(now, hold.Left, hold.Right)
		return
	}
	if c.animate(now, buttons, pressed) {
		return
	}

	c.compose(now, in, dt)
}

func heldPosition(buttons settings.Buttons, in input.State) (maneuver.Pair, bool) {
	var hold maneuver.Pair
	found := false
	for i, b := range buttons {
		if b.Mode == settings.ModePosition && in.Held(assignable[i]) {
			hold = maneuver.Pair{Left: b.Left, Right: b.Right}
			found = true
		}
	}
	return hold, found
}

// animate handles discrete button modes. It reports whether the tick was
// consumed.
func (c *Controller) animate(now time.Time, buttons settings.Buttons, pressed input.Pressed) bool {
	for i, b := range buttons {
		if !pressed.Button(assignable[i]) {
			continue
		}
		switch b.Mode {
		case settings.ModeForward360:
			c.addJog(fullTurn)
			return true
		case settings.ModeBackward360:
			c.addJog(-fullTurn)
			return true
		case settings.ModeGroundSlap:
			c.logger.Info("ground-slap started", "button", settings.Button(i).String())
			c.groundSlap.Start(now, c)
			c.active = ActiveGroundSlap
			return true
		}
	}
	return false
}

func (c *Controller) stepManeuver(now time.Time, o orientation.Reading, pressed input.Pressed) {
	var running bool
	switch c.active {
	case ActiveSelfRight:
		running = c.selfRight.Step(now, c)
	case ActiveNoseDown:
		if c.noseDown.State() == maneuver.NoseDownBalancing && c.orientationStale(now, o) {
			c.logger.Warn("nose-down aborted: orientation stale", "at", o.At)
			c.noseDown.Abort()
			c.active = ActiveNone
			return
		}
		running = c.noseDown.Step(now, o, pressed.Button(input.ButtonThumbR), c)
	case ActiveGroundSlap:
		running = c.groundSlap.Step(now, c)
	}
	if !running {
		c.logger.Info("maneuver finished", "maneuver", c.active.String())
		c.active = ActiveNone
	}
}

// orientationStale reports whether o is too old to balance on.
func (c *Controller) orientationStale(now time.Time, o orientation.Reading) bool {
	limit := c.cfg.OrientationTimeout
	if limit <= 0 {
		limit = defaultOrientationTimeout
	}
	return o.At.IsZero() || now.Sub(o.At) > limit
}

func (c *Controller) abort() {
	c.selfRight.Abort()
	c.noseDown.Abort()
	c.groundSlap.Abort()
	c.active = ActiveNone
}

func (c *Controller) compose(now time.Time, in input.State, dt float64) {
	preset := c.cfg.Presets[c.state.Home]
	base := maneuver.Lerp(preset.Home, preset.Trigger, TriggerPull(in.R2, c.cfg.TriggerDeadZone))

	ly := input.DeadZone(in.LY, c.cfg.StickDeadZone)
	switch {
	case ly != 0:
		c.state.Homing = false
		c.addJog(-float64(ly) / input.AxisMax * c.cfg.MaxJogRate * dt)
	case c.state.Homing:
		c.slewHome(dt)
	}

	spread := Expo(Rescale(in.RX, c.cfg.StickDeadZone), c.cfg.Expo) * c.cfg.MaxSpread
	jog := c.state.Target()

	l := base.Left + jog + spread/2 + c.state.Trim[Left]
	r := base.Right + jog - spread/2 + c.state.Trim[Right]
	c.CommandArms(now, l, r)
}

func (c *Controller) addJog(d float64) { c.state.Jog += d }

func (c *Controller) slewHome(dt float64) {
	step := c.cfg.MaxJogRate * dt
	if math.Abs(c.state.Jog) <= step {
		c.state.Jog = 0
		c.state.Homing = false
		return
	}
	c.state.Jog -= math.Copysign(step, c.state.Jog)
}

// fold moves whole turns from jog into the zero offset without moving
// the arms, then starts homing the residual.
func (c *Controller) fold() {
	k := FoldTurns(c.state.Jog)
	c.state.Offset += fullTurn * k
	c.state.Jog -= fullTurn * k
	c.state.Homing = c.state.Jog != 0
	c.logger.Info("folded to nearest home", "turns", k, "residual", c.state.Jog)
}

func (c *Controller) cyclePreset() {
	home := (c.state.Home + 1) % len(c.cfg.Presets)
	c.state = State{Home: home}
	c.logger.Info("home preset", "preset", c.cfg.Presets[home].Name)
}

func (c *Controller) applyTrim(p input.Pressed) {
	step := c.cfg.TrimStep
	switch {
	case p.DpadDir(input.DpadUp):
		c.state.Trim[Left] += step
	case p.DpadDir(input.DpadDown):
		c.state.Trim[Left] -= step
	}
	switch {
	case p.DpadDir(input.DpadRight):
		c.state.Trim[Right] += step
	case p.DpadDir(input.DpadLeft):
		c.state.Trim[Right] -= step
	}
}

// ResetPosture clears jog, zero offset, trim and the home preset.
func (c *Controller) ResetPosture() {
	c.state = State{}
}

// ResetHome clears jog, zero offset and the home preset, keeping trim.
func (c *Controller) ResetHome() {
	c.state = State{Trim: c.state.Trim}
}

// CommandArms writes logical targets to both sides. The right side
// receives the negated value. It reports whether any side was written.
func (c *Controller) CommandArms(now time.Time, left, right float64) bool {
	c.targets = maneuver.Pair{Left: left, Right: right}

	la, ra := c.units.ResolveLeft(), c.units.ResolveRight()
	if ra == la {
		ra = 0
	}

	wrote := false
	if la != 0 && c.EnsureReady(Left, la, now) {
		wrote = c.writePosition(la, left) || wrote
	}
	if ra != 0 && c.EnsureReady(Right, ra, now) {
		wrote = c.writePosition(ra, -right) || wrote
	}
	return wrote
}

// writePosition re-asserts the profile speed and writes the target.
func (c *Controller) writePosition(addr uint8, pos float64) bool {
	if err := c.link.WriteFloatParam(addr, robstride.ParamPPSpeed, float32(c.tuning.SpeedLimit)); err != nil {
		debug.Log("posture: speed write to %d dropped: %v\n", addr, err)
		return false
	}
	if err := c.link.WriteFloatParam(addr, robstride.ParamLocRef, float32(pos)); err != nil {
		debug.Log("posture: position write to %d dropped: %v\n", addr, err)
		return false
	}
	return true
}

// EnsureReady reports whether addr can take position commands on side,
// re-initializing it when needed.
func (c *Controller) EnsureReady(side Side, addr uint8, now time.Time) bool {
	st, ok := c.units.Lookup(addr)
	if !ok || st.Stale {
		debug.Log("posture: %s unit %d not ready (present=%v)\n", side, addr, ok)
		return false
	}

	rd := &c.sides[side]
	if rd.initialized && rd.addr == addr {
		if st.Enabled && !st.HasFault() {
			return true
		}
		if now.Sub(rd.at) < c.cfg.InitGrace {
			return true
		}
	}
	return c.initialize(side, addr, st, now)
}

func (c *Controller) initialize(side Side, addr uint8, st actuator.Status, now time.Time) bool {
	rd := &c.sides[side]
	t := c.tuning

	if err := c.link.Disable(addr, true); err != nil {
		debug.Log("posture: disable %d dropped: %v\n", addr, err)
		return false
	}
	if c.cfg.AutoZero && !rd.zeroed[addr&0x7F] {
		if err := c.link.SetZero(addr); err != nil {
			debug.Log("posture: zero %d dropped: %v\n", addr, err)
			return false
		}
		rd.zeroed[addr&0x7F] = true
		c.logger.Info("auto-zeroed actuator", "side", side.String(), "addr", addr)
	}

	steps := []func() error{
		func() error { return c.link.SetRunMode(addr, robstride.ModePositionPP) },
		func() error { return c.link.WriteFloatParam(addr, robstride.ParamPPSpeed, float32(t.SpeedLimit)) },
		func() error { return c.link.WriteFloatParam(addr, robstride.ParamPPAccel, float32(t.Accel)) },
		func() error { return c.link.WriteFloatParam(addr, robstride.ParamLimitCur, float32(t.CurrentLimit)) },
		func() error { return c.link.Enable(addr) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			debug.Log("posture: init %d dropped: %v\n", addr, err)
			return false
		}
	}

	rd.initialized = true
	rd.addr = addr
	rd.at = now
	c.logger.Info("actuator initialized",
		"side", side.String(), "addr", addr,
		"fault", st.Fault.String(), "state", st.Mode.String())
	return true
}

// PushTuning writes the current motion profile to every tracked unit.
func (c *Controller) PushTuning() int {
	c.tuning = c.settings.Tuning()
	t := c.tuning
	pushed := 0
	for _, addr := range c.units.Addresses() {
		errs := []error{
			c.link.WriteFloatParam(addr, robstride.ParamPPSpeed, float32(t.SpeedLimit)),
			c.link.WriteFloatParam(addr, robstride.ParamPPAccel, float32(t.Accel)),
			c.link.WriteFloatParam(addr, robstride.ParamLimitCur, float32(t.CurrentLimit)),
		}
		ok := true
		for _, err := range errs {
			if err != nil {
				c.logger.Warn("tuning push incomplete", "addr", addr, "error", err)
				ok = false
				break
			}
		}
		if ok {
			pushed++
		}
	}
	c.logger.Info("tuning pushed", "units", pushed,
		"speed", t.SpeedLimit, "accel", t.Accel, "current", t.CurrentLimit)
	return pushed
}
