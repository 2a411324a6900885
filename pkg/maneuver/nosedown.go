package maneuver

import (
	"math"
	"time"

	"github.com/teslashibe/go-jumpstick/pkg/debug"
	"github.com/teslashibe/go-jumpstick/pkg/orientation"
)

// NoseDownState is the nose-down balance phase.
type NoseDownState uint8

// Nose-down phases.
const (
	NoseDownIdle NoseDownState = iota
	NoseDownSelfRight
	NoseDownTipping
	NoseDownBalancing
	NoseDownExiting
)

func (s NoseDownState) String() string {
	switch s {
	case NoseDownIdle:
		return "IDLE"
	case NoseDownSelfRight:
		return "SELF_RIGHT"
	case NoseDownTipping:
		return "TIPPING"
	case NoseDownBalancing:
		return "BALANCING"
	case NoseDownExiting:
		return "EXITING"
	default:
		return "UNKNOWN"
	}
}

// GainMode is the gain-scheduling branch taken on a balance step.
type GainMode uint8

// Gain-scheduling branches.
const (
	GainDeadZone GainMode = iota
	GainUniform
	GainDifferential
)

func (m GainMode) String() string {
	switch m {
	case GainUniform:
		return "uniform"
	case GainDifferential:
		return "differential"
	default:
		return "dead_zone"
	}
}

// NoseDownConfig holds the balance positions, thresholds and timing.
type NoseDownConfig struct {
	TipPos     Pair `yaml:"tip_pos"`
	BalancePos Pair `yaml:"balance_pos"`
	UpPos      Pair `yaml:"up_pos"`
	FrontPos   Pair `yaml:"front_pos"`

	TipSettle  time.Duration `yaml:"tip_settle"`
	TipTimeout time.Duration `yaml:"tip_timeout"`

	EngagePitch  float64 `yaml:"engage_pitch"` // rad
	LostPitch    float64 `yaml:"lost_pitch"`   // rad
	ConfirmCount int     `yaml:"confirm_count"`
	Setpoint     float64 `yaml:"setpoint"` // rad

	RampDuration time.Duration `yaml:"ramp_duration"`
	RampGateDeg  float64       `yaml:"ramp_gate_deg"`
	ExitDuration time.Duration `yaml:"exit_duration"`

	ArmMountAngle  float64 `yaml:"arm_mount_angle"` // rad
	MinSensitivity float64 `yaml:"min_sensitivity"`
	MaxArmOffset   float64 `yaml:"max_arm_offset"` // rad

	PID       PIDConfig       `yaml:"pid"`
	SelfRight SelfRightConfig `yaml:"self_right"`
}

// DefaultNoseDownConfig returns the tuned defaults.
func DefaultNoseDownConfig() NoseDownConfig {
	return NoseDownConfig{
		TipPos:         Pair{0.6, 1.2},
		BalancePos:     Pair{1.4, 1.4},
		UpPos:          Pair{math.Pi / 2, math.Pi / 2},
		FrontPos:       Pair{},
		TipSettle:      300 * time.Millisecond,
		TipTimeout:     3 * time.Second,
		EngagePitch:    0.6,
		LostPitch:      0.3,
		ConfirmCount:   5,
		Setpoint:       0.9,
		RampDuration:   1500 * time.Millisecond,
		RampGateDeg:    10,
		ExitDuration:   1200 * time.Millisecond,
		ArmMountAngle:  -math.Pi / 2,
		MinSensitivity: 0.25,
		MaxArmOffset:   0.8,
		PID:            DefaultPIDConfig(),
		SelfRight:      DefaultSelfRightConfig(),
	}
}

// Sensitivity returns how strongly an arm at nominal moves body pitch
// for a small position change, as the negative cosine of its world
// angle.
func (c NoseDownConfig) Sensitivity(nominal, pitch float64) float64 {
	world := nominal + pitch + c.ArmMountAngle + math.Pi/2
	return -math.Cos(world)
}

// Schedule splits a PID output into per-arm offsets. It returns the
// branch taken and the offsets to add to the nominal targets.
func (c NoseDownConfig) Schedule(nominal Pair, pitch, out float64) (GainMode, Pair) {
	sL := c.Sensitivity(nominal.Left, pitch)
	sR := c.Sensitivity(nominal.Right, pitch)

	if sum := sL + sR; math.Abs(sum) > c.MinSensitivity {
		off := clamp(out/sum, c.MaxArmOffset)
		return GainUniform, Pair{off, off}
	}
	if diff := sL - sR; math.Abs(diff) > c.MinSensitivity {
		off := clamp(out/diff, c.MaxArmOffset)
		return GainDifferential, Pair{off, -off}
	}
	return GainDeadZone, Pair{}
}

// NoseDown tips the robot onto its nose and holds it there with a PID
// loop on pitch, blending the arms from the tip pose to the balance pose.
type NoseDown struct {
	cfg     NoseDownConfig
	state   NoseDownState
	entered time.Time

	selfRight *SelfRight
	pid       *PID

	confirm      int
	ramp         float64
	lastRamp     time.Time
	balanceStart time.Time
	lastCmd      Pair
	exitStart    Pair
	mode         GainMode
}

// NewNoseDown creates an idle machine.
func NewNoseDown(cfg NoseDownConfig) *NoseDown {
	return &NoseDown{
		cfg:       cfg,
		selfRight: NewSelfRight(cfg.SelfRight),
		pid:       NewPID(cfg.PID),
	}
}

// State returns the current phase.
func (n *NoseDown) State() NoseDownState { return n.state }

// Active reports whether the machine owns the arms.
func (n *NoseDown) Active() bool { return n.state != NoseDownIdle }

// Confirm returns the engage confirmation counter.
func (n *NoseDown) Confirm() int { return n.confirm }

// Ramp returns the tip-to-balance progress in [0, 1].
func (n *NoseDown) Ramp() float64 { return n.ramp }

// Mode returns the gain-scheduling branch of the last balance step.
func (n *NoseDown) Mode() GainMode { return n.mode }

// BalanceStart returns when Balancing was last entered.
func (n *NoseDown) BalanceStart() time.Time { return n.balanceStart }

// PID exposes the balance controller.
func (n *NoseDown) PID() *PID { return n.pid }

// Start begins the maneuver, detouring through self-righting when the
// robot is upside down.
func (n *NoseDown) Start(now time.Time, o orientation.Reading, arms Arms) {
	if o.UpsideDown {
		n.selfRight.Start(now, arms)
		n.enter(NoseDownSelfRight, now)
		return
	}
	n.enterTipping(now, arms)
}

// Step advances the machine by one control tick. exit is the exit button
// edge. It returns false once idle.
func (n *NoseDown) Step(now time.Time, o orientation.Reading, exit bool, arms Arms) bool {
	switch n.state {
	case NoseDownSelfRight:
		if !n.selfRight.Step(now, arms) {
			n.enterTipping(now, arms)
		}
	case NoseDownTipping:
		return n.stepTipping(now, o, arms)
	case NoseDownBalancing:
		n.stepBalancing(now, o, exit, arms)
	case NoseDownExiting:
		return n.stepExiting(now, arms)
	default:
		return false
	}
	return true
}

// Abort resets the controller and drops to Idle, leaving the arms where
// they are.
func (n *NoseDown) Abort() {
	if n.state == NoseDownIdle {
		return
	}
	debug.ManeuverLog("nose-down: abort from %s\n", n.state)
	n.selfRight.Abort()
	n.pid.Reset()
	n.confirm = 0
	n.ramp = 0
	n.state = NoseDownIdle
}

func (n *NoseDown) stepTipping(now time.Time, o orientation.Reading, arms Arms) bool {
	elapsed := now.Sub(n.entered)
	if elapsed < n.cfg.TipSettle {
		return true
	}

	if o.Pitch > n.cfg.EngagePitch {
		n.confirm++
		if n.confirm >= n.cfg.ConfirmCount {
			n.enterBalancing(now)
			return true
		}
	} else {
		n.confirm = 0
	}

	if elapsed >= n.cfg.TipTimeout {
		debug.ManeuverLog("nose-down: tip timeout\n")
		n.send(now, arms, n.cfg.FrontPos)
		arms.ResetHome()
		n.confirm = 0
		n.enter(NoseDownIdle, now)
		return false
	}
	return true
}

func (n *NoseDown) stepBalancing(now time.Time, o orientation.Reading, exit bool, arms Arms) {
	if o.Pitch < n.cfg.LostPitch {
		debug.ManeuverLog("nose-down: balance lost at %.3f\n", o.Pitch)
		n.enterTipping(now, arms)
		return
	}
	if exit {
		n.exitStart = Lerp(n.cfg.TipPos, n.cfg.BalancePos, n.ramp)
		n.enter(NoseDownExiting, now)
		return
	}

	dt := now.Sub(n.lastRamp).Seconds()
	n.lastRamp = now

	errPitch := n.cfg.Setpoint - o.Pitch
	gate := n.cfg.RampGateDeg * math.Pi / 180
	if math.Abs(errPitch) < gate && n.cfg.RampDuration > 0 {
		n.ramp = math.Min(1, n.ramp+dt/n.cfg.RampDuration.Seconds())
	}

	nominal := Lerp(n.cfg.TipPos, n.cfg.BalancePos, n.ramp)
	out := n.pid.Update(errPitch, o.Rate, dt)
	mode, off := n.cfg.Schedule(nominal, o.Pitch, out)
	n.mode = mode

	n.send(now, arms, Pair{nominal.Left + off.Left, nominal.Right + off.Right})
}

func (n *NoseDown) stepExiting(now time.Time, arms Arms) bool {
	u := 1.0
	if n.cfg.ExitDuration > 0 {
		u = now.Sub(n.entered).Seconds() / n.cfg.ExitDuration.Seconds()
	}
	if u >= 1 {
		n.send(now, arms, n.cfg.FrontPos)
		arms.ResetPosture()
		n.enter(NoseDownIdle, now)
		return false
	}
	if u < 0.5 {
		n.send(now, arms, Lerp(n.exitStart, n.cfg.UpPos, u/0.5))
	} else {
		n.send(now, arms, Lerp(n.cfg.UpPos, n.cfg.FrontPos, (u-0.5)/0.5))
	}
	return true
}

func (n *NoseDown) enterTipping(now time.Time, arms Arms) {
	n.pid.Reset()
	n.ramp = 0
	n.confirm = 0
	n.send(now, arms, n.cfg.TipPos)
	n.enter(NoseDownTipping, now)
}

func (n *NoseDown) enterBalancing(now time.Time) {
	n.pid.Reset()
	n.ramp = 0
	n.confirm = 0
	n.lastRamp = now
	n.balanceStart = now
	n.enter(NoseDownBalancing, now)
}

func (n *NoseDown) send(now time.Time, arms Arms, p Pair) {
	n.lastCmd = p
	command(now, arms, p)
}

func (n *NoseDown) enter(st NoseDownState, now time.Time) {
	debug.ManeuverLog("nose-down: %s -> %s\n", n.state, st)
	n.state = st
	n.entered = now
}
