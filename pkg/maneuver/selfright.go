package maneuver

import (
	"math"
	"time"

	"github.com/teslashibe/go-jumpstick/pkg/debug"
)

// SelfRightState is the self-righting phase.
type SelfRightState uint8

// Self-righting phases.
const (
	SelfRightIdle SelfRightState = iota
	SelfRightPrep
	SelfRightPush
	SelfRightDone
)

func (s SelfRightState) String() string {
	switch s {
	case SelfRightIdle:
		return "IDLE"
	case SelfRightPrep:
		return "PREP"
	case SelfRightPush:
		return "PUSH"
	case SelfRightDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// SelfRightConfig holds the self-righting positions and timing.
type SelfRightConfig struct {
	PrepPos    Pair          `yaml:"prep_pos"`
	PushPos    Pair          `yaml:"push_pos"`
	FrontPos   Pair          `yaml:"front_pos"`
	PrepSettle time.Duration `yaml:"prep_settle"`
	PushHold   time.Duration `yaml:"push_hold"`
}

// DefaultSelfRightConfig returns the default sequence.
func DefaultSelfRightConfig() SelfRightConfig {
	return SelfRightConfig{
		PrepPos:    Pair{math.Pi * 0.75, math.Pi * 0.75},
		PushPos:    Pair{math.Pi, math.Pi},
		FrontPos:   Pair{},
		PrepSettle: 400 * time.Millisecond,
		PushHold:   800 * time.Millisecond,
	}
}

// SelfRight flips an inverted robot by pushing both arms into the ground.
type SelfRight struct {
	cfg     SelfRightConfig
	state   SelfRightState
	entered time.Time
}

// NewSelfRight creates an idle machine.
func NewSelfRight(cfg SelfRightConfig) *SelfRight {
	return &SelfRight{cfg: cfg}
}

// State returns the current phase.
func (s *SelfRight) State() SelfRightState { return s.state }

// Active reports whether the sequence is running.
func (s *SelfRight) Active() bool { return s.state != SelfRightIdle }

// Start commands the prep position and enters Prep.
func (s *SelfRight) Start(now time.Time, arms Arms) {
	command(now, arms, s.cfg.PrepPos)
	s.enter(SelfRightPrep, now)
}

// Step advances the sequence. It returns false once the sequence is idle.
func (s *SelfRight) Step(now time.Time, arms Arms) bool {
	switch s.state {
	case SelfRightPrep:
		if now.Sub(s.entered) >= s.cfg.PrepSettle {
			command(now, arms, s.cfg.PushPos)
			s.enter(SelfRightPush, now)
		}
	case SelfRightPush:
		if now.Sub(s.entered) >= s.cfg.PushHold {
			s.enter(SelfRightDone, now)
		}
	case SelfRightDone:
		arms.ResetPosture()
		command(now, arms, s.cfg.FrontPos)
		s.enter(SelfRightIdle, now)
		return false
	default:
		return false
	}
	return true
}

// Abort drops to Idle without resetting posture or commanding the arms.
func (s *SelfRight) Abort() {
	if s.state != SelfRightIdle {
		debug.ManeuverLog("self-right: abort from %s\n", s.state)
	}
	s.state = SelfRightIdle
}

func (s *SelfRight) enter(st SelfRightState, now time.Time) {
	debug.ManeuverLog("self-right: %s -> %s\n", s.state, st)
	s.state = st
	s.entered = now
}
