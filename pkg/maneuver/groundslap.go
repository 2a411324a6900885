package maneuver

import (
	"time"

	"github.com/teslashibe/go-jumpstick/pkg/debug"
)

// GroundSlapConfig holds the oscillation amplitude and timing.
type GroundSlapConfig struct {
	Amplitude float64       `yaml:"amplitude"`
	HalfCycle time.Duration `yaml:"half_cycle"`
	Phases    int           `yaml:"phases"`
}

// DefaultGroundSlapConfig returns three full cycles of ±0.35 rad.
func DefaultGroundSlapConfig() GroundSlapConfig {
	return GroundSlapConfig{Amplitude: 0.35, HalfCycle: 150 * time.Millisecond, Phases: 6}
}

// GroundSlap swings both arms back and forth around zero.
type GroundSlap struct {
	cfg     GroundSlapConfig
	running bool
	phase   int
	last    time.Time
}

// NewGroundSlap creates an idle animation.
func NewGroundSlap(cfg GroundSlapConfig) *GroundSlap {
	return &GroundSlap{cfg: cfg}
}

// Active reports whether the animation is running.
func (g *GroundSlap) Active() bool { return g.running }

// Phase returns the current half-cycle index.
func (g *GroundSlap) Phase() int { return g.phase }

// State returns "RUNNING" or "IDLE".
func (g *GroundSlap) State() string {
	if g.running {
		return "RUNNING"
	}
	return "IDLE"
}

// Start resets posture and commands the first swing.
func (g *GroundSlap) Start(now time.Time, arms Arms) {
	arms.ResetPosture()
	a := -g.cfg.Amplitude
	arms.CommandArms(now, a, a)
	g.running = true
	g.phase = 0
	g.last = now
	debug.ManeuverLog("ground-slap: start\n")
}

// Step advances one half-cycle when due. It returns false once idle.
func (g *GroundSlap) Step(now time.Time, arms Arms) bool {
	if !g.running {
		return false
	}
	if now.Sub(g.last) < g.cfg.HalfCycle {
		return true
	}
	g.last = g.last.Add(g.cfg.HalfCycle)
	g.phase++

	if g.phase >= g.cfg.Phases {
		arms.CommandArms(now, 0, 0)
		g.running = false
		debug.ManeuverLog("ground-slap: done\n")
		return false
	}

	a := g.cfg.Amplitude
	if g.phase%2 == 0 {
		a = -a
	}
	arms.CommandArms(now, a, a)
	return true
}

// Abort stops the animation where it is.
func (g *GroundSlap) Abort() {
	g.running = false
}
