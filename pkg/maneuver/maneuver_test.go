package maneuver

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-jumpstick/pkg/orientation"
)

// mockArms records every command and reset.
type mockArms struct {
	mu         sync.Mutex
	commands   []Pair
	resets     int
	homeResets int
}

func (m *mockArms) CommandArms(now time.Time, left, right float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, Pair{left, right})
	return true
}

func (m *mockArms) ResetPosture() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
}

func (m *mockArms) ResetHome() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.homeResets++
}

func (m *mockArms) last() Pair {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.commands) == 0 {
		return Pair{math.NaN(), math.NaN()}
	}
	return m.commands[len(m.commands)-1]
}

func (m *mockArms) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.commands)
}

var t0 = time.Unix(1000, 0)

func at(ms int) time.Time { return t0.Add(time.Duration(ms) * time.Millisecond) }

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestPIDIntegralClamped(t *testing.T) {
	cfg := DefaultPIDConfig()
	p := NewPID(cfg)

	for i := 0; i < 10000; i++ {
		out := p.Update(5, 0, 0.02)
		if math.Abs(p.Integral()) > cfg.IntegralLimit {
			t.Fatalf("tick %d: integral %v exceeds %v", i, p.Integral(), cfg.IntegralLimit)
		}
		if math.Abs(out) > cfg.OutputLimit {
			t.Fatalf("tick %d: output %v exceeds %v", i, out, cfg.OutputLimit)
		}
	}
	if !approx(p.Integral(), cfg.IntegralLimit) {
		t.Errorf("Integral: got %v, want %v", p.Integral(), cfg.IntegralLimit)
	}

	for i := 0; i < 10000; i++ {
		p.Update(-5, 0, 0.02)
	}
	if !approx(p.Integral(), -cfg.IntegralLimit) {
		t.Errorf("Integral: got %v, want %v", p.Integral(), -cfg.IntegralLimit)
	}

	p.Reset()
	if p.Integral() != 0 || p.PrevError() != 0 {
		t.Errorf("Reset: got integral %v prev %v", p.Integral(), p.PrevError())
	}
}

func TestPIDTerms(t *testing.T) {
	p := NewPID(PIDConfig{Kp: 2, Ki: 1, Kd: 0.5, IntegralLimit: 10, OutputLimit: 100})

	// kp*e + ki*(e*dt) - kd*rate
	got := p.Update(1, 2, 0.1)
	want := 2*1.0 + 1*0.1 - 0.5*2
	if !approx(got, want) {
		t.Errorf("Update: got %v, want %v", got, want)
	}
}

func TestSelfRightSequence(t *testing.T) {
	cfg := DefaultSelfRightConfig()
	s := NewSelfRight(cfg)
	arms := &mockArms{}

	s.Start(at(0), arms)
	if s.State() != SelfRightPrep || arms.last() != cfg.PrepPos {
		t.Fatalf("Start: state %v, last %v", s.State(), arms.last())
	}

	if !s.Step(at(399), arms) || s.State() != SelfRightPrep {
		t.Errorf("before settle: state %v", s.State())
	}
	s.Step(at(400), arms)
	if s.State() != SelfRightPush || arms.last() != cfg.PushPos {
		t.Errorf("after settle: state %v, last %v", s.State(), arms.last())
	}

	s.Step(at(1200), arms)
	if s.State() != SelfRightDone {
		t.Errorf("after hold: state %v, want %v", s.State(), SelfRightDone)
	}
	if arms.resets != 0 {
		t.Errorf("reset before Done step: %d", arms.resets)
	}

	if s.Step(at(1220), arms) {
		t.Error("Step after Done should report finished")
	}
	if s.State() != SelfRightIdle || arms.resets != 1 || arms.last() != cfg.FrontPos {
		t.Errorf("Done: state %v, resets %d, last %v", s.State(), arms.resets, arms.last())
	}
}

// Disconnect during Push forces Idle without the Done reset.
func TestSelfRightAbortDuringPush(t *testing.T) {
	s := NewSelfRight(DefaultSelfRightConfig())
	arms := &mockArms{}

	s.Start(at(0), arms)
	s.Step(at(400), arms)
	if s.State() != SelfRightPush {
		t.Fatalf("state: got %v, want %v", s.State(), SelfRightPush)
	}
	n := arms.count()

	s.Abort()
	if s.State() != SelfRightIdle {
		t.Errorf("state: got %v, want %v", s.State(), SelfRightIdle)
	}
	if arms.resets != 0 {
		t.Errorf("resets: got %d, want 0", arms.resets)
	}
	if arms.count() != n {
		t.Errorf("commands after abort: got %d, want %d", arms.count(), n)
	}
	if s.Step(at(2000), arms) {
		t.Error("aborted machine should stay idle")
	}
}

// Six half-cycles end at exactly (0, 0).
func TestGroundSlapSixPhases(t *testing.T) {
	cfg := DefaultGroundSlapConfig()
	g := NewGroundSlap(cfg)
	arms := &mockArms{}

	g.Start(at(0), arms)
	if arms.resets != 1 {
		t.Errorf("resets: got %d, want 1", arms.resets)
	}
	if got := arms.last(); got != (Pair{-0.35, -0.35}) {
		t.Errorf("first swing: got %v", got)
	}

	var seen []float64
	for ms := 20; ms <= 6*150; ms += 10 {
		before := arms.count()
		active := g.Step(at(ms), arms)
		if arms.count() > before {
			seen = append(seen, arms.last().Left)
		}
		if ms < 900 && !active {
			t.Fatalf("finished early at %d ms", ms)
		}
	}

	want := []float64{0.35, -0.35, 0.35, -0.35, 0.35, 0}
	if len(seen) != len(want) {
		t.Fatalf("swings: got %v, want %v", seen, want)
	}
	for i := range want {
		if !approx(seen[i], want[i]) {
			t.Errorf("swing %d: got %v, want %v", i, seen[i], want[i])
		}
	}
	if g.Active() || g.State() != "IDLE" {
		t.Errorf("state after 6 half-cycles: %s", g.State())
	}
	if got := arms.last(); got != (Pair{0, 0}) {
		t.Errorf("final command: got %v, want (0, 0)", got)
	}
}

func TestScheduleModes(t *testing.T) {
	cfg := DefaultNoseDownConfig()

	// With the default mount, nominal = pi puts the arm horizontal
	// (90 degrees from vertical) at zero pitch.
	tests := []struct {
		name    string
		nominal Pair
		want    GainMode
	}{
		{"both horizontal", Pair{math.Pi, math.Pi}, GainUniform},
		{"mirror horizontal", Pair{math.Pi, 0}, GainDifferential},
		{"both vertical", Pair{math.Pi / 2, math.Pi / 2}, GainDeadZone},
		{"vertical up and down", Pair{math.Pi / 2, 3 * math.Pi / 2}, GainDeadZone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode, off := cfg.Schedule(tt.nominal, 0, 0.5)
			if mode != tt.want {
				t.Errorf("mode: got %v, want %v", mode, tt.want)
			}
			if mode == GainDeadZone && (off.Left != 0 || off.Right != 0) {
				t.Errorf("dead zone offsets: got %v, want zero", off)
			}
		})
	}
}

func TestScheduleClampsOffset(t *testing.T) {
	cfg := DefaultNoseDownConfig()
	mode, off := cfg.Schedule(Pair{math.Pi, math.Pi}, 0, 100)
	if mode != GainUniform {
		t.Fatalf("mode: got %v", mode)
	}
	if !approx(off.Left, cfg.MaxArmOffset) || !approx(off.Right, cfg.MaxArmOffset) {
		t.Errorf("offset: got %v, want %v", off, cfg.MaxArmOffset)
	}

	_, off = cfg.Schedule(Pair{math.Pi, 0}, 0, 0.5)
	if !approx(off.Left, -off.Right) {
		t.Errorf("differential offsets not opposite: %v", off)
	}
}

func TestSensitivityMatchesAngleFromVertical(t *testing.T) {
	cfg := DefaultNoseDownConfig()
	for _, nominal := range []float64{0, 0.6, 1.2, 1.4, math.Pi} {
		for _, pitch := range []float64{0, 0.3, 0.9} {
			phi := nominal + pitch + cfg.ArmMountAngle
			if got := cfg.Sensitivity(nominal, pitch); !approx(got, math.Sin(phi)) {
				t.Errorf("Sensitivity(%v, %v): got %v, want %v", nominal, pitch, got, math.Sin(phi))
			}
		}
	}
}

// Alternating readings around the engage threshold never confirm, and
// the machine stays Tipping until the timeout.
func TestNoseDownAlternatingPitchTimesOut(t *testing.T) {
	cfg := DefaultNoseDownConfig()
	n := NewNoseDown(cfg)
	arms := &mockArms{}

	n.Start(at(0), orientation.Reading{}, arms)
	if n.State() != NoseDownTipping || arms.last() != cfg.TipPos {
		t.Fatalf("Start: state %v, last %v", n.State(), arms.last())
	}

	above := orientation.Reading{Pitch: cfg.EngagePitch + 0.01}
	below := orientation.Reading{Pitch: cfg.EngagePitch - 0.01}
	timeout := int(cfg.TipTimeout / time.Millisecond)

	i := 0
	for ms := 320; ms < timeout; ms += 20 {
		r := above
		if i%2 == 1 {
			r = below
		}
		i++
		if !n.Step(at(ms), r, false, arms) {
			t.Fatalf("left Tipping at %d ms", ms)
		}
		if r == below && n.Confirm() != 0 {
			t.Fatalf("counter not reset at %d ms: %d", ms, n.Confirm())
		}
		if n.Confirm() >= cfg.ConfirmCount {
			t.Fatalf("confirmed at %d ms", ms)
		}
		if n.State() != NoseDownTipping {
			t.Fatalf("state at %d ms: %v", ms, n.State())
		}
	}

	if n.Step(at(timeout), below, false, arms) {
		t.Error("expected timeout to finish the maneuver")
	}
	if n.State() != NoseDownIdle {
		t.Errorf("state: got %v, want %v", n.State(), NoseDownIdle)
	}
	if arms.last() != cfg.FrontPos || arms.homeResets != 1 {
		t.Errorf("timeout: last %v, home resets %d", arms.last(), arms.homeResets)
	}
}

func TestNoseDownSettleIgnoresPitch(t *testing.T) {
	cfg := DefaultNoseDownConfig()
	n := NewNoseDown(cfg)
	arms := &mockArms{}

	n.Start(at(0), orientation.Reading{}, arms)
	high := orientation.Reading{Pitch: 1.0}
	for ms := 20; ms < 300; ms += 20 {
		n.Step(at(ms), high, false, arms)
	}
	if n.Confirm() != 0 {
		t.Errorf("confirm during settle: got %d, want 0", n.Confirm())
	}
}

func engage(t *testing.T, n *NoseDown, arms *mockArms, cfg NoseDownConfig) int {
	t.Helper()
	n.Start(at(0), orientation.Reading{}, arms)
	high := orientation.Reading{Pitch: cfg.Setpoint}
	ms := 300
	for i := 0; i < cfg.ConfirmCount; i++ {
		n.Step(at(ms), high, false, arms)
		ms += 20
	}
	if n.State() != NoseDownBalancing {
		t.Fatalf("state after confirm: got %v, want %v", n.State(), NoseDownBalancing)
	}
	return ms
}

func TestNoseDownBalanceRampAndLoss(t *testing.T) {
	cfg := DefaultNoseDownConfig()
	n := NewNoseDown(cfg)
	arms := &mockArms{}
	ms := engage(t, n, arms, cfg)

	if !n.BalanceStart().Equal(at(ms - 20)) {
		t.Errorf("BalanceStart: got %v, want %v", n.BalanceStart(), at(ms-20))
	}

	onTarget := orientation.Reading{Pitch: cfg.Setpoint}
	n.Step(at(ms+100), onTarget, false, arms)
	if n.Ramp() <= 0 {
		t.Errorf("ramp did not advance: %v", n.Ramp())
	}
	frozen := n.Ramp()

	// Outside the gate the ramp holds.
	offTarget := orientation.Reading{Pitch: cfg.Setpoint + 0.5}
	n.Step(at(ms+200), offTarget, false, arms)
	if n.Ramp() != frozen {
		t.Errorf("ramp moved outside gate: got %v, want %v", n.Ramp(), frozen)
	}

	for i := 0; i < 200; i++ {
		n.Step(at(ms+300+20*i), onTarget, false, arms)
	}
	if n.Ramp() != 1 {
		t.Errorf("ramp: got %v, want 1", n.Ramp())
	}

	lost := orientation.Reading{Pitch: cfg.LostPitch - 0.01}
	n.Step(at(ms+5000), lost, false, arms)
	if n.State() != NoseDownTipping {
		t.Errorf("state after loss: got %v, want %v", n.State(), NoseDownTipping)
	}
	if n.Ramp() != 0 || n.PID().Integral() != 0 {
		t.Errorf("loss did not reset ramp/PID: ramp %v integral %v", n.Ramp(), n.PID().Integral())
	}
	if arms.last() != cfg.TipPos {
		t.Errorf("loss command: got %v, want %v", arms.last(), cfg.TipPos)
	}
}

func TestNoseDownExitSweep(t *testing.T) {
	cfg := DefaultNoseDownConfig()
	n := NewNoseDown(cfg)
	arms := &mockArms{}
	ms := engage(t, n, arms, cfg)

	on := orientation.Reading{Pitch: cfg.Setpoint}
	n.Step(at(ms), orientation.Reading{Pitch: cfg.Setpoint - 0.02, Rate: 0.3}, false, arms)
	start := Lerp(cfg.TipPos, cfg.BalancePos, n.Ramp())

	n.Step(at(ms+20), on, true, arms)
	if n.State() != NoseDownExiting {
		t.Fatalf("state: got %v, want %v", n.State(), NoseDownExiting)
	}
	exitAt := ms + 20
	half := int(cfg.ExitDuration/time.Millisecond) / 2

	// The sweep starts from the nominal ramp pose, without the PID offset.
	n.Step(at(exitAt+half/2), on, false, arms)
	want := Lerp(start, cfg.UpPos, 0.5)
	if got := arms.last(); !approx(got.Left, want.Left) || !approx(got.Right, want.Right) {
		t.Errorf("quarter: got %v, want %v", got, want)
	}

	n.Step(at(exitAt+half), on, false, arms)
	if got := arms.last(); !approx(got.Left, cfg.UpPos.Left) || !approx(got.Right, cfg.UpPos.Right) {
		t.Errorf("midpoint: got %v, want %v (from %v)", got, cfg.UpPos, start)
	}

	if n.Step(at(exitAt+2*half), on, false, arms) {
		t.Error("expected exit to finish")
	}
	if n.State() != NoseDownIdle || arms.last() != cfg.FrontPos || arms.resets != 1 {
		t.Errorf("exit end: state %v, last %v, resets %d", n.State(), arms.last(), arms.resets)
	}
}

func TestNoseDownUpsideDownDetour(t *testing.T) {
	cfg := DefaultNoseDownConfig()
	n := NewNoseDown(cfg)
	arms := &mockArms{}

	n.Start(at(0), orientation.Reading{UpsideDown: true}, arms)
	if n.State() != NoseDownSelfRight || arms.last() != cfg.SelfRight.PrepPos {
		t.Fatalf("Start: state %v, last %v", n.State(), arms.last())
	}

	level := orientation.Reading{}
	n.Step(at(400), level, false, arms)
	n.Step(at(1200), level, false, arms)
	n.Step(at(1220), level, false, arms)
	if n.State() != NoseDownTipping {
		t.Errorf("state: got %v, want %v", n.State(), NoseDownTipping)
	}
	if arms.last() != cfg.TipPos {
		t.Errorf("last: got %v, want %v", arms.last(), cfg.TipPos)
	}
}

func TestNoseDownAbort(t *testing.T) {
	cfg := DefaultNoseDownConfig()
	n := NewNoseDown(cfg)
	arms := &mockArms{}
	engage(t, n, arms, cfg)
	count := arms.count()

	n.Abort()
	if n.State() != NoseDownIdle || n.PID().Integral() != 0 {
		t.Errorf("abort: state %v integral %v", n.State(), n.PID().Integral())
	}
	if arms.count() != count || arms.resets != 0 {
		t.Errorf("abort touched arms: commands %d->%d resets %d", count, arms.count(), arms.resets)
	}
}
