package jumpstick

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-jumpstick/internal/config"
	"github.com/teslashibe/go-jumpstick/internal/handoff"
	"github.com/teslashibe/go-jumpstick/internal/log"
	"github.com/teslashibe/go-jumpstick/pkg/actuator"
	"github.com/teslashibe/go-jumpstick/pkg/can"
	"github.com/teslashibe/go-jumpstick/pkg/debug"
	"github.com/teslashibe/go-jumpstick/pkg/input"
	"github.com/teslashibe/go-jumpstick/pkg/orientation"
	"github.com/teslashibe/go-jumpstick/pkg/posture"
	"github.com/teslashibe/go-jumpstick/pkg/remote"
	"github.com/teslashibe/go-jumpstick/pkg/robstride"
	"github.com/teslashibe/go-jumpstick/pkg/settings"
	"github.com/teslashibe/go-jumpstick/pkg/web"
)

// PollInterval is the registry service period.
const PollInterval = 5 * time.Millisecond

// statsBus is implemented by buses that count traffic.
type statsBus interface {
	Stats() can.Stats
}

// App is the main jumpstick application orchestrator.
// It manages all components and their lifecycle.
type App struct {
	cfg    Config
	tuning config.Tuning

	// CAN session
	bus      can.Bus
	sim      *robstride.Sim
	link     *robstride.Link
	registry *actuator.Registry

	// Control
	posture *posture.Controller
	store   *settings.Store
	input   *input.Latest
	feed    *orientation.Feed

	// Surfaces
	web    *web.Server
	remote *remote.Bridge

	snapshot   handoff.Value[Snapshot]
	discovered handoff.Value[[]uint8]
	canRunning atomic.Bool

	logger *slog.Logger
}

// New creates a new application with the given configuration.
func New(cfg Config) (*App, error) {
	// Apply environment overrides
	cfg.LoadEnvConfig()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	debug.Enabled = cfg.Debug
	debug.Frames = cfg.DebugCAN
	debug.Maneuvers = cfg.DebugManeuvers

	return &App{
		cfg:    cfg,
		logger: log.With("component", "app"),
	}, nil
}

// Init opens the settings store and the bus and builds every component.
// Call this after New() and before Run().
func (a *App) Init() error {
	fmt.Println("🦘 Jumpstick - Two-Arm Posture Controller")
	fmt.Println("==========================================")
	if debug.Enabled {
		fmt.Println("🐛 Debug mode enabled")
	}

	tuning, err := config.LoadTuning(a.cfg.TuningPath)
	if err != nil {
		return fmt.Errorf("tuning: %w", err)
	}
	a.tuning = tuning

	fmt.Print("💾 Loading settings... ")
	if err := a.initSettings(); err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	fmt.Println("✅")

	fmt.Print("🔌 Opening CAN bus... ")
	if err := a.initBus(); err != nil {
		return fmt.Errorf("CAN bus: %w", err)
	}
	fmt.Println("✅")

	a.initCore()
	return nil
}

func (a *App) initSettings() error {
	var err error
	switch a.cfg.SettingsPath {
	case MemorySettings:
		a.store = settings.NewMemoryStore()
	case "":
		a.store, err = settings.NewDefaultStore()
	default:
		a.store, err = settings.NewStore(a.cfg.SettingsPath)
	}
	return err
}

func (a *App) initBus() error {
	if a.cfg.Sim {
		bus := can.NewLoopback()
		bus.SetRecording(false)
		a.sim = robstride.NewSim(a.cfg.SimUnits...)
		a.sim.Attach(bus)
		a.bus = bus
	} else {
		scfg := can.DefaultSLCANConfig()
		scfg.Port = a.cfg.CANPort
		scfg.Bitrate = a.cfg.CANBitrate
		bus, err := can.OpenSLCAN(scfg)
		if err != nil {
			return err
		}
		a.bus = bus
	}
	a.canRunning.Store(true)
	return nil
}

func (a *App) initCore() {
	lcfg := robstride.DefaultLinkConfig()
	lcfg.Spec, _ = robstride.SpecFor(a.cfg.Model)
	a.link = robstride.NewLink(a.bus, lcfg)
	a.registry = actuator.NewRegistry(a.link, a.store, a.tuning.Registry)
	a.posture = posture.NewController(a.registry, a.link, a.store, a.tuning.Posture)

	a.input = input.NewLatest(a.tuning.InputTimeout)
	a.feed = orientation.NewFeed(a.tuning.Orientation)

	a.web = web.NewServer(a.cfg.HTTPAddr, a, a.store)
	a.remote = remote.NewBridge(a.input, a.feed, a.store.BootID())
	a.remote.RegisterRoutes(a.web.App())

	a.publish(time.Now())
}

// Run scans the bus, starts the telemetry server and runs the control
// loop. Blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	go func() {
		if err := a.web.Start(ctx); err != nil {
			a.logger.Error("telemetry server stopped", "error", err)
		}
	}()
	fmt.Printf("🌐 Telemetry: http://localhost%s/api/status\n", a.cfg.HTTPAddr)
	fmt.Printf("🎮 Controller: ws://localhost%s/ws/control\n", a.cfg.HTTPAddr)

	if a.cfg.ScanOnStart {
		fmt.Print("🔍 Scanning bus... ")
		n, err := a.registry.Scan(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("scan: %w", err)
		}
		fmt.Printf("✅ %d unit(s) %v\n", n, a.registry.Addresses())
	}

	fmt.Println("\n🚀 Control loop running (Ctrl+C to exit)")
	a.runControl(ctx)
	return nil
}

// Shutdown stops the telemetry server and closes the bus.
func (a *App) Shutdown() {
	fmt.Println("\n👋 Goodbye!")

	if a.web != nil {
		a.web.App().Shutdown()
	}
	if a.bus != nil {
		a.canRunning.Store(false)
		a.bus.Close()
	}
}

// runControl is the single goroutine that owns the registry, the link
// and the posture controller.
func (a *App) runControl(ctx context.Context) {
	poll := time.NewTicker(PollInterval)
	defer poll.Stop()
	tick := time.NewTicker(a.posture.Config().TickInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-poll.C:
			a.registry.Poll(now)
		case now := <-tick.C:
			a.tick(now)
		case r := <-a.web.Requests():
			a.handleRequest(ctx, r)
		}
	}
}

// tick runs one posture step and publishes the result.
func (a *App) tick(now time.Time) {
	if a.store.ConsumeTuningDirty() {
		a.posture.PushTuning()
	}
	a.posture.Tick(now, a.input.Read(now), a.feed.Load())
	a.publish(now)
}

func (a *App) handleRequest(ctx context.Context, r web.Request) {
	switch r {
	case web.RequestScan:
		n, err := a.registry.Scan(ctx)
		if err != nil {
			a.logger.Warn("scan interrupted", "error", err)
			return
		}
		a.logger.Info("rescan complete", "units", n)
		a.publish(time.Now())
	default:
		a.logger.Warn("unknown request", "request", r.String())
	}
}

// publish builds a snapshot from the control goroutine's state.
func (a *App) publish(now time.Time) {
	units := a.registry.Snapshot()
	motors := make([]Motor, 0, len(units))
	addrs := make([]uint8, 0, len(units))
	for _, st := range units {
		motors = append(motors, motorView(st, a.registry.RoleOf(st.Address)))
		addrs = append(addrs, st.Address)
	}

	l, r := a.store.Roles()
	snap := Snapshot{
		Motors:     motors,
		CANRunning: a.canRunning.Load(),
		MotorConfig: MotorConfig{
			LeftID:        l,
			RightID:       r,
			ResolvedLeft:  a.registry.ResolveLeft(),
			ResolvedRight: a.registry.ResolveRight(),
			Tuning:        a.store.Tuning(),
		},
		Posture:     a.posture.Snapshot(),
		Orientation: orientationView(a.feed.Load(), now),
		Controller: Controller{
			Connected: a.input.Read(now).Connected,
			Bridge:    a.remote.Stats(),
		},
		UpdatedAt: now,
	}
	if sb, ok := a.bus.(statsBus); ok {
		st := sb.Stats()
		snap.Bus = &st
	}
	if info, ok := a.remote.Info(); ok {
		snap.Controller.ID = info.ID
	}

	a.snapshot.Store(snap)
	a.discovered.Store(addrs)
}

// Status returns the latest published snapshot.
func (a *App) Status() any {
	s, _ := a.snapshot.Load()
	return s
}

// Discovered returns the addresses in the latest snapshot.
func (a *App) Discovered() []uint8 {
	d, _ := a.discovered.Load()
	return d
}

// Web returns the telemetry server.
func (a *App) Web() *web.Server { return a.web }

// Settings returns the settings store.
func (a *App) Settings() *settings.Store { return a.store }
