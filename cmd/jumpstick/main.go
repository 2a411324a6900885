// Jumpstick - two-arm posture controller for Robstride actuators.
// Reads a remote gamepad over WebSocket and drives the arms over CAN.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	jlog "github.com/teslashibe/go-jumpstick/internal/log"
	"github.com/teslashibe/go-jumpstick/pkg/jumpstick"
)

func main() {
	cfg, level := parseFlags()
	jlog.Init(level)

	app, err := jumpstick.New(cfg)
	if err != nil {
		log.Fatalf("❌ Configuration error: %v", err)
	}

	if err := app.Init(); err != nil {
		log.Fatalf("❌ Initialization failed: %v", err)
	}
	defer app.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx); err != nil {
		log.Fatalf("❌ Runtime error: %v", err)
	}
}

// parseFlags parses command line flags and returns configuration.
func parseFlags() (jumpstick.Config, string) {
	cfg := jumpstick.DefaultConfig()

	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	debugCAN := flag.Bool("debug-can", false, "Trace every CAN frame (very verbose)")
	debugManeuvers := flag.Bool("debug-maneuvers", false, "Trace maneuver state changes")
	port := flag.String("port", cfg.CANPort, "SLCAN serial device")
	bitrate := flag.Int("bitrate", cfg.CANBitrate, "CAN bitrate in bit/s")
	model := flag.String("model", cfg.Model, "Actuator model for feedback scaling (RS00-RS06)")
	sim := flag.Bool("sim", false, "Run against simulated actuators")
	simUnits := flag.String("sim-units", "1,2", "Comma-separated simulated unit addresses")
	addr := flag.String("addr", cfg.HTTPAddr, "Telemetry listen address")
	settingsPath := flag.String("settings", "", "Settings file (default ~/.jumpstick/settings.json, :memory: for none)")
	tuningPath := flag.String("tuning", "", "YAML file overriding control constants")
	noScan := flag.Bool("no-scan", false, "Skip the bus scan at start-up")
	level := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	cfg.Debug, cfg.DebugCAN, cfg.DebugManeuvers = *debug, *debugCAN, *debugManeuvers
	cfg.CANPort, cfg.CANBitrate, cfg.Model = *port, *bitrate, *model
	cfg.Sim = *sim
	cfg.HTTPAddr = *addr
	cfg.SettingsPath, cfg.TuningPath = *settingsPath, *tuningPath
	cfg.ScanOnStart = !*noScan

	units, err := parseAddrs(*simUnits)
	if err != nil {
		log.Fatalf("❌ --sim-units: %v", err)
	}
	cfg.SimUnits = units

	if *debug && *level == "info" {
		*level = "debug"
	}
	return cfg, *level
}

func parseAddrs(s string) ([]uint8, error) {
	var out []uint8
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseUint(part, 0, 8)
		if err != nil {
			return nil, err
		}
		out = append(out, uint8(v))
	}
	return out, nil
}
