// canscan lists the Robstride actuators on a CAN bus.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/teslashibe/go-jumpstick/internal/config"
	jlog "github.com/teslashibe/go-jumpstick/internal/log"
	"github.com/teslashibe/go-jumpstick/pkg/actuator"
	"github.com/teslashibe/go-jumpstick/pkg/can"
	"github.com/teslashibe/go-jumpstick/pkg/debug"
	"github.com/teslashibe/go-jumpstick/pkg/robstride"
)

func main() {
	port := flag.String("port", config.String("JUMPSTICK_CAN_PORT", config.DefaultCANPort), "SLCAN serial device")
	bitrate := flag.Int("bitrate", 1000000, "CAN bitrate in bit/s")
	sim := flag.Bool("sim", false, "Scan a simulated bus with units 1 and 2")
	settle := flag.Duration("settle", time.Second, "How long to poll after the scan before printing")
	watch := flag.Bool("watch", false, "Keep printing the table every second")
	model := flag.String("model", "RS02", "Actuator model for feedback scaling (RS00-RS06)")
	setID := flag.String("set-id", "", "Re-address a unit as old:new before scanning")
	debugCAN := flag.Bool("debug-can", false, "Trace every CAN frame")
	flag.Parse()

	spec, ok := robstride.SpecFor(*model)
	if !ok {
		log.Fatalf("❌ Unknown model %q", *model)
	}

	jlog.Init("warn")
	debug.Frames = *debugCAN

	fmt.Println("🔍 Robstride CAN Scanner")
	fmt.Println("========================")

	var bus can.Bus
	if *sim {
		lb := can.NewLoopback()
		lb.SetRecording(false)
		robstride.NewSim(1, 2).Attach(lb)
		bus = lb
		fmt.Println("   Bus: simulated")
	} else {
		cfg := can.DefaultSLCANConfig()
		cfg.Port, cfg.Bitrate = *port, *bitrate
		s, err := can.OpenSLCAN(cfg)
		if err != nil {
			log.Fatalf("❌ Failed to open %s: %v", *port, err)
		}
		bus = s
		fmt.Printf("   Bus: %s @ %d bit/s\n", *port, *bitrate)
	}
	defer bus.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	lcfg := robstride.DefaultLinkConfig()
	lcfg.Spec = spec
	link := robstride.NewLink(bus, lcfg)
	reg := actuator.NewRegistry(link, nil, actuator.DefaultConfig())

	if *setID != "" {
		from, to, err := parsePair(*setID)
		if err != nil {
			log.Fatalf("❌ --set-id: %v", err)
		}
		if err := link.SetCANID(from, to); err != nil {
			log.Fatalf("❌ Set ID %d -> %d: %v", from, to, err)
		}
		if err := link.SaveParams(to); err != nil {
			log.Printf("⚠️  Save on %d: %v", to, err)
		}
		fmt.Printf("🔧 Unit %d re-addressed as %d\n", from, to)
		time.Sleep(100 * time.Millisecond)
	}

	n, err := reg.Scan(ctx)
	if err != nil {
		log.Fatalf("❌ Scan interrupted: %v", err)
	}
	fmt.Printf("✅ Found %d unit(s)\n\n", n)
	if n == 0 {
		return
	}

	pollFor(ctx, reg, *settle)
	printTable(reg.Snapshot())

	if !*watch {
		return
	}
	for ctx.Err() == nil {
		pollFor(ctx, reg, time.Second)
		fmt.Println()
		printTable(reg.Snapshot())
	}
}

// parsePair parses "old:new".
func parsePair(s string) (uint8, uint8, error) {
	a, b, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("want old:new, got %q", s)
	}
	from, err := strconv.ParseUint(a, 0, 8)
	if err != nil {
		return 0, 0, err
	}
	to, err := strconv.ParseUint(b, 0, 8)
	if err != nil {
		return 0, 0, err
	}
	return uint8(from), uint8(to), nil
}

// pollFor services the registry at the control-loop rate for d.
func pollFor(ctx context.Context, reg *actuator.Registry, d time.Duration) {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(d)
	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case now := <-ticker.C:
			reg.Poll(now)
		}
	}
}

func printTable(units []actuator.Status) {
	fmt.Printf("%-4s %-12s %-8s %9s %7s %7s %s\n", "ID", "STATE", "ENABLED", "POS(rad)", "TEMP", "VBUS", "FAULTS")
	for _, u := range units {
		stale := ""
		if u.Stale {
			stale = " (stale)"
		}
		fmt.Printf("%-4d %-12s %-8v %9.3f %6.1f° %6.1fV %s%s\n",
			u.Address, u.Mode, u.Enabled, u.Position, u.Temperature, u.Voltage, u.Fault, stale)
	}
}
