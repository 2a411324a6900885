// monitor prints live jumpstick telemetry from a running robot.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-jumpstick/internal/httpc"
	"github.com/teslashibe/go-jumpstick/pkg/jumpstick"
)

func main() {
	base := flag.String("url", "http://localhost:8080", "Robot telemetry base URL")
	left := flag.Int("left", -1, "Assign the left actuator address before monitoring")
	right := flag.Int("right", -1, "Assign the right actuator address before monitoring")
	scan := flag.Bool("scan", false, "Request a bus rescan before monitoring")
	flag.Parse()

	url := strings.TrimSuffix(*base, "/")

	var health struct {
		Status string `json:"status"`
		BootID string `json:"bootId"`
	}
	if err := httpc.GetJSON(url+"/api/health", &health); err != nil {
		log.Fatalf("❌ Robot not reachable: %v", err)
	}
	fmt.Printf("✅ Connected to %s (boot %s)\n", url, health.BootID)

	if *left >= 0 || *right >= 0 {
		var cfg struct {
			LeftID  int `json:"leftId"`
			RightID int `json:"rightId"`
		}
		if err := httpc.GetJSON(url+"/api/config", &cfg); err != nil {
			log.Fatalf("❌ Read config: %v", err)
		}
		if *left >= 0 {
			cfg.LeftID = *left
		}
		if *right >= 0 {
			cfg.RightID = *right
		}
		if err := httpc.PostJSON(url+"/api/config", cfg, nil); err != nil {
			log.Fatalf("❌ Set roles: %v", err)
		}
		fmt.Printf("🔧 Roles set: L=%d R=%d\n", cfg.LeftID, cfg.RightID)
	}
	if *scan {
		if err := httpc.PostJSON(url+"/api/motors/scan", struct{}{}, nil); err != nil {
			log.Printf("⚠️  Scan request: %v", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(url, "http") + "/ws/status"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Fatalf("❌ WebSocket dial: %v", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("⚠️  Stream ended: %v", err)
			}
			fmt.Println("\n👋 Goodbye!")
			return
		}
		var snap jumpstick.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			log.Printf("⚠️  Bad status frame: %v", err)
			continue
		}
		printLine(snap)
	}
}

func printLine(s jumpstick.Snapshot) {
	pad := "🎮 off"
	if s.Controller.Connected {
		pad = "🎮 on "
	}
	var motors []string
	for _, m := range s.Motors {
		mark := ""
		switch {
		case m.HasFault:
			mark = "!" + m.Faults
		case m.Stale:
			mark = "~"
		case !m.Enabled:
			mark = "-"
		}
		motors = append(motors, fmt.Sprintf("%d%s:%+.2f%s", m.ID, m.Role, m.Position, mark))
	}
	fmt.Printf("\r%s | %s | %-10s | pitch %+.2f | jog %+.2f | %s    ",
		pad, s.Posture.Preset, s.Posture.Active, s.Orientation.Pitch, s.Posture.Jog, strings.Join(motors, " "))
}
