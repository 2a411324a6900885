package jumpstick

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/teslashibe/go-jumpstick/pkg/input"
	"github.com/teslashibe/go-jumpstick/pkg/robstride"
	"github.com/teslashibe/go-jumpstick/pkg/web"
)

// newSimApp builds an initialized app on the simulated bus with units 1
// and 2 already scanned.
func newSimApp(t *testing.T) *App {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Sim = true
	cfg.SettingsPath = MemorySettings
	cfg.HTTPAddr = ":0"

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(a.Shutdown)

	n, err := a.registry.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if n != 2 {
		t.Fatalf("Scan: got %d units, want 2", n)
	}
	return a
}

func getStatus(t *testing.T, a *App) Snapshot {
	t.Helper()
	resp, err := a.Web().App().Test(httptest.NewRequest("GET", "/api/status", nil))
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("decode status %q: %v", data, err)
	}
	return snap
}

func postJSON(t *testing.T, a *App, path, body string) int {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.Web().App().Test(req)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestStatusReportsRoleLabels(t *testing.T) {
	a := newSimApp(t)

	if code := postJSON(t, a, "/api/config", `{"leftId":2,"rightId":1}`); code != 200 {
		t.Fatalf("POST /api/config: got %d, want 200", code)
	}
	a.publish(time.Now())

	snap := getStatus(t, a)
	if !snap.CANRunning {
		t.Error("canRunning: got false, want true")
	}
	if len(snap.Motors) != 2 {
		t.Fatalf("motors: got %d, want 2", len(snap.Motors))
	}
	roles := map[uint8]string{}
	for _, m := range snap.Motors {
		roles[m.ID] = m.Role
	}
	if roles[2] != "L" || roles[1] != "R" {
		t.Errorf("roles: got %v, want map[1:R 2:L]", roles)
	}
	if snap.MotorConfig.ResolvedLeft != 2 || snap.MotorConfig.ResolvedRight != 1 {
		t.Errorf("resolved: got (%d, %d), want (2, 1)", snap.MotorConfig.ResolvedLeft, snap.MotorConfig.ResolvedRight)
	}
	if snap.Orientation.Age != -1 {
		t.Errorf("orientation age without samples: got %d, want -1", snap.Orientation.Age)
	}
}

func TestConfigRejectsDuplicateRoles(t *testing.T) {
	a := newSimApp(t)

	if code := postJSON(t, a, "/api/config", `{"leftId":1,"rightId":1}`); code != 400 {
		t.Errorf("duplicate roles: got %d, want 400", code)
	}
	if l, r := a.Settings().Roles(); l != 0 || r != 0 {
		t.Errorf("roles after rejection: got (%d, %d), want (0, 0)", l, r)
	}
}

func TestTuningChangeIsPushed(t *testing.T) {
	a := newSimApp(t)

	if code := postJSON(t, a, "/api/settings", `{"tuning":{"speedLimit":10}}`); code != 200 {
		t.Fatalf("POST /api/settings: got %d, want 200", code)
	}
	a.tick(time.Now())

	for _, addr := range []uint8{1, 2} {
		u, ok := a.sim.Unit(addr)
		if !ok {
			t.Fatalf("sim unit %d missing", addr)
		}
		if got := u.Params[robstride.ParamPPSpeed]; got != robstride.FloatRaw(10) {
			t.Errorf("unit %d pp_speed: got %v, want %v", addr, got, robstride.FloatRaw(10))
		}
	}
	if a.Settings().ConsumeTuningDirty() {
		t.Error("tick should consume the dirty flag")
	}
}

func TestControlLoopInitializesUnits(t *testing.T) {
	a := newSimApp(t)

	now := time.Now()
	for i := 0; i < 30; i++ {
		a.input.Publish(input.State{}, now)
		a.registry.Poll(now)
		a.tick(now)
		now = now.Add(20 * time.Millisecond)
	}

	for _, addr := range []uint8{1, 2} {
		u, _ := a.sim.Unit(addr)
		if u.State != robstride.StateRunning {
			t.Errorf("unit %d state: got %v, want %v", addr, u.State, robstride.StateRunning)
		}
		if u.Zeroed != 1 {
			t.Errorf("unit %d zeroed: got %d, want 1", addr, u.Zeroed)
		}
	}

	snap := a.Status().(Snapshot)
	if !snap.Controller.Connected || !snap.Posture.Connected {
		t.Errorf("controller connected: got %v/%v, want true", snap.Controller.Connected, snap.Posture.Connected)
	}
}

func TestScanRequest(t *testing.T) {
	a := newSimApp(t)
	a.sim.Add(5)

	if code := postJSON(t, a, "/api/motors/scan", ""); code != 200 {
		t.Fatalf("POST /api/motors/scan: got %d, want 200", code)
	}
	select {
	case r := <-a.Web().Requests():
		a.handleRequest(context.Background(), r)
	default:
		t.Fatal("expected a queued scan request")
	}

	if d := a.Discovered(); len(d) != 3 {
		t.Errorf("discovered: got %v, want 3 units", d)
	}
}

func TestUnknownRequestIgnored(t *testing.T) {
	a := newSimApp(t)
	a.handleRequest(context.Background(), web.Request(99))
	if d := a.Discovered(); len(d) != 2 {
		t.Errorf("discovered: got %v, want 2 units", d)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(c *Config)
		field string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"no port", func(c *Config) { c.CANPort = "" }, "CANPort"},
		{"no addr", func(c *Config) { c.HTTPAddr = "" }, "HTTPAddr"},
		{"bad bitrate", func(c *Config) { c.CANBitrate = 0 }, "CANBitrate"},
		{"unknown model", func(c *Config) { c.Model = "RS99" }, "Model"},
		{"sim ignores port", func(c *Config) { c.Sim = true; c.CANPort = "" }, ""},
		{"sim without units", func(c *Config) { c.Sim = true; c.SimUnits = nil }, "SimUnits"},
		{"sim host address", func(c *Config) { c.Sim = true; c.SimUnits = []uint8{robstride.HostID} }, "SimUnits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.edit(&c)
			err := c.Validate()
			if tt.field == "" {
				if err != nil {
					t.Errorf("Validate: got %v, want nil", err)
				}
				return
			}
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("Validate: got %v, want *ConfigError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Field: got %s, want %s", ce.Field, tt.field)
			}
		})
	}
}

func TestLoadEnvConfig(t *testing.T) {
	t.Setenv("JUMPSTICK_CAN_PORT", "/dev/ttyUSB3")
	t.Setenv("JUMPSTICK_HTTP_ADDR", ":9999")
	t.Setenv("JUMPSTICK_SETTINGS", "/tmp/js.json")
	t.Setenv("JUMPSTICK_SIM", "true")

	c := DefaultConfig()
	c.LoadEnvConfig()
	if c.CANPort != "/dev/ttyUSB3" || c.HTTPAddr != ":9999" || c.SettingsPath != "/tmp/js.json" || !c.Sim {
		t.Errorf("env overrides not applied: %+v", c)
	}
}

var _ web.Provider = (*App)(nil)
