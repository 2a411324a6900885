package web

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/teslashibe/go-jumpstick/pkg/settings"
)

type fakeProvider struct {
	status     any
	discovered []uint8
}

func (f *fakeProvider) Status() any         { return f.status }
func (f *fakeProvider) Discovered() []uint8 { return f.discovered }

func newTestServer() (*Server, *settings.Store) {
	store := settings.NewMemoryStore()
	p := &fakeProvider{
		status:     map[string]any{"canRunning": true},
		discovered: []uint8{3, 5},
	}
	return NewServer(":0", p, store), store
}

func doJSON(t *testing.T, s *Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("%s %s: bad JSON %q: %v", method, path, data, err)
	}
	return resp.StatusCode, out
}

func TestStatusPassesSnapshotThrough(t *testing.T) {
	s, _ := newTestServer()

	code, body := doJSON(t, s, "GET", "/api/status", "")
	if code != 200 {
		t.Fatalf("status code: got %d, want 200", code)
	}
	if body["canRunning"] != true {
		t.Errorf("canRunning: got %v, want true", body["canRunning"])
	}
}

func TestConfigRoundTrip(t *testing.T) {
	s, store := newTestServer()

	code, body := doJSON(t, s, "POST", "/api/config", `{"leftId":3,"rightId":5}`)
	if code != 200 {
		t.Fatalf("POST /api/config: got %d, want 200 (%v)", code, body)
	}
	if body["ok"] != true || body["leftId"] != float64(3) || body["rightId"] != float64(5) {
		t.Errorf("response: got %v", body)
	}
	if l, r := store.Roles(); l != 3 || r != 5 {
		t.Errorf("stored roles: got (%d, %d), want (3, 5)", l, r)
	}

	_, body = doJSON(t, s, "GET", "/api/config", "")
	if d, ok := body["discovered"].([]any); !ok || len(d) != 2 {
		t.Errorf("discovered: got %v", body["discovered"])
	}
}

func TestConfigRejectsDuplicate(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"duplicate", `{"leftId":4,"rightId":4}`, 400},
		{"out of range", `{"leftId":130,"rightId":1}`, 400},
		{"bad json", `{"leftId":`, 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, store := newTestServer()
			code, body := doJSON(t, s, "POST", "/api/config", tt.body)
			if code != tt.want {
				t.Errorf("code: got %d, want %d", code, tt.want)
			}
			if body["ok"] != false {
				t.Errorf("ok: got %v, want false", body["ok"])
			}
			if l, r := store.Roles(); l != 0 || r != 0 {
				t.Errorf("roles changed: (%d, %d)", l, r)
			}
		})
	}
}

func TestSettingsUpdateMergesAndMarksDirty(t *testing.T) {
	s, store := newTestServer()

	body := `{"buttons":{"b":{"mode":3}},"tuning":{"speedLimit":10}}`
	code, out := doJSON(t, s, "POST", "/api/settings", body)
	if code != 200 {
		t.Fatalf("POST /api/settings: got %d (%v)", code, out)
	}

	if got := store.Buttons()[settings.ButtonB].Mode; got != settings.ModeGroundSlap {
		t.Errorf("B mode: got %v, want %v", got, settings.ModeGroundSlap)
	}
	want := settings.DefaultTuning()
	want.SpeedLimit = 10
	if got := store.Tuning(); got != want {
		t.Errorf("tuning: got %+v, want %+v", got, want)
	}
	if !store.ConsumeTuningDirty() {
		t.Error("expected tuning dirty after update")
	}
}

func TestPushAndScanRequests(t *testing.T) {
	s, store := newTestServer()

	if code, _ := doJSON(t, s, "POST", "/api/motors/push", ""); code != 200 {
		t.Errorf("push: got %d, want 200", code)
	}
	if !store.ConsumeTuningDirty() {
		t.Error("push should mark tuning dirty")
	}

	if code, _ := doJSON(t, s, "POST", "/api/motors/scan", ""); code != 200 {
		t.Errorf("scan: got %d, want 200", code)
	}
	select {
	case r := <-s.Requests():
		if r != RequestScan {
			t.Errorf("request: got %v, want %v", r, RequestScan)
		}
	default:
		t.Error("expected a queued scan request")
	}

	for i := 0; i < cap(s.requests); i++ {
		s.enqueue(RequestScan)
	}
	if code, _ := doJSON(t, s, "POST", "/api/motors/scan", ""); code != 503 {
		t.Errorf("scan with full queue: got %d, want 503", code)
	}
}

func TestStatusWSRequiresUpgrade(t *testing.T) {
	s, _ := newTestServer()

	req := httptest.NewRequest("GET", "/ws/status", nil)
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if resp.StatusCode != 426 {
		t.Errorf("code: got %d, want 426", resp.StatusCode)
	}
}
