package settings

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// testStore creates a temporary store for testing.
func testStore(t *testing.T) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "settings.json")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store, path
}

func TestNewStoreDefaults(t *testing.T) {
	store, path := testStore(t)

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected settings file to exist: %v", err)
	}
	if got := store.Tuning(); got != DefaultTuning() {
		t.Errorf("Tuning: got %+v, want %+v", got, DefaultTuning())
	}
	l, r := store.Roles()
	if l != 0 || r != 0 {
		t.Errorf("Roles: got (%d, %d), want (0, 0)", l, r)
	}
	for i, b := range store.Buttons() {
		if b.Mode != ModePosition || b.Left != 0 || b.Right != 0 {
			t.Errorf("Buttons[%d]: got %+v, want zero position action", i, b)
		}
	}
	if store.BootID() == "" {
		t.Error("expected boot ID to be generated")
	}
	if store.ConsumeTuningDirty() {
		t.Error("fresh store should not be dirty")
	}
}

func TestPersistAndReload(t *testing.T) {
	store, path := testStore(t)

	if err := store.SetRoles(Roles{Left: 3, Right: 5}); err != nil {
		t.Fatalf("SetRoles: %v", err)
	}
	if err := store.SetButton(ButtonB, ButtonAction{Mode: ModeGroundSlap}); err != nil {
		t.Fatalf("SetButton: %v", err)
	}
	if err := store.SetButton(ButtonY, ButtonAction{Mode: ModePosition, Left: 1.5, Right: -1.5}); err != nil {
		t.Fatalf("SetButton: %v", err)
	}
	if err := store.SetTuning(Tuning{SpeedLimit: 10, Accel: 100, CurrentLimit: 12}); err != nil {
		t.Fatalf("SetTuning: %v", err)
	}
	firstBoot := store.BootID()

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	l, r := reopened.Roles()
	if l != 3 || r != 5 {
		t.Errorf("Roles: got (%d, %d), want (3, 5)", l, r)
	}
	b := reopened.Buttons()
	if b[ButtonB].Mode != ModeGroundSlap {
		t.Errorf("B mode: got %v, want %v", b[ButtonB].Mode, ModeGroundSlap)
	}
	if b[ButtonY].Left != 1.5 || b[ButtonY].Right != -1.5 {
		t.Errorf("Y targets: got (%v, %v), want (1.5, -1.5)", b[ButtonY].Left, b[ButtonY].Right)
	}
	want := Tuning{SpeedLimit: 10, Accel: 100, CurrentLimit: 12}
	if got := reopened.Tuning(); got != want {
		t.Errorf("Tuning: got %+v, want %+v", got, want)
	}
	if reopened.BootID() == firstBoot {
		t.Error("expected a new boot ID on reopen")
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should not remain after save")
	}
}

func TestSetRolesValidation(t *testing.T) {
	tests := []struct {
		name  string
		roles Roles
		want  error
	}{
		{"both unassigned", Roles{}, nil},
		{"left only", Roles{Left: 4}, nil},
		{"distinct", Roles{Left: 1, Right: 127}, nil},
		{"duplicate", Roles{Left: 7, Right: 7}, ErrDuplicateRole},
		{"out of range", Roles{Left: 200}, ErrInvalidAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			err := store.SetRoles(tt.roles)
			if !errors.Is(err, tt.want) {
				t.Fatalf("SetRoles(%+v): got %v, want %v", tt.roles, err, tt.want)
			}
			l, r := store.Roles()
			if tt.want != nil && (l != 0 || r != 0) {
				t.Errorf("rejected roles were stored: (%d, %d)", l, r)
			}
		})
	}
}

func TestSetButtonClampsMode(t *testing.T) {
	store := NewMemoryStore()

	if err := store.SetButton(ButtonA, ButtonAction{Mode: 9, Left: 1}); err != nil {
		t.Fatalf("SetButton: %v", err)
	}
	if got := store.Buttons()[ButtonA].Mode; got != ModePosition {
		t.Errorf("mode: got %v, want %v", got, ModePosition)
	}
	if err := store.SetButton(Button(5), ButtonAction{}); !errors.Is(err, ErrInvalidButton) {
		t.Errorf("unknown button: got %v, want %v", err, ErrInvalidButton)
	}
}

func TestSetTuningClampsAndMarksDirty(t *testing.T) {
	store := NewMemoryStore()

	if err := store.SetTuning(Tuning{SpeedLimit: 99, Accel: 0, CurrentLimit: 0.1}); err != nil {
		t.Fatalf("SetTuning: %v", err)
	}
	want := Tuning{SpeedLimit: 50, Accel: 1, CurrentLimit: 0.5}
	if got := store.Tuning(); got != want {
		t.Errorf("Tuning: got %+v, want %+v", got, want)
	}
	if !store.ConsumeTuningDirty() {
		t.Error("expected dirty after SetTuning")
	}
	if store.ConsumeTuningDirty() {
		t.Error("dirty flag should clear after one consume")
	}

	store.RequestPush()
	if !store.ConsumeTuningDirty() {
		t.Error("expected dirty after RequestPush")
	}
}

func TestLoadSanitizesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	raw := `{
  "version": 1,
  "roles": {"leftId": 9, "rightId": 9},
  "buttons": [{"mode": 7, "left": 1, "right": 2}, {"mode": 1}, {"mode": 2}],
  "tuning": {"speedLimit": 1000, "accel": 200, "currentLimit": 23}
}`
	if err := os.WriteFile(path, []byte(raw), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	l, r := store.Roles()
	if l != 0 || r != 0 {
		t.Errorf("duplicate stored roles: got (%d, %d), want (0, 0)", l, r)
	}
	b := store.Buttons()
	if b[ButtonY].Mode != ModePosition {
		t.Errorf("Y mode: got %v, want %v", b[ButtonY].Mode, ModePosition)
	}
	if b[ButtonB].Mode != ModeForward360 || b[ButtonA].Mode != ModeBackward360 {
		t.Errorf("B/A modes: got %v/%v", b[ButtonB].Mode, b[ButtonA].Mode)
	}
	if got := store.Tuning().SpeedLimit; got != 50 {
		t.Errorf("SpeedLimit: got %v, want 50", got)
	}
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewStore(path); err == nil {
		t.Error("expected error for corrupt file")
	}
}
