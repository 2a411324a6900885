package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-jumpstick/internal/log"
)

// storeData is the JSON structure for the settings file.
type storeData struct {
	Version   int     `json:"version"`
	UpdatedAt string  `json:"updated_at"`
	BootID    string  `json:"boot_id"`
	Roles     Roles   `json:"roles"`
	Buttons   Buttons `json:"buttons"`
	Tuning    Tuning  `json:"tuning"`
}

const currentVersion = 1

// Store holds settings in memory and writes them to a JSON file on every
// change. It is safe for concurrent use.
type Store struct {
	path  string
	data  storeData
	dirty bool
	mu    sync.RWMutex
}

// NewStore opens the store at path, loading it if the file exists.
// Every open stamps a fresh boot ID.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path, data: defaults()}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		if err := s.load(); err != nil {
			return nil, fmt.Errorf("failed to load settings: %w", err)
		}
	}

	s.mu.Lock()
	s.data.BootID = uuid.New().String()
	err := s.save()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewDefaultStore opens the store at ~/.jumpstick/settings.json.
func NewDefaultStore() (*Store, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return NewStore(filepath.Join(homeDir, ".jumpstick", "settings.json"))
}

// NewMemoryStore returns a store that is never written to disk.
func NewMemoryStore() *Store {
	s := &Store{data: defaults()}
	s.data.BootID = uuid.New().String()
	return s
}

func defaults() storeData {
	return storeData{Version: currentVersion, Tuning: DefaultTuning()}
}

// Path returns the backing file, or "" for a memory store.
func (s *Store) Path() string { return s.path }

// BootID identifies this process run.
func (s *Store) BootID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.BootID
}

// Roles returns the persisted left and right addresses.
func (s *Store) Roles() (left, right uint8) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Roles.Left, s.data.Roles.Right
}

// SetRoles validates and persists a role assignment. An assignment that
// would point both sides at one actuator is rejected.
func (s *Store) SetRoles(r Roles) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Roles = r
	log.Info("motor roles updated", "left", r.Left, "right", r.Right)
	return s.save()
}

// Buttons returns the Y, B and A actions.
func (s *Store) Buttons() Buttons {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Buttons
}

// SetButton persists one button action. Unknown modes fall back to
// ModePosition.
func (s *Store) SetButton(b Button, a ButtonAction) error {
	if b < 0 || b >= buttonCount {
		return fmt.Errorf("%w: %d", ErrInvalidButton, b)
	}
	a.Mode = ClampMode(a.Mode)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Buttons[b] = a
	log.Info("button updated", "button", b.String(), "mode", a.Mode.String(), "left", a.Left, "right", a.Right)
	return s.save()
}

// Tuning returns the motion profile.
func (s *Store) Tuning() Tuning {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Tuning
}

// SetTuning clamps and persists the motion profile and marks it for a
// push to running actuators.
func (s *Store) SetTuning(t Tuning) error {
	t = t.Clamp()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Tuning = t
	s.dirty = true
	log.Info("motor tuning updated", "speed", t.SpeedLimit, "accel", t.Accel, "current", t.CurrentLimit)
	return s.save()
}

// RequestPush marks the current tuning for a push without changing it.
func (s *Store) RequestPush() {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

// ConsumeTuningDirty reports whether tuning changed since the last call
// and clears the flag.
func (s *Store) ConsumeTuningDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.dirty
	s.dirty = false
	return d
}

// load reads the store from disk.
func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	stored := defaults()
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}

	for i := range stored.Buttons {
		stored.Buttons[i].Mode = ClampMode(stored.Buttons[i].Mode)
	}
	stored.Tuning = stored.Tuning.Clamp()
	if err := stored.Roles.Validate(); err != nil {
		log.Warn("ignoring invalid stored roles", "error", err)
		stored.Roles = Roles{}
	}
	stored.Version = currentVersion
	s.data = stored
	return nil
}

// save writes the store to disk. Caller holds the lock.
func (s *Store) save() error {
	if s.path == "" {
		return nil
	}
	s.data.UpdatedAt = time.Now().Format(time.RFC3339)

	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	// Write to temp file first, then rename (atomic write)
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
