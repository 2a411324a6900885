package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-jumpstick/pkg/settings"
)

// handleStatus returns the latest snapshot
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.status.Status())
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"bootId":  s.store.BootID(),
		"clients": s.hub.ClientCount(),
		"hub":     s.hub.Stats(),
	})
}

// ConfigResponse is the role assignment view.
type ConfigResponse struct {
	LeftID     uint8   `json:"leftId"`
	RightID    uint8   `json:"rightId"`
	Discovered []uint8 `json:"discovered,omitempty"`
	OK         bool    `json:"ok"`
}

func (s *Server) handleGetConfig(c *fiber.Ctx) error {
	l, r := s.store.Roles()
	return c.JSON(ConfigResponse{
		LeftID:     l,
		RightID:    r,
		Discovered: s.status.Discovered(),
		OK:         true,
	})
}

// handleSetConfig assigns motor roles
func (s *Server) handleSetConfig(c *fiber.Ctx) error {
	var req settings.Roles
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"ok":    false,
			"error": "invalid JSON body",
		})
	}

	if err := s.store.SetRoles(req); err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, settings.ErrDuplicateRole) || errors.Is(err, settings.ErrInvalidAddress) {
			status = fiber.StatusBadRequest
		}
		return c.Status(status).JSON(fiber.Map{
			"ok":    false,
			"error": err.Error(),
		})
	}

	l, r := s.store.Roles()
	return c.JSON(ConfigResponse{LeftID: l, RightID: r, OK: true})
}

// ButtonsView names the assignable buttons in JSON.
type ButtonsView struct {
	Y settings.ButtonAction `json:"y"`
	B settings.ButtonAction `json:"b"`
	A settings.ButtonAction `json:"a"`
}

// SettingsView is the body of GET /api/settings.
type SettingsView struct {
	Buttons ButtonsView     `json:"buttons"`
	Tuning  settings.Tuning `json:"tuning"`
}

// SettingsUpdate is the body of POST /api/settings. Absent fields are left
// unchanged.
type SettingsUpdate struct {
	Buttons *struct {
		Y *settings.ButtonAction `json:"y"`
		B *settings.ButtonAction `json:"b"`
		A *settings.ButtonAction `json:"a"`
	} `json:"buttons"`
	Tuning *TuningUpdate `json:"tuning"`
}

// TuningUpdate overlays the fields it carries on the stored tuning.
type TuningUpdate struct {
	SpeedLimit   *float64 `json:"speedLimit"`
	Accel        *float64 `json:"accel"`
	CurrentLimit *float64 `json:"currentLimit"`
}

func (u TuningUpdate) apply(t settings.Tuning) settings.Tuning {
	if u.SpeedLimit != nil {
		t.SpeedLimit = *u.SpeedLimit
	}
	if u.Accel != nil {
		t.Accel = *u.Accel
	}
	if u.CurrentLimit != nil {
		t.CurrentLimit = *u.CurrentLimit
	}
	return t
}

func (s *Server) settingsView() SettingsView {
	b := s.store.Buttons()
	return SettingsView{
		Buttons: ButtonsView{Y: b[settings.ButtonY], B: b[settings.ButtonB], A: b[settings.ButtonA]},
		Tuning:  s.store.Tuning(),
	}
}

func (s *Server) handleGetSettings(c *fiber.Ctx) error {
	return c.JSON(s.settingsView())
}

func (s *Server) handleSetSettings(c *fiber.Ctx) error {
	var req SettingsUpdate
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid JSON body",
		})
	}

	if req.Buttons != nil {
		for _, u := range []struct {
			button settings.Button
			action *settings.ButtonAction
		}{
			{settings.ButtonY, req.Buttons.Y},
			{settings.ButtonB, req.Buttons.B},
			{settings.ButtonA, req.Buttons.A},
		} {
			if u.action == nil {
				continue
			}
			if err := s.store.SetButton(u.button, *u.action); err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": err.Error(),
				})
			}
		}
	}

	if req.Tuning != nil {
		if err := s.store.SetTuning(req.Tuning.apply(s.store.Tuning())); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
	}

	return c.JSON(s.settingsView())
}

// handlePush re-sends the current tuning to every ready actuator
func (s *Server) handlePush(c *fiber.Ctx) error {
	s.store.RequestPush()
	return c.JSON(fiber.Map{"queued": true})
}

func (s *Server) handleScan(c *fiber.Ctx) error {
	if !s.enqueue(RequestScan) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"queued": false,
			"error":  "busy",
		})
	}
	return c.JSON(fiber.Map{"queued": true})
}
