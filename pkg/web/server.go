// Package web serves the telemetry dashboard API: read-only status
// snapshots over HTTP and WebSocket, plus the configuration endpoints that
// write to the settings store.
package web

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-jumpstick/internal/log"
	"github.com/teslashibe/go-jumpstick/pkg/hub"
	"github.com/teslashibe/go-jumpstick/pkg/settings"
)

// DefaultBroadcastInterval is the /ws/status cadence (5 Hz).
const DefaultBroadcastInterval = 200 * time.Millisecond

// Provider supplies the latest status snapshot. Implementations must be
// safe to call from HTTP handler goroutines.
type Provider interface {
	Status() any
	Discovered() []uint8
}

// Request is a command queued for the control goroutine.
type Request int

// Requests.
const (
	RequestScan Request = iota + 1
)

func (r Request) String() string {
	switch r {
	case RequestScan:
		return "scan"
	default:
		return "unknown"
	}
}

// Server is the telemetry server.
type Server struct {
	app      *fiber.App
	addr     string
	status   Provider
	store    *settings.Store
	hub      *hub.Hub
	requests chan Request
	logger   *slog.Logger

	// BroadcastInterval is the status push period. Zero uses the default.
	BroadcastInterval time.Duration
}

// NewServer creates a telemetry server listening on addr.
func NewServer(addr string, status Provider, store *settings.Store) *Server {
	s := &Server{
		addr:     addr,
		status:   status,
		store:    store,
		hub:      hub.New("status"),
		requests: make(chan Request, 4),
		logger:   log.With("component", "web"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Jumpstick Telemetry",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/health", s.handleHealth)
	api.Get("/config", s.handleGetConfig)
	api.Post("/config", s.handleSetConfig)
	api.Get("/settings", s.handleGetSettings)
	api.Post("/settings", s.handleSetSettings)
	api.Post("/motors/push", s.handlePush)
	api.Post("/motors/scan", s.handleScan)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.hub.Handler()))

	s.app = app
	return s
}

// App returns the fiber app so other components can mount routes on it.
func (s *Server) App() *fiber.App { return s.app }

// StatusHub returns the status broadcast hub.
func (s *Server) StatusHub() *hub.Hub { return s.hub }

// Requests returns the queue drained by the control goroutine.
func (s *Server) Requests() <-chan Request { return s.requests }

// Start runs the hub, the broadcaster and the listener until ctx is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)
	go s.runBroadcast(ctx)

	go func() {
		<-ctx.Done()
		s.app.Shutdown()
	}()

	s.logger.Info("telemetry listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// BroadcastStatus pushes the current snapshot to every /ws/status client.
func (s *Server) BroadcastStatus() {
	if s.hub.ClientCount() == 0 {
		return
	}
	if err := s.hub.BroadcastJSON(s.status.Status()); err != nil {
		s.logger.Warn("status encode failed", "error", err)
	}
}

func (s *Server) runBroadcast(ctx context.Context) {
	interval := s.BroadcastInterval
	if interval <= 0 {
		interval = DefaultBroadcastInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.BroadcastStatus()
		}
	}
}

// enqueue hands r to the control goroutine without blocking.
func (s *Server) enqueue(r Request) bool {
	select {
	case s.requests <- r:
		return true
	default:
		s.logger.Warn("request queue full", "request", r.String())
		return false
	}
}
