// Package remote accepts a gamepad controller over WebSocket and feeds
// its samples into the control loop.
package remote

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-jumpstick/internal/log"
	"github.com/teslashibe/go-jumpstick/pkg/input"
	"github.com/teslashibe/go-jumpstick/pkg/orientation"
	"github.com/teslashibe/go-jumpstick/pkg/protocol"
)

// Connection is the active controller connection.
type Connection struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time

	mu       sync.Mutex
	lastSeen time.Time
}

// Send writes a message to the controller.
func (c *Connection) Send(msg *protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}

// LastSeen returns when the last message arrived.
func (c *Connection) LastSeen() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

func (c *Connection) touch(now time.Time) {
	c.mu.Lock()
	c.lastSeen = now
	c.mu.Unlock()
}

// Info describes the active controller for telemetry.
type Info struct {
	ID        string    `json:"id"`
	Connected time.Time `json:"connectedAt"`
	LastSeen  time.Time `json:"lastSeen"`
}

// Stats are bridge counters.
type Stats struct {
	Active           bool   `json:"active"`
	MessagesReceived uint64 `json:"messagesReceived"`
	Inputs           uint64 `json:"inputs"`
	IMUSamples       uint64 `json:"imuSamples"`
	Rejected         uint64 `json:"rejected"`
	Replaced         uint64 `json:"replaced"`
}

// Bridge owns the /ws/control endpoint. Only one controller is active at a
// time; a new connection replaces the old one.
type Bridge struct {
	input  *input.Latest
	imu    *orientation.Feed
	bootID string
	now    func() time.Time
	logger *slog.Logger

	mu     sync.RWMutex
	active *Connection

	messagesReceived atomic.Uint64
	inputs           atomic.Uint64
	imuSamples       atomic.Uint64
	rejected         atomic.Uint64
	replaced         atomic.Uint64
}

// NewBridge creates a bridge publishing into in and imu. imu may be nil
// when the robot has no remote IMU.
func NewBridge(in *input.Latest, imu *orientation.Feed, bootID string) *Bridge {
	return &Bridge{
		input:  in,
		imu:    imu,
		bootID: bootID,
		now:    time.Now,
		logger: log.With("component", "remote"),
	}
}

// SetClock replaces the time source used to stamp samples.
func (b *Bridge) SetClock(now func() time.Time) { b.now = now }

// RegisterRoutes registers the controller endpoint on a Fiber app.
func (b *Bridge) RegisterRoutes(app *fiber.App) {
	app.Use("/ws/control", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/control", websocket.New(b.handleController))
}

// Active reports whether a controller is connected.
func (b *Bridge) Active() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.active != nil
}

// Info returns the active controller, if any.
func (b *Bridge) Info() (Info, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.active == nil {
		return Info{}, false
	}
	return Info{ID: b.active.ID, Connected: b.active.Connected, LastSeen: b.active.LastSeen()}, true
}

// Stats returns bridge counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Active:           b.Active(),
		MessagesReceived: b.messagesReceived.Load(),
		Inputs:           b.inputs.Load(),
		IMUSamples:       b.imuSamples.Load(),
		Rejected:         b.rejected.Load(),
		Replaced:         b.replaced.Load(),
	}
}

func (b *Bridge) handleController(c *websocket.Conn) {
	now := b.now()
	conn := &Connection{ID: uuid.NewString(), Conn: c, Connected: now, lastSeen: now}

	b.mu.Lock()
	prev := b.active
	b.active = conn
	b.mu.Unlock()

	if prev != nil {
		b.replaced.Add(1)
		b.logger.Info("controller replaced", "old", prev.ID, "new", conn.ID)
		prev.Conn.Close()
	} else {
		b.logger.Info("controller connected", "id", conn.ID)
	}

	if hello, err := protocol.NewHelloMessage(b.bootID, "controller", prev != nil); err == nil {
		conn.Send(hello)
	}

	defer func() {
		b.mu.Lock()
		current := b.active == conn
		if current {
			b.active = nil
		}
		b.mu.Unlock()

		if current {
			b.input.Disconnect()
			b.logger.Info("controller disconnected", "id", conn.ID)
		}
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			b.logger.Debug("controller read ended", "id", conn.ID, "error", err)
			return
		}
		if !b.isActive(conn) {
			return
		}
		b.messagesReceived.Add(1)
		b.handleMessage(conn, data)
	}
}

func (b *Bridge) isActive(conn *Connection) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.active == conn
}

// handleMessage processes one message from the active controller.
func (b *Bridge) handleMessage(conn *Connection, data []byte) {
	now := b.now()
	conn.touch(now)

	msg, err := protocol.ParseMessage(data)
	if err != nil {
		b.reject(conn, err.Error())
		return
	}

	switch msg.Type {
	case protocol.TypeInput:
		d, err := msg.GetInputData()
		if err != nil {
			b.reject(conn, "bad input data")
			return
		}
		b.inputs.Add(1)
		b.input.Publish(d.State(), now)

	case protocol.TypeIMU:
		d, err := msg.GetIMUData()
		if err != nil {
			b.reject(conn, "bad imu data")
			return
		}
		b.imuSamples.Add(1)
		if b.imu != nil {
			b.imu.Push(d.Sample(now))
		}

	case protocol.TypePing:
		ping, err := msg.GetPingData()
		if err != nil {
			ping = &protocol.PingData{}
		}
		pingTS := ping.Timestamp
		if pingTS == 0 {
			pingTS = msg.Timestamp
		}
		pong, err := protocol.NewPongMessage(ping.ID, pingTS, now.UnixMilli())
		if err == nil {
			conn.Send(pong)
		}

	default:
		b.reject(conn, "unknown message type: "+string(msg.Type))
	}
}

func (b *Bridge) reject(conn *Connection, reason string) {
	b.rejected.Add(1)
	b.logger.Debug("rejected controller message", "id", conn.ID, "reason", reason)
	if msg, err := protocol.NewErrorMessage(reason); err == nil {
		conn.Send(msg)
	}
}
