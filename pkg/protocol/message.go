// Package protocol defines the WebSocket messages exchanged between the
// robot and a remote controller or dashboard.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Controller → Robot messages
	TypeInput MessageType = "input" // Gamepad sample
	TypeIMU   MessageType = "imu"   // Raw accelerometer and gyro sample

	// Robot → Controller/Dashboard messages
	TypeHello  MessageType = "hello"  // Sent once after accept
	TypeStatus MessageType = "status" // Telemetry snapshot
	TypeError  MessageType = "error"  // Rejected message

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// =============================================================================
// Controller → Robot Message Types
// =============================================================================

// InputData is one gamepad sample. Axes use ±512, up and left negative;
// triggers run 0..1023.
type InputData struct {
	LX      int32  `json:"lx"`
	LY      int32  `json:"ly"`
	RX      int32  `json:"rx"`
	RY      int32  `json:"ry"`
	L2      int32  `json:"l2"`
	R2      int32  `json:"r2"`
	Buttons uint16 `json:"buttons"`
	Dpad    uint8  `json:"dpad"`
	Misc    uint8  `json:"misc"`
}

// IMUData is one raw inertial sample.
type IMUData struct {
	Ax float64 `json:"ax"` // g
	Ay float64 `json:"ay"`
	Az float64 `json:"az"`
	Gx float64 `json:"gx"` // rad/s
	Gy float64 `json:"gy"`
	Gz float64 `json:"gz"`
}

// =============================================================================
// Robot → Controller Message Types
// =============================================================================

// HelloData greets a newly accepted connection.
type HelloData struct {
	BootID   string `json:"boot_id"`
	Role     string `json:"role"`     // "controller" or "status"
	Replaced bool   `json:"replaced"` // a previous controller was dropped
}

// ErrorData describes a message the robot rejected.
type ErrorData struct {
	Message string `json:"message"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
