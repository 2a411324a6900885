// Package can provides CAN frame types and bus transports.
package can

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for bus operations.
var (
	ErrTxQueueFull  = errors.New("can: transmit queue full")
	ErrBusClosed    = errors.New("can: bus is closed")
	ErrInvalidFrame = errors.New("can: invalid frame")
)

// MaxExtendedID is the largest 29-bit identifier.
const MaxExtendedID = 0x1FFFFFFF

// Frame is a classic CAN frame with up to 8 data bytes.
type Frame struct {
	ID       uint32
	Extended bool
	Len      uint8
	Data     [8]byte
}

// NewExtended builds an extended frame carrying all 8 data bytes.
func NewExtended(id uint32, data [8]byte) Frame {
	return Frame{ID: id & MaxExtendedID, Extended: true, Len: 8, Data: data}
}

// Payload returns the valid data bytes.
func (f Frame) Payload() []byte {
	n := f.Len
	if n > 8 {
		n = 8
	}
	return f.Data[:n]
}

func (f Frame) String() string {
	if f.Extended {
		return fmt.Sprintf("%08X [%d] % X", f.ID, f.Len, f.Payload())
	}
	return fmt.Sprintf("%03X [%d] % X", f.ID, f.Len, f.Payload())
}

// Bus is a frame-level CAN transport.
//
// Send never blocks: when the transmit queue has no room it returns
// ErrTxQueueFull and the caller decides whether to drop or retry.
// Receive waits up to timeout for a frame; a zero timeout polls.
type Bus interface {
	Send(f Frame) error
	Receive(timeout time.Duration) (Frame, bool)
	Close() error
}

// Stats counts bus traffic.
type Stats struct {
	TxFrames  uint64 `json:"txFrames"`
	RxFrames  uint64 `json:"rxFrames"`
	TxDropped uint64 `json:"txDropped"`
	RxDropped uint64 `json:"rxDropped"`
	Errors    uint64 `json:"errors"`
}
