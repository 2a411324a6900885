package robstride

import (
	"errors"
	"fmt"
)

// Sentinel errors for link operations.
var (
	ErrRequestPending = errors.New("robstride: parameter read already pending")
	ErrTimeout        = errors.New("robstride: parameter read timed out")
	ErrInvalidAddress = errors.New("robstride: invalid unit address")
)

// CommError wraps a failed bus operation with the unit it addressed.
type CommError struct {
	Op   string // Operation that failed (e.g., "enable", "write_param")
	Addr uint8  // Unit address
	Err  error  // Underlying error
}

func (e *CommError) Error() string {
	return fmt.Sprintf("robstride %s unit %d: %v", e.Op, e.Addr, e.Err)
}

func (e *CommError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a parameter read timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
