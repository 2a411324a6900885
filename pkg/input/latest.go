package input

import (
	"time"

	"github.com/teslashibe/go-jumpstick/internal/handoff"
)

// DefaultTimeout is how long a sample stays valid without a refresh.
const DefaultTimeout = 500 * time.Millisecond

type stamped struct {
	state State
	at    time.Time
}

// Latest hands the most recent sample from a producer goroutine to the
// control loop. Reads after the timeout see a disconnected state.
type Latest struct {
	v       handoff.Value[stamped]
	timeout time.Duration
}

// NewLatest creates a handoff. A timeout of zero uses DefaultTimeout.
func NewLatest(timeout time.Duration) *Latest {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Latest{timeout: timeout}
}

// Publish stores s as received at at. The sample is marked connected.
func (l *Latest) Publish(s State, at time.Time) {
	s.Connected = true
	l.v.Store(stamped{state: s, at: at})
}

// Disconnect drops the current sample.
func (l *Latest) Disconnect() {
	l.v.Clear()
}

// Read returns the sample valid at now, or a disconnected zero State.
func (l *Latest) Read(now time.Time) State {
	s, ok := l.v.Load()
	if !ok || now.Sub(s.at) > l.timeout {
		return State{}
	}
	return s.state
}

// LastSeen returns when the current sample arrived.
func (l *Latest) LastSeen() (time.Time, bool) {
	s, ok := l.v.Load()
	return s.at, ok
}
