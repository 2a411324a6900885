package can

import (
	"sync"
	"time"
)

// Loopback is an in-memory Bus. Frames passed to Send are recorded and
// may be answered by OnSend; frames passed to Inject are returned by
// Receive in order.
type Loopback struct {
	mu      sync.Mutex
	sent    []Frame
	rx      []Frame
	notify  chan struct{}
	closed  bool
	txLimit int
	txCount int
	discard bool

	// OnSend, when set, is called for every accepted frame. Frames it
	// returns are queued for Receive.
	OnSend func(f Frame) []Frame
}

var _ Bus = (*Loopback)(nil)

// NewLoopback creates a loopback bus with unlimited transmit capacity.
func NewLoopback() *Loopback {
	return &Loopback{notify: make(chan struct{}, 1)}
}

// SetTxLimit makes Send fail with ErrTxQueueFull once n more frames have
// been accepted. n <= 0 removes the limit.
func (l *Loopback) SetTxLimit(n int) {
	l.mu.Lock()
	l.txLimit = n
	l.txCount = 0
	l.mu.Unlock()
}

// SetRecording turns the Sent log on or off. Long-running simulations
// turn it off so the log does not grow without bound.
func (l *Loopback) SetRecording(on bool) {
	l.mu.Lock()
	l.discard = !on
	if !on {
		l.sent = nil
	}
	l.mu.Unlock()
}

// Send records the frame.
func (l *Loopback) Send(f Frame) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrBusClosed
	}
	if l.txLimit > 0 && l.txCount >= l.txLimit {
		l.mu.Unlock()
		return ErrTxQueueFull
	}
	l.txCount++
	if !l.discard {
		l.sent = append(l.sent, f)
	}
	hook := l.OnSend
	l.mu.Unlock()

	if hook != nil {
		for _, r := range hook(f) {
			l.Inject(r)
		}
	}
	return nil
}

// Inject queues a frame for Receive.
func (l *Loopback) Inject(f Frame) {
	l.mu.Lock()
	l.rx = append(l.rx, f)
	l.mu.Unlock()
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

// Receive returns the oldest injected frame.
func (l *Loopback) Receive(timeout time.Duration) (Frame, bool) {
	deadline := time.Now().Add(timeout)
	for {
		l.mu.Lock()
		if len(l.rx) > 0 {
			f := l.rx[0]
			l.rx = l.rx[1:]
			l.mu.Unlock()
			return f, true
		}
		closed := l.closed
		l.mu.Unlock()

		wait := time.Until(deadline)
		if closed || wait <= 0 {
			return Frame{}, false
		}
		select {
		case <-l.notify:
		case <-time.After(wait):
		}
	}
}

// Close marks the bus closed.
func (l *Loopback) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return nil
}

// Sent returns a copy of every frame accepted by Send.
func (l *Loopback) Sent() []Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Frame, len(l.sent))
	copy(out, l.sent)
	return out
}

// Reset forgets sent frames.
func (l *Loopback) Reset() {
	l.mu.Lock()
	l.sent = nil
	l.mu.Unlock()
}

// Pending returns the number of frames waiting for Receive.
func (l *Loopback) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rx)
}
