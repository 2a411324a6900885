package can

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"

	"github.com/teslashibe/go-jumpstick/internal/log"
	"github.com/teslashibe/go-jumpstick/pkg/debug"
)

// SLCANConfig configures a serial-line CAN adapter.
type SLCANConfig struct {
	Port     string        // Serial device, e.g. /dev/ttyACM0
	BaudRate int           // Serial baud rate (ignored by USB CDC adapters)
	Bitrate  int           // CAN bitrate in bit/s
	TxQueue  int           // Transmit queue depth
	RxQueue  int           // Receive queue depth
	Timeout  time.Duration // Serial read timeout, bounds shutdown latency
}

// DefaultSLCANConfig returns settings for a 1 Mbit/s bus.
func DefaultSLCANConfig() SLCANConfig {
	return SLCANConfig{
		BaudRate: 115200,
		Bitrate:  1000000,
		TxQueue:  16,
		RxQueue:  32,
		Timeout:  50 * time.Millisecond,
	}
}

// SLCAN is a Bus backed by a Lawicel-protocol serial adapter.
type SLCAN struct {
	port   io.ReadWriteCloser
	tx     chan Frame
	rx     chan Frame
	done   chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool
	once   sync.Once
	logger *slog.Logger

	txFrames  atomic.Uint64
	rxFrames  atomic.Uint64
	txDropped atomic.Uint64
	rxDropped atomic.Uint64
	errCount  atomic.Uint64
}

var _ Bus = (*SLCAN)(nil)

// OpenSLCAN opens the serial port, configures the bitrate and opens the
// CAN channel.
func OpenSLCAN(cfg SLCANConfig) (*SLCAN, error) {
	if cfg.Port == "" {
		return nil, errors.New("can: serial port path is required")
	}
	def := DefaultSLCANConfig()
	if cfg.BaudRate == 0 {
		cfg.BaudRate = def.BaudRate
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}

	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("can: failed to open serial port: %w", err)
	}
	if err := port.SetReadTimeout(cfg.Timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("can: failed to set read timeout: %w", err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("can: failed to reset input buffer: %w", err)
	}

	s, err := NewSLCAN(port, cfg)
	if err != nil {
		port.Close()
		return nil, err
	}
	return s, nil
}

// NewSLCAN starts an adapter session on an already-open port.
func NewSLCAN(port io.ReadWriteCloser, cfg SLCANConfig) (*SLCAN, error) {
	def := DefaultSLCANConfig()
	if cfg.Bitrate == 0 {
		cfg.Bitrate = def.Bitrate
	}
	if cfg.TxQueue <= 0 {
		cfg.TxQueue = def.TxQueue
	}
	if cfg.RxQueue <= 0 {
		cfg.RxQueue = def.RxQueue
	}

	rate, err := bitrateCommand(cfg.Bitrate)
	if err != nil {
		return nil, err
	}
	// Close any channel left open by a previous session before setup.
	for _, cmd := range [][]byte{[]byte("C\r"), rate, []byte("O\r")} {
		if _, err := port.Write(cmd); err != nil {
			return nil, fmt.Errorf("can: slcan setup %q: %w", cmd[:len(cmd)-1], err)
		}
	}

	s := &SLCAN{
		port:   port,
		tx:     make(chan Frame, cfg.TxQueue),
		rx:     make(chan Frame, cfg.RxQueue),
		done:   make(chan struct{}),
		logger: log.With("component", "slcan", "port", cfg.Port),
	}
	s.wg.Add(2)
	go s.writeLoop()
	go s.readLoop()
	return s, nil
}

// Send queues a frame for transmission without blocking.
func (s *SLCAN) Send(f Frame) error {
	if s.closed.Load() {
		return ErrBusClosed
	}
	select {
	case s.tx <- f:
		return nil
	default:
		s.txDropped.Add(1)
		return ErrTxQueueFull
	}
}

// Receive returns the next received frame, waiting up to timeout.
func (s *SLCAN) Receive(timeout time.Duration) (Frame, bool) {
	if timeout <= 0 {
		select {
		case f := <-s.rx:
			return f, true
		default:
			return Frame{}, false
		}
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case f := <-s.rx:
		return f, true
	case <-t.C:
		return Frame{}, false
	case <-s.done:
		return Frame{}, false
	}
}

// Close closes the CAN channel and the serial port.
func (s *SLCAN) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.done)
		s.wg.Wait()
		s.port.Write([]byte("C\r"))
		err = s.port.Close()
	})
	return err
}

// Stats returns traffic counters.
func (s *SLCAN) Stats() Stats {
	return Stats{
		TxFrames:  s.txFrames.Load(),
		RxFrames:  s.rxFrames.Load(),
		TxDropped: s.txDropped.Load(),
		RxDropped: s.rxDropped.Load(),
		Errors:    s.errCount.Load(),
	}
}

func (s *SLCAN) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case f := <-s.tx:
			line, err := EncodeSLCAN(f)
			if err != nil {
				s.errCount.Add(1)
				s.logger.Debug("encode failed", "error", err)
				continue
			}
			if _, err := s.port.Write(line); err != nil {
				s.errCount.Add(1)
				s.logger.Warn("write failed", "error", err)
				continue
			}
			s.txFrames.Add(1)
			if debug.Frames {
				debug.Log("can tx %s\n", f)
			}
		}
	}
}

func (s *SLCAN) readLoop() {
	defer s.wg.Done()
	buf := make([]byte, 256)
	var line []byte
	for {
		select {
		case <-s.done:
			return
		default:
		}

		n, err := s.port.Read(buf)
		if err != nil {
			if s.closed.Load() || errors.Is(err, io.EOF) {
				return
			}
			s.errCount.Add(1)
			s.logger.Warn("read failed", "error", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}

		for _, b := range buf[:n] {
			switch b {
			case '\r':
				s.handleLine(line)
				line = line[:0]
			case '\a':
				s.errCount.Add(1)
				line = line[:0]
			default:
				if len(line) < 64 {
					line = append(line, b)
				}
			}
		}
	}
}

func (s *SLCAN) handleLine(line []byte) {
	if len(line) == 0 {
		return
	}
	switch line[0] {
	case 'z', 'Z':
		// Transmit acknowledgements.
		return
	case 't', 'T':
	default:
		return
	}

	f, err := ParseSLCAN(line)
	if err != nil {
		s.errCount.Add(1)
		s.logger.Debug("bad frame line", "line", string(line), "error", err)
		return
	}
	s.rxFrames.Add(1)
	if debug.Frames {
		debug.Log("can rx %s\n", f)
	}

	select {
	case s.rx <- f:
	default:
		// Drop the oldest frame so feedback stays fresh.
		select {
		case <-s.rx:
			s.rxDropped.Add(1)
		default:
		}
		select {
		case s.rx <- f:
		default:
			s.rxDropped.Add(1)
		}
	}
}
