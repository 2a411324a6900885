package can

import (
	"errors"
	"testing"
	"time"
)

func TestLoopbackSendRecords(t *testing.T) {
	bus := NewLoopback()
	f := NewExtended(0x0300FD01, [8]byte{1})
	if err := bus.Send(f); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	sent := bus.Sent()
	if len(sent) != 1 || sent[0] != f {
		t.Errorf("Sent: got %v, want [%v]", sent, f)
	}

	bus.Reset()
	if got := len(bus.Sent()); got != 0 {
		t.Errorf("Sent after Reset: got %d frames, want 0", got)
	}
}

func TestLoopbackTxLimit(t *testing.T) {
	bus := NewLoopback()
	bus.SetTxLimit(2)
	for i := 0; i < 2; i++ {
		if err := bus.Send(Frame{}); err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
	}
	if err := bus.Send(Frame{}); !errors.Is(err, ErrTxQueueFull) {
		t.Errorf("Send over limit: got %v, want ErrTxQueueFull", err)
	}
	bus.SetTxLimit(0)
	if err := bus.Send(Frame{}); err != nil {
		t.Errorf("Send after removing limit: %v", err)
	}
}

func TestLoopbackReceiveOrderAndTimeout(t *testing.T) {
	bus := NewLoopback()
	bus.Inject(Frame{ID: 1})
	bus.Inject(Frame{ID: 2})

	for _, want := range []uint32{1, 2} {
		f, ok := bus.Receive(0)
		if !ok || f.ID != want {
			t.Errorf("Receive: got (%v, %v), want ID %d", f, ok, want)
		}
	}

	start := time.Now()
	if _, ok := bus.Receive(10 * time.Millisecond); ok {
		t.Error("Receive on empty bus should time out")
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Error("Receive returned before timeout")
	}
}

func TestLoopbackOnSendResponder(t *testing.T) {
	bus := NewLoopback()
	bus.OnSend = func(f Frame) []Frame {
		return []Frame{{ID: f.ID + 1}}
	}
	bus.Send(Frame{ID: 10})

	f, ok := bus.Receive(0)
	if !ok || f.ID != 11 {
		t.Errorf("responder frame: got (%v, %v), want ID 11", f, ok)
	}
}

func TestLoopbackClosed(t *testing.T) {
	bus := NewLoopback()
	bus.Close()
	if err := bus.Send(Frame{}); !errors.Is(err, ErrBusClosed) {
		t.Errorf("Send after Close: got %v, want ErrBusClosed", err)
	}
}

func TestLoopbackRecordingOff(t *testing.T) {
	bus := NewLoopback()
	bus.Send(Frame{ID: 1})
	bus.SetRecording(false)
	bus.Send(Frame{ID: 2})

	if n := len(bus.Sent()); n != 0 {
		t.Errorf("Sent with recording off: got %d frames, want 0", n)
	}

	bus.SetRecording(true)
	bus.Send(Frame{ID: 3})
	if sent := bus.Sent(); len(sent) != 1 || sent[0].ID != 3 {
		t.Errorf("Sent after re-enable: got %v", sent)
	}
}
