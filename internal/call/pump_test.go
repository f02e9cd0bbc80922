package call

import (
	"bytes"
	"testing"
	"time"

	"github.com/arivox/arivox/pkg/telephony/mock"
)

func attachAndSend(t *testing.T, p *FramePump, frames ...[]byte) *mock.MediaStream {
	t.Helper()
	stream := mock.NewMediaStream()
	p.Attach(stream)
	for _, f := range frames {
		stream.In <- f
	}
	return stream
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestPumpForwardKeepsArrivalOrder(t *testing.T) {
	t.Parallel()

	var got [][]byte
	p := NewFramePump(nil)
	p.SetForward(func(f []byte) error {
		got = append(got, f)
		return nil
	})

	stream := attachAndSend(t, p, []byte("a"), []byte("b"), []byte("c"))
	waitFor(t, func() bool { return p.Recording() != nil && len(p.Recording()) == 3 })
	stream.Close()
	p.Detach()

	want := []byte("abc")
	if !bytes.Equal(bytes.Join(got, nil), want) {
		t.Errorf("forwarded %q, want %q", bytes.Join(got, nil), want)
	}
}

func TestPumpBufferFlushesInOrderOnForward(t *testing.T) {
	t.Parallel()

	p := NewFramePump(nil)
	p.SetBuffer(0)

	stream := attachAndSend(t, p, []byte("a"), []byte("b"))
	waitFor(t, func() bool { return len(p.Recording()) == 2 })

	var got []byte
	p.SetForward(func(f []byte) error {
		got = append(got, f...)
		return nil
	})
	stream.In <- []byte("c")
	waitFor(t, func() bool { return len(p.Recording()) == 3 })
	stream.Close()
	p.Detach()

	if string(got) != "abc" {
		t.Errorf("sink received %q, want %q", got, "abc")
	}
}

func TestPumpBufferDropsOldestOnOverflow(t *testing.T) {
	t.Parallel()

	overflows := 0
	p := NewFramePump(func() { overflows++ })
	p.SetBuffer(2)

	stream := attachAndSend(t, p, []byte("a"), []byte("b"), []byte("c"), []byte("d"))
	waitFor(t, func() bool { return len(p.Recording()) == 4 })

	var got []byte
	p.SetForward(func(f []byte) error {
		got = append(got, f...)
		return nil
	})
	stream.Close()
	p.Detach()

	if string(got) != "cd" {
		t.Errorf("flushed %q after overflow, want %q", got, "cd")
	}
	if overflows != 1 {
		t.Errorf("overflow reported %d times, want 1", overflows)
	}
}

func TestPumpDiscardDropsFramesButNotRecordingAfterModeChange(t *testing.T) {
	t.Parallel()

	p := NewFramePump(nil)
	p.SetBuffer(0)
	stream := attachAndSend(t, p, []byte("keep"))
	waitFor(t, func() bool { return len(p.Recording()) == 4 })

	p.SetDiscard()
	stream.In <- []byte("drop")
	// Discarded frames leave no trace; the earlier recording survives.
	time.Sleep(10 * time.Millisecond)
	stream.Close()
	p.Detach()

	if got := p.Recording(); string(got) != "keep" {
		t.Errorf("Recording() = %q, want %q", got, "keep")
	}
}

func TestPumpRecordingIsBounded(t *testing.T) {
	t.Parallel()

	p := NewFramePump(nil)
	p.recordCap = 8
	p.SetBuffer(0)

	stream := attachAndSend(t, p, []byte("12345678"), []byte("overflow"))
	waitFor(t, func() bool { return len(p.Recording()) == 8 })
	stream.Close()
	p.Detach()

	if got := p.Recording(); string(got) != "12345678" {
		t.Errorf("Recording() = %q, want first 8 bytes only", got)
	}
}

func TestPumpDetachClosesStreamAndIsIdempotent(t *testing.T) {
	t.Parallel()

	p := NewFramePump(nil)
	stream := mock.NewMediaStream()
	p.Attach(stream)

	p.Detach()
	p.Detach()

	if !stream.Closed() {
		t.Error("Detach did not close the media stream")
	}
}
