package call

import (
	"bytes"
	"log/slog"
	"sync"

	"github.com/arivox/arivox/pkg/telephony"
)

// defaultRecordCap bounds the recording kept for batch fallback. 1 MiB is
// about a minute of 8 kHz 16-bit audio, matching the default recognition cap.
const defaultRecordCap = 1 << 20

// PumpMode selects what the frame pump does with arriving audio.
type PumpMode int

const (
	// PumpDiscard drops frames.
	PumpDiscard PumpMode = iota

	// PumpBuffer accumulates frames FIFO up to a byte cap, dropping the
	// oldest on overflow.
	PumpBuffer

	// PumpForward delivers frames to the sink in arrival order.
	PumpForward
)

// FrameSink receives forwarded audio frames. Sends may block (recognizer
// backpressure); the pump goroutine absorbs that without reordering.
type FrameSink func(frame []byte) error

// FramePump consumes audio frames from the telephony media stream and routes
// them per the current mode. A frame is buffered, forwarded or discarded —
// never split across consumers.
//
// Every frame seen while buffering or forwarding is also appended to a
// bounded recording used by the batch fallback path.
type FramePump struct {
	onOverflow func()

	mu             sync.Mutex
	mode           PumpMode
	buf            [][]byte
	bufBytes       int
	capBytes       int
	sink           FrameSink
	overflowWarned bool

	record    bytes.Buffer
	recordCap int

	stream telephony.MediaStream
	wg     sync.WaitGroup

	detachOnce sync.Once
}

// NewFramePump creates a detached pump in Discard mode. onOverflow, if
// non-nil, is reported once per call on the first buffer overflow.
func NewFramePump(onOverflow func()) *FramePump {
	return &FramePump{
		mode:       PumpDiscard,
		recordCap:  defaultRecordCap,
		onOverflow: onOverflow,
	}
}

// Attach starts consuming frames from stream. Must be called at most once.
func (p *FramePump) Attach(stream telephony.MediaStream) {
	p.mu.Lock()
	p.stream = stream
	p.mu.Unlock()

	p.wg.Add(1)
	go p.loop(stream)
}

func (p *FramePump) loop(stream telephony.MediaStream) {
	defer p.wg.Done()
	for frame := range stream.Frames() {
		p.handle(frame)
	}
}

func (p *FramePump) handle(frame []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.mode {
	case PumpDiscard:
		return
	case PumpBuffer:
		p.recordLocked(frame)
		p.buf = append(p.buf, frame)
		p.bufBytes += len(frame)
		for p.capBytes > 0 && p.bufBytes > p.capBytes && len(p.buf) > 0 {
			p.bufBytes -= len(p.buf[0])
			p.buf = p.buf[1:]
			if !p.overflowWarned {
				p.overflowWarned = true
				slog.Warn("pump: pre-activation buffer overflow, dropping oldest frames", "cap_bytes", p.capBytes)
				if p.onOverflow != nil {
					p.onOverflow()
				}
			}
		}
	case PumpForward:
		p.recordLocked(frame)
		if err := p.sink(frame); err != nil {
			// The recognizer surfaces the root cause through its own error
			// callback; here the frame is simply lost.
			slog.Debug("pump: forward frame", "err", err)
		}
	}
}

func (p *FramePump) recordLocked(frame []byte) {
	if p.record.Len()+len(frame) > p.recordCap {
		return
	}
	p.record.Write(frame)
}

// SetDiscard switches the pump to Discard mode. Buffered frames are dropped.
func (p *FramePump) SetDiscard() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mode = PumpDiscard
	p.buf = nil
	p.bufBytes = 0
	p.sink = nil
}

// SetBuffer switches the pump to Buffer mode with the given byte cap.
// A cap of 0 means unbounded.
func (p *FramePump) SetBuffer(capBytes int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mode = PumpBuffer
	p.capBytes = capBytes
	p.sink = nil
}

// SetForward switches to Forward mode: the buffer is flushed to sink in FIFO
// order, then newly arriving frames follow. The switch is atomic with respect
// to arriving frames — a frame delivered during the flush queues behind it.
func (p *FramePump) SetForward(sink FrameSink) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, frame := range p.buf {
		if err := sink(frame); err != nil {
			slog.Debug("pump: flush frame", "err", err)
		}
	}
	p.buf = nil
	p.bufBytes = 0
	p.mode = PumpForward
	p.sink = sink
}

// Recording returns a copy of the audio recorded so far for batch fallback.
func (p *FramePump) Recording() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]byte, p.record.Len())
	copy(out, p.record.Bytes())
	return out
}

// Detach stops consuming frames and drops any buffered audio. The recording
// survives for batch fallback. Idempotent.
func (p *FramePump) Detach() {
	p.detachOnce.Do(func() {
		p.mu.Lock()
		stream := p.stream
		p.mode = PumpDiscard
		p.buf = nil
		p.bufBytes = 0
		p.sink = nil
		p.mu.Unlock()

		if stream != nil {
			stream.Close()
			p.wg.Wait()
		}
	})
}
