// Package mock provides in-memory mock implementations of the
// [recognizer.Provider], [recognizer.Session] and
// [recognizer.BatchTranscriber] interfaces for use in unit tests.
//
// The mock session records all audio and lifecycle calls, and exposes Emit*
// helpers that drive the callbacks the way a live backend would.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/arivox/arivox/pkg/recognizer"
)

// Compile-time assertions that the mocks satisfy the contract.
var (
	_ recognizer.Provider         = (*Provider)(nil)
	_ recognizer.Session          = (*Session)(nil)
	_ recognizer.BatchTranscriber = (*Batch)(nil)
)

// ─── Provider ─────────────────────────────────────────────────────────────────

// Provider is a mock implementation of [recognizer.Provider]. Each Open call
// is recorded and hands out a fresh Session, retrievable via Sessions.
type Provider struct {
	mu sync.Mutex

	// OpenErr, when set, is returned by Open instead of a session.
	OpenErr error

	// OpenConfigs records the Config passed to each Open call.
	OpenConfigs []recognizer.Config

	sessions []*Session
}

// NewProvider creates an empty mock Provider.
func NewProvider() *Provider {
	return &Provider{}
}

// Open implements [recognizer.Provider].
func (p *Provider) Open(_ context.Context, cfg recognizer.Config, cb recognizer.Callbacks) (recognizer.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.OpenConfigs = append(p.OpenConfigs, cfg)
	if p.OpenErr != nil {
		return nil, p.OpenErr
	}
	s := &Session{cb: cb}
	p.sessions = append(p.sessions, s)
	return s, nil
}

// Sessions returns all sessions handed out so far, in open order.
func (p *Provider) Sessions() []*Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Session(nil), p.sessions...)
}

// Last returns the most recently opened session, or nil.
func (p *Provider) Last() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.sessions) == 0 {
		return nil
	}
	return p.sessions[len(p.sessions)-1]
}

// ─── Session ──────────────────────────────────────────────────────────────────

// Session is a scriptable mock implementation of [recognizer.Session].
type Session struct {
	mu sync.Mutex
	cb recognizer.Callbacks

	// SendErr, when set, is returned by SendAudio.
	SendErr error

	// InterruptErr, when set, is returned by Interrupt.
	InterruptErr error

	// Sent records every chunk passed to SendAudio.
	Sent [][]byte

	halfClosed   bool
	closed       bool
	closeReasons []string
	interrupts   int
}

// SendAudio implements [recognizer.Session].
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.halfClosed {
		return recognizer.ErrSessionClosed
	}
	if s.SendErr != nil {
		return s.SendErr
	}
	s.Sent = append(s.Sent, chunk)
	return nil
}

// HalfClose implements [recognizer.Session].
func (s *Session) HalfClose() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return recognizer.ErrSessionClosed
	}
	s.halfClosed = true
	return nil
}

// Close implements [recognizer.Session]. The first call fires OnClosed.
func (s *Session) Close(reason string) error {
	s.mu.Lock()
	first := !s.closed
	s.closed = true
	s.closeReasons = append(s.closeReasons, reason)
	cb := s.cb
	s.mu.Unlock()

	if first && cb.OnClosed != nil {
		cb.OnClosed(reason)
	}
	return nil
}

// Interrupt records a reply-cancellation request, mirroring the optional
// Interrupt method of reply-generating backends.
func (s *Session) Interrupt() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return recognizer.ErrSessionClosed
	}
	s.interrupts++
	return s.InterruptErr
}

// Interrupts returns the number of Interrupt calls so far.
func (s *Session) Interrupts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interrupts
}

// HalfClosed reports whether HalfClose has been called.
func (s *Session) HalfClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halfClosed
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// CloseReasons returns the reasons of all Close calls, in order.
func (s *Session) CloseReasons() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.closeReasons...)
}

// SentBytes returns the total number of audio bytes accepted by SendAudio.
func (s *Session) SentBytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.Sent {
		n += len(c)
	}
	return n
}

// EmitActivity invokes OnEvent with the given activity, stamped now.
func (s *Session) EmitActivity(a recognizer.Activity) {
	if s.cb.OnEvent != nil {
		s.cb.OnEvent(recognizer.ActivityEvent{Activity: a, At: time.Now()})
	}
}

// EmitTranscript invokes OnTranscript.
func (s *Session) EmitTranscript(text string, final bool) {
	if s.cb.OnTranscript != nil {
		s.cb.OnTranscript(recognizer.Transcript{Text: text, Final: final})
	}
}

// EmitAudio invokes OnAudio.
func (s *Session) EmitAudio(chunk []byte) {
	if s.cb.OnAudio != nil {
		s.cb.OnAudio(chunk)
	}
}

// EmitResponseDone invokes OnResponseDone.
func (s *Session) EmitResponseDone(text string) {
	if s.cb.OnResponseDone != nil {
		s.cb.OnResponseDone(text)
	}
}

// EmitError invokes OnError.
func (s *Session) EmitError(err error) {
	if s.cb.OnError != nil {
		s.cb.OnError(err)
	}
}

// ─── Batch ────────────────────────────────────────────────────────────────────

// BatchCall records the arguments of one Transcribe invocation.
type BatchCall struct {
	AudioLen int
	Config   recognizer.Config
}

// Batch is a mock implementation of [recognizer.BatchTranscriber].
type Batch struct {
	mu sync.Mutex

	// Result and Err are returned by Transcribe.
	Result string
	Err    error

	// Calls records Transcribe invocations in order.
	Calls []BatchCall
}

// Transcribe implements [recognizer.BatchTranscriber].
func (b *Batch) Transcribe(_ context.Context, audio []byte, cfg recognizer.Config) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Calls = append(b.Calls, BatchCall{AudioLen: len(audio), Config: cfg})
	return b.Result, b.Err
}

// CallCount returns the number of Transcribe invocations so far.
func (b *Batch) CallCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Calls)
}
