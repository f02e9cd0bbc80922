// Package mock provides in-memory mock implementations of the
// [telephony.Client] and [telephony.MediaStream] interfaces for use in unit
// tests.
//
// All mocks are safe for concurrent use. They record every action so that
// tests can assert on call counts and arguments, and they expose exported
// fields that the test can set to control return values.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/arivox/arivox/pkg/telephony"
)

// ─── Client ───────────────────────────────────────────────────────────────────

// VarCall records the arguments of a single [Client.SetChannelVar] invocation.
type VarCall struct {
	ChannelID string
	Name      string
	Value     string
}

// PlayCall records the arguments of a single [Client.Play] invocation.
type PlayCall struct {
	ChannelID string
	MediaURI  string
}

// Client is a mock implementation of [telephony.Client].
// Set the exported Err/Result fields before use; inspect the recorded call
// slices after. Use [Client.Emit] to inject events.
type Client struct {
	mu sync.Mutex

	// AnswerErr is returned by Answer.
	AnswerErr error

	// PlayErr is returned by Play; PlayIDs supplies the returned playback IDs
	// in order. When exhausted, IDs are generated as "playback-N".
	PlayErr error
	PlayIDs []string

	// StopPlaybackErr is returned by StopPlayback.
	StopPlaybackErr error

	// SetChannelVarErr is returned by SetChannelVar.
	SetChannelVarErr error

	// HangupErr is returned by Hangup.
	HangupErr error

	// AnswerCalls records the channel IDs passed to Answer.
	AnswerCalls []string

	// PlayCalls records Play invocations in order.
	PlayCalls []PlayCall

	// StopPlaybackCalls records the playback IDs passed to StopPlayback.
	StopPlaybackCalls []string

	// VarCalls records SetChannelVar invocations in order.
	VarCalls []VarCall

	// HangupCalls records the channel IDs passed to Hangup.
	HangupCalls []string

	events    chan telephony.Event
	closeOnce sync.Once
	playSeq   int
}

// NewClient creates a mock Client with a buffered event channel.
func NewClient() *Client {
	return &Client{events: make(chan telephony.Event, 64)}
}

// Emit injects an event into the stream returned by [Client.Events].
func (c *Client) Emit(ev telephony.Event) {
	c.events <- ev
}

// Events implements [telephony.Client].
func (c *Client) Events() <-chan telephony.Event { return c.events }

// Answer implements [telephony.Client].
func (c *Client) Answer(_ context.Context, channelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.AnswerCalls = append(c.AnswerCalls, channelID)
	return c.AnswerErr
}

// Play implements [telephony.Client].
func (c *Client) Play(_ context.Context, channelID, mediaURI string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.PlayCalls = append(c.PlayCalls, PlayCall{ChannelID: channelID, MediaURI: mediaURI})
	if c.PlayErr != nil {
		return "", c.PlayErr
	}
	if len(c.PlayIDs) > 0 {
		id := c.PlayIDs[0]
		c.PlayIDs = c.PlayIDs[1:]
		return id, nil
	}
	c.playSeq++
	return fmt.Sprintf("playback-%d", c.playSeq), nil
}

// StopPlayback implements [telephony.Client].
func (c *Client) StopPlayback(_ context.Context, playbackID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.StopPlaybackCalls = append(c.StopPlaybackCalls, playbackID)
	return c.StopPlaybackErr
}

// SetChannelVar implements [telephony.Client].
func (c *Client) SetChannelVar(_ context.Context, channelID, name, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.VarCalls = append(c.VarCalls, VarCall{ChannelID: channelID, Name: name, Value: value})
	return c.SetChannelVarErr
}

// Hangup implements [telephony.Client].
func (c *Client) Hangup(_ context.Context, channelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.HangupCalls = append(c.HangupCalls, channelID)
	return c.HangupErr
}

// Close implements [telephony.Client] and closes the event channel.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.events) })
	return nil
}

// Vars returns the values of all SetChannelVar calls for the given variable
// name, in call order.
func (c *Client) Vars(name string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, vc := range c.VarCalls {
		if vc.Name == name {
			out = append(out, vc.Value)
		}
	}
	return out
}

// ─── MediaStream ──────────────────────────────────────────────────────────────

// MediaStream is a mock implementation of [telephony.MediaStream]. Send frames
// on [MediaStream.In] and close it to end the stream; frames written by the
// code under test are recorded and retrievable via [MediaStream.Written].
type MediaStream struct {
	// In is the frame source. Frames written here appear on Frames().
	In chan []byte

	// WriteErr, when set, is returned by Write.
	WriteErr error

	closeOnce sync.Once

	mu      sync.Mutex
	closed  bool
	written [][]byte
}

// NewMediaStream creates a MediaStream with a buffered frame channel.
func NewMediaStream() *MediaStream {
	return &MediaStream{In: make(chan []byte, 64)}
}

// Frames implements [telephony.MediaStream].
func (m *MediaStream) Frames() <-chan []byte { return m.In }

// Write implements [telephony.MediaStream] by recording the outbound frame.
func (m *MediaStream) Write(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("mock: media stream is closed")
	}
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.written = append(m.written, frame)
	return nil
}

// Close implements [telephony.MediaStream].
func (m *MediaStream) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		close(m.In)
	})
	return nil
}

// Closed reports whether Close has been called.
func (m *MediaStream) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Written returns the outbound frames recorded so far, in write order.
func (m *MediaStream) Written() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.written...)
}

// WrittenBytes returns the total size of all recorded outbound frames.
func (m *MediaStream) WrittenBytes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, f := range m.written {
		n += len(f)
	}
	return n
}

// ─── MediaSource ──────────────────────────────────────────────────────────────

// MediaSource is a mock implementation of [telephony.MediaSource]. Prepare
// streams per channel ID; asking for an unprepared channel blocks until the
// context expires.
type MediaSource struct {
	mu sync.Mutex

	// StreamErr, when set, is returned by Stream.
	StreamErr error

	// Streams maps channel IDs to prepared streams.
	Streams map[string]*MediaStream

	// StreamCalls records the channel IDs passed to Stream.
	StreamCalls []string
}

// NewMediaSource creates an empty MediaSource.
func NewMediaSource() *MediaSource {
	return &MediaSource{Streams: make(map[string]*MediaStream)}
}

// Prepare registers a stream for channelID and returns it.
func (s *MediaSource) Prepare(channelID string) *MediaStream {
	ms := NewMediaStream()
	s.mu.Lock()
	s.Streams[channelID] = ms
	s.mu.Unlock()
	return ms
}

// Stream implements [telephony.MediaSource].
func (s *MediaSource) Stream(ctx context.Context, channelID string) (telephony.MediaStream, error) {
	s.mu.Lock()
	s.StreamCalls = append(s.StreamCalls, channelID)
	err := s.StreamErr
	ms, ok := s.Streams[channelID]
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if ok {
		return ms, nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

var _ telephony.Client = (*Client)(nil)
var _ telephony.MediaStream = (*MediaStream)(nil)
var _ telephony.MediaSource = (*MediaSource)(nil)
