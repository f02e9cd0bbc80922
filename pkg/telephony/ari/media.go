package ari

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/arivox/arivox/pkg/telephony"
	"github.com/coder/websocket"
)

// Compile-time assertion that MediaServer satisfies the contract.
var _ telephony.MediaSource = (*MediaServer)(nil)

// frameBuf is the buffer depth of a media stream's frame channel. At 20 ms
// per frame this absorbs roughly 2.5 s of audio before backpressure.
const frameBuf = 128

// MediaServer accepts external-media WebSocket connections from Asterisk.
// The dialplan creates an externalMedia channel pointing at this listener
// with the call's channel ID as the URL path, e.g. ws://bridge:9090/media/<id>.
//
// MediaServer is safe for concurrent use.
type MediaServer struct {
	mu      sync.Mutex
	streams map[string]*mediaStream
	waiters map[string]chan *mediaStream
}

// NewMediaServer creates an empty MediaServer. Register its Handler on the
// HTTP mux serving the media listen address.
func NewMediaServer() *MediaServer {
	return &MediaServer{
		streams: make(map[string]*mediaStream),
		waiters: make(map[string]chan *mediaStream),
	}
}

// Handler returns the HTTP handler that upgrades inbound media connections.
// The channel ID is the final path element.
func (s *MediaServer) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		channelID := r.PathValue("channel")
		if channelID == "" {
			channelID = strings.TrimPrefix(r.URL.Path, "/media/")
		}
		if channelID == "" {
			http.Error(w, "missing channel id", http.StatusBadRequest)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			slog.Warn("media: accept failed", "channel_id", channelID, "err", err)
			return
		}

		st := newMediaStream(conn)
		s.register(channelID, st)
		st.readLoop()
		s.unregister(channelID, st)
	})
}

// Stream returns the media stream for channelID, blocking until Asterisk has
// connected it or ctx expires.
func (s *MediaServer) Stream(ctx context.Context, channelID string) (telephony.MediaStream, error) {
	s.mu.Lock()
	if st, ok := s.streams[channelID]; ok {
		s.mu.Unlock()
		return st, nil
	}
	ch, ok := s.waiters[channelID]
	if !ok {
		ch = make(chan *mediaStream, 1)
		s.waiters[channelID] = ch
	}
	s.mu.Unlock()

	select {
	case st := <-ch:
		return st, nil
	case <-ctx.Done():
		s.mu.Lock()
		delete(s.waiters, channelID)
		s.mu.Unlock()
		return nil, fmt.Errorf("media: waiting for channel %s: %w", channelID, ctx.Err())
	}
}

func (s *MediaServer) register(channelID string, st *mediaStream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams[channelID] = st
	if ch, ok := s.waiters[channelID]; ok {
		delete(s.waiters, channelID)
		ch <- st
	}
	slog.Debug("media: stream connected", "channel_id", channelID)
}

func (s *MediaServer) unregister(channelID string, st *mediaStream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streams[channelID] == st {
		delete(s.streams, channelID)
	}
}

// ── mediaStream ───────────────────────────────────────────────────────────────

var errMediaClosed = errors.New("media: stream is closed")

type mediaStream struct {
	conn   *websocket.Conn
	frames chan []byte

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func newMediaStream(conn *websocket.Conn) *mediaStream {
	ctx, cancel := context.WithCancel(context.Background())
	return &mediaStream{
		conn:   conn,
		frames: make(chan []byte, frameBuf),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Frames returns the ordered stream of audio frames.
func (m *mediaStream) Frames() <-chan []byte { return m.frames }

// Write sends one binary frame back over the external-media connection, which
// Asterisk plays on the channel.
func (m *mediaStream) Write(frame []byte) error {
	select {
	case <-m.ctx.Done():
		return errMediaClosed
	default:
	}
	if err := m.conn.Write(m.ctx, websocket.MessageBinary, frame); err != nil {
		return fmt.Errorf("media: write frame: %w", err)
	}
	return nil
}

// Close terminates the media connection. Safe to call more than once.
func (m *mediaStream) Close() error {
	m.closeOnce.Do(func() {
		m.cancel()
		m.conn.Close(websocket.StatusNormalClosure, "stream closed")
	})
	return nil
}

// readLoop pulls binary frames off the socket until it closes. It owns the
// frames channel and closes it on exit.
func (m *mediaStream) readLoop() {
	defer close(m.frames)

	for {
		typ, data, err := m.conn.Read(m.ctx)
		if err != nil {
			return
		}
		if typ != websocket.MessageBinary || len(data) == 0 {
			continue
		}
		select {
		case m.frames <- data:
		case <-m.ctx.Done():
			return
		}
	}
}
