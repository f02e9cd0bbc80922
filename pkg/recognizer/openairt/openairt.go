// Package openairt implements the recognizer contract on OpenAI's Realtime
// API.
//
// The session speaks the Realtime JSON protocol over a WebSocket: caller
// audio goes up as base64 PCM16 input_audio_buffer.append events, server-side
// voice-activity detection reports speech_started/speech_stopped, and the
// completed input transcription arrives as a final transcript. Unlike pure
// recognition backends the model also synthesises a spoken reply, delivered
// through the OnAudio callback so the bridge can play it back to the caller.
package openairt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/arivox/arivox/pkg/recognizer"
)

// Compile-time assertions that Provider and session satisfy the contract.
var _ recognizer.Provider = (*Provider)(nil)
var _ recognizer.Session = (*session)(nil)

const (
	defaultModel   = "gpt-4o-realtime-preview"
	defaultBaseURL = "wss://api.openai.com/v1/realtime"
)

// ── Options ───────────────────────────────────────────────────────────────────

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the Realtime model used for sessions.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL overrides the base WebSocket URL. Primarily used in tests to
// point at a local mock server.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// ── Provider ──────────────────────────────────────────────────────────────────

// Provider opens Realtime sessions against the OpenAI API.
type Provider struct {
	apiKey  string
	model   string
	baseURL string
}

// New creates a Provider with the given API key and options.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:  apiKey,
		model:   defaultModel,
		baseURL: defaultBaseURL,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Open implements [recognizer.Provider]. It dials the Realtime WebSocket,
// configures the session with server-side VAD and input transcription, and
// starts the receive loop.
func (p *Provider) Open(ctx context.Context, cfg recognizer.Config, cb recognizer.Callbacks) (recognizer.Session, error) {
	wsURL := fmt.Sprintf("%s?model=%s", p.baseURL, p.model)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Authorization": []string{"Bearer " + p.apiKey},
			"OpenAI-Beta":   []string{"realtime=v1"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openairt: dial: %w", err)
	}

	sessCtx, sessCancel := context.WithCancel(context.Background())
	s := &session{
		conn:   conn,
		cb:     cb,
		ctx:    sessCtx,
		cancel: sessCancel,
	}

	if err := s.sendSessionUpdate(cfg); err != nil {
		sessCancel()
		conn.Close(websocket.StatusInternalError, "session update failed")
		return nil, fmt.Errorf("openairt: session update: %w", err)
	}

	s.wg.Add(1)
	go s.receiveLoop()

	return s, nil
}

// ── Protocol message types (outgoing) ─────────────────────────────────────────

type sessionUpdateMessage struct {
	Type    string        `json:"type"`
	Session sessionParams `json:"session"`
}

type sessionParams struct {
	Voice                   string             `json:"voice,omitempty"`
	Instructions            string             `json:"instructions,omitempty"`
	InputAudioFormat        string             `json:"input_audio_format"`
	OutputAudioFormat       string             `json:"output_audio_format"`
	InputAudioTranscription *transcriptionOpts `json:"input_audio_transcription,omitempty"`
	TurnDetection           *turnDetection     `json:"turn_detection,omitempty"`
}

type transcriptionOpts struct {
	Model    string `json:"model"`
	Language string `json:"language,omitempty"`
}

type turnDetection struct {
	Type              string `json:"type"`
	SilenceDurationMs int    `json:"silence_duration_ms,omitempty"`
}

type appendAudioMessage struct {
	Type  string `json:"type"`
	Audio string `json:"audio"` // base64-encoded PCM16
}

// serverErrorDetail is the nested error object in a Realtime error event:
// {"type":"error","error":{"type":"...","code":"...","message":"..."}}.
type serverErrorDetail struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// ── Protocol message types (incoming) ─────────────────────────────────────────

type serverEvent struct {
	Type string `json:"type"`

	// response.audio.delta / response.audio_transcript.delta
	Delta string `json:"delta,omitempty"`

	// conversation.item.input_audio_transcription.completed
	Transcript string `json:"transcript,omitempty"`

	// error event
	Error *serverErrorDetail `json:"error,omitempty"`
}

// ── session ───────────────────────────────────────────────────────────────────

type session struct {
	conn *websocket.Conn
	cb   recognizer.Callbacks

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once

	mu     sync.Mutex
	closed bool

	// replyText accumulates response.audio_transcript.delta events until
	// response.audio_transcript.done is received.
	replyText string
}

// sendSessionUpdate configures voice, instructions, audio formats, input
// transcription and server-side VAD.
func (s *session) sendSessionUpdate(cfg recognizer.Config) error {
	params := sessionParams{
		InputAudioFormat:  "pcm16",
		OutputAudioFormat: "pcm16",
		Voice:             cfg.Voice,
		Instructions:      cfg.Instructions,
		InputAudioTranscription: &transcriptionOpts{
			Model:    "whisper-1",
			Language: language(cfg.LanguageCode),
		},
		TurnDetection: &turnDetection{Type: "server_vad"},
	}
	if cfg.SpeechEndTimeout > 0 {
		params.TurnDetection.SilenceDurationMs = int(cfg.SpeechEndTimeout / time.Millisecond)
	}
	return s.writeJSON(sessionUpdateMessage{Type: "session.update", Session: params})
}

// language reduces a BCP-47 tag to the two-letter code Whisper expects.
func language(code string) string {
	if len(code) >= 2 {
		return code[:2]
	}
	return ""
}

// writeJSON marshals v and writes it as a text WebSocket message.
func (s *session) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("openairt: marshal: %w", err)
	}
	return s.conn.Write(s.ctx, websocket.MessageText, data)
}

// receiveLoop reads events from the WebSocket and dispatches callbacks until
// the connection closes.
func (s *session) receiveLoop() {
	defer s.wg.Done()

	for {
		_, data, err := s.conn.Read(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			if s.cb.OnError != nil {
				s.cb.OnError(fmt.Errorf("openairt: read: %w", err))
			}
			go s.Close("error")
			return
		}

		var evt serverEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			continue
		}
		s.handleServerEvent(&evt)
	}
}

func (s *session) handleServerEvent(evt *serverEvent) {
	switch evt.Type {
	case "input_audio_buffer.speech_started":
		s.emitActivity(recognizer.ActivitySpeechBegin)

	case "input_audio_buffer.speech_stopped":
		s.emitActivity(recognizer.ActivitySpeechEnd)

	case "conversation.item.input_audio_transcription.completed":
		if evt.Transcript == "" || s.cb.OnTranscript == nil {
			return
		}
		s.cb.OnTranscript(recognizer.Transcript{Text: evt.Transcript, Final: true})

	case "response.audio.delta":
		if evt.Delta == "" || s.cb.OnAudio == nil {
			return
		}
		audioData, err := base64.StdEncoding.DecodeString(evt.Delta)
		if err != nil || len(audioData) == 0 {
			return
		}
		s.cb.OnAudio(audioData)

	case "response.audio_transcript.delta":
		s.mu.Lock()
		s.replyText += evt.Delta
		s.mu.Unlock()

	case "response.audio_transcript.done", "response.done":
		s.mu.Lock()
		text := s.replyText
		s.replyText = ""
		s.mu.Unlock()

		if text != "" && s.cb.OnResponseDone != nil {
			s.cb.OnResponseDone(text)
		}

	case "error":
		if s.cb.OnError == nil {
			return
		}
		msg := "unknown error"
		if evt.Error != nil && evt.Error.Message != "" {
			msg = evt.Error.Message
		}
		s.cb.OnError(fmt.Errorf("openairt: %s", msg))
	}
}

func (s *session) emitActivity(a recognizer.Activity) {
	if s.cb.OnEvent != nil {
		s.cb.OnEvent(recognizer.ActivityEvent{Activity: a, At: time.Now()})
	}
}

// ── Session methods ───────────────────────────────────────────────────────────

// SendAudio implements [recognizer.Session]. The chunk is base64-encoded and
// appended to the server-side input buffer.
func (s *session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return recognizer.ErrSessionClosed
	}
	s.mu.Unlock()

	return s.writeJSON(appendAudioMessage{
		Type:  "input_audio_buffer.append",
		Audio: base64.StdEncoding.EncodeToString(chunk),
	})
}

// HalfClose implements [recognizer.Session]. Committing the input buffer asks
// the server to finalize transcription of the audio sent so far; the socket
// stays open for the transcript and any reply.
func (s *session) HalfClose() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return recognizer.ErrSessionClosed
	}
	s.mu.Unlock()

	return s.writeJSON(map[string]string{"type": "input_audio_buffer.commit"})
}

// Interrupt cancels the in-flight model response. The bridge calls this when
// the caller barges in over synthesised speech.
func (s *session) Interrupt() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return recognizer.ErrSessionClosed
	}
	s.mu.Unlock()

	return s.writeJSON(map[string]string{"type": "response.cancel"})
}

// Close implements [recognizer.Session].
func (s *session) Close(reason string) error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.cancel()
		s.conn.Close(websocket.StatusNormalClosure, "session closed")
		s.wg.Wait()

		if s.cb.OnClosed != nil {
			s.cb.OnClosed(reason)
		}
	})
	return nil
}
