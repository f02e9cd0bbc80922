// Package google implements the recognizer contract on Google Cloud Speech.
//
// Streaming sessions use the bidirectional StreamingRecognize RPC with
// voice-activity events enabled, so the backend reports speech begin/end and
// activity timeouts alongside interim and final transcripts. The same client
// also serves the one-shot batch path used as a fallback after a fruitless
// streaming attempt.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/arivox/arivox/pkg/recognizer"
)

// Compile-time assertions that the contract is satisfied.
var (
	_ recognizer.Provider         = (*Provider)(nil)
	_ recognizer.Session          = (*session)(nil)
	_ recognizer.BatchTranscriber = (*Provider)(nil)
)

// audioBuf is the buffer depth of a session's outbound audio channel. At
// 20 ms frames this absorbs roughly 1.2 s before SendAudio blocks.
const audioBuf = 64

// Provider opens streaming recognition sessions against Google Cloud Speech.
// One Provider holds one gRPC client shared by all sessions.
type Provider struct {
	client *speech.Client
}

// New creates a Provider. Credentials resolve through Application Default
// Credentials unless overridden with option.WithCredentialsFile.
func New(ctx context.Context, opts ...option.ClientOption) (*Provider, error) {
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google: create speech client: %w", err)
	}
	return &Provider{client: client}, nil
}

// Close releases the underlying gRPC client. Open sessions are torn down by
// the transport.
func (p *Provider) Close() error {
	return p.client.Close()
}

// Open implements [recognizer.Provider]. It starts the bidirectional stream,
// sends the configuration request and spawns the read and write loops.
func (p *Provider) Open(ctx context.Context, cfg recognizer.Config, cb recognizer.Callbacks) (recognizer.Session, error) {
	sctx, cancel := context.WithCancel(ctx)

	stream, err := p.client.StreamingRecognize(sctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("google: open stream: %w", err)
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: streamingConfig(cfg),
		},
	}); err != nil {
		cancel()
		return nil, fmt.Errorf("google: send config: %w", err)
	}

	s := &session{
		stream: stream,
		cb:     cb,
		audio:  make(chan []byte, audioBuf),
		ctx:    sctx,
		cancel: cancel,
	}

	s.wg.Add(2)
	go s.writeLoop()
	go s.readLoop()

	return s, nil
}

// recognitionConfig translates the session configuration into the Speech API
// request shape shared by the streaming and batch paths.
func recognitionConfig(cfg recognizer.Config) *speechpb.RecognitionConfig {
	rc := &speechpb.RecognitionConfig{
		Encoding:                   encoding(cfg.Encoding),
		SampleRateHertz:            int32(cfg.SampleRateHz),
		LanguageCode:               cfg.LanguageCode,
		Model:                      cfg.Model,
		UseEnhanced:                cfg.UseEnhanced,
		EnableWordTimeOffsets:      cfg.WordTimeOffsets,
		EnableAutomaticPunctuation: cfg.AutomaticPunctuation,
	}
	if cfg.SpeakerDiarization {
		rc.DiarizationConfig = &speechpb.SpeakerDiarizationConfig{
			EnableSpeakerDiarization: true,
		}
	}
	if len(cfg.PhraseHints) > 0 {
		rc.SpeechContexts = []*speechpb.SpeechContext{{Phrases: cfg.PhraseHints}}
	}
	return rc
}

// streamingConfig wraps the recognition config with the streaming-only knobs.
func streamingConfig(cfg recognizer.Config) *speechpb.StreamingRecognitionConfig {
	sc := &speechpb.StreamingRecognitionConfig{
		Config:                    recognitionConfig(cfg),
		InterimResults:            cfg.InterimResults,
		SingleUtterance:           cfg.SingleUtterance,
		EnableVoiceActivityEvents: true,
	}
	if cfg.SpeechBeginTimeout > 0 || cfg.SpeechEndTimeout > 0 {
		vat := &speechpb.StreamingRecognitionConfig_VoiceActivityTimeout{}
		if cfg.SpeechBeginTimeout > 0 {
			vat.SpeechStartTimeout = durationpb.New(cfg.SpeechBeginTimeout)
		}
		if cfg.SpeechEndTimeout > 0 {
			vat.SpeechEndTimeout = durationpb.New(cfg.SpeechEndTimeout)
		}
		sc.VoiceActivityTimeout = vat
	}
	return sc
}

func encoding(e recognizer.Encoding) speechpb.RecognitionConfig_AudioEncoding {
	switch e {
	case recognizer.EncodingMulaw:
		return speechpb.RecognitionConfig_MULAW
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}

// ── session ───────────────────────────────────────────────────────────────────

type session struct {
	stream speechpb.Speech_StreamingRecognizeClient
	cb     recognizer.Callbacks

	audio chan []byte

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	halfOnce  sync.Once
	closeOnce sync.Once

	mu          sync.Mutex
	closed      bool
	closeReason string
}

// SendAudio implements [recognizer.Session].
func (s *session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return recognizer.ErrSessionClosed
	}

	select {
	case s.audio <- chunk:
		return nil
	case <-s.ctx.Done():
		return recognizer.ErrSessionClosed
	}
}

// HalfClose implements [recognizer.Session]. Closing the audio channel makes
// the write loop drain remaining chunks and issue CloseSend, after which the
// backend finalizes pending results.
func (s *session) HalfClose() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return recognizer.ErrSessionClosed
	}
	s.mu.Unlock()

	s.halfOnce.Do(func() { close(s.audio) })
	return nil
}

// Close implements [recognizer.Session].
func (s *session) Close(reason string) error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.closeReason = reason
		s.mu.Unlock()

		s.halfOnce.Do(func() { close(s.audio) })
		s.cancel()
		s.wg.Wait()

		if s.cb.OnClosed != nil {
			s.cb.OnClosed(reason)
		}
	})
	return nil
}

// writeLoop forwards audio chunks onto the gRPC stream. It exits when the
// audio channel closes (half-close) or the session context is cancelled.
func (s *session) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case chunk, ok := <-s.audio:
			if !ok {
				if err := s.stream.CloseSend(); err != nil {
					slog.Debug("google: close send", "err", err)
				}
				return
			}
			req := &speechpb.StreamingRecognizeRequest{
				StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
					AudioContent: chunk,
				},
			}
			if err := s.stream.Send(req); err != nil {
				// Recv on the read loop surfaces the real cause.
				slog.Debug("google: send audio", "err", err)
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// readLoop receives streaming responses and dispatches callbacks until the
// stream ends. Errors are reported through OnError unless the session was
// closed locally.
func (s *session) readLoop() {
	defer s.wg.Done()

	for {
		resp, err := s.stream.Recv()
		if err != nil {
			s.mu.Lock()
			closedLocally := s.closed
			s.mu.Unlock()

			if closedLocally || s.ctx.Err() != nil {
				return
			}
			if streamEnded(err) {
				// Backend finished the stream normally after half-close.
				go s.Close("stream_ended")
				return
			}
			if s.cb.OnError != nil {
				s.cb.OnError(wrapStreamErr(err))
			}
			go s.Close("error")
			return
		}
		s.dispatch(resp)
	}
}

func (s *session) dispatch(resp *speechpb.StreamingRecognizeResponse) {
	switch resp.GetSpeechEventType() {
	case speechpb.StreamingRecognizeResponse_SPEECH_ACTIVITY_BEGIN:
		s.emitActivity(recognizer.ActivitySpeechBegin)
	case speechpb.StreamingRecognizeResponse_SPEECH_ACTIVITY_END,
		speechpb.StreamingRecognizeResponse_END_OF_SINGLE_UTTERANCE:
		s.emitActivity(recognizer.ActivitySpeechEnd)
	case speechpb.StreamingRecognizeResponse_SPEECH_ACTIVITY_TIMEOUT:
		s.emitActivity(recognizer.ActivityTimeout)
	}

	if s.cb.OnTranscript == nil {
		return
	}
	for _, res := range resp.GetResults() {
		alts := res.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		s.cb.OnTranscript(recognizer.Transcript{
			Text:       alts[0].GetTranscript(),
			Final:      res.GetIsFinal(),
			Confidence: float64(alts[0].GetConfidence()),
		})
	}
}

func (s *session) emitActivity(a recognizer.Activity) {
	if s.cb.OnEvent != nil {
		s.cb.OnEvent(recognizer.ActivityEvent{Activity: a, At: time.Now()})
	}
}

// streamEnded reports whether err marks the backend finishing the stream
// normally after half-close rather than failing it.
func streamEnded(err error) bool {
	return status.Code(err) == codes.OutOfRange || errors.Is(err, io.EOF)
}

// wrapStreamErr classifies a stream failure. Authentication and argument
// rejections are fatal; everything else is treated as transient.
func wrapStreamErr(err error) error {
	switch status.Code(err) {
	case codes.Unauthenticated, codes.PermissionDenied, codes.InvalidArgument, codes.ResourceExhausted:
		return &recognizer.FatalError{Err: err}
	}
	return fmt.Errorf("google: stream: %w", err)
}
