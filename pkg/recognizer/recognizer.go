// Package recognizer defines the Provider interface for duplex streaming
// speech recognition backends.
//
// A recognizer wraps a real-time recognition service — Google Cloud Speech or
// the OpenAI Realtime API — behind one contract: a Session accepts raw audio
// frames and reports speech-activity events, interim and final transcripts,
// and errors through callbacks. The two backends have very different wire
// protocols but identical orchestration responsibilities, so the call
// orchestrator never learns which one it is driving.
//
// Callbacks are invoked from the session's internal receive goroutine.
// Implementations must invoke them in the backend's emission order and must
// not invoke any callback after OnClosed.
//
// Implementations must be safe for concurrent use. Multiple sessions may be
// open simultaneously, one per call.
package recognizer

import "context"

// Callbacks receives the response side of a recognition session. Any field
// may be nil; nil callbacks are skipped.
type Callbacks struct {
	// OnEvent reports speech-activity events.
	OnEvent func(ActivityEvent)

	// OnTranscript reports interim and final transcripts.
	OnTranscript func(Transcript)

	// OnAudio reports synthesised response audio chunks. Only backends that
	// generate spoken replies (OpenAI Realtime) invoke it; pure recognition
	// backends never do.
	OnAudio func([]byte)

	// OnResponseDone reports that a synthesised reply finished, with the
	// reply's full text. Only reply-generating backends invoke it.
	OnResponseDone func(text string)

	// OnError reports a session failure. It is invoked at most once.
	OnError func(error)

	// OnClosed reports that the session has ended, with the close reason.
	// It is invoked exactly once, after all other callbacks.
	OnClosed func(reason string)
}

// Session is an open duplex recognition session.
//
// Callers must call Close when the session is no longer needed. All methods
// are safe for concurrent use.
type Session interface {
	// SendAudio delivers a raw audio chunk for recognition. The chunk must
	// match the encoding and sample rate agreed in Config. Calling SendAudio
	// after HalfClose or Close returns an error.
	SendAudio(chunk []byte) error

	// HalfClose signals end-of-audio on the request side while the response
	// side stays open so a final transcript can still arrive. Audio already
	// buffered by the backend is not discarded. Idempotent.
	HalfClose() error

	// Close terminates the session with the given reason and releases all
	// resources. OnClosed fires with the same reason. Safe to call more
	// than once; subsequent calls return nil.
	Close(reason string) error
}

// Provider is the abstraction over any streaming recognition backend.
type Provider interface {
	// Open establishes a new recognition session. The returned Session is
	// ready to accept audio immediately. The caller owns the Session and
	// must call Close when done.
	Open(ctx context.Context, cfg Config, cb Callbacks) (Session, error)
}

// BatchTranscriber is the one-shot fallback path: recognise a complete
// recorded audio blob after streaming yielded nothing useful.
type BatchTranscriber interface {
	// Transcribe recognises audio with the given configuration and returns
	// the top alternative's text. It returns an empty string (and the
	// underlying error) on any failure: empty input, API error, or no
	// alternatives. No retries are attempted.
	Transcribe(ctx context.Context, audio []byte, cfg Config) (string, error)
}
