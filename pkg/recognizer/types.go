package recognizer

import (
	"errors"
	"time"
)

// Activity identifies a speech-activity signal reported by the backend.
type Activity string

const (
	// ActivitySpeechBegin reports that speech has been detected in the audio.
	ActivitySpeechBegin Activity = "speech_begin"

	// ActivitySpeechEnd reports that detected speech has ended.
	ActivitySpeechEnd Activity = "speech_end"

	// ActivityTimeout reports that the backend gave up waiting for speech
	// activity and is about to terminate the stream on its own.
	ActivityTimeout Activity = "speech_activity_timeout"
)

// ActivityEvent is one speech-activity signal with its arrival time.
type ActivityEvent struct {
	Activity Activity
	At       time.Time
}

// Transcript is one recognition result, interim or final.
type Transcript struct {
	// Text is the top alternative's transcript text.
	Text string

	// Final reports whether this result is stable. Interim results may be
	// revised by later ones; a final result never changes.
	Final bool

	// Confidence is the backend's confidence in the top alternative, in
	// [0, 1]. Zero when the backend does not report one (interim results).
	Confidence float64
}

// Encoding identifies the raw audio encoding of the request stream.
type Encoding string

const (
	// EncodingLinear16 is uncompressed signed 16-bit little-endian PCM.
	EncodingLinear16 Encoding = "linear16"

	// EncodingMulaw is 8-bit G.711 mu-law, the native telephony codec.
	EncodingMulaw Encoding = "mulaw"
)

// Config carries the per-session recognition parameters. Zero durations
// disable the corresponding backend-side timeout.
type Config struct {
	// LanguageCode is the BCP-47 language tag, e.g. "de-DE".
	LanguageCode string

	// Encoding and SampleRateHz describe the audio the session will receive.
	Encoding     Encoding
	SampleRateHz int

	// Model selects the backend recognition model. Empty means the backend
	// default.
	Model string

	// UseEnhanced requests the enhanced variant of the selected model where
	// the backend offers one.
	UseEnhanced bool

	// InterimResults requests unstable partial transcripts.
	InterimResults bool

	// SingleUtterance asks the backend to finalize after the first detected
	// utterance instead of recognising continuously.
	SingleUtterance bool

	// WordTimeOffsets requests per-word start and end times on final results.
	WordTimeOffsets bool

	// AutomaticPunctuation requests punctuated transcripts.
	AutomaticPunctuation bool

	// SpeakerDiarization requests speaker tags on recognised words.
	SpeakerDiarization bool

	// SpeechBeginTimeout bounds the wait for speech to begin before the
	// backend reports ActivityTimeout.
	SpeechBeginTimeout time.Duration

	// SpeechEndTimeout bounds the trailing silence after speech before the
	// backend reports ActivityTimeout.
	SpeechEndTimeout time.Duration

	// PhraseHints biases recognition toward the given phrases.
	PhraseHints []string

	// Instructions is the system prompt for reply-generating backends.
	// Recognition-only backends ignore it.
	Instructions string

	// Voice selects the synthesis voice for reply-generating backends.
	Voice string
}

// ErrSessionClosed is returned by SendAudio and HalfClose after the session
// has been closed.
var ErrSessionClosed = errors.New("recognizer: session is closed")

// FatalError marks a recognition failure that ends the session and cannot be
// recovered by the current stream: authentication rejection, invalid
// configuration, or quota exhaustion.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return "recognizer: fatal: " + e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// IsFatal reports whether err is a non-recoverable recognition failure.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
