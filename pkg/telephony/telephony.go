// Package telephony defines the consumed contract with the telephony platform.
//
// The bridge talks to Asterisk through its REST Interface (ARI): channel events
// arrive over a WebSocket, control actions (answer, play, hangup, channel
// variables) are issued over REST, and raw call audio arrives as opaque byte
// frames over an external-media connection. This package specifies only the
// slice of ARI the call orchestrator consumes; the concrete client lives in the
// ari subpackage and a call-recording fake in mock.
//
// Implementations must be safe for concurrent use. Events for a single channel
// are delivered in platform emission order.
package telephony

import "context"

// TalkDetectVar is the channel variable that arms Asterisk's talk-detect
// feature. Its value is "<talk>,<silence>" or "remove".
const TalkDetectVar = "TALK_DETECT"

// Client is the control surface for one telephony platform connection.
//
// All action methods must be bounded by the supplied context so that call
// cleanup is prompt. A nil error means the platform accepted the action, not
// that the action has completed (playback completion arrives as an event).
type Client interface {
	// Events returns the stream of channel events for the application.
	// The channel is closed when the client shuts down.
	Events() <-chan Event

	// Answer answers the given channel.
	Answer(ctx context.Context, channelID string) error

	// Play starts playback of mediaURI on the channel and returns the
	// platform-assigned playback ID.
	Play(ctx context.Context, channelID, mediaURI string) (string, error)

	// StopPlayback stops a single in-flight playback by ID. Stopping a
	// playback that already finished is not an error.
	StopPlayback(ctx context.Context, playbackID string) error

	// SetChannelVar sets a channel variable. Used both for arming talk-detect
	// (TalkDetectVar) and for publishing outcome variables on cleanup.
	SetChannelVar(ctx context.Context, channelID, name, value string) error

	// Hangup terminates the channel.
	Hangup(ctx context.Context, channelID string) error

	// Close tears down the event WebSocket and releases resources.
	// Safe to call more than once.
	Close() error
}

// MediaStream is the external-media audio connection for one channel. The
// connection is bidirectional: inbound frames carry caller audio, outbound
// frames play on the channel. Frames are opaque byte chunks in whatever
// encoding the dialplan negotiated.
type MediaStream interface {
	// Frames returns the ordered stream of inbound audio frames. The channel
	// is closed when the media connection ends.
	Frames() <-chan []byte

	// Write sends one audio frame to the channel. It returns an error once
	// the connection has ended.
	Write(frame []byte) error

	// Close terminates the media connection. Safe to call more than once.
	Close() error
}

// MediaSource hands out per-channel media streams. The ari implementation
// runs a listener that Asterisk's externalMedia channels connect to.
type MediaSource interface {
	// Stream returns the media stream for channelID, blocking until the
	// platform has connected it or ctx expires.
	Stream(ctx context.Context, channelID string) (MediaStream, error)
}
