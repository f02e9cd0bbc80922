package telephony

import "time"

// Event is a channel event consumed from the telephony platform. Concrete
// event types carry the channel ID they belong to; dispatch is by type switch.
type Event interface {
	// Channel returns the ID of the channel this event belongs to.
	Channel() string
}

// ChannelEntered is emitted when a channel enters the application (ARI
// StasisStart). It is the creation signal for a call.
type ChannelEntered struct {
	ChannelID string
	CallerID  string
	EnteredAt time.Time
}

func (e ChannelEntered) Channel() string { return e.ChannelID }

// ChannelAnswered is emitted when the channel transitions to the up state.
type ChannelAnswered struct {
	ChannelID string
}

func (e ChannelAnswered) Channel() string { return e.ChannelID }

// PlaybackStarted is emitted when a playback begins on the channel.
type PlaybackStarted struct {
	ChannelID  string
	PlaybackID string
}

func (e PlaybackStarted) Channel() string { return e.ChannelID }

// PlaybackFinished is emitted when a playback completes or is stopped.
type PlaybackFinished struct {
	ChannelID  string
	PlaybackID string
}

func (e PlaybackFinished) Channel() string { return e.ChannelID }

// PlaybackFailed is emitted when a playback could not start or aborted.
type PlaybackFailed struct {
	ChannelID  string
	PlaybackID string
	Cause      string
}

func (e PlaybackFailed) Channel() string { return e.ChannelID }

// ChannelTalkingStarted is the talk-detect speech-start signal.
type ChannelTalkingStarted struct {
	ChannelID string
}

func (e ChannelTalkingStarted) Channel() string { return e.ChannelID }

// ChannelTalkingFinished is the talk-detect speech-end signal. Duration is
// the length of the detected talk spurt as reported by the platform.
type ChannelTalkingFinished struct {
	ChannelID string
	Duration  time.Duration
}

func (e ChannelTalkingFinished) Channel() string { return e.ChannelID }

// ChannelDtmfReceived carries a single keypad digit.
type ChannelDtmfReceived struct {
	ChannelID string
	Digit     rune
}

func (e ChannelDtmfReceived) Channel() string { return e.ChannelID }

// ChannelHangup is emitted when the channel hangs up or is destroyed. It is
// the destruction signal for a call.
type ChannelHangup struct {
	ChannelID string
	Cause     string
}

func (e ChannelHangup) Channel() string { return e.ChannelID }
