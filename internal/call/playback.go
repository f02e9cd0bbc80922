package call

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/arivox/arivox/pkg/telephony"
)

// PlaybackPurpose says why a clip is being played.
type PlaybackPurpose string

const (
	// PurposePrompt is the greeting prompt played at call start.
	PurposePrompt PlaybackPurpose = "prompt"

	// PurposeTTS is synthesised assistant speech.
	PurposeTTS PlaybackPurpose = "tts"
)

// StopReason says why outbound audio was interrupted. The set is closed.
type StopReason string

const (
	StopBargeInVAD     StopReason = "barge_in_vad"
	StopBargeInInterim StopReason = "barge_in_interim"
	StopDTMF           StopReason = "dtmf"
	StopCleanup        StopReason = "cleanup"
	StopSuperseded     StopReason = "superseded"
)

// playbackEntry is one queued or active clip. LocalID correlates operator
// events even when the platform never assigned a playback ID (start failed).
type playbackEntry struct {
	localID  string
	id       string
	mediaURI string
	purpose  PlaybackPurpose
}

// PlaybackController starts, queues and stops outbound audio on one channel.
// Overlapping plays queue FIFO; at most one playback is active at a time.
//
// All methods run on the call mailbox. Lifecycle events from the platform
// re-enter through HandleStarted/HandleFinished/HandleFailed.
type PlaybackController struct {
	client    telephony.Client
	channelID string

	onStarted func(purpose PlaybackPurpose, playbackID string)
	onEnded   func(purpose PlaybackPurpose, failed bool)

	active *playbackEntry
	queue  []playbackEntry
}

// NewPlaybackController wires a controller to the channel. onStarted and
// onEnded re-enter the orchestrator; either may be nil.
func NewPlaybackController(client telephony.Client, channelID string, onStarted func(PlaybackPurpose, string), onEnded func(PlaybackPurpose, bool)) *PlaybackController {
	return &PlaybackController{
		client:    client,
		channelID: channelID,
		onStarted: onStarted,
		onEnded:   onEnded,
	}
}

// Play starts mediaURI, or queues it when a playback is already active.
// It returns the entry's local correlation ID.
func (p *PlaybackController) Play(ctx context.Context, mediaURI string, purpose PlaybackPurpose) (string, error) {
	entry := playbackEntry{localID: uuid.NewString(), mediaURI: mediaURI, purpose: purpose}
	if p.active != nil {
		p.queue = append(p.queue, entry)
		return entry.localID, nil
	}
	if err := p.start(ctx, entry); err != nil {
		return entry.localID, err
	}
	return entry.localID, nil
}

func (p *PlaybackController) start(ctx context.Context, entry playbackEntry) error {
	id, err := p.client.Play(ctx, p.channelID, entry.mediaURI)
	if err != nil {
		return fmt.Errorf("playback: start %q: %w", entry.mediaURI, err)
	}
	entry.id = id
	p.active = &entry
	return nil
}

// HandleStarted processes a PlaybackStarted event for this channel.
func (p *PlaybackController) HandleStarted(playbackID string) {
	if p.active == nil || p.active.id != playbackID {
		return
	}
	if p.onStarted != nil {
		p.onStarted(p.active.purpose, playbackID)
	}
}

// HandleFinished processes a PlaybackFinished event: the next queued clip
// starts, then the ended clip is reported.
func (p *PlaybackController) HandleFinished(ctx context.Context, playbackID string) {
	p.handleEnded(ctx, playbackID, false)
}

// HandleFailed processes a PlaybackFailed event.
func (p *PlaybackController) HandleFailed(ctx context.Context, playbackID string) {
	p.handleEnded(ctx, playbackID, true)
}

func (p *PlaybackController) handleEnded(ctx context.Context, playbackID string, failed bool) {
	if p.active == nil || p.active.id != playbackID {
		return
	}
	purpose := p.active.purpose
	p.active = nil

	for len(p.queue) > 0 {
		next := p.queue[0]
		p.queue = p.queue[1:]
		if err := p.start(ctx, next); err == nil {
			break
		}
		// A clip that fails to start is skipped; the queue keeps draining.
	}

	if p.onEnded != nil {
		p.onEnded(purpose, failed)
	}
}

// BeginStreaming marks audio of the given purpose as actively streaming over
// the media connection. A streaming entry has no platform playback ID: the
// platform never learns about it, so its lifecycle is driven entirely by
// EndStreaming and StopAll. It returns the entry's local correlation ID.
func (p *PlaybackController) BeginStreaming(purpose PlaybackPurpose) string {
	entry := playbackEntry{localID: uuid.NewString(), purpose: purpose}
	p.active = &entry
	if p.onStarted != nil {
		p.onStarted(purpose, "")
	}
	return entry.localID
}

// EndStreaming ends the active streaming entry, if any. Platform-backed
// playbacks are untouched; those end through HandleFinished.
func (p *PlaybackController) EndStreaming() {
	if p.active == nil || p.active.id != "" {
		return
	}
	purpose := p.active.purpose
	p.active = nil
	if p.onEnded != nil {
		p.onEnded(purpose, false)
	}
}

// StopAll interrupts the active playback and clears the queue. It reports
// whether anything was actually playing or pending. The ended callback does
// not fire for stopped clips; reason is for the caller's event stream.
func (p *PlaybackController) StopAll(ctx context.Context, reason StopReason) (bool, error) {
	stopped := p.active != nil || len(p.queue) > 0
	p.queue = nil

	if p.active == nil {
		return stopped, nil
	}
	id := p.active.id
	p.active = nil

	// A streaming entry has no platform playback to stop.
	if id == "" {
		return stopped, nil
	}
	if err := p.client.StopPlayback(ctx, id); err != nil {
		return stopped, fmt.Errorf("playback: stop all (%s): %w", reason, err)
	}
	return stopped, nil
}

// Busy reports whether a playback is active or queued.
func (p *PlaybackController) Busy() bool {
	return p.active != nil || len(p.queue) > 0
}

// ActivePurpose returns the purpose of the active playback, or "".
func (p *PlaybackController) ActivePurpose() PlaybackPurpose {
	if p.active == nil {
		return ""
	}
	return p.active.purpose
}
