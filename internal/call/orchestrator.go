package call

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/arivox/arivox/internal/config"
	"github.com/arivox/arivox/internal/observe"
	"github.com/arivox/arivox/internal/resilience"
	"github.com/arivox/arivox/pkg/recognizer"
	"github.com/arivox/arivox/pkg/telephony"
)

// ErrClosed is returned by operator-facing methods after the call has ended.
var ErrClosed = errors.New("call: closed")

const (
	// preActivationBufferCap bounds the frame buffer kept while waiting for
	// activation under VAD gating.
	preActivationBufferCap = 256 << 10

	// actionTimeout bounds a single telephony REST action.
	actionTimeout = 5 * time.Second

	// mediaAttachTimeout bounds the wait for the external-media connection.
	mediaAttachTimeout = 15 * time.Second

	// batchTimeout bounds the one-shot fallback transcription during cleanup.
	batchTimeout = 10 * time.Second
)

// Options configures a call orchestrator.
type Options struct {
	// ID is the telephony channel ID; it doubles as the call ID.
	ID string

	// CallerID is the caller's number, when known.
	CallerID string

	Client   telephony.Client
	Media    telephony.MediaSource
	Provider recognizer.Provider

	// Batch, when non-nil, is tried on recorded audio after a fruitless
	// streaming attempt ends with hangup.
	Batch recognizer.BatchTranscriber

	// Observer receives the call's event stream. Nil means no observer.
	Observer Observer

	// Metrics may be nil.
	Metrics *observe.Metrics

	// Clock may be nil for the runtime clock. Tests inject a fake.
	Clock Clock

	// Config is the call's configuration snapshot.
	Config config.CallConfig

	// Prompt describes the greeting and the assistant persona.
	Prompt config.PromptConfig

	// ReplyMode marks a backend that synthesises a spoken reply after the
	// final transcript; the call then waits for the reply to finish before
	// finalizing.
	ReplyMode bool

	// OnClosed, when non-nil, runs once after the call reaches Closed.
	OnClosed func(callID string)
}

// Orchestrator owns one call: a state machine driven entirely from the call's
// mailbox goroutine. Telephony events, recognizer callbacks, timer fires and
// operator mutations all enter as enqueued messages and are handled in
// arrival order.
type Orchestrator struct {
	id        string
	callerID  string
	client    telephony.Client
	media     telephony.MediaSource
	provider  recognizer.Provider
	batch     recognizer.BatchTranscriber
	obs       Observer
	metrics   *observe.Metrics
	clock     Clock
	prompt    config.PromptConfig
	replyMode bool
	onClosed  func(string)

	ctx    context.Context
	cancel context.CancelFunc

	mailbox  *mailbox
	timers   *TimerRegistry
	pump     *FramePump
	playback *PlaybackController
	dtmf     *DTMFCollector
	vad      *VADSensor
	conv     *Conversation

	// mu guards cfg and state for reads from the operator goroutines. All
	// writes happen on the mailbox goroutine.
	mu    sync.Mutex
	cfg   config.CallConfig
	state State

	// Everything below is owned by the mailbox goroutine.

	session     recognizer.Session
	mediaStream telephony.MediaStream

	speechBegun            bool
	sawRecognizerEvent     bool
	lastInterim            string
	finalTranscript        string
	gotFinal               bool
	halfClosed             bool
	silenceFromActivityEnd bool
	awaitingReply          bool
	ttsChunks              int
	ttsBytes               int

	vadInitialSilenceDone bool
	vadActivationDone     bool
	vadSpeechStarted      bool
	promptEnded           bool
	promptConfigured      bool

	speechDisabled bool
	dtmfDigits     string

	noSpeechTimedOut bool
	idleTimedOut     bool
	maxDurTimedOut   bool

	channelGone bool
	cleanupDone bool
	answeredAt  time.Time
	activatedAt time.Time

	done chan struct{}
}

// New creates an orchestrator for one inbound call. Call Start to begin.
func New(opts Options) *Orchestrator {
	if opts.Clock == nil {
		opts.Clock = NewClock()
	}
	if opts.Observer == nil {
		opts.Observer = NopObserver{}
	}

	o := &Orchestrator{
		id:        opts.ID,
		callerID:  opts.CallerID,
		client:    opts.Client,
		media:     opts.Media,
		provider:  opts.Provider,
		batch:     opts.Batch,
		obs:       opts.Observer,
		metrics:   opts.Metrics,
		clock:     opts.Clock,
		prompt:    opts.Prompt,
		replyMode: opts.ReplyMode,
		onClosed:  opts.OnClosed,
		cfg:       opts.Config,
		state:     StateNew,
		mailbox:   newMailbox(),
		conv:      &Conversation{},
		done:      make(chan struct{}),
	}
	o.timers = NewTimerRegistry(opts.Clock, o.mailbox.enqueue)
	o.pump = NewFramePump(func() {
		o.mailbox.enqueue(func() {
			o.emit(EventSystemMessage, payload{"message": "pre-activation buffer overflow, oldest audio dropped"})
		})
	})
	o.playback = NewPlaybackController(opts.Client, opts.ID, o.onPlaybackStarted, o.onPlaybackEnded)
	o.dtmf = NewDTMFCollector(o.timers, func() (time.Duration, time.Duration) {
		cfg := o.configSnapshot()
		return cfg.DTMFInterDigitTimeout(), cfg.DTMFFinalTimeout()
	}, o.onDTMFFinal)
	o.vad = NewVADSensor(opts.Client, opts.ID)

	return o
}

type payload = map[string]any

// ─── Public surface ───────────────────────────────────────────────────────────

// ID returns the call identifier.
func (o *Orchestrator) ID() string { return o.id }

// CallerID returns the caller's number, possibly empty.
func (o *Orchestrator) CallerID() string { return o.callerID }

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// ConfigSnapshot returns the call's effective configuration.
func (o *Orchestrator) ConfigSnapshot() config.CallConfig {
	return o.configSnapshot()
}

// Done is closed once the call has reached Closed and cleanup has finished.
func (o *Orchestrator) Done() <-chan struct{} { return o.done }

// Start launches the call: the mailbox goroutine spins up, the channel is
// answered and the state machine begins.
func (o *Orchestrator) Start(ctx context.Context) {
	o.ctx, o.cancel = context.WithCancel(context.WithoutCancel(ctx))
	go o.mailbox.run()
	o.mailbox.enqueue(o.handleStart)
}

// Deliver feeds one telephony event into the call's queue. Events for other
// channels are the caller's problem; Deliver assumes the event belongs here.
func (o *Orchestrator) Deliver(ev telephony.Event) {
	o.mailbox.enqueue(func() { o.handleTelephony(ev) })
}

// ApplyConfigPatch merges patch into the call's configuration on the call's
// queue. reply receives the effective configuration and the validation error,
// if any; on error the prior configuration stays in force. A patch affects
// future timer arms only.
func (o *Orchestrator) ApplyConfigPatch(patch config.CallConfigPatch, reply func(config.CallConfig, error)) {
	ok := o.mailbox.enqueue(func() {
		cur := o.configSnapshot()
		merged := patch.Merge(cur)
		if err := config.ValidateCall(merged); err != nil {
			reply(cur, err)
			return
		}
		o.setConfig(merged)
		o.emit(EventSystemMessage, payload{"message": "call configuration updated"})
		reply(merged, nil)
	})
	if !ok {
		reply(o.configSnapshot(), ErrClosed)
	}
}

// History delivers a snapshot of the conversation history to reply.
func (o *Orchestrator) History(reply func([]Turn)) {
	ok := o.mailbox.enqueue(func() { reply(o.conv.Snapshot()) })
	if !ok {
		// Nothing mutates the log after close; a direct snapshot is safe.
		reply(o.conv.Snapshot())
	}
}

// Shutdown enqueues a close with the given terminal reason. Used on process
// shutdown and operator kill; the caller's hangup path uses its own reason.
func (o *Orchestrator) Shutdown(reason string) {
	o.mailbox.enqueue(func() { o.fullCleanup(false, reason) })
}

// ─── State helpers ────────────────────────────────────────────────────────────

func (o *Orchestrator) configSnapshot() config.CallConfig {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cfg
}

func (o *Orchestrator) setConfig(cfg config.CallConfig) {
	o.mu.Lock()
	o.cfg = cfg
	o.mu.Unlock()
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	o.emit(EventCallStatusUpdate, payload{"state": string(s)})
}

func (o *Orchestrator) inState(states ...State) bool {
	cur := o.State()
	for _, s := range states {
		if cur == s {
			return true
		}
	}
	return false
}

func (o *Orchestrator) emit(eventType string, p payload) {
	o.obs.CallEvent(o.id, eventType, p)
}

// armTimer arms name through the registry, reporting the fire to metrics and
// the operator stream before running onFire.
func (o *Orchestrator) armTimer(name TimerName, d time.Duration, onFire func()) {
	o.timers.Arm(name, d, func() {
		o.metrics.RecordTimerFire(o.ctx, string(name))
		o.emit(EventTimer, payload{"timer": string(name), "action": "fired"})
		onFire()
	})
}

// tele runs a telephony REST action with a bounded deadline and one retry on
// transient failure.
func (o *Orchestrator) tele(op func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(o.ctx, actionTimeout)
	defer cancel()
	return resilience.Retry(ctx, func(err error) bool { return !telephony.IsFatal(err) }, op)
}

// ─── Lifecycle: answer ────────────────────────────────────────────────────────

func (o *Orchestrator) handleStart() {
	o.metrics.CallStarted(o.ctx)

	if err := o.tele(func(ctx context.Context) error {
		return o.client.Answer(ctx, o.id)
	}); err != nil {
		slog.Error("call: answer failed", "call_id", o.id, "err", err)
		o.emit(EventError, payload{"error": err.Error(), "action": "answer"})
		o.fullCleanup(false, ReasonTelephonyFatal)
		return
	}

	o.setState(StateAnswered)
	o.emit(EventCallAnswered, payload{"caller_id": o.callerID})
	o.handleAnswered()
}

func (o *Orchestrator) handleAnswered() {
	cfg := o.configSnapshot()
	o.answeredAt = o.clock.Now()
	o.promptConfigured = o.prompt.MediaURI != ""

	// Hard cap across all phases.
	o.armTimer(TimerMaxRecognition, cfg.MaxRecognitionDuration(), func() {
		o.maxDurTimedOut = true
		o.fullCleanup(true, ReasonMaxDuration)
	})

	// Attach call audio as soon as Asterisk dials the media listener in.
	go func() {
		ctx, cancel := context.WithTimeout(o.ctx, mediaAttachTimeout)
		defer cancel()
		stream, err := o.media.Stream(ctx, o.id)
		o.mailbox.enqueue(func() {
			if o.cleanupDone {
				if err == nil {
					stream.Close()
				}
				return
			}
			if err != nil {
				slog.Warn("call: media attach failed", "call_id", o.id, "err", err)
				o.emit(EventSystemMessage, payload{"message": "media stream unavailable: " + err.Error()})
				return
			}
			o.mediaStream = stream
			o.pump.Attach(stream)
		})
	}()

	if cfg.ActivationMode == config.ActivationVAD {
		if err := o.vad.Enable(o.ctx, cfg.VADTalkThreshold, cfg.VADSilenceThresholdMs); err != nil {
			slog.Warn("call: enable vad sensor", "call_id", o.id, "err", err)
			o.emit(EventError, payload{"error": err.Error(), "action": "enable_vad"})
		}
		o.pump.SetBuffer(preActivationBufferCap)
		o.armTimer(TimerVADInitialSilence, cfg.VADInitialSilenceDelay(), func() {
			o.vadInitialSilenceDone = true
			o.maybeActivateVAD()
		})
		o.armTimer(TimerVADActivationDelay, cfg.VADActivationDelay(), func() {
			o.vadActivationDone = true
			o.maybeActivateVAD()
		})
	}

	o.emit(EventResourcesInitialized, nil)
	o.setState(StatePreRecognition)

	if o.promptConfigured {
		if _, err := o.playback.Play(o.ctx, o.prompt.MediaURI, PurposePrompt); err != nil {
			slog.Warn("call: prompt playback failed", "call_id", o.id, "err", err)
			o.emit(EventPlaybackFailed, payload{"media_uri": o.prompt.MediaURI, "error": err.Error()})
			o.handlePromptEnded()
		}
		if cfg.ActivationMode == config.ActivationImmediate {
			// Immediate mode does not wait for PlaybackStarted confirmation.
			o.activate()
		}
		return
	}

	// No prompt: the prompt phase is already over.
	o.handlePromptEnded()
	if cfg.ActivationMode == config.ActivationImmediate {
		o.activate()
	}
}

// ─── Telephony event dispatch ─────────────────────────────────────────────────

func (o *Orchestrator) handleTelephony(ev telephony.Event) {
	if o.cleanupDone {
		return
	}
	switch e := ev.(type) {
	case telephony.ChannelAnswered:
		// Answer is driven by the REST call in handleStart; the platform's
		// confirmation needs no action.
	case telephony.PlaybackStarted:
		o.playback.HandleStarted(e.PlaybackID)
	case telephony.PlaybackFinished:
		o.playback.HandleFinished(o.ctx, e.PlaybackID)
	case telephony.PlaybackFailed:
		o.emit(EventPlaybackFailed, payload{"playback_id": e.PlaybackID, "cause": e.Cause})
		o.playback.HandleFailed(o.ctx, e.PlaybackID)
	case telephony.ChannelTalkingStarted:
		o.handleVADSpeechStart()
	case telephony.ChannelTalkingFinished:
		o.handleVADSpeechEnd(e.Duration)
	case telephony.ChannelDtmfReceived:
		o.handleDigit(e.Digit)
	case telephony.ChannelHangup:
		o.channelGone = true
		o.fullCleanup(false, ReasonCallerHangup)
	}
}

// ─── Playback lifecycle ───────────────────────────────────────────────────────

func (o *Orchestrator) onPlaybackStarted(purpose PlaybackPurpose, playbackID string) {
	o.emit(EventPlaybackStarted, payload{"purpose": string(purpose), "playback_id": playbackID})
}

func (o *Orchestrator) onPlaybackEnded(purpose PlaybackPurpose, failed bool) {
	if failed {
		o.emit(EventPlaybackFailed, payload{"purpose": string(purpose)})
	}
	if purpose == PurposePrompt {
		o.handlePromptEnded()
	}
}

// handlePromptEnded runs the activation-mode-specific logic that follows the
// end of the greeting prompt. Also invoked directly when no prompt is
// configured.
func (o *Orchestrator) handlePromptEnded() {
	if o.promptEnded {
		return
	}
	o.promptEnded = true

	if !o.inState(StatePreRecognition) {
		return
	}
	cfg := o.configSnapshot()
	switch cfg.ActivationMode {
	case config.ActivationImmediate:
		o.activate()
	case config.ActivationFixedDelay:
		o.armTimer(TimerBargeIn, cfg.BargeInDelay(), func() {
			if o.inState(StatePreRecognition) {
				o.activate()
			}
		})
	case config.ActivationVAD:
		if cfg.VADMode == config.VADModeAfterPrompt {
			o.maybeActivateVAD()
			return
		}
		o.emit(EventVADPostPrompt, nil)
		o.armTimer(TimerVADMaxWaitAfterPrompt, cfg.VADMaxWaitAfterPrompt(), func() {
			if err := o.vad.Disable(o.ctx); err != nil {
				slog.Debug("call: disable vad sensor", "call_id", o.id, "err", err)
			}
			o.fullCleanup(false, ReasonVADMaxWait)
		})
	}
}

// ─── VAD sensor events ────────────────────────────────────────────────────────

func (o *Orchestrator) handleVADSpeechStart() {
	if !o.vad.Enabled() || o.speechDisabled {
		return
	}
	o.emit(EventVADSpeechStart, nil)
	o.vadSpeechStarted = true
	o.timers.Cancel(TimerVADMaxWaitAfterPrompt)
	o.bargeIn(StopBargeInVAD)
	o.maybeActivateVAD()
}

func (o *Orchestrator) handleVADSpeechEnd(d time.Duration) {
	if !o.vad.Enabled() {
		return
	}
	o.emit(EventVADSpeechEnd, payload{"duration_ms": d.Milliseconds()})
}

// maybeActivateVAD activates the stream once every VAD precondition holds:
// both initial delays expired, plus an observed speech start (vadMode) or
// the prompt having ended (afterPrompt).
func (o *Orchestrator) maybeActivateVAD() {
	if !o.inState(StatePreRecognition) {
		return
	}
	if !o.vadInitialSilenceDone || !o.vadActivationDone {
		return
	}
	cfg := o.configSnapshot()
	if cfg.VADMode == config.VADModeAfterPrompt {
		if o.promptEnded {
			o.activate()
		}
		return
	}
	if o.vadSpeechStarted {
		o.activate()
	}
}

// bargeIn interrupts outbound audio on caller input. The TTS-interrupted
// event only fires when synthesised speech was actually cut off.
func (o *Orchestrator) bargeIn(reason StopReason) {
	wasTTS := o.playback.ActivePurpose() == PurposeTTS
	stopped, err := o.playback.StopAll(o.ctx, reason)
	if err != nil {
		slog.Debug("call: stop playback", "call_id", o.id, "reason", string(reason), "err", err)
	}
	if !stopped {
		return
	}
	o.emit(EventPlaybackAllStopped, payload{"reason": string(reason)})
	if wasTTS {
		o.emit(EventTTSInterrupted, payload{"reason": string(reason)})
		o.interruptReply()
	}
}

// interruptReply cancels an in-flight synthesised reply on backends that
// support it.
func (o *Orchestrator) interruptReply() {
	if s, ok := o.session.(interface{ Interrupt() error }); ok {
		if err := s.Interrupt(); err != nil {
			slog.Debug("call: interrupt reply", "call_id", o.id, "err", err)
		}
	}
}

// ─── Activation and streaming ─────────────────────────────────────────────────

// activate opens the recognition session and enters Streaming. A transient
// open failure still enters Streaming with no session: the no-speech and
// stream-idle timers then elect the fallback path.
func (o *Orchestrator) activate() {
	if o.speechDisabled || !o.inState(StatePreRecognition) {
		return
	}
	o.setState(StateActivating)
	o.activatedAt = o.clock.Now()

	cfg := o.configSnapshot()
	sess, err := o.provider.Open(o.ctx, o.recognizerConfig(cfg), recognizer.Callbacks{
		OnEvent: func(e recognizer.ActivityEvent) {
			o.mailbox.enqueue(func() { o.handleActivity(e) })
		},
		OnTranscript: func(t recognizer.Transcript) {
			o.mailbox.enqueue(func() { o.handleTranscript(t) })
		},
		OnAudio: func(chunk []byte) {
			o.mailbox.enqueue(func() { o.handleTTSChunk(chunk) })
		},
		OnResponseDone: func(text string) {
			o.mailbox.enqueue(func() { o.handleResponseDone(text) })
		},
		OnError: func(err error) {
			o.mailbox.enqueue(func() { o.handleRecognizerError(err) })
		},
		OnClosed: func(reason string) {
			o.mailbox.enqueue(func() { o.emit(EventSessionEnded, payload{"reason": reason}) })
		},
	})
	if err != nil {
		slog.Warn("call: open recognition session", "call_id", o.id, "err", err)
		o.metrics.RecordRecognizerError(o.ctx, "stream", "open")
		o.emit(EventStreamActivationFail, payload{"error": err.Error()})
		if recognizer.IsFatal(err) {
			o.fullCleanup(true, ReasonRecognizerFatal)
			return
		}
	} else {
		o.session = sess
		o.emit(EventStreamActivated, nil)
	}

	o.enterStreaming()
}

func (o *Orchestrator) recognizerConfig(cfg config.CallConfig) recognizer.Config {
	rc := cfg.Recognize
	return recognizer.Config{
		LanguageCode:         rc.LanguageCode,
		Encoding:             recognizer.Encoding(rc.Encoding),
		SampleRateHz:         rc.SampleRateHertz,
		Model:                rc.Model,
		UseEnhanced:          rc.UseEnhanced,
		InterimResults:       rc.InterimResults,
		SingleUtterance:      rc.SingleUtterance,
		WordTimeOffsets:      rc.WordTimeOffsets,
		AutomaticPunctuation: rc.AutomaticPunctuation,
		SpeakerDiarization:   rc.SpeakerDiarization,
		SpeechBeginTimeout:   time.Duration(rc.SpeechStartTimeoutSeconds * float64(time.Second)),
		SpeechEndTimeout:     time.Duration(rc.SpeechEndTimeoutSeconds * float64(time.Second)),
		Instructions:         o.prompt.Instructions,
		Voice:                o.prompt.Voice,
	}
}

func (o *Orchestrator) enterStreaming() {
	o.setState(StateStreaming)

	if o.session != nil {
		s := o.session
		// The buffered pre-activation audio flushes first, in order.
		o.pump.SetForward(func(frame []byte) error { return s.SendAudio(frame) })
	} else {
		// No live session; keep recording so batch fallback has material.
		o.pump.SetBuffer(preActivationBufferCap)
	}

	cfg := o.configSnapshot()
	if !o.speechBegun {
		o.armTimer(TimerNoSpeechBegin, cfg.NoSpeechBeginTimeout(), func() {
			o.noSpeechTimedOut = true
			o.fullCleanup(true, ReasonNoSpeechBegin)
		})
	}
	o.armTimer(TimerInitialStreamIdle, cfg.InitialStreamIdleTimeout(), func() {
		o.idleTimedOut = true
		o.fullCleanup(true, ReasonInitialStreamIdle)
	})
}

// ─── Recognizer callbacks ─────────────────────────────────────────────────────

func (o *Orchestrator) handleActivity(e recognizer.ActivityEvent) {
	if o.cleanupDone || o.speechDisabled {
		return
	}
	o.noteRecognizerEvent()

	switch e.Activity {
	case recognizer.ActivitySpeechBegin:
		if !o.speechBegun {
			o.speechBegun = true
			o.timers.Cancel(TimerNoSpeechBegin)
		}
	case recognizer.ActivitySpeechEnd:
		o.silenceFromActivityEnd = true
		o.armSpeechEndSilence()
	case recognizer.ActivityTimeout:
		// The backend is about to end the stream on its own; record it as
		// the winner over the application timers.
		o.fullCleanup(false, ReasonRecognizerActivityTimeout)
	}
}

func (o *Orchestrator) handleTranscript(t recognizer.Transcript) {
	if o.cleanupDone || o.speechDisabled {
		return
	}
	o.noteRecognizerEvent()

	if t.Text != "" && !o.speechBegun {
		o.speechBegun = true
		o.timers.Cancel(TimerNoSpeechBegin)
	}

	if !t.Final {
		if t.Text == "" {
			return
		}
		o.lastInterim = t.Text
		o.silenceFromActivityEnd = false
		o.armSpeechEndSilence()
		o.bargeIn(StopBargeInInterim)
		return
	}

	// Final transcripts after the first are ignored; the first one is the
	// published outcome even when it arrives after half-close.
	if o.gotFinal || t.Text == "" {
		return
	}
	o.gotFinal = true
	o.finalTranscript = t.Text
	o.timers.Cancel(TimerSpeechEndSilence)
	o.conv.Append(ActorUser, TurnMessage, t.Text, o.clock.Now())

	if o.metrics != nil && !o.activatedAt.IsZero() {
		o.metrics.RecognitionDuration.Record(o.ctx, o.clock.Now().Sub(o.activatedAt).Seconds())
	}

	if o.replyMode {
		o.awaitingReply = true
		o.emit(EventRequestingResponse, payload{"transcript": t.Text})
		return
	}
	o.fullCleanup(false, ReasonFinalTranscript)
}

func (o *Orchestrator) noteRecognizerEvent() {
	if !o.sawRecognizerEvent {
		o.sawRecognizerEvent = true
		o.timers.Cancel(TimerInitialStreamIdle)
	}
}

func (o *Orchestrator) armSpeechEndSilence() {
	cfg := o.configSnapshot()
	o.armTimer(TimerSpeechEndSilence, cfg.SpeechEndSilenceTimeout(), o.onSpeechEndSilence)
}

// onSpeechEndSilence implements the two-path silence timeout: from the
// activity-end path it finalizes directly; from the interim path it
// half-closes once to ask for a final result and gives it one more window.
func (o *Orchestrator) onSpeechEndSilence() {
	if o.cleanupDone {
		return
	}
	if o.silenceFromActivityEnd {
		o.fullCleanup(false, ReasonSilenceAfterSpeechEnd)
		return
	}
	if !o.halfClosed {
		o.halfClosed = true
		if o.session != nil {
			if err := o.session.HalfClose(); err != nil {
				slog.Debug("call: half-close session", "call_id", o.id, "err", err)
			}
		}
		o.armSpeechEndSilence()
		return
	}
	o.fullCleanup(false, ReasonNoFinalAfterInterim)
}

func (o *Orchestrator) handleRecognizerError(err error) {
	if o.cleanupDone || o.speechDisabled {
		return
	}
	slog.Warn("call: recognition session error", "call_id", o.id, "err", err)
	o.emit(EventError, payload{"error": err.Error(), "source": "recognizer"})
	o.metrics.RecordRecognizerError(o.ctx, "stream", "session")

	// An error before any event means the stream never produced anything:
	// same treatment as the initial stream-idle expiry.
	if !o.sawRecognizerEvent {
		o.idleTimedOut = true
		o.fullCleanup(true, ReasonInitialStreamIdle)
		return
	}
	if recognizer.IsFatal(err) {
		o.fullCleanup(true, ReasonRecognizerFatal)
		return
	}
	// Transient: drop the session and let the armed timers decide the
	// fallback.
	o.closeSession("error")
}

func (o *Orchestrator) closeSession(reason string) {
	if o.session == nil {
		return
	}
	s := o.session
	o.session = nil
	if err := s.Close(reason); err != nil {
		slog.Debug("call: close session", "call_id", o.id, "err", err)
	}
}

// ─── Assistant reply (reply-generating backends) ──────────────────────────────

// handleTTSChunk plays one synthesised-reply chunk by writing it back over
// the external-media connection. Chunks that cannot reach the caller are
// dropped without a queued event.
func (o *Orchestrator) handleTTSChunk(chunk []byte) {
	if o.cleanupDone || !o.awaitingReply {
		return
	}
	if o.mediaStream == nil {
		slog.Debug("call: reply audio dropped, no media stream", "call_id", o.id, "bytes", len(chunk))
		return
	}
	if err := o.mediaStream.Write(chunk); err != nil {
		slog.Debug("call: write reply audio", "call_id", o.id, "err", err)
		return
	}
	o.ttsChunks++
	o.ttsBytes += len(chunk)
	if o.ttsChunks == 1 {
		o.playback.BeginStreaming(PurposeTTS)
	}
	o.emit(EventTTSChunkQueued, payload{"bytes": len(chunk)})
	if o.ttsChunks%20 == 0 {
		o.emit(EventTTSChunkAccumulated, payload{"chunks": o.ttsChunks, "total_bytes": o.ttsBytes})
	}
}

func (o *Orchestrator) handleResponseDone(text string) {
	if o.cleanupDone || !o.awaitingReply {
		return
	}
	o.awaitingReply = false
	o.playback.EndStreaming()
	if text != "" {
		o.conv.Append(ActorAssistant, TurnMessage, text, o.clock.Now())
	}
	o.emit(EventTTSStreamEnded, payload{"chunks": o.ttsChunks, "total_bytes": o.ttsBytes})
	o.fullCleanup(false, ReasonFinalTranscript)
}

// ─── DTMF arbitration ─────────────────────────────────────────────────────────

func (o *Orchestrator) handleDigit(d rune) {
	cfg := o.configSnapshot()
	if !cfg.DTMFEnabled || o.cleanupDone {
		return
	}
	o.metrics.RecordDTMFDigit(o.ctx)

	if !o.speechDisabled {
		// First digit: DTMF wins, speech is permanently disabled for the
		// remainder of the call.
		o.speechDisabled = true
		o.emit(EventDTMFModeActivated, nil)
		o.bargeIn(StopDTMF)
		o.closeSession("dtmf_interrupt")
		for _, name := range []TimerName{
			TimerBargeIn, TimerNoSpeechBegin, TimerInitialStreamIdle,
			TimerSpeechEndSilence, TimerVADInitialSilence,
			TimerVADActivationDelay, TimerVADMaxWaitAfterPrompt,
		} {
			o.timers.Cancel(name)
		}
		if err := o.vad.Disable(o.ctx); err != nil {
			slog.Debug("call: disable vad sensor", "call_id", o.id, "err", err)
		}
		o.pump.SetDiscard()
		o.setState(StateDtmfCollecting)
	}

	o.dtmf.OnDigit(d)
}

func (o *Orchestrator) onDTMFFinal(digits, reason string) {
	o.dtmfDigits = digits
	o.conv.Append(ActorDTMF, TurnMessage, digits, o.clock.Now())
	o.emit(EventDTMFFinalized, payload{"digits": digits, "reason": reason})
	o.fullCleanup(false, ReasonDTMFFinal)
}

// ─── Finalization ─────────────────────────────────────────────────────────────

// fullCleanup tears the call down to Closed: cancel timers, close the
// recognizer, stop playback, detach the pump, publish the single terminal
// event, optionally attempt batch fallback, publish the outcome channel
// variables and hang up when asked. Idempotent — only the first invocation
// acts, so exactly one terminal event is ever published.
func (o *Orchestrator) fullCleanup(hangup bool, reason string) {
	if o.cleanupDone {
		return
	}
	o.cleanupDone = true
	o.setState(StateFinalizing)

	o.timers.CancelAll()

	// Digits collected but not yet finalized still publish: a cleanup that
	// preempts the dtmfFinal timer must not lose the caller's input. The
	// collector's callback re-enters fullCleanup, which is already done.
	if o.speechDisabled {
		o.dtmf.Finalize(reason)
	}

	if o.session != nil {
		if err := o.session.HalfClose(); err != nil && !errors.Is(err, recognizer.ErrSessionClosed) {
			slog.Debug("call: half-close session", "call_id", o.id, "err", err)
		}
		o.closeSession(reason)
	}

	if stopped, err := o.playback.StopAll(o.ctx, StopCleanup); err != nil {
		slog.Debug("call: stop playback on cleanup", "call_id", o.id, "err", err)
	} else if stopped {
		o.emit(EventPlaybackAllStopped, payload{"reason": string(StopCleanup)})
	}

	if err := o.vad.Disable(o.ctx); err != nil && !o.channelGone {
		slog.Debug("call: disable vad sensor", "call_id", o.id, "err", err)
	}

	o.pump.Detach()

	o.emit(EventCleanup, payload{"reason": reason, "hangup": hangup})

	if hangup && !o.gotFinal && !o.speechDisabled && o.batch != nil {
		o.runBatchFallback()
	}

	if !o.channelGone {
		o.publishOutcome(reason)
	}

	if hangup && !o.channelGone {
		if err := o.tele(func(ctx context.Context) error {
			return o.client.Hangup(ctx, o.id)
		}); err != nil {
			slog.Warn("call: hangup failed", "call_id", o.id, "err", err)
		}
	}

	o.setState(StateClosed)
	o.metrics.RecordCleanup(o.ctx, reason, hangup)
	if !o.answeredAt.IsZero() {
		o.metrics.CallEnded(o.ctx, o.clock.Now().Sub(o.answeredAt).Seconds())
	}
	slog.Info("call: closed", "call_id", o.id, "reason", reason, "hangup", hangup)

	o.cancel()
	o.mailbox.close()
	close(o.done)
	if o.onClosed != nil {
		go o.onClosed(o.id)
	}
}

// runBatchFallback hands the recorded audio to the one-shot transcriber. Any
// failure leaves the transcript empty; there are no retries.
func (o *Orchestrator) runBatchFallback() {
	rec := o.pump.Recording()
	if len(rec) == 0 {
		return
	}
	o.setState(StateFallbackBatch)
	cfg := o.configSnapshot()

	ctx, cancel := context.WithTimeout(o.ctx, batchTimeout)
	defer cancel()

	start := o.clock.Now()
	text, err := o.batch.Transcribe(ctx, rec, o.recognizerConfig(cfg))
	if o.metrics != nil {
		o.metrics.BatchFallbackDuration.Record(o.ctx, o.clock.Now().Sub(start).Seconds())
	}
	if err != nil {
		slog.Debug("call: batch fallback", "call_id", o.id, "err", err)
		return
	}
	if text != "" {
		o.finalTranscript = text
	}
}

// publishOutcome writes the outcome channel variables for the dialplan.
// Failures are logged and otherwise ignored: the call is ending either way.
func (o *Orchestrator) publishOutcome(reason string) {
	vars := []struct {
		name, value string
	}{
		{VarFinalTranscript, o.finalTranscript},
		{VarDTMFDigits, o.dtmfDigits},
		{VarCleanupReason, reason},
	}
	if o.noSpeechTimedOut {
		vars = append(vars, struct{ name, value string }{VarNoSpeechBeginTimeout, "true"})
	}
	if o.idleTimedOut {
		vars = append(vars, struct{ name, value string }{VarInitialStreamIdleTimeout, "true"})
	}
	if o.maxDurTimedOut {
		vars = append(vars, struct{ name, value string }{VarMaxDurationTimeout, "true"})
	}

	for _, v := range vars {
		if err := o.tele(func(ctx context.Context) error {
			return o.client.SetChannelVar(ctx, o.id, v.name, v.value)
		}); err != nil {
			slog.Warn("call: publish outcome variable", "call_id", o.id, "var", v.name, "err", err)
		}
	}
}
