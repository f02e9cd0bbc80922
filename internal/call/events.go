package call

// State is a call's lifecycle state. Exactly one holds at any moment.
type State string

const (
	StateNew            State = "new"
	StateAnswered       State = "answered"
	StatePreRecognition State = "pre_recognition"
	StateActivating     State = "activating"
	StateStreaming      State = "streaming"
	StateFinalizing     State = "finalizing"
	StateDtmfCollecting State = "dtmf_collecting"
	StateFallbackBatch  State = "fallback_batch"
	StateClosed         State = "closed"
)

// Terminal reason codes. Every call ends with exactly one of these, carried
// by the single terminal event and the CLEANUP_REASON channel variable.
const (
	ReasonFinalTranscript           = "final_transcript_received"
	ReasonNoSpeechBegin             = "app_no_speech_begin_timeout"
	ReasonInitialStreamIdle         = "app_initial_google_stream_idle_timeout"
	ReasonNoFinalAfterInterim       = "app_google_no_final_result_timeout_interim"
	ReasonSilenceAfterSpeechEnd     = "app_silence_after_google_speech_activity_end"
	ReasonMaxDuration               = "max_duration_timeout"
	ReasonVADMaxWait                = "vad_max_wait_after_prompt_timeout"
	ReasonDTMFFinal                 = "dtmf_final_timeout"
	ReasonTelephonyFatal            = "telephony_fatal"
	ReasonRecognizerFatal           = "recognizer_fatal"
	ReasonRecognizerActivityTimeout = "recognizer_speech_activity_timeout"
	ReasonCallerHangup              = "caller_hangup"
	ReasonShutdown                  = "shutdown"
)

// Outcome channel variables written on cleanup for the dialplan to consume.
const (
	VarFinalTranscript          = "FINAL_TRANSCRIPT"
	VarDTMFDigits               = "DTMF_DIGITS"
	VarNoSpeechBeginTimeout     = "NO_SPEECH_BEGIN_TIMEOUT"
	VarInitialStreamIdleTimeout = "INITIAL_STREAM_IDLE_TIMEOUT"
	VarMaxDurationTimeout       = "MAX_DURATION_TIMEOUT"
	VarCleanupReason            = "CLEANUP_REASON"
)

// Event types emitted by the orchestrator toward operator observers. Together
// with the control-plane types in internal/operator they form the closed
// envelope type set.
const (
	EventCallStatusUpdate     = "ari_call_status_update"
	EventSystemMessage        = "system_message"
	EventTimer                = "timer_event"
	EventVADSpeechStart       = "vad_speech_detected_start"
	EventVADSpeechEnd         = "vad_speech_detected_end"
	EventRequestingResponse   = "openai_requesting_response"
	EventStreamActivated      = "openai_stream_activated"
	EventStreamActivationFail = "openai_stream_activation_failed"
	EventTTSChunkQueued       = "openai_tts_chunk_received_and_queued"
	EventTTSChunkAccumulated  = "openai_tts_chunk_accumulated"
	EventTTSStreamEnded       = "openai_tts_stream_ended"
	EventSessionEnded         = "openai_session_ended"
	EventPlaybackStarted      = "playback_started"
	EventPlaybackFailed       = "playback_failed_to_start"
	EventPlaybackAllStopped   = "playback_all_stopped_action"
	EventTTSInterrupted       = "tts_playback_interrupted"
	EventDTMFModeActivated    = "dtmf_mode_activated"
	EventDTMFFinalized        = "dtmf_input_finalized"
	EventCallAnswered         = "call_answered"
	EventResourcesInitialized = "call_resources_initialized"
	EventCleanup              = "cleanup_resource_release_event"
	EventVADPostPrompt        = "vad_post_prompt_logic_started"
	EventError                = "error"
)

// Observer receives the orchestrator's event stream. The operator hub
// implements it; a nil-safe no-op is used when no hub is attached.
// Implementations must not block: fan-out to slow clients is the hub's
// problem, not the call's.
type Observer interface {
	CallEvent(callID, eventType string, payload map[string]any)
}

// NopObserver discards all events.
type NopObserver struct{}

// CallEvent implements [Observer].
func (NopObserver) CallEvent(string, string, map[string]any) {}
