package config

import (
	"errors"
	"fmt"
	"time"
)

// ActivationMode selects how a call leaves the pre-recognition phase and
// opens its streaming session.
type ActivationMode string

const (
	// ActivationImmediate opens the stream as soon as the prompt starts, or
	// right away when no prompt is configured.
	ActivationImmediate ActivationMode = "immediate"

	// ActivationFixedDelay waits for the prompt to end, then a fixed barge-in
	// delay. A zero delay still waits for the prompt to end; that makes it a
	// distinct input from ActivationImmediate, and both are kept.
	ActivationFixedDelay ActivationMode = "fixedDelay"

	// ActivationVAD gates activation on the talk-detect sensor.
	ActivationVAD ActivationMode = "vad"
)

// IsValid reports whether m is a recognised activation mode.
func (m ActivationMode) IsValid() bool {
	switch m {
	case ActivationImmediate, ActivationFixedDelay, ActivationVAD:
		return true
	}
	return false
}

// VADMode refines ActivationVAD.
type VADMode string

const (
	// VADModeSpeech requires an observed speech start (or prompt end followed
	// by the max-wait window) before activating.
	VADModeSpeech VADMode = "vadMode"

	// VADModeAfterPrompt activates unconditionally once the prompt has ended
	// and the initial delays have expired.
	VADModeAfterPrompt VADMode = "afterPrompt"
)

// IsValid reports whether m is a recognised VAD mode.
func (m VADMode) IsValid() bool {
	return m == VADModeSpeech || m == VADModeAfterPrompt
}

// CallConfig is the per-call recognition option bundle. Each call snapshots
// the configured defaults at answer time; the operator control plane may
// patch the snapshot mid-call, affecting future timer arms only.
//
// All durations are expressed in seconds as they appear on the wire; the
// *Duration helpers convert them for the timer registry.
type CallConfig struct {
	ActivationMode      ActivationMode `yaml:"activation_mode" json:"activationMode"`
	BargeInDelaySeconds float64        `yaml:"barge_in_delay_seconds" json:"bargeInDelaySeconds"`

	NoSpeechBeginTimeoutSeconds     float64 `yaml:"no_speech_begin_timeout_seconds" json:"noSpeechBeginTimeoutSeconds"`
	InitialStreamIdleTimeoutSeconds float64 `yaml:"initial_stream_idle_timeout_seconds" json:"initialStreamIdleTimeoutSeconds"`
	SpeechEndSilenceTimeoutSeconds  float64 `yaml:"speech_end_silence_timeout_seconds" json:"speechEndSilenceTimeoutSeconds"`
	MaxRecognitionDurationSeconds   float64 `yaml:"max_recognition_duration_seconds" json:"maxRecognitionDurationSeconds"`

	VADMode                       VADMode `yaml:"vad_mode" json:"vadMode"`
	VADInitialSilenceDelaySeconds float64 `yaml:"vad_initial_silence_delay_seconds" json:"vadInitialSilenceDelaySeconds"`
	VADActivationDelaySeconds     float64 `yaml:"vad_activation_delay_seconds" json:"vadActivationDelaySeconds"`
	VADMaxWaitAfterPromptSeconds  float64 `yaml:"vad_max_wait_after_prompt_seconds" json:"vadMaxWaitAfterPromptSeconds"`
	VADSilenceThresholdMs         int     `yaml:"vad_silence_threshold_ms" json:"vadSilenceThresholdMs"`
	VADTalkThreshold              int     `yaml:"vad_talk_threshold" json:"vadTalkThreshold"`

	DTMFEnabled                  bool    `yaml:"dtmf_enabled" json:"dtmfEnabled"`
	DTMFInterDigitTimeoutSeconds float64 `yaml:"dtmf_inter_digit_timeout_seconds" json:"dtmfInterDigitTimeoutSeconds"`
	DTMFFinalTimeoutSeconds      float64 `yaml:"dtmf_final_timeout_seconds" json:"dtmfFinalTimeoutSeconds"`

	Recognize RecognizeConfig `yaml:"recognize" json:"recognize"`
}

// RecognizeConfig is the recognizer-side sub-config of a CallConfig.
type RecognizeConfig struct {
	Encoding        string `yaml:"encoding" json:"encoding"`
	SampleRateHertz int    `yaml:"sample_rate_hertz" json:"sampleRateHertz"`
	LanguageCode    string `yaml:"language_code" json:"languageCode"`
	Model           string `yaml:"model" json:"model"`
	UseEnhanced     bool   `yaml:"use_enhanced" json:"useEnhanced"`

	InterimResults       bool `yaml:"interim_results" json:"interimResults"`
	SingleUtterance      bool `yaml:"single_utterance" json:"singleUtterance"`
	WordTimeOffsets      bool `yaml:"word_time_offsets" json:"enableWordTimeOffsets"`
	AutomaticPunctuation bool `yaml:"automatic_punctuation" json:"enableAutomaticPunctuation"`
	SpeakerDiarization   bool `yaml:"speaker_diarization" json:"enableSpeakerDiarization"`

	SpeechStartTimeoutSeconds float64 `yaml:"speech_start_timeout_seconds" json:"speechStartTimeoutSeconds"`
	SpeechEndTimeoutSeconds   float64 `yaml:"speech_end_timeout_seconds" json:"speechEndTimeoutSeconds"`
}

// DefaultCallConfig returns the built-in per-call defaults, used when the
// config file leaves the call section empty.
func DefaultCallConfig() CallConfig {
	return CallConfig{
		ActivationMode:                  ActivationFixedDelay,
		BargeInDelaySeconds:             0.5,
		NoSpeechBeginTimeoutSeconds:     5,
		InitialStreamIdleTimeoutSeconds: 10,
		SpeechEndSilenceTimeoutSeconds:  1.5,
		MaxRecognitionDurationSeconds:   60,
		VADMode:                         VADModeSpeech,
		VADMaxWaitAfterPromptSeconds:    5,
		VADSilenceThresholdMs:           1200,
		VADTalkThreshold:                256,
		DTMFEnabled:                     true,
		DTMFInterDigitTimeoutSeconds:    3,
		DTMFFinalTimeoutSeconds:         5,
		Recognize: RecognizeConfig{
			Encoding:        "linear16",
			SampleRateHertz: 8000,
			LanguageCode:    "en-US",
			InterimResults:  true,
		},
	}
}

// seconds converts a wire-format float second count into a Duration.
func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// BargeInDelay returns the fixed-delay barge-in window as a Duration.
func (c CallConfig) BargeInDelay() time.Duration { return seconds(c.BargeInDelaySeconds) }

// NoSpeechBeginTimeout returns the no-speech-begin window as a Duration.
func (c CallConfig) NoSpeechBeginTimeout() time.Duration {
	return seconds(c.NoSpeechBeginTimeoutSeconds)
}

// InitialStreamIdleTimeout returns the initial stream-idle window as a Duration.
func (c CallConfig) InitialStreamIdleTimeout() time.Duration {
	return seconds(c.InitialStreamIdleTimeoutSeconds)
}

// SpeechEndSilenceTimeout returns the speech-end silence window as a Duration.
func (c CallConfig) SpeechEndSilenceTimeout() time.Duration {
	return seconds(c.SpeechEndSilenceTimeoutSeconds)
}

// MaxRecognitionDuration returns the hard recognition cap as a Duration.
func (c CallConfig) MaxRecognitionDuration() time.Duration {
	return seconds(c.MaxRecognitionDurationSeconds)
}

// VADInitialSilenceDelay returns the initial VAD silence delay as a Duration.
func (c CallConfig) VADInitialSilenceDelay() time.Duration {
	return seconds(c.VADInitialSilenceDelaySeconds)
}

// VADActivationDelay returns the VAD activation delay as a Duration.
func (c CallConfig) VADActivationDelay() time.Duration {
	return seconds(c.VADActivationDelaySeconds)
}

// VADMaxWaitAfterPrompt returns the post-prompt VAD wait as a Duration.
func (c CallConfig) VADMaxWaitAfterPrompt() time.Duration {
	return seconds(c.VADMaxWaitAfterPromptSeconds)
}

// DTMFInterDigitTimeout returns the inter-digit window as a Duration.
func (c CallConfig) DTMFInterDigitTimeout() time.Duration {
	return seconds(c.DTMFInterDigitTimeoutSeconds)
}

// DTMFFinalTimeout returns the DTMF finalization window as a Duration.
func (c CallConfig) DTMFFinalTimeout() time.Duration {
	return seconds(c.DTMFFinalTimeoutSeconds)
}

// ValidateCall checks that c is a coherent per-call configuration.
// It returns a joined error listing all failures found.
func ValidateCall(c CallConfig) error {
	var errs []error

	if c.ActivationMode != "" && !c.ActivationMode.IsValid() {
		errs = append(errs, fmt.Errorf("activation_mode %q is invalid; valid values: immediate, fixedDelay, vad", c.ActivationMode))
	}
	if c.VADMode != "" && !c.VADMode.IsValid() {
		errs = append(errs, fmt.Errorf("vad_mode %q is invalid; valid values: vadMode, afterPrompt", c.VADMode))
	}
	if c.BargeInDelaySeconds < 0 {
		errs = append(errs, fmt.Errorf("barge_in_delay_seconds %.2f must not be negative", c.BargeInDelaySeconds))
	}
	if c.NoSpeechBeginTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("no_speech_begin_timeout_seconds %.2f must not be negative", c.NoSpeechBeginTimeoutSeconds))
	}
	if c.InitialStreamIdleTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("initial_stream_idle_timeout_seconds %.2f must be positive", c.InitialStreamIdleTimeoutSeconds))
	}
	if c.SpeechEndSilenceTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("speech_end_silence_timeout_seconds %.2f must be positive", c.SpeechEndSilenceTimeoutSeconds))
	}
	if c.MaxRecognitionDurationSeconds <= 0 {
		errs = append(errs, fmt.Errorf("max_recognition_duration_seconds %.2f must be positive", c.MaxRecognitionDurationSeconds))
	}
	if c.VADInitialSilenceDelaySeconds < 0 {
		errs = append(errs, fmt.Errorf("vad_initial_silence_delay_seconds %.2f must not be negative", c.VADInitialSilenceDelaySeconds))
	}
	if c.VADActivationDelaySeconds < 0 {
		errs = append(errs, fmt.Errorf("vad_activation_delay_seconds %.2f must not be negative", c.VADActivationDelaySeconds))
	}
	if c.VADMaxWaitAfterPromptSeconds < 0 {
		errs = append(errs, fmt.Errorf("vad_max_wait_after_prompt_seconds %.2f must not be negative", c.VADMaxWaitAfterPromptSeconds))
	}
	if c.DTMFEnabled {
		if c.DTMFInterDigitTimeoutSeconds <= 0 {
			errs = append(errs, fmt.Errorf("dtmf_inter_digit_timeout_seconds %.2f must be positive when DTMF is enabled", c.DTMFInterDigitTimeoutSeconds))
		}
		if c.DTMFFinalTimeoutSeconds <= 0 {
			errs = append(errs, fmt.Errorf("dtmf_final_timeout_seconds %.2f must be positive when DTMF is enabled", c.DTMFFinalTimeoutSeconds))
		}
	}
	if c.Recognize.SampleRateHertz <= 0 {
		errs = append(errs, fmt.Errorf("recognize.sample_rate_hertz %d must be positive", c.Recognize.SampleRateHertz))
	}
	if c.Recognize.LanguageCode == "" {
		errs = append(errs, errors.New("recognize.language_code is required"))
	}

	return errors.Join(errs...)
}
