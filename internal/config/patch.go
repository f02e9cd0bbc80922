package config

// CallConfigPatch is a partial update to a live call's CallConfig, as carried
// by the operator control plane's session.update message. Nil fields leave
// the current value untouched.
//
// A patch never takes effect on timers that are already armed: the merged
// configuration applies to future arms only.
type CallConfigPatch struct {
	ActivationMode      *ActivationMode `json:"activationMode,omitempty"`
	BargeInDelaySeconds *float64        `json:"bargeInDelaySeconds,omitempty"`

	NoSpeechBeginTimeoutSeconds     *float64 `json:"noSpeechBeginTimeoutSeconds,omitempty"`
	InitialStreamIdleTimeoutSeconds *float64 `json:"initialStreamIdleTimeoutSeconds,omitempty"`
	SpeechEndSilenceTimeoutSeconds  *float64 `json:"speechEndSilenceTimeoutSeconds,omitempty"`
	MaxRecognitionDurationSeconds   *float64 `json:"maxRecognitionDurationSeconds,omitempty"`

	VADMode                       *VADMode `json:"vadMode,omitempty"`
	VADInitialSilenceDelaySeconds *float64 `json:"vadInitialSilenceDelaySeconds,omitempty"`
	VADActivationDelaySeconds     *float64 `json:"vadActivationDelaySeconds,omitempty"`
	VADMaxWaitAfterPromptSeconds  *float64 `json:"vadMaxWaitAfterPromptSeconds,omitempty"`
	VADSilenceThresholdMs         *int     `json:"vadSilenceThresholdMs,omitempty"`
	VADTalkThreshold              *int     `json:"vadTalkThreshold,omitempty"`

	DTMFEnabled                  *bool    `json:"dtmfEnabled,omitempty"`
	DTMFInterDigitTimeoutSeconds *float64 `json:"dtmfInterDigitTimeoutSeconds,omitempty"`
	DTMFFinalTimeoutSeconds      *float64 `json:"dtmfFinalTimeoutSeconds,omitempty"`

	Recognize *RecognizePatch `json:"recognize,omitempty"`
}

// RecognizePatch is the recognizer-side part of a CallConfigPatch.
type RecognizePatch struct {
	Encoding        *string `json:"encoding,omitempty"`
	SampleRateHertz *int    `json:"sampleRateHertz,omitempty"`
	LanguageCode    *string `json:"languageCode,omitempty"`
	Model           *string `json:"model,omitempty"`
	UseEnhanced     *bool   `json:"useEnhanced,omitempty"`

	InterimResults       *bool `json:"interimResults,omitempty"`
	SingleUtterance      *bool `json:"singleUtterance,omitempty"`
	WordTimeOffsets      *bool `json:"enableWordTimeOffsets,omitempty"`
	AutomaticPunctuation *bool `json:"enableAutomaticPunctuation,omitempty"`
	SpeakerDiarization   *bool `json:"enableSpeakerDiarization,omitempty"`

	SpeechStartTimeoutSeconds *float64 `json:"speechStartTimeoutSeconds,omitempty"`
	SpeechEndTimeoutSeconds   *float64 `json:"speechEndTimeoutSeconds,omitempty"`
}

// Merge returns a copy of base with every non-nil patch field applied. The
// result is not validated; callers run [ValidateCall] on it and keep the
// prior configuration when validation fails.
func (p CallConfigPatch) Merge(base CallConfig) CallConfig {
	out := base

	if p.ActivationMode != nil {
		out.ActivationMode = *p.ActivationMode
	}
	if p.BargeInDelaySeconds != nil {
		out.BargeInDelaySeconds = *p.BargeInDelaySeconds
	}
	if p.NoSpeechBeginTimeoutSeconds != nil {
		out.NoSpeechBeginTimeoutSeconds = *p.NoSpeechBeginTimeoutSeconds
	}
	if p.InitialStreamIdleTimeoutSeconds != nil {
		out.InitialStreamIdleTimeoutSeconds = *p.InitialStreamIdleTimeoutSeconds
	}
	if p.SpeechEndSilenceTimeoutSeconds != nil {
		out.SpeechEndSilenceTimeoutSeconds = *p.SpeechEndSilenceTimeoutSeconds
	}
	if p.MaxRecognitionDurationSeconds != nil {
		out.MaxRecognitionDurationSeconds = *p.MaxRecognitionDurationSeconds
	}
	if p.VADMode != nil {
		out.VADMode = *p.VADMode
	}
	if p.VADInitialSilenceDelaySeconds != nil {
		out.VADInitialSilenceDelaySeconds = *p.VADInitialSilenceDelaySeconds
	}
	if p.VADActivationDelaySeconds != nil {
		out.VADActivationDelaySeconds = *p.VADActivationDelaySeconds
	}
	if p.VADMaxWaitAfterPromptSeconds != nil {
		out.VADMaxWaitAfterPromptSeconds = *p.VADMaxWaitAfterPromptSeconds
	}
	if p.VADSilenceThresholdMs != nil {
		out.VADSilenceThresholdMs = *p.VADSilenceThresholdMs
	}
	if p.VADTalkThreshold != nil {
		out.VADTalkThreshold = *p.VADTalkThreshold
	}
	if p.DTMFEnabled != nil {
		out.DTMFEnabled = *p.DTMFEnabled
	}
	if p.DTMFInterDigitTimeoutSeconds != nil {
		out.DTMFInterDigitTimeoutSeconds = *p.DTMFInterDigitTimeoutSeconds
	}
	if p.DTMFFinalTimeoutSeconds != nil {
		out.DTMFFinalTimeoutSeconds = *p.DTMFFinalTimeoutSeconds
	}
	if p.Recognize != nil {
		out.Recognize = p.Recognize.merge(base.Recognize)
	}

	return out
}

func (p RecognizePatch) merge(base RecognizeConfig) RecognizeConfig {
	out := base

	if p.Encoding != nil {
		out.Encoding = *p.Encoding
	}
	if p.SampleRateHertz != nil {
		out.SampleRateHertz = *p.SampleRateHertz
	}
	if p.LanguageCode != nil {
		out.LanguageCode = *p.LanguageCode
	}
	if p.Model != nil {
		out.Model = *p.Model
	}
	if p.UseEnhanced != nil {
		out.UseEnhanced = *p.UseEnhanced
	}
	if p.InterimResults != nil {
		out.InterimResults = *p.InterimResults
	}
	if p.SingleUtterance != nil {
		out.SingleUtterance = *p.SingleUtterance
	}
	if p.WordTimeOffsets != nil {
		out.WordTimeOffsets = *p.WordTimeOffsets
	}
	if p.AutomaticPunctuation != nil {
		out.AutomaticPunctuation = *p.AutomaticPunctuation
	}
	if p.SpeakerDiarization != nil {
		out.SpeakerDiarization = *p.SpeakerDiarization
	}
	if p.SpeechStartTimeoutSeconds != nil {
		out.SpeechStartTimeoutSeconds = *p.SpeechStartTimeoutSeconds
	}
	if p.SpeechEndTimeoutSeconds != nil {
		out.SpeechEndTimeoutSeconds = *p.SpeechEndTimeoutSeconds
	}

	return out
}
