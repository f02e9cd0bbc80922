package config

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestValidateCallDefaults(t *testing.T) {
	t.Parallel()

	if err := ValidateCall(DefaultCallConfig()); err != nil {
		t.Errorf("ValidateCall(DefaultCallConfig()) = %v, want nil", err)
	}
}

func TestValidateCallRejectsBadValues(t *testing.T) {
	t.Parallel()

	c := DefaultCallConfig()
	c.ActivationMode = "sometimes"
	c.SpeechEndSilenceTimeoutSeconds = 0
	c.BargeInDelaySeconds = -1

	err := ValidateCall(c)
	if err == nil {
		t.Fatal("ValidateCall() expected error, got nil")
	}
	for _, want := range []string{"activation_mode", "speech_end_silence_timeout_seconds", "barge_in_delay_seconds"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("ValidateCall() error %q does not mention %q", err, want)
		}
	}
}

func TestPatchMergeAppliesOnlySetFields(t *testing.T) {
	t.Parallel()

	base := DefaultCallConfig()
	newSilence := 3.0
	lang := "de-DE"
	patch := CallConfigPatch{
		SpeechEndSilenceTimeoutSeconds: &newSilence,
		Recognize:                      &RecognizePatch{LanguageCode: &lang},
	}

	got := patch.Merge(base)
	if got.SpeechEndSilenceTimeoutSeconds != 3.0 {
		t.Errorf("SpeechEndSilenceTimeoutSeconds = %v, want 3.0", got.SpeechEndSilenceTimeoutSeconds)
	}
	if got.Recognize.LanguageCode != "de-DE" {
		t.Errorf("Recognize.LanguageCode = %q, want %q", got.Recognize.LanguageCode, "de-DE")
	}
	// Untouched fields keep the base values.
	if got.ActivationMode != base.ActivationMode {
		t.Errorf("ActivationMode = %q, want %q", got.ActivationMode, base.ActivationMode)
	}
	if got.Recognize.SampleRateHertz != base.Recognize.SampleRateHertz {
		t.Errorf("Recognize.SampleRateHertz = %d, want %d", got.Recognize.SampleRateHertz, base.Recognize.SampleRateHertz)
	}
}

func TestPatchMergeEmptyIsIdentity(t *testing.T) {
	t.Parallel()

	base := DefaultCallConfig()
	if got := (CallConfigPatch{}).Merge(base); got != base {
		t.Errorf("empty patch changed config: got %+v, want %+v", got, base)
	}
}

func TestPatchDecodeWireFormat(t *testing.T) {
	t.Parallel()

	var patch CallConfigPatch
	raw := `{"speechEndSilenceTimeoutSeconds": 3.0, "dtmfEnabled": false}`
	if err := json.Unmarshal([]byte(raw), &patch); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if patch.SpeechEndSilenceTimeoutSeconds == nil || *patch.SpeechEndSilenceTimeoutSeconds != 3.0 {
		t.Errorf("SpeechEndSilenceTimeoutSeconds = %v, want 3.0", patch.SpeechEndSilenceTimeoutSeconds)
	}
	if patch.DTMFEnabled == nil || *patch.DTMFEnabled {
		t.Errorf("DTMFEnabled = %v, want false", patch.DTMFEnabled)
	}
	if patch.ActivationMode != nil {
		t.Errorf("ActivationMode = %v, want nil", patch.ActivationMode)
	}
}

func TestDurationHelpers(t *testing.T) {
	t.Parallel()

	c := DefaultCallConfig()
	c.SpeechEndSilenceTimeoutSeconds = 1.5
	if got, want := c.SpeechEndSilenceTimeout().Milliseconds(), int64(1500); got != want {
		t.Errorf("SpeechEndSilenceTimeout() = %dms, want %dms", got, want)
	}
	c.BargeInDelaySeconds = 0
	if got := c.BargeInDelay(); got != 0 {
		t.Errorf("BargeInDelay() = %v, want 0", got)
	}
}
