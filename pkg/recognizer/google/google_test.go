package google

import (
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/arivox/arivox/pkg/recognizer"
)

func TestRecognitionConfigCarriesOptions(t *testing.T) {
	t.Parallel()

	rc := recognitionConfig(recognizer.Config{
		LanguageCode:         "de-DE",
		Encoding:             recognizer.EncodingMulaw,
		SampleRateHz:         8000,
		Model:                "phone_call",
		UseEnhanced:          true,
		WordTimeOffsets:      true,
		AutomaticPunctuation: true,
		SpeakerDiarization:   true,
		PhraseHints:          []string{"arivox"},
	})

	if rc.GetEncoding() != speechpb.RecognitionConfig_MULAW {
		t.Errorf("Encoding = %v, want MULAW", rc.GetEncoding())
	}
	if rc.GetSampleRateHertz() != 8000 {
		t.Errorf("SampleRateHertz = %d, want 8000", rc.GetSampleRateHertz())
	}
	if rc.GetLanguageCode() != "de-DE" {
		t.Errorf("LanguageCode = %q, want de-DE", rc.GetLanguageCode())
	}
	if !rc.GetUseEnhanced() {
		t.Error("UseEnhanced not carried into the request")
	}
	if !rc.GetEnableWordTimeOffsets() {
		t.Error("EnableWordTimeOffsets not carried into the request")
	}
	if !rc.GetEnableAutomaticPunctuation() {
		t.Error("EnableAutomaticPunctuation not carried into the request")
	}
	if !rc.GetDiarizationConfig().GetEnableSpeakerDiarization() {
		t.Error("speaker diarization not carried into the request")
	}
	if got := rc.GetSpeechContexts(); len(got) != 1 || got[0].GetPhrases()[0] != "arivox" {
		t.Errorf("SpeechContexts = %v, want the phrase hints", got)
	}
}

func TestRecognitionConfigDefaultsStayOff(t *testing.T) {
	t.Parallel()

	rc := recognitionConfig(recognizer.Config{LanguageCode: "en-US", SampleRateHz: 8000})

	if rc.GetUseEnhanced() || rc.GetEnableWordTimeOffsets() || rc.GetEnableAutomaticPunctuation() {
		t.Errorf("unrequested options enabled: %+v", rc)
	}
	if rc.GetDiarizationConfig() != nil {
		t.Errorf("DiarizationConfig = %v, want nil", rc.GetDiarizationConfig())
	}
	if rc.GetEncoding() != speechpb.RecognitionConfig_LINEAR16 {
		t.Errorf("default Encoding = %v, want LINEAR16", rc.GetEncoding())
	}
}

func TestStreamingConfigVoiceActivityTimeouts(t *testing.T) {
	t.Parallel()

	sc := streamingConfig(recognizer.Config{
		LanguageCode:       "en-US",
		InterimResults:     true,
		SingleUtterance:    true,
		SpeechBeginTimeout: 5 * time.Second,
		SpeechEndTimeout:   1500 * time.Millisecond,
	})

	if !sc.GetInterimResults() || !sc.GetSingleUtterance() {
		t.Errorf("streaming flags dropped: %+v", sc)
	}
	if !sc.GetEnableVoiceActivityEvents() {
		t.Error("voice activity events not enabled")
	}
	vat := sc.GetVoiceActivityTimeout()
	if got := vat.GetSpeechStartTimeout().AsDuration(); got != 5*time.Second {
		t.Errorf("SpeechStartTimeout = %v, want 5s", got)
	}
	if got := vat.GetSpeechEndTimeout().AsDuration(); got != 1500*time.Millisecond {
		t.Errorf("SpeechEndTimeout = %v, want 1.5s", got)
	}
}

func TestStreamEnded(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"plain eof", io.EOF, true},
		{"wrapped eof", fmt.Errorf("recv: %w", io.EOF), true},
		{"out of range", status.Error(codes.OutOfRange, "audio exceeded limit"), true},
		{"unavailable", status.Error(codes.Unavailable, "transport closing"), false},
		{"other", errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := streamEnded(tt.err); got != tt.want {
				t.Errorf("streamEnded(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
