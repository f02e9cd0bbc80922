package call

import (
	"context"
	"fmt"
	"strconv"

	"github.com/arivox/arivox/pkg/telephony"
)

// VADSensor arms and disarms the telephony platform's talk-detect feature
// through the TALK_DETECT channel variable. It is a thin translator with no
// timing logic of its own: the platform's ChannelTalkingStarted/Finished
// events become the orchestrator's SpeechStart / SpeechEnd messages.
type VADSensor struct {
	client    telephony.Client
	channelID string
	enabled   bool
}

// NewVADSensor creates a disabled sensor for the given channel.
func NewVADSensor(client telephony.Client, channelID string) *VADSensor {
	return &VADSensor{client: client, channelID: channelID}
}

// Enable arms talk detection with the given energy threshold and silence
// window. Idempotent: enabling an enabled sensor is a no-op.
func (v *VADSensor) Enable(ctx context.Context, talkThreshold, silenceThresholdMs int) error {
	if v.enabled {
		return nil
	}
	value := strconv.Itoa(talkThreshold) + "," + strconv.Itoa(silenceThresholdMs)
	if err := v.client.SetChannelVar(ctx, v.channelID, telephony.TalkDetectVar, value); err != nil {
		return fmt.Errorf("vad: enable talk detect: %w", err)
	}
	v.enabled = true
	return nil
}

// Disable disarms talk detection. Idempotent.
func (v *VADSensor) Disable(ctx context.Context) error {
	if !v.enabled {
		return nil
	}
	if err := v.client.SetChannelVar(ctx, v.channelID, telephony.TalkDetectVar, "remove"); err != nil {
		return fmt.Errorf("vad: disable talk detect: %w", err)
	}
	v.enabled = false
	return nil
}

// Enabled reports whether the sensor is currently armed.
func (v *VADSensor) Enabled() bool { return v.enabled }
