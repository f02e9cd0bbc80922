package google

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/arivox/arivox/pkg/recognizer"
)

// Transcribe implements [recognizer.BatchTranscriber] with a single
// synchronous Recognize call, reusing the recognition options of the
// streaming session. Any failure, including an empty result set, yields an
// empty transcript; the caller treats that as "no speech" and does not retry.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, cfg recognizer.Config) (string, error) {
	if len(audio) == 0 {
		return "", errors.New("google: batch: empty audio")
	}

	resp, err := p.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: recognitionConfig(cfg),
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return "", fmt.Errorf("google: batch recognize: %w", err)
	}

	for _, res := range resp.GetResults() {
		if alts := res.GetAlternatives(); len(alts) > 0 && alts[0].GetTranscript() != "" {
			return alts[0].GetTranscript(), nil
		}
	}
	return "", errors.New("google: batch: no alternatives")
}
