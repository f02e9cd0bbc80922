package call

import (
	"context"
	"testing"

	"github.com/arivox/arivox/pkg/telephony/mock"
)

type endedCall struct {
	purpose PlaybackPurpose
	failed  bool
}

func newTestPlayback(client *mock.Client) (*PlaybackController, *[]endedCall) {
	var ended []endedCall
	p := NewPlaybackController(client, "chan-1", nil, func(purpose PlaybackPurpose, failed bool) {
		ended = append(ended, endedCall{purpose, failed})
	})
	return p, &ended
}

func TestPlaybackQueuesOverlappingPlays(t *testing.T) {
	t.Parallel()

	client := mock.NewClient()
	client.PlayIDs = []string{"p1", "p2"}
	p, ended := newTestPlayback(client)
	ctx := context.Background()

	if _, err := p.Play(ctx, "sound:one", PurposePrompt); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if _, err := p.Play(ctx, "sound:two", PurposeTTS); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if len(client.PlayCalls) != 1 {
		t.Fatalf("started %d playbacks, want 1 (second queued)", len(client.PlayCalls))
	}

	p.HandleFinished(ctx, "p1")
	if len(client.PlayCalls) != 2 {
		t.Fatalf("queued playback did not start: %d calls", len(client.PlayCalls))
	}
	if client.PlayCalls[1].MediaURI != "sound:two" {
		t.Errorf("second playback URI = %q, want %q", client.PlayCalls[1].MediaURI, "sound:two")
	}
	if len(*ended) != 1 || (*ended)[0].purpose != PurposePrompt || (*ended)[0].failed {
		t.Errorf("ended = %v, want one clean prompt end", *ended)
	}

	p.HandleFinished(ctx, "p2")
	if p.Busy() {
		t.Error("controller still busy after queue drained")
	}
}

func TestPlaybackFailedReportsAndSkips(t *testing.T) {
	t.Parallel()

	client := mock.NewClient()
	client.PlayIDs = []string{"p1"}
	p, ended := newTestPlayback(client)
	ctx := context.Background()

	if _, err := p.Play(ctx, "sound:bad", PurposePrompt); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	p.HandleFailed(ctx, "p1")

	if len(*ended) != 1 || !(*ended)[0].failed {
		t.Errorf("ended = %v, want one failed prompt end", *ended)
	}
}

func TestPlaybackStopAllClearsQueueWithoutEndedCallbacks(t *testing.T) {
	t.Parallel()

	client := mock.NewClient()
	client.PlayIDs = []string{"p1"}
	p, ended := newTestPlayback(client)
	ctx := context.Background()

	p.Play(ctx, "sound:one", PurposeTTS)
	p.Play(ctx, "sound:two", PurposeTTS)

	stopped, err := p.StopAll(ctx, StopBargeInVAD)
	if err != nil {
		t.Fatalf("StopAll() error = %v", err)
	}
	if !stopped {
		t.Error("StopAll() = false, want true")
	}
	if len(client.StopPlaybackCalls) != 1 || client.StopPlaybackCalls[0] != "p1" {
		t.Errorf("StopPlayback calls = %v, want [p1]", client.StopPlaybackCalls)
	}
	if len(*ended) != 0 {
		t.Errorf("ended callbacks fired for stopped clips: %v", *ended)
	}
	if p.Busy() {
		t.Error("controller busy after StopAll")
	}
}

func TestPlaybackStopAllIdleReportsNothingStopped(t *testing.T) {
	t.Parallel()

	p, _ := newTestPlayback(mock.NewClient())
	stopped, err := p.StopAll(context.Background(), StopCleanup)
	if err != nil {
		t.Fatalf("StopAll() error = %v", err)
	}
	if stopped {
		t.Error("StopAll() = true on idle controller, want false")
	}
}

func TestPlaybackActivePurpose(t *testing.T) {
	t.Parallel()

	client := mock.NewClient()
	client.PlayIDs = []string{"p1"}
	p, _ := newTestPlayback(client)
	ctx := context.Background()

	if got := p.ActivePurpose(); got != "" {
		t.Errorf("ActivePurpose() = %q on idle controller, want empty", got)
	}
	p.Play(ctx, "sound:tts", PurposeTTS)
	if got := p.ActivePurpose(); got != PurposeTTS {
		t.Errorf("ActivePurpose() = %q, want %q", got, PurposeTTS)
	}
}

func TestPlaybackStreamingEntryNeedsNoPlatformStop(t *testing.T) {
	t.Parallel()

	client := mock.NewClient()
	p, _ := newTestPlayback(client)
	ctx := context.Background()

	if id := p.BeginStreaming(PurposeTTS); id == "" {
		t.Fatal("BeginStreaming() returned no correlation ID")
	}
	if got := p.ActivePurpose(); got != PurposeTTS {
		t.Fatalf("ActivePurpose() = %q during streaming, want %q", got, PurposeTTS)
	}

	stopped, err := p.StopAll(ctx, StopBargeInInterim)
	if err != nil {
		t.Fatalf("StopAll() error = %v", err)
	}
	if !stopped {
		t.Error("StopAll() = false with a streaming entry active, want true")
	}
	if len(client.StopPlaybackCalls) != 0 {
		t.Errorf("StopPlayback called for a streaming entry: %v", client.StopPlaybackCalls)
	}
	if p.Busy() {
		t.Error("controller busy after stopping the streaming entry")
	}
}

func TestPlaybackEndStreamingReportsCleanEnd(t *testing.T) {
	t.Parallel()

	client := mock.NewClient()
	client.PlayIDs = []string{"p1"}
	p, ended := newTestPlayback(client)
	ctx := context.Background()

	p.BeginStreaming(PurposeTTS)
	p.EndStreaming()
	if len(*ended) != 1 || (*ended)[0].purpose != PurposeTTS || (*ended)[0].failed {
		t.Fatalf("ended = %v, want one clean tts end", *ended)
	}

	// EndStreaming leaves platform-backed playbacks alone.
	p.Play(ctx, "sound:one", PurposePrompt)
	p.EndStreaming()
	if !p.Busy() {
		t.Error("EndStreaming dropped a platform-backed playback")
	}
	if len(*ended) != 1 {
		t.Errorf("ended callbacks = %v, want the single tts end", *ended)
	}
}

func TestPlaybackIgnoresUnknownPlaybackIDs(t *testing.T) {
	t.Parallel()

	client := mock.NewClient()
	client.PlayIDs = []string{"p1"}
	p, ended := newTestPlayback(client)
	ctx := context.Background()

	p.Play(ctx, "sound:one", PurposePrompt)
	p.HandleFinished(ctx, "stale-id")

	if len(*ended) != 0 {
		t.Errorf("stale playback ID triggered ended callback: %v", *ended)
	}
	if !p.Busy() {
		t.Error("active playback was dropped by a stale ID")
	}
}
