package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arivox/arivox/internal/call"
	"github.com/arivox/arivox/internal/config"
	recmock "github.com/arivox/arivox/pkg/recognizer/mock"
	"github.com/arivox/arivox/pkg/telephony"
	telmock "github.com/arivox/arivox/pkg/telephony/mock"
)

// testApp bundles an App with the mocks backing it.
type testApp struct {
	app    *App
	client *telmock.Client
	media  *telmock.MediaSource
	runErr chan error
	cancel context.CancelFunc
}

// newTestApp creates an App on mocks with no HTTP listeners and starts Run.
func newTestApp(t *testing.T) *testApp {
	t.Helper()

	client := telmock.NewClient()
	media := telmock.NewMediaSource()
	cfg := &config.Config{Call: config.DefaultCallConfig()}

	a, err := New(context.Background(), cfg, &Providers{
		Client:     client,
		Media:      media,
		Recognizer: recmock.NewProvider(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- a.Run(ctx) }()

	ta := &testApp{app: a, client: client, media: media, runErr: runErr, cancel: cancel}
	t.Cleanup(func() {
		cancel()
		shutdownCtx, sc := context.WithTimeout(context.Background(), 2*time.Second)
		defer sc()
		_ = a.Shutdown(shutdownCtx)
		select {
		case <-runErr:
		case <-time.After(2 * time.Second):
			t.Error("Run did not return after cancel")
		}
	})
	return ta
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestChannelEnteredCreatesCall(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	ta.media.Prepare("chan-1")

	ta.client.Emit(telephony.ChannelEntered{ChannelID: "chan-1", CallerID: "+4912345"})
	waitFor(t, func() bool { return ta.app.Registry().Len() == 1 })

	o, ok := ta.app.Registry().Get("chan-1")
	if !ok {
		t.Fatal("call not registered")
	}
	if o.CallerID() != "+4912345" {
		t.Errorf("CallerID() = %q, want +4912345", o.CallerID())
	}
	// The orchestrator answers the channel and leaves the new state.
	waitFor(t, func() bool { return o.State() != call.StateNew })
}

func TestDuplicateChannelEnteredIgnored(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	ta.media.Prepare("chan-1")

	ta.client.Emit(telephony.ChannelEntered{ChannelID: "chan-1"})
	ta.client.Emit(telephony.ChannelEntered{ChannelID: "chan-1"})
	waitFor(t, func() bool { return ta.app.Registry().Len() == 1 })

	// A third distinct channel still creates a second call.
	ta.media.Prepare("chan-2")
	ta.client.Emit(telephony.ChannelEntered{ChannelID: "chan-2"})
	waitFor(t, func() bool { return ta.app.Registry().Len() == 2 })
}

func TestHangupRemovesCallFromRegistry(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	ta.media.Prepare("chan-1")

	ta.client.Emit(telephony.ChannelEntered{ChannelID: "chan-1"})
	waitFor(t, func() bool { return ta.app.Registry().Len() == 1 })

	ta.client.Emit(telephony.ChannelHangup{ChannelID: "chan-1"})
	waitFor(t, func() bool { return ta.app.Registry().Len() == 0 })
}

func TestEventForUnknownChannelIsDropped(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	ta.client.Emit(telephony.ChannelDtmfReceived{ChannelID: "nope", Digit: '1'})
	ta.client.Emit(telephony.ChannelHangup{ChannelID: "nope"})

	// The loop must keep running: a later entry still creates a call.
	ta.media.Prepare("chan-1")
	ta.client.Emit(telephony.ChannelEntered{ChannelID: "chan-1"})
	waitFor(t, func() bool { return ta.app.Registry().Len() == 1 })
}

func TestUpdateConfigAffectsNewCallsOnly(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	ta.media.Prepare("chan-1")
	ta.client.Emit(telephony.ChannelEntered{ChannelID: "chan-1"})
	waitFor(t, func() bool { return ta.app.Registry().Len() == 1 })

	next := &config.Config{Call: config.DefaultCallConfig()}
	next.Call.MaxRecognitionDurationSeconds = 120
	ta.app.UpdateConfig(next)

	o1, _ := ta.app.Registry().Get("chan-1")
	if got := o1.ConfigSnapshot().MaxRecognitionDurationSeconds; got != 60 {
		t.Errorf("live call config changed by reload: %v, want 60", got)
	}

	ta.media.Prepare("chan-2")
	ta.client.Emit(telephony.ChannelEntered{ChannelID: "chan-2"})
	waitFor(t, func() bool { return ta.app.Registry().Len() == 2 })
	o2, _ := ta.app.Registry().Get("chan-2")
	if got := o2.ConfigSnapshot().MaxRecognitionDurationSeconds; got != 120 {
		t.Errorf("new call config = %v, want reloaded 120", got)
	}
}

func TestShutdownEndsLiveCalls(t *testing.T) {
	t.Parallel()

	client := telmock.NewClient()
	media := telmock.NewMediaSource()
	media.Prepare("chan-1")
	cfg := &config.Config{Call: config.DefaultCallConfig()}

	a, err := New(context.Background(), cfg, &Providers{
		Client:     client,
		Media:      media,
		Recognizer: recmock.NewProvider(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- a.Run(ctx) }()

	client.Emit(telephony.ChannelEntered{ChannelID: "chan-1"})
	waitFor(t, func() bool { return a.Registry().Len() == 1 })
	o, _ := a.Registry().Get("chan-1")

	cancel()
	shutdownCtx, sc := context.WithTimeout(context.Background(), 2*time.Second)
	defer sc()
	if err := a.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	select {
	case <-o.Done():
	case <-time.After(time.Second):
		t.Fatal("call still live after Shutdown")
	}

	select {
	case err := <-runErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want nil or context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestNewRequiresRecognizer(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Call: config.DefaultCallConfig()}
	_, err := New(context.Background(), cfg, &Providers{
		Client: telmock.NewClient(),
		Media:  telmock.NewMediaSource(),
	})
	if err == nil {
		t.Fatal("New accepted a provider set without a recognizer")
	}
}
