package operator

import (
	"testing"

	"github.com/arivox/arivox/internal/call"
	"github.com/arivox/arivox/internal/config"
	recmock "github.com/arivox/arivox/pkg/recognizer/mock"
	telmock "github.com/arivox/arivox/pkg/telephony/mock"
)

func newIdleCall(id string) *call.Orchestrator {
	return call.New(call.Options{
		ID:       id,
		Client:   telmock.NewClient(),
		Media:    telmock.NewMediaSource(),
		Provider: recmock.NewProvider(),
		Config:   config.DefaultCallConfig(),
	})
}

func TestRegistryAddGetRemove(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	o := newIdleCall("chan-1")
	r.Add(o)

	got, ok := r.Get("chan-1")
	if !ok || got != o {
		t.Fatalf("Get(chan-1) = %v, %v; want the registered call", got, ok)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}

	r.Remove("chan-1")
	if _, ok := r.Get("chan-1"); ok {
		t.Error("Get succeeded after Remove")
	}
	r.Remove("chan-1") // idempotent
}

func TestRegistrySnapshotSortsByID(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Add(newIdleCall("chan-b"))
	r.Add(newIdleCall("chan-a"))
	r.Add(newIdleCall("chan-c"))

	snap := r.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("Snapshot() has %d entries, want 3", len(snap))
	}
	for i, want := range []string{"chan-a", "chan-b", "chan-c"} {
		if snap[i].ID() != want {
			t.Errorf("Snapshot()[%d].ID() = %q, want %q", i, snap[i].ID(), want)
		}
	}
}
