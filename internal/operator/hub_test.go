package operator

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	t.Parallel()

	in := Envelope{
		Type:      TypeConfigUpdateAck,
		CallID:    "chan-1",
		Timestamp: time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC),
		Payload:   map[string]any{"error": "bad value", "attempt": float64(2)},
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var out Envelope
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip changed envelope:\n got %+v\nwant %+v", out, in)
	}
}

func TestHubBroadcastReachesAllClients(t *testing.T) {
	t.Parallel()

	h := NewHub(nil)
	ctx := context.Background()
	c1 := h.register(ctx)
	c2 := h.register(ctx)
	defer h.unregister(ctx, c1)
	defer h.unregister(ctx, c2)

	h.CallEvent("chan-1", "timer_event", map[string]any{"timer": "bargeIn"})

	for i, c := range []*client{c1, c2} {
		select {
		case env := <-c.send:
			if env.Type != "timer_event" || env.CallID != "chan-1" {
				t.Errorf("client %d got %+v, want timer_event for chan-1", i, env)
			}
		default:
			t.Errorf("client %d received nothing", i)
		}
	}
}

func TestHubDropsWhenClientQueueFull(t *testing.T) {
	t.Parallel()

	h := NewHub(nil)
	ctx := context.Background()
	c := h.register(ctx)
	defer h.unregister(ctx, c)

	for i := 0; i < clientBuf+10; i++ {
		h.CallEvent("chan-1", "system_message", nil)
	}

	if got := len(c.send); got != clientBuf {
		t.Errorf("queue length = %d, want cap %d", got, clientBuf)
	}
	if got := c.dropped.Load(); got != 10 {
		t.Errorf("dropped = %d, want 10", got)
	}
}

func TestHubUnregisterStopsDelivery(t *testing.T) {
	t.Parallel()

	h := NewHub(nil)
	ctx := context.Background()
	c := h.register(ctx)
	h.unregister(ctx, c)

	h.CallEvent("chan-1", "system_message", nil)
	if len(c.send) != 0 {
		t.Error("event delivered to unregistered client")
	}
	if h.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", h.ClientCount())
	}
}

func TestHubCallCreatedEnvelope(t *testing.T) {
	t.Parallel()

	h := NewHub(nil)
	ctx := context.Background()
	c := h.register(ctx)
	defer h.unregister(ctx, c)

	h.CallCreated("chan-9", "+4900000")
	env := <-c.send
	if env.Type != TypeSessionCreated || env.CallID != "chan-9" {
		t.Errorf("envelope = %+v, want session.created for chan-9", env)
	}
	if env.Payload["callerId"] != "+4900000" {
		t.Errorf("callerId = %v, want +4900000", env.Payload["callerId"])
	}
}
