package operator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arivox/arivox/internal/call"
	"github.com/arivox/arivox/internal/observe"
)

// clientBuf is the per-client fan-out depth. A console that falls further
// behind than this loses events rather than stalling a call.
const clientBuf = 256

// Hub fans the call event stream out to connected operator clients. It
// implements [call.Observer], so orchestrators publish into it directly.
//
// Delivery is best-effort per client: a full client queue drops the event and
// the client is told how many it missed once it catches up.
type Hub struct {
	metrics *observe.Metrics

	mu      sync.Mutex
	clients map[*client]struct{}
}

// client is one connected console's send queue.
type client struct {
	send    chan Envelope
	dropped atomic.Int64
}

// enqueue delivers env to this client, counting it as dropped when the queue
// is full.
func (c *client) enqueue(env Envelope) {
	select {
	case c.send <- env:
	default:
		c.dropped.Add(1)
	}
}

// NewHub creates a hub with no clients. metrics may be nil.
func NewHub(metrics *observe.Metrics) *Hub {
	return &Hub{
		metrics: metrics,
		clients: make(map[*client]struct{}),
	}
}

// Compile-time interface assertion.
var _ call.Observer = (*Hub)(nil)

// CallEvent implements [call.Observer]: every per-call event becomes an
// envelope broadcast to all clients. Never blocks.
func (h *Hub) CallEvent(callID, eventType string, payload map[string]any) {
	h.Broadcast(Envelope{
		Type:      eventType,
		CallID:    callID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
}

// CallCreated announces a new call to all clients.
func (h *Hub) CallCreated(callID, callerID string) {
	h.Broadcast(Envelope{
		Type:      TypeSessionCreated,
		CallID:    callID,
		Timestamp: time.Now().UTC(),
		Payload:   map[string]any{"callerId": callerID},
	})
}

// Broadcast delivers env to every connected client, best-effort.
func (h *Hub) Broadcast(env Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.enqueue(env)
	}
}

// register adds a new client queue to the fan-out.
func (h *Hub) register(ctx context.Context) *client {
	c := &client{send: make(chan Envelope, clientBuf)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.OperatorClients.Add(ctx, 1)
	}
	return c
}

// unregister removes a client from the fan-out.
func (h *Hub) unregister(ctx context.Context, c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.OperatorClients.Add(ctx, -1)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
