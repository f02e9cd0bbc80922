package operator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/arivox/arivox/internal/call"
	"github.com/arivox/arivox/internal/config"
	"github.com/arivox/arivox/internal/health"
	"github.com/arivox/arivox/internal/observe"
)

// Server is the operator HTTP surface: the /ws control-plane WebSocket, the
// Prometheus /metrics endpoint and the health probes.
type Server struct {
	registry *Registry
	hub      *Hub
	metrics  *observe.Metrics
	health   *health.Handler
}

// NewServer wires the operator surface together. health may be nil to skip
// the probe routes; metrics may be nil.
func NewServer(registry *Registry, hub *Hub, metrics *observe.Metrics, h *health.Handler) *Server {
	return &Server{registry: registry, hub: hub, metrics: metrics, health: h}
}

// Handler returns the full operator route set behind the observability
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.Handle("GET /metrics", promhttp.Handler())
	if s.health != nil {
		s.health.Register(mux)
	}
	return observe.Middleware(s.metrics)(mux)
}

// handleWS upgrades the connection and runs the read/write loops until the
// client disconnects.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("operator: websocket accept failed", "err", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "server shutting down")

	ctx := r.Context()
	c := s.hub.register(ctx)
	defer s.hub.unregister(context.WithoutCancel(ctx), c)

	// Every new console starts with the live call list.
	c.enqueue(s.activeCallsEnvelope())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.readLoop(ctx, conn, c) })
	g.Go(func() error { return s.writeLoop(ctx, conn, c) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Debug("operator: client disconnected", "err", err)
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func (s *Server) activeCallsEnvelope() Envelope {
	calls := s.registry.Snapshot()
	summaries := make([]CallSummary, 0, len(calls))
	for _, o := range calls {
		summaries = append(summaries, CallSummary{
			CallID:   o.ID(),
			CallerID: o.CallerID(),
			State:    string(o.State()),
		})
	}
	return Envelope{
		Type:      TypeActiveCallsList,
		Timestamp: time.Now().UTC(),
		Payload:   map[string]any{"calls": summaries},
	}
}

// readLoop consumes client messages. A malformed frame is dropped with an
// error envelope; it never affects call state.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, c *client) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.enqueue(errorEnvelope("", "malformed message: "+err.Error()))
			continue
		}
		s.handleClientMessage(msg, c)
	}
}

func (s *Server) handleClientMessage(msg ClientMessage, c *client) {
	o, ok := s.registry.Get(msg.CallID)
	if !ok {
		c.enqueue(errorEnvelope(msg.CallID, "unknown call"))
		return
	}

	switch msg.Type {
	case TypeGetCallConfiguration:
		c.enqueue(configAckEnvelope(msg.CallID, o.ConfigSnapshot(), nil))

	case TypeGetConversationHistory:
		callID := msg.CallID
		o.History(func(turns []call.Turn) {
			c.enqueue(Envelope{
				Type:      TypeConversationHistory,
				CallID:    callID,
				Timestamp: time.Now().UTC(),
				Payload:   map[string]any{"turns": turns},
			})
		})

	case TypeSessionUpdate:
		if msg.Session == nil {
			c.enqueue(errorEnvelope(msg.CallID, "session.update without session payload"))
			return
		}
		callID := msg.CallID
		o.ApplyConfigPatch(*msg.Session, func(cfg config.CallConfig, err error) {
			c.enqueue(configAckEnvelope(callID, cfg, err))
		})

	default:
		c.enqueue(errorEnvelope(msg.CallID, "unknown message type "+msg.Type))
	}
}

// writeLoop drains the client's queue onto the wire. After catching up it
// reports any events dropped while the queue was full.
func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, c *client) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env := <-c.send:
			if err := writeEnvelope(ctx, conn, env); err != nil {
				return err
			}
			if n := c.dropped.Swap(0); n > 0 {
				drop := errorEnvelope("", "event stream overflow")
				drop.Payload["droppedEvents"] = n
				if err := writeEnvelope(ctx, conn, drop); err != nil {
					return err
				}
			}
		}
	}
}

func writeEnvelope(ctx context.Context, conn *websocket.Conn, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, data)
}

func errorEnvelope(callID, message string) Envelope {
	return Envelope{
		Type:      TypeError,
		CallID:    callID,
		Timestamp: time.Now().UTC(),
		Payload:   map[string]any{"message": message},
	}
}

func configAckEnvelope(callID string, cfg config.CallConfig, err error) Envelope {
	payload := map[string]any{"configuration": cfg}
	if err != nil {
		payload["error"] = err.Error()
	}
	return Envelope{
		Type:      TypeConfigUpdateAck,
		CallID:    callID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
