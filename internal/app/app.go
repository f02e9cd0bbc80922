// Package app wires all Arivox subsystems into a running bridge.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the telephony event loop and the HTTP listeners,
// and Shutdown tears everything down in order.
//
// For testing, inject mock implementations via the Providers struct. When a
// provider slot is nil, New creates the real implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arivox/arivox/internal/call"
	"github.com/arivox/arivox/internal/config"
	"github.com/arivox/arivox/internal/health"
	"github.com/arivox/arivox/internal/observe"
	"github.com/arivox/arivox/internal/operator"
	"github.com/arivox/arivox/pkg/recognizer"
	"github.com/arivox/arivox/pkg/telephony"
	"github.com/arivox/arivox/pkg/telephony/ari"
)

// readHeaderTimeout bounds header reads on the HTTP listeners.
const readHeaderTimeout = 10 * time.Second

// Providers holds one interface value per provider slot. Nil means the slot
// is constructed from the config by New. Populated by main.go via the config
// registry.
type Providers struct {
	// Client is the telephony control connection.
	Client telephony.Client

	// Media hands out per-channel audio streams.
	Media telephony.MediaSource

	// Recognizer is the streaming recognition backend, possibly wrapped in a
	// fallback group.
	Recognizer recognizer.Provider

	// Batch, when non-nil, is the one-shot fallback transcriber tried on
	// recorded audio after a fruitless streaming attempt.
	Batch recognizer.BatchTranscriber

	// ReplyMode marks a backend that synthesises a spoken reply after the
	// final transcript.
	ReplyMode bool
}

// App owns all subsystem lifetimes and runs the Arivox bridge.
type App struct {
	providers *Providers
	metrics   *observe.Metrics

	registry *operator.Registry
	hub      *operator.Hub
	operator *operator.Server

	// mediaHandler is non-nil when the app owns the external-media listener.
	mediaHandler http.Handler

	listenAddr      string
	mediaListenAddr string

	// mu guards cfg; the watcher swaps it for new calls.
	mu  sync.Mutex
	cfg *config.Config

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithMetrics injects a metrics bundle instead of using the package default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry); nil slots are
// constructed from cfg.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		providers:       providers,
		cfg:             cfg,
		listenAddr:      cfg.Server.ListenAddr,
		mediaListenAddr: cfg.Server.MediaListenAddr,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Telephony client ──────────────────────────────────────────────
	if a.providers.Client == nil {
		client, err := ari.Connect(ctx, ari.Config{
			BaseURL:     cfg.ARI.BaseURL,
			Application: cfg.ARI.Application,
			Username:    cfg.ARI.Username,
			Password:    cfg.ARI.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("app: connect ari: %w", err)
		}
		a.providers.Client = client
		a.closers = append(a.closers, client.Close)
	}

	// ── 2. Media listener ────────────────────────────────────────────────
	if a.providers.Media == nil {
		ms := ari.NewMediaServer()
		a.providers.Media = ms

		mux := http.NewServeMux()
		mux.Handle("GET /media/{channel}", ms.Handler())
		a.mediaHandler = mux
	}

	if a.providers.Recognizer == nil {
		return nil, errors.New("app: no recognizer provider configured")
	}

	// ── 3. Operator control plane ────────────────────────────────────────
	a.registry = operator.NewRegistry()
	a.hub = operator.NewHub(a.metrics)
	a.operator = operator.NewServer(a.registry, a.hub, a.metrics, health.New(a.healthCheckers()...))

	return a, nil
}

// healthCheckers builds the readiness probes for the operator server.
func (a *App) healthCheckers() []health.Checker {
	return []health.Checker{
		{
			Name: "telephony",
			Check: func(ctx context.Context) error {
				if p, ok := a.providers.Client.(interface{ Ping(context.Context) error }); ok {
					return p.Ping(ctx)
				}
				return nil
			},
		},
		{
			Name: "recognizer",
			Check: func(context.Context) error {
				if a.providers.Recognizer == nil {
					return errors.New("no recognizer configured")
				}
				return nil
			},
		},
	}
}

// UpdateConfig swaps the config used for new calls. Live calls keep the
// snapshot they started with; the operator WebSocket mutates those directly.
func (a *App) UpdateConfig(cfg *config.Config) {
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()
}

// snapshot returns the config used for the next call.
func (a *App) snapshot() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// Registry exposes the live call registry, mainly for tests.
func (a *App) Registry() *operator.Registry { return a.registry }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the HTTP listeners and the telephony event loop, blocking until
// ctx is cancelled or a listener fails. The telephony event stream ending
// while ctx is still live is treated as a fatal error.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if a.listenAddr != "" {
		runServer(ctx, g, "operator", &http.Server{
			Addr:              a.listenAddr,
			Handler:           a.operator.Handler(),
			ReadHeaderTimeout: readHeaderTimeout,
		})
	}
	if a.mediaHandler != nil && a.mediaListenAddr != "" {
		runServer(ctx, g, "media", &http.Server{
			Addr:              a.mediaListenAddr,
			Handler:           a.mediaHandler,
			ReadHeaderTimeout: readHeaderTimeout,
		})
	}

	g.Go(func() error { return a.eventLoop(ctx) })

	slog.Info("app running",
		"listen_addr", a.listenAddr,
		"media_listen_addr", a.mediaListenAddr,
	)
	return g.Wait()
}

// runServer starts srv inside g and shuts it down when ctx is cancelled.
func runServer(ctx context.Context, g *errgroup.Group, name string, srv *http.Server) {
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: %s server: %w", name, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// eventLoop consumes the telephony event stream and routes each event to its
// call, creating a new call on ChannelEntered.
func (a *App) eventLoop(ctx context.Context) error {
	events := a.providers.Client.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("app: telephony event stream closed")
			}
			a.dispatch(ctx, ev)
		}
	}
}

// dispatch routes one event. ChannelEntered creates the call; everything else
// is delivered to the call owning the channel.
func (a *App) dispatch(ctx context.Context, ev telephony.Event) {
	if e, ok := ev.(telephony.ChannelEntered); ok {
		a.startCall(ctx, e)
		return
	}
	if o, ok := a.registry.Get(ev.Channel()); ok {
		o.Deliver(ev)
		return
	}
	slog.Debug("event for unknown channel dropped",
		"channel_id", ev.Channel(), "event", fmt.Sprintf("%T", ev))
}

// startCall creates and starts the orchestrator for a newly entered channel.
func (a *App) startCall(ctx context.Context, e telephony.ChannelEntered) {
	if _, exists := a.registry.Get(e.ChannelID); exists {
		slog.Warn("duplicate channel entry ignored", "channel_id", e.ChannelID)
		return
	}

	cfg := a.snapshot()
	o := call.New(call.Options{
		ID:        e.ChannelID,
		CallerID:  e.CallerID,
		Client:    a.providers.Client,
		Media:     a.providers.Media,
		Provider:  a.providers.Recognizer,
		Batch:     a.providers.Batch,
		Observer:  a.hub,
		Metrics:   a.metrics,
		Config:    cfg.Call,
		Prompt:    cfg.Prompt,
		ReplyMode: a.providers.ReplyMode,
		OnClosed:  a.registry.Remove,
	})
	a.registry.Add(o)
	a.hub.CallCreated(e.ChannelID, e.CallerID)
	o.Start(ctx)

	slog.Info("call started",
		"channel_id", e.ChannelID,
		"caller_id", e.CallerID,
		"active_calls", a.registry.Len(),
	)
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown ends all live calls and tears down all subsystems. It respects the
// context deadline: calls that do not finish cleanup in time are abandoned
// and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		calls := a.registry.Snapshot()
		slog.Info("shutting down", "active_calls", len(calls))

		for _, o := range calls {
			o.Shutdown(call.ReasonShutdown)
		}
		for _, o := range calls {
			select {
			case <-o.Done():
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "channel_id", o.ID())
				shutdownErr = ctx.Err()
				return
			}
		}

		for i, closer := range a.closers {
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}
