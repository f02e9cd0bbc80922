// Command arivox is the main entry point for the Arivox telephony bridge.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"google.golang.org/api/option"

	"github.com/arivox/arivox/internal/app"
	"github.com/arivox/arivox/internal/config"
	"github.com/arivox/arivox/internal/observe"
	"github.com/arivox/arivox/internal/resilience"
	"github.com/arivox/arivox/pkg/recognizer"
	"github.com/arivox/arivox/pkg/recognizer/google"
	"github.com/arivox/arivox/pkg/recognizer/openairt"
)

// version is set via -ldflags at build time.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration + start the file watcher ───────────────────────────
	// The watcher's onChange fires after the app exists; until then it only
	// adjusts the log level.
	var application atomic.Pointer[app.App]
	watcher, err := config.NewWatcher(*configPath, func(prev, next *config.Config) {
		logConfigChange(prev, next)
		setLogLevel(next.Server.LogLevel)
		if a := application.Load(); a != nil {
			a.UpdateConfig(next)
		}
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "arivox: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "arivox: %v\n", err)
		}
		return 1
	}
	defer watcher.Stop()
	cfg := watcher.Current()

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Server.LogLevel))

	slog.Info("arivox starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "arivox",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Recognition providers ─────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinRecognizers(ctx, reg)

	providers, err := buildProviders(reg, cfg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	printStartupSummary(cfg)

	a, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	application.Store(a)

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := a.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinRecognizers wires the shipped recognition backends into reg.
func registerBuiltinRecognizers(ctx context.Context, reg *config.Registry) {
	reg.RegisterRecognizer(config.ProviderGoogle, func(rc config.RecognizerConfig) (recognizer.Provider, error) {
		var opts []option.ClientOption
		if rc.GoogleCredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(rc.GoogleCredentialsFile))
		}
		return google.New(ctx, opts...)
	})

	reg.RegisterRecognizer(config.ProviderOpenAIRT, func(rc config.RecognizerConfig) (recognizer.Provider, error) {
		if rc.OpenAIAPIKey == "" {
			return nil, errors.New("recognizer.openai_api_key is required for openai-realtime")
		}
		var opts []openairt.Option
		if rc.OpenAIModel != "" {
			opts = append(opts, openairt.WithModel(rc.OpenAIModel))
		}
		if rc.OpenAIBaseURL != "" {
			opts = append(opts, openairt.WithBaseURL(rc.OpenAIBaseURL))
		}
		return openairt.New(rc.OpenAIAPIKey, opts...), nil
	})
}

// buildProviders instantiates the configured recognition backends. The primary
// is wrapped in a circuit-breaking fallback group when a fallback backend is
// configured. The Google backend doubles as the one-shot batch transcriber.
func buildProviders(reg *config.Registry, cfg *config.Config) (*app.Providers, error) {
	primary, err := reg.CreateRecognizer(cfg.Recognizer.Provider, cfg.Recognizer)
	if err != nil {
		return nil, fmt.Errorf("create recognizer %q: %w", cfg.Recognizer.Provider, err)
	}
	slog.Info("recognizer created", "provider", cfg.Recognizer.Provider)

	ps := &app.Providers{
		Recognizer: primary,
		ReplyMode:  cfg.Recognizer.Provider == config.ProviderOpenAIRT,
	}
	if bt, ok := primary.(recognizer.BatchTranscriber); ok {
		ps.Batch = bt
	}

	if fb := cfg.Recognizer.Fallback; fb != "" && fb != cfg.Recognizer.Provider {
		fallback, err := reg.CreateRecognizer(fb, cfg.Recognizer)
		if err != nil {
			return nil, fmt.Errorf("create fallback recognizer %q: %w", fb, err)
		}
		group := resilience.NewRecognizerFallback(primary, string(cfg.Recognizer.Provider), resilience.FallbackConfig{})
		group.AddFallback(string(fb), fallback)
		ps.Recognizer = group
		if ps.Batch == nil {
			if bt, ok := fallback.(recognizer.BatchTranscriber); ok {
				ps.Batch = bt
			}
		}
		slog.Info("fallback recognizer created", "provider", fb)
	}

	return ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Arivox — startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Recognizer", string(cfg.Recognizer.Provider))
	printRow("Fallback", string(cfg.Recognizer.Fallback))
	printRow("ARI app", cfg.ARI.Application)
	printRow("Listen addr", cfg.Server.ListenAddr)
	printRow("Media addr", cfg.Server.MediaListenAddr)
	printRow("Prompt", cfg.Prompt.MediaURI)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(label, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", label, value)
}

// logConfigChange reports which hot-reloadable sections a config reload
// touched. Connection parameters are not hot-reloadable and are not diffed.
func logConfigChange(prev, next *config.Config) {
	d := config.Diff(prev, next)
	if d.Empty() {
		slog.Info("config reloaded, no hot-reloadable changes")
		return
	}
	slog.Info("config reloaded",
		"log_level_changed", d.LogLevelChanged,
		"call_defaults_changed", d.CallDefaultsChanged,
		"prompt_changed", d.PromptChanged,
	)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

// levelVar lets the config watcher adjust verbosity without rebuilding the
// logger.
var levelVar slog.LevelVar

func newLogger(level config.LogLevel) *slog.Logger {
	levelVar.Set(slogLevel(level))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &levelVar}))
}

func setLogLevel(level config.LogLevel) {
	levelVar.Set(slogLevel(level))
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
