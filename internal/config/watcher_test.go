package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, path, level string) {
	t.Helper()
	data := []byte("\nari:\n  base_url: \"http://asterisk:8088/ari\"\n  application: arivox\nserver:\n  log_level: " + level + "\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestWatcherInitialLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "arivox.yaml")
	writeConfigFile(t, path, "info")

	w, err := NewWatcher(path, nil, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	if got, want := w.Current().Server.LogLevel, LogInfo; got != want {
		t.Errorf("Current().Server.LogLevel = %q, want %q", got, want)
	}
}

func TestWatcherReloadsOnChange(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "arivox.yaml")
	writeConfigFile(t, path, "info")

	changed := make(chan *Config, 1)
	w, err := NewWatcher(path, func(_, new *Config) {
		changed <- new
	}, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	// Rewrite with a different level and a bumped mtime.
	writeConfigFile(t, path, "debug")
	now := time.Now().Add(time.Second)
	if err := os.Chtimes(path, now, now); err != nil {
		t.Fatalf("Chtimes() error = %v", err)
	}

	select {
	case cfg := <-changed:
		if got, want := cfg.Server.LogLevel, LogDebug; got != want {
			t.Errorf("reloaded Server.LogLevel = %q, want %q", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}

func TestWatcherKeepsOldConfigOnInvalidFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "arivox.yaml")
	writeConfigFile(t, path, "info")

	w, err := NewWatcher(path, nil, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	writeConfigFile(t, path, "loud")
	now := time.Now().Add(time.Second)
	if err := os.Chtimes(path, now, now); err != nil {
		t.Fatalf("Chtimes() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if got, want := w.Current().Server.LogLevel, LogInfo; got != want {
		t.Errorf("Current().Server.LogLevel = %q, want %q (old config should survive)", got, want)
	}
}
