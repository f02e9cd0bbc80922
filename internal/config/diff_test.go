package config

import "testing"

func TestDiffDetectsLogLevelChange(t *testing.T) {
	t.Parallel()

	old := &Config{Server: ServerConfig{LogLevel: LogInfo}, Call: DefaultCallConfig()}
	new := &Config{Server: ServerConfig{LogLevel: LogDebug}, Call: DefaultCallConfig()}

	d := Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != LogDebug {
		t.Errorf("Diff() = %+v, want LogLevelChanged with %q", d, LogDebug)
	}
	if d.CallDefaultsChanged {
		t.Error("Diff() reported CallDefaultsChanged for identical call defaults")
	}
}

func TestDiffDetectsCallDefaultsChange(t *testing.T) {
	t.Parallel()

	old := &Config{Call: DefaultCallConfig()}
	newCfg := &Config{Call: DefaultCallConfig()}
	newCfg.Call.SpeechEndSilenceTimeoutSeconds = 3

	d := Diff(old, newCfg)
	if !d.CallDefaultsChanged {
		t.Fatal("Diff() did not report CallDefaultsChanged")
	}
	if got, want := d.NewCallDefaults.SpeechEndSilenceTimeoutSeconds, 3.0; got != want {
		t.Errorf("NewCallDefaults.SpeechEndSilenceTimeoutSeconds = %v, want %v", got, want)
	}
}

func TestDiffEmpty(t *testing.T) {
	t.Parallel()

	cfg := &Config{Call: DefaultCallConfig(), Prompt: PromptConfig{MediaURI: "sound:welcome"}}
	if d := Diff(cfg, cfg); !d.Empty() {
		t.Errorf("Diff(cfg, cfg) = %+v, want empty", d)
	}
}
