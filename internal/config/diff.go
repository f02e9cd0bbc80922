package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked: the log level and
// the per-call defaults. Live calls keep their snapshot; new calls pick up
// the reloaded defaults.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	CallDefaultsChanged bool
	NewCallDefaults     CallConfig

	PromptChanged bool
	NewPrompt     PromptConfig
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart; connection
// parameters (ARI, recognizer credentials) require one.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Call != new.Call {
		d.CallDefaultsChanged = true
		d.NewCallDefaults = new.Call
	}
	if old.Prompt != new.Prompt {
		d.PromptChanged = true
		d.NewPrompt = new.Prompt
	}

	return d
}

// Empty reports whether the diff contains no hot-reloadable change.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.CallDefaultsChanged && !d.PromptChanged
}
