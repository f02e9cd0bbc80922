// Package config provides the configuration schema, loader, and per-call
// recognition option bundle for the Arivox bridge.
package config

// LogLevel controls log verbosity for the Arivox server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Provider selects the streaming recognition backend for a call.
type Provider string

const (
	// ProviderGoogle uses Google Cloud Speech streaming recognition.
	ProviderGoogle Provider = "google"

	// ProviderOpenAIRT uses the OpenAI Realtime API, which recognises speech
	// and synthesises a spoken reply.
	ProviderOpenAIRT Provider = "openai-realtime"
)

// IsValid reports whether p is a recognised provider.
func (p Provider) IsValid() bool {
	return p == ProviderGoogle || p == ProviderOpenAIRT
}

// Config is the root configuration structure for Arivox.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	ARI        ARIConfig        `yaml:"ari"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	Prompt     PromptConfig     `yaml:"prompt"`
	Call       CallConfig       `yaml:"call"`
}

// ServerConfig holds network and logging settings for the operator HTTP
// server (WebSocket control plane, metrics, health).
type ServerConfig struct {
	// ListenAddr is the TCP address the operator server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// MediaListenAddr is the TCP address the external-media WebSocket listener
	// binds to. Asterisk dials into it with the call's channel ID in the path.
	MediaListenAddr string `yaml:"media_listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// ARIConfig holds the connection parameters for the Asterisk REST Interface.
type ARIConfig struct {
	// BaseURL is the ARI HTTP base, e.g. "http://asterisk:8088/ari".
	BaseURL string `yaml:"base_url"`

	// Application is the Stasis application name.
	Application string `yaml:"application"`

	// Username and Password authenticate against ari.conf.
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// RecognizerConfig selects and configures the recognition backends.
type RecognizerConfig struct {
	// Provider is the primary streaming backend.
	Provider Provider `yaml:"provider"`

	// Fallback, when set, is tried when opening a session on Provider fails.
	Fallback Provider `yaml:"fallback"`

	// GoogleCredentialsFile is the path to the service-account JSON for the
	// Google backends. Empty means Application Default Credentials.
	GoogleCredentialsFile string `yaml:"google_credentials_file"`

	// OpenAIAPIKey authenticates against the OpenAI Realtime API.
	OpenAIAPIKey string `yaml:"openai_api_key"`

	// OpenAIModel overrides the default Realtime model.
	OpenAIModel string `yaml:"openai_model"`

	// OpenAIBaseURL overrides the Realtime WebSocket endpoint. Primarily for
	// tests.
	OpenAIBaseURL string `yaml:"openai_base_url"`
}

// PromptConfig describes the greeting played to the caller and, for the
// reply-generating backend, the assistant persona.
type PromptConfig struct {
	// MediaURI is the ARI media URI of the greeting prompt, e.g.
	// "sound:welcome". Empty means no prompt is played.
	MediaURI string `yaml:"media_uri"`

	// Instructions is the system prompt for the OpenAI Realtime backend.
	Instructions string `yaml:"instructions"`

	// Voice selects the synthesis voice for the OpenAI Realtime backend.
	Voice string `yaml:"voice"`
}
