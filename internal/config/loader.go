package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. Useful in tests where configs are constructed from string
// literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills zero-valued fields with the built-in defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.MediaListenAddr == "" {
		cfg.Server.MediaListenAddr = ":9090"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Recognizer.Provider == "" {
		cfg.Recognizer.Provider = ProviderGoogle
	}

	def := DefaultCallConfig()
	c := &cfg.Call
	if c.ActivationMode == "" {
		c.ActivationMode = def.ActivationMode
	}
	if c.NoSpeechBeginTimeoutSeconds == 0 {
		c.NoSpeechBeginTimeoutSeconds = def.NoSpeechBeginTimeoutSeconds
	}
	if c.InitialStreamIdleTimeoutSeconds == 0 {
		c.InitialStreamIdleTimeoutSeconds = def.InitialStreamIdleTimeoutSeconds
	}
	if c.SpeechEndSilenceTimeoutSeconds == 0 {
		c.SpeechEndSilenceTimeoutSeconds = def.SpeechEndSilenceTimeoutSeconds
	}
	if c.MaxRecognitionDurationSeconds == 0 {
		c.MaxRecognitionDurationSeconds = def.MaxRecognitionDurationSeconds
	}
	if c.VADMode == "" {
		c.VADMode = def.VADMode
	}
	if c.VADMaxWaitAfterPromptSeconds == 0 {
		c.VADMaxWaitAfterPromptSeconds = def.VADMaxWaitAfterPromptSeconds
	}
	if c.VADSilenceThresholdMs == 0 {
		c.VADSilenceThresholdMs = def.VADSilenceThresholdMs
	}
	if c.VADTalkThreshold == 0 {
		c.VADTalkThreshold = def.VADTalkThreshold
	}
	if c.DTMFInterDigitTimeoutSeconds == 0 {
		c.DTMFInterDigitTimeoutSeconds = def.DTMFInterDigitTimeoutSeconds
	}
	if c.DTMFFinalTimeoutSeconds == 0 {
		c.DTMFFinalTimeoutSeconds = def.DTMFFinalTimeoutSeconds
	}
	if c.Recognize.Encoding == "" {
		c.Recognize.Encoding = def.Recognize.Encoding
	}
	if c.Recognize.SampleRateHertz == 0 {
		c.Recognize.SampleRateHertz = def.Recognize.SampleRateHertz
	}
	if c.Recognize.LanguageCode == "" {
		c.Recognize.LanguageCode = def.Recognize.LanguageCode
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.ARI.BaseURL == "" {
		errs = append(errs, errors.New("ari.base_url is required"))
	}
	if cfg.ARI.Application == "" {
		errs = append(errs, errors.New("ari.application is required"))
	}
	if cfg.Recognizer.Provider != "" && !cfg.Recognizer.Provider.IsValid() {
		errs = append(errs, fmt.Errorf("recognizer.provider %q is invalid; valid values: google, openai-realtime", cfg.Recognizer.Provider))
	}
	if cfg.Recognizer.Fallback != "" && !cfg.Recognizer.Fallback.IsValid() {
		errs = append(errs, fmt.Errorf("recognizer.fallback %q is invalid; valid values: google, openai-realtime", cfg.Recognizer.Fallback))
	}
	if cfg.Recognizer.Fallback != "" && cfg.Recognizer.Fallback == cfg.Recognizer.Provider {
		errs = append(errs, errors.New("recognizer.fallback must differ from recognizer.provider"))
	}
	if cfg.Recognizer.Provider == ProviderOpenAIRT || cfg.Recognizer.Fallback == ProviderOpenAIRT {
		if cfg.Recognizer.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("recognizer.openai_api_key is required when the openai-realtime backend is selected"))
		}
	}

	if err := ValidateCall(cfg.Call); err != nil {
		errs = append(errs, fmt.Errorf("call: %w", err))
	}

	return errors.Join(errs...)
}
