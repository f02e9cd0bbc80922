package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/arivox/arivox/pkg/recognizer"
)

// ErrProviderNotRegistered is returned by CreateRecognizer when no factory
// has been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// RecognizerFactory constructs a streaming recognition provider from the
// recognizer section of the config.
type RecognizerFactory func(RecognizerConfig) (recognizer.Provider, error)

// Registry maps provider names to their constructor functions. The wiring
// layer registers the real backends at startup; tests register mocks. It is
// safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	recognizers map[Provider]RecognizerFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		recognizers: make(map[Provider]RecognizerFactory),
	}
}

// RegisterRecognizer registers a factory under name, replacing any prior
// registration.
func (r *Registry) RegisterRecognizer(name Provider, f RecognizerFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recognizers[name] = f
}

// CreateRecognizer constructs the provider registered under name.
func (r *Registry) CreateRecognizer(name Provider, cfg RecognizerConfig) (recognizer.Provider, error) {
	r.mu.RLock()
	f, ok := r.recognizers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: recognizer %q", ErrProviderNotRegistered, name)
	}
	return f(cfg)
}
