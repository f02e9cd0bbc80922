package resilience

import (
	"context"

	"github.com/arivox/arivox/pkg/recognizer"
)

// RecognizerFallback implements [recognizer.Provider] with automatic failover
// across multiple recognition backends. Each backend has its own circuit
// breaker, so a backend that keeps failing to open sessions is bypassed in
// favour of the next healthy one.
type RecognizerFallback struct {
	group *FallbackGroup[recognizer.Provider]
}

// Compile-time interface assertion.
var _ recognizer.Provider = (*RecognizerFallback)(nil)

// NewRecognizerFallback creates a [RecognizerFallback] with primary as the
// preferred backend.
func NewRecognizerFallback(primary recognizer.Provider, primaryName string, cfg FallbackConfig) *RecognizerFallback {
	return &RecognizerFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional recognition provider as a fallback.
func (f *RecognizerFallback) AddFallback(name string, provider recognizer.Provider) {
	f.group.AddFallback(name, provider)
}

// Open establishes a session against the first healthy backend. If the
// primary fails to open, subsequent fallbacks are tried in order.
func (f *RecognizerFallback) Open(ctx context.Context, cfg recognizer.Config, cb recognizer.Callbacks) (recognizer.Session, error) {
	return ExecuteWithResult(f.group, func(p recognizer.Provider) (recognizer.Session, error) {
		return p.Open(ctx, cfg, cb)
	})
}
