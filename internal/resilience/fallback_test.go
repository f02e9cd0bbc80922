package resilience

import (
	"errors"
	"testing"
	"time"
)

func newStringGroup(maxFailures int, cooldown time.Duration) *FallbackGroup[string] {
	g := NewFallbackGroup("google", "google", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: maxFailures, Cooldown: cooldown},
	})
	g.AddFallback("openai-realtime", "openai-realtime")
	return g
}

func TestPrimaryServesWhenHealthy(t *testing.T) {
	t.Parallel()

	g := newStringGroup(3, 0)
	var served string
	err := g.Execute(func(b string) error {
		served = b
		return nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if served != "google" {
		t.Fatalf("served by %q, want google", served)
	}
}

func TestFailedPrimaryFallsOver(t *testing.T) {
	t.Parallel()

	g := newStringGroup(3, 0)
	var served string
	err := g.Execute(func(b string) error {
		if b == "google" {
			return errBackend
		}
		served = b
		return nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if served != "openai-realtime" {
		t.Fatalf("served by %q, want openai-realtime", served)
	}
}

func TestAllBackendsFailing(t *testing.T) {
	t.Parallel()

	g := newStringGroup(3, 0)
	err := g.Execute(func(string) error { return errBackend })
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("Execute() = %v, want ErrAllFailed", err)
	}
}

func TestOpenBreakerSkipsPrimary(t *testing.T) {
	t.Parallel()

	g := newStringGroup(2, time.Hour)

	// Trip the primary's breaker.
	for range 2 {
		_ = g.Execute(func(b string) error {
			if b == "google" {
				return errBackend
			}
			return nil
		})
	}

	// With the primary open, the group must not invoke it at all.
	var served string
	err := g.Execute(func(b string) error {
		served = b
		return nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if served != "openai-realtime" {
		t.Fatalf("served by %q, want openai-realtime while primary breaker is open", served)
	}
}

func TestExecuteWithResultReturnsPrimaryValue(t *testing.T) {
	t.Parallel()

	g := newStringGroup(3, 0)
	got, err := ExecuteWithResult(g, func(b string) (string, error) {
		return "session-" + b, nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithResult() error = %v", err)
	}
	if got != "session-google" {
		t.Fatalf("result = %q, want session-google", got)
	}
}

func TestExecuteWithResultFailsOver(t *testing.T) {
	t.Parallel()

	g := newStringGroup(3, 0)
	got, err := ExecuteWithResult(g, func(b string) (string, error) {
		if b == "google" {
			return "", errBackend
		}
		return "session-" + b, nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithResult() error = %v", err)
	}
	if got != "session-openai-realtime" {
		t.Fatalf("result = %q, want session-openai-realtime", got)
	}
}

func TestExecuteWithResultAllFail(t *testing.T) {
	t.Parallel()

	g := NewFallbackGroup("google", "google", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	_, err := ExecuteWithResult(g, func(string) (string, error) {
		return "", errBackend
	})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("ExecuteWithResult() = %v, want ErrAllFailed", err)
	}
}
