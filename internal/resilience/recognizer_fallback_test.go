package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/arivox/arivox/pkg/recognizer"
	recmock "github.com/arivox/arivox/pkg/recognizer/mock"
)

func TestRecognizerFallback_Open_PrimarySuccess(t *testing.T) {
	primary := recmock.NewProvider()
	secondary := recmock.NewProvider()

	fb := NewRecognizerFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	sess, err := fb.Open(context.Background(), recognizer.Config{LanguageCode: "en-US"}, recognizer.Callbacks{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess == nil {
		t.Fatal("session is nil")
	}
	if got := len(primary.OpenConfigs); got != 1 {
		t.Fatalf("primary called %d times, want 1", got)
	}
	if got := len(secondary.OpenConfigs); got != 0 {
		t.Fatalf("secondary called %d times, want 0", got)
	}
	_ = sess.Close("test done")
}

func TestRecognizerFallback_Open_Failover(t *testing.T) {
	primary := recmock.NewProvider()
	primary.OpenErr = errors.New("primary down")
	secondary := recmock.NewProvider()

	fb := NewRecognizerFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	sess, err := fb.Open(context.Background(), recognizer.Config{LanguageCode: "en-US"}, recognizer.Callbacks{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess == nil {
		t.Fatal("session is nil")
	}
	if got := len(secondary.OpenConfigs); got != 1 {
		t.Fatalf("secondary called %d times, want 1", got)
	}
}

func TestRecognizerFallback_Open_AllFail(t *testing.T) {
	primary := recmock.NewProvider()
	primary.OpenErr = errors.New("primary down")
	secondary := recmock.NewProvider()
	secondary.OpenErr = errors.New("secondary down")

	fb := NewRecognizerFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	_, err := fb.Open(context.Background(), recognizer.Config{LanguageCode: "en-US"}, recognizer.Callbacks{})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("error = %v, want ErrAllFailed", err)
	}
}
