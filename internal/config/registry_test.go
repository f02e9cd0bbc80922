package config

import (
	"errors"
	"testing"

	"github.com/arivox/arivox/pkg/recognizer"
	recmock "github.com/arivox/arivox/pkg/recognizer/mock"
)

func TestRegistryCreateRecognizer(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	want := recmock.NewProvider()
	r.RegisterRecognizer(ProviderGoogle, func(RecognizerConfig) (recognizer.Provider, error) {
		return want, nil
	})

	got, err := r.CreateRecognizer(ProviderGoogle, RecognizerConfig{})
	if err != nil {
		t.Fatalf("CreateRecognizer() error = %v", err)
	}
	if got != want {
		t.Error("CreateRecognizer() returned a different provider than registered")
	}
}

func TestRegistryUnknownProvider(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	_, err := r.CreateRecognizer(ProviderOpenAIRT, RecognizerConfig{})
	if !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("CreateRecognizer() error = %v, want ErrProviderNotRegistered", err)
	}
}
