package embedding

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/cv-matcher/internal/logger"
)

func TestNewLocalByDefault(t *testing.T) {
	t.Parallel()

	chain, err := New(context.Background(), Config{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if chain.Name() != LocalName || chain.Dimensions() != DefaultDimensions {
		t.Fatalf("expected default local chain, got %s/%d", chain.Name(), chain.Dimensions())
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "unknown provider", cfg: Config{Provider: "quantum"}},
		{name: "unknown backend", cfg: Config{Provider: ProviderRemote, Remote: RemoteConfig{Backend: "cohere"}}},
		{name: "negative dimension", cfg: Config{Provider: ProviderLocal, Dimension: -1}},
		{name: "remote without key or fallback", cfg: Config{Provider: ProviderRemote, Dimension: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := New(context.Background(), tt.cfg, nil); err == nil {
				t.Fatalf("expected error for %+v", tt.cfg)
			}
		})
	}
}

func TestNewRemoteWithoutKeyDegrades(t *testing.T) {
	t.Parallel()

	chain, err := New(context.Background(), Config{Provider: ProviderRemote, Dimension: 32}, nil)
	if err != nil {
		t.Fatalf("missing key must degrade, got %v", err)
	}

	batch, err := chain.Embed(context.Background(), []string{"go developer"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.Provider != LocalName {
		t.Fatalf("expected local provider, got %s", batch.Provider)
	}
	if !errors.Is(batch.Degraded, ErrProviderUnavailable) {
		t.Fatalf("expected degraded batch, got %v", batch.Degraded)
	}
	if batch.Vectors[0].Dimensions() != 32 {
		t.Fatalf("expected 32 dimensions, got %d", batch.Vectors[0].Dimensions())
	}
}

func TestNewOpenAICompatibleBackend(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.6,0.8,0]}]}`))
	}))
	defer server.Close()

	core, observed := observer.New(zapcore.InfoLevel)

	chain, err := New(context.Background(), Config{
		Provider: ProviderRemote,
		Remote: RemoteConfig{
			Backend:   BackendOpenAI,
			BaseURL:   server.URL,
			Dimension: 3,
		},
	}, zap.New(core))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if chain.Name() != BackendOpenAI {
		t.Fatalf("expected openai chain, got %s", chain.Name())
	}

	ready := observed.FilterMessage("remote embedding provider ready").All()
	if len(ready) != 1 {
		t.Fatalf("expected one readiness entry, got %d", len(ready))
	}
	if model := ready[0].ContextMap()[logger.FieldModel]; model != "text-embedding-3-small" {
		t.Fatalf("expected resolved default model in log, got %v", model)
	}

	batch, err := chain.Embed(context.Background(), []string{"sql"}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.Provider != BackendOpenAI || batch.Degraded != nil {
		t.Fatalf("expected remote batch, got %+v", batch)
	}
}

func TestNewOpenAIFailureFallsBack(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	chain, err := New(context.Background(), Config{
		Provider:  ProviderRemote,
		Dimension: 16,
		Remote:    RemoteConfig{Backend: BackendOpenAI, BaseURL: server.URL, Dimension: 3},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	batch, err := chain.Embed(context.Background(), []string{"sql"}, true)
	if err != nil {
		t.Fatalf("fallback must absorb remote failure, got %v", err)
	}
	if batch.Provider != LocalName || !errors.Is(batch.Degraded, ErrProviderUnavailable) {
		t.Fatalf("expected degraded local batch, got %+v", batch)
	}
}
