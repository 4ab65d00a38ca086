package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/cv-matcher/internal/ai/gemini"
	"github.com/spigell/cv-matcher/internal/ai/openai"
	"github.com/spigell/cv-matcher/internal/logger"
	"github.com/spigell/cv-matcher/internal/secrets"
	"go.uber.org/zap"
)

const (
	ProviderLocal  = "local"
	ProviderRemote = "remote"

	BackendGemini = gemini.Name
	BackendOpenAI = openai.Name
)

// Config selects and configures the vector provider. It is always passed in explicitly;
// nothing here reads the process environment.
type Config struct {
	// Provider is "local" or "remote". Empty means local.
	Provider string
	// Model is the remote model identifier.
	Model string
	// Dimension is the local encoder vector size.
	Dimension int
	// NgramSize is the longest token n-gram hashed by the local encoder.
	NgramSize int
	// Timeout bounds each remote call.
	Timeout time.Duration
	Remote  RemoteConfig
}

// RemoteConfig configures the remote embedding backend.
type RemoteConfig struct {
	// Backend is "gemini" (default) or "openai".
	Backend           string
	APIKey            string
	APIKeyFile        string
	BaseURL           string
	Dimension         int
	MaxRetries        int
	RequestsPerMinute int
}

// New builds the provider chain described by cfg. The local encoder is always the
// fallback. A remote provider that cannot be built degrades the chain to local-only and
// every batch reports why.
func New(ctx context.Context, cfg Config, log *zap.Logger) (*Chain, error) {
	if log == nil {
		log = zap.NewNop()
	}

	dims := cfg.Dimension
	if dims == 0 {
		dims = DefaultDimensions
	}

	var opts []LocalOption
	if cfg.NgramSize > 0 {
		opts = append(opts, WithNgramSize(cfg.NgramSize))
	}
	local, localErr := NewLocal(dims, opts...)

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	switch provider {
	case "", ProviderLocal:
		if localErr != nil {
			return nil, localErr
		}
		return NewChain(local, nil, WithLogger(log)), nil
	case ProviderRemote:
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}

	backend := strings.TrimSpace(strings.ToLower(cfg.Remote.Backend))
	if backend == "" {
		backend = BackendGemini
	}
	if backend != BackendGemini && backend != BackendOpenAI {
		return nil, fmt.Errorf("unsupported remote embedding backend: %s", cfg.Remote.Backend)
	}

	chainLogger := logger.WithProvider(log, backend, cfg.Model)
	chainOpts := []ChainOption{WithTimeout(cfg.Timeout), WithLogger(chainLogger)}

	var fallback Provider
	if localErr == nil {
		fallback = local
	} else {
		chainLogger.Warn("local fallback is disabled", zap.Error(localErr))
	}

	remote, err := newRemote(ctx, backend, cfg, chainLogger)
	if err != nil {
		if fallback == nil {
			return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailure, err)
		}
		chainLogger.Warn("remote embedding provider is unavailable, using local encoder", zap.Error(err))
		return newDegradedChain(fallback, err, chainOpts...), nil
	}

	chainLogger = logger.WithProvider(log, backend, remote.Model())
	chainLogger.Info("remote embedding provider ready", zap.Int("dimensions", remote.Dimensions()))

	return NewChain(remote, fallback, WithTimeout(cfg.Timeout), WithLogger(chainLogger)), nil
}

func newRemote(ctx context.Context, backend string, cfg Config, log *zap.Logger) (*Remote, error) {
	switch backend {
	case BackendGemini:
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: cfg.Remote.APIKey,
			File:  cfg.Remote.APIKeyFile,
		})
		if err != nil {
			return nil, err
		}

		client, err := gemini.NewEmbedder(ctx, apiKey, gemini.Config{
			Model:             cfg.Model,
			Dimensions:        cfg.Remote.Dimension,
			MaxRetries:        cfg.Remote.MaxRetries,
			RequestsPerMinute: cfg.Remote.RequestsPerMinute,
		}, log)
		if err != nil {
			return nil, err
		}
		return NewRemote(client), nil

	case BackendOpenAI:
		// Self-hosted OpenAI-compatible servers often run without auth.
		apiKey, err := secrets.Load(secrets.Source{
			Name:     "openai api key",
			Value:    cfg.Remote.APIKey,
			File:     cfg.Remote.APIKeyFile,
			Optional: strings.TrimSpace(cfg.Remote.BaseURL) != "",
		})
		if err != nil {
			return nil, err
		}

		client := openai.New(apiKey, openai.Config{
			BaseURL:           cfg.Remote.BaseURL,
			Model:             cfg.Model,
			Dimensions:        cfg.Remote.Dimension,
			RequestsPerMinute: cfg.Remote.RequestsPerMinute,
		}, log)
		return NewRemote(client), nil

	default:
		return nil, fmt.Errorf("unsupported remote embedding backend: %s", backend)
	}
}
