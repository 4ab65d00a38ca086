package cmd

import (
	"context"
	"time"

	"github.com/spigell/cv-matcher/internal/embedding"
	"go.uber.org/zap"
)

func embeddingConfig(cfg *EmbeddingConfig) embedding.Config {
	return embedding.Config{
		Provider:  cfg.Provider,
		Model:     cfg.Model,
		Dimension: cfg.Dimension,
		NgramSize: cfg.NgramSize,
		Timeout:   time.Duration(cfg.TimeoutSeconds * float64(time.Second)),
		Remote: embedding.RemoteConfig{
			Backend:           cfg.Remote.Backend,
			APIKey:            cfg.Remote.APIKey,
			APIKeyFile:        cfg.Remote.APIKeyFile,
			BaseURL:           cfg.Remote.BaseURL,
			Dimension:         cfg.Remote.Dimension,
			MaxRetries:        cfg.Remote.MaxRetries,
			RequestsPerMinute: cfg.Remote.RequestsPerMinute,
		},
	}
}

func newChain(ctx context.Context, cfg *Config, logger *zap.Logger) (*embedding.Chain, error) {
	chain, err := embedding.New(ctx, embeddingConfig(cfg.Embedding), logger)
	if err != nil {
		return nil, err
	}

	logger.Info("embedding provider ready",
		zap.String("provider", chain.Name()),
		zap.Int("dimensions", chain.Dimensions()),
	)
	return chain, nil
}
