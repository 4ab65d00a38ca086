package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a single call to the primary provider.
const DefaultTimeout = 10 * time.Second

// Batch is the outcome of one embedding call made through a Chain.
type Batch struct {
	Vectors []Vector
	// Provider names the strategy that produced Vectors.
	Provider string
	// Degraded is non-nil when the batch was served by the fallback. It wraps
	// ErrProviderUnavailable and the cause.
	Degraded error
}

// Chain serves embeddings from a primary provider and falls back to a second one when the
// primary fails or times out.
type Chain struct {
	primary     Provider
	fallback    Provider
	timeout     time.Duration
	unavailable error
	logger      *zap.Logger
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithTimeout bounds every call to the primary provider. Non-positive values keep the default.
func WithTimeout(d time.Duration) ChainOption {
	return func(c *Chain) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger used to report degradation.
func WithLogger(logger *zap.Logger) ChainOption {
	return func(c *Chain) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewChain creates a chain. fallback may be nil, in which case primary failures are fatal.
func NewChain(primary, fallback Provider, opts ...ChainOption) *Chain {
	c := &Chain{
		primary:  primary,
		fallback: fallback,
		timeout:  DefaultTimeout,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// newDegradedChain serves everything from fallback and reports cause on every batch. It is
// used when the configured primary provider could not be constructed at all.
func newDegradedChain(fallback Provider, cause error, opts ...ChainOption) *Chain {
	c := NewChain(nil, fallback, opts...)
	c.unavailable = fmt.Errorf("%w: %w", ErrProviderUnavailable, cause)
	return c
}

// Name returns the name of the strategy a fresh session would try first.
func (c *Chain) Name() string {
	if c.primary != nil && c.unavailable == nil {
		return c.primary.Name()
	}
	if c.fallback != nil {
		return c.fallback.Name()
	}
	return ""
}

// Dimensions returns the dimensions of the strategy a fresh session would try first.
func (c *Chain) Dimensions() int {
	if c.primary != nil && c.unavailable == nil {
		return c.primary.Dimensions()
	}
	if c.fallback != nil {
		return c.fallback.Dimensions()
	}
	return 0
}

// Session returns a request-scoped view of the chain. Once a session degrades to the
// fallback it stays there, so all vectors of one request share a vector space.
// A Session must not be shared between goroutines.
func (c *Chain) Session() *Session {
	return &Session{chain: c, degraded: c.unavailable}
}

// Embed embeds texts through a one-off session.
func (c *Chain) Embed(ctx context.Context, texts []string, isQuery bool) (Batch, error) {
	return c.Session().Embed(ctx, texts, isQuery)
}

// Session tracks the degradation state of one match request.
type Session struct {
	chain    *Chain
	degraded error
}

// Degraded returns the reason the session switched to the fallback, or nil.
func (s *Session) Degraded() error {
	return s.degraded
}

// Embed embeds texts with the primary provider, or the fallback once the session degraded.
func (s *Session) Embed(ctx context.Context, texts []string, isQuery bool) (Batch, error) {
	c := s.chain

	if s.degraded == nil && c.primary != nil {
		vectors, err := c.callPrimary(ctx, texts, isQuery)
		if err == nil {
			return Batch{Vectors: vectors, Provider: c.primary.Name()}, nil
		}

		if c.fallback == nil {
			return Batch{}, fmt.Errorf("%w: %s: %w", ErrEmbeddingFailure, c.primary.Name(), err)
		}

		s.degraded = fmt.Errorf("%w: %s: %w", ErrProviderUnavailable, c.primary.Name(), err)
		c.logger.Warn("embedding provider failed, falling back",
			zap.String("provider", c.primary.Name()),
			zap.String("fallback", c.fallback.Name()),
			zap.Error(err),
		)
	}

	if c.fallback == nil {
		return Batch{}, fmt.Errorf("%w: no embedding provider configured", ErrEmbeddingFailure)
	}

	vectors, err := c.fallback.Embed(ctx, texts, isQuery)
	if err != nil {
		return Batch{}, fmt.Errorf("%w: %s: %w", ErrEmbeddingFailure, c.fallback.Name(), errors.Join(err, s.degraded))
	}
	if err := checkBatch(vectors, len(texts), c.fallback.Dimensions()); err != nil {
		return Batch{}, fmt.Errorf("%w: %s: %w", ErrEmbeddingFailure, c.fallback.Name(), err)
	}

	return Batch{Vectors: vectors, Provider: c.fallback.Name(), Degraded: s.degraded}, nil
}

func (c *Chain) callPrimary(ctx context.Context, texts []string, isQuery bool) ([]Vector, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	vectors, err := c.primary.Embed(ctx, texts, isQuery)
	if err != nil {
		return nil, err
	}
	if err := checkBatch(vectors, len(texts), c.primary.Dimensions()); err != nil {
		return nil, err
	}
	return vectors, nil
}

func checkBatch(vectors []Vector, want, dimensions int) error {
	if len(vectors) != want {
		return fmt.Errorf("got %d vectors for %d texts", len(vectors), want)
	}
	for i, v := range vectors {
		if dimensions > 0 && len(v) != dimensions {
			return fmt.Errorf("vector %d has %d dimensions, want %d", i, len(v), dimensions)
		}
	}
	return nil
}
