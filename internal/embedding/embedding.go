// Package embedding turns text into fixed-dimension vectors. It offers a deterministic local
// hash encoder, wires the remote providers from internal/ai and chains them so that a
// failing remote provider degrades to the local one instead of failing the match.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrProviderUnavailable marks a remote provider failure that was recovered by a fallback.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")
	// ErrEmbeddingFailure is returned when no strategy could produce vectors.
	ErrEmbeddingFailure = errors.New("embedding failed")
)

// Vector is a read-only embedding of one text.
type Vector []float32

// Dimensions returns the dimensionality of the vector.
func (v Vector) Dimensions() int {
	return len(v)
}

// Provider generates embeddings from text.
type Provider interface {
	// Embed returns one vector per text, in input order. isQuery marks texts that are
	// searched for (the job description) as opposed to texts that are searched in.
	Embed(ctx context.Context, texts []string, isQuery bool) ([]Vector, error)

	// Name identifies the strategy that produced the vectors.
	Name() string

	// Dimensions returns the expected vector dimensions.
	Dimensions() int
}

// FromFloat32s converts raw provider output into vectors, checking every dimension.
func FromFloat32s(raw [][]float32, dimensions int) ([]Vector, error) {
	vectors := make([]Vector, len(raw))
	for i, r := range raw {
		if dimensions > 0 && len(r) != dimensions {
			return nil, fmt.Errorf("unexpected embedding dimensions at %d: got %d, want %d", i, len(r), dimensions)
		}
		vectors[i] = Vector(r)
	}
	return vectors, nil
}
