package embedding

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
)

const (
	// LocalName is the strategy name reported by the local encoder.
	LocalName = "local"

	// DefaultDimensions is the vector size used when none is configured.
	DefaultDimensions = 768

	// DefaultNgramSize makes the encoder hash unigrams and bigrams.
	DefaultNgramSize = 2

	// parallelThreshold is the batch size from which texts are encoded concurrently.
	parallelThreshold = 64
)

var localTokenPattern = regexp.MustCompile(`[a-z0-9_#+.-]+`)

// Local is a deterministic hashing encoder. Each token n-gram is hashed with SHA-1 into a
// bucket of a fixed-size count vector which is then scaled to unit length.
type Local struct {
	dimensions int
	ngramSize  int
}

// LocalOption configures a Local encoder.
type LocalOption func(*Local)

// WithNgramSize sets the longest token n-gram that is hashed.
func WithNgramSize(n int) LocalOption {
	return func(l *Local) {
		l.ngramSize = n
	}
}

// NewLocal creates a local encoder. A non-positive dimension is a misconfiguration.
func NewLocal(dimensions int, opts ...LocalOption) (*Local, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: local dimension must be positive, got %d", ErrEmbeddingFailure, dimensions)
	}

	l := &Local{
		dimensions: dimensions,
		ngramSize:  DefaultNgramSize,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.ngramSize < 1 {
		l.ngramSize = 1
	}

	return l, nil
}

func (l *Local) Name() string {
	return LocalName
}

func (l *Local) Dimensions() int {
	return l.dimensions
}

// Embed encodes every text. isQuery does not change the local encoding.
func (l *Local) Embed(ctx context.Context, texts []string, _ bool) ([]Vector, error) {
	if l == nil || l.dimensions <= 0 {
		return nil, fmt.Errorf("%w: local encoder is not initialized", ErrEmbeddingFailure)
	}

	vectors := make([]Vector, len(texts))
	if len(texts) < parallelThreshold {
		for i, text := range texts {
			vectors[i] = l.encode(text)
		}
		return vectors, nil
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, text := range texts {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			vectors[i] = l.encode(text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return vectors, nil
}

func (l *Local) encode(text string) Vector {
	vec := make(Vector, l.dimensions)
	tokens := localTokenPattern.FindAllString(strings.ToLower(strings.TrimSpace(text)), -1)
	if len(tokens) == 0 {
		return vec
	}

	counts := make([]float64, l.dimensions)
	for n := 1; n <= l.ngramSize; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			counts[l.bucket(strings.Join(tokens[i:i+n], " "))]++
		}
	}

	var sum float64
	for _, c := range counts {
		sum += c * c
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}
	for i, c := range counts {
		vec[i] = float32(c / norm)
	}

	return vec
}

func (l *Local) bucket(gram string) int {
	digest := sha1.Sum([]byte(gram))
	return int(binary.BigEndian.Uint32(digest[:4]) % uint32(l.dimensions))
}
