// Package similarity holds the pure kernels that compare two documents: cosine similarity of
// their vectors and jaccard overlap of their skill sets.
package similarity

import (
	"math"

	"github.com/spigell/cv-matcher/internal/embedding"
	"github.com/spigell/cv-matcher/internal/skills"
)

// Cosine returns the cosine of the angle between a and b in [-1, 1]. A zero-norm vector or
// vectors of different length compare as 0.
func Cosine(a, b embedding.Vector) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return Clip(dot/(math.Sqrt(normA)*math.Sqrt(normB)), -1, 1)
}

// Jaccard returns |a∩b| / |a∪b|. Two empty sets overlap by 0.
func Jaccard(a, b skills.Set) float64 {
	union := a.Union(b).Len()
	if union == 0 {
		return 0
	}
	return float64(a.Intersect(b).Len()) / float64(union)
}

// Clip bounds x to [lo, hi]. NaN clips to lo.
func Clip(x, lo, hi float64) float64 {
	if math.IsNaN(x) || x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
