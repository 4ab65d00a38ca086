// Package scoring blends vector similarity and skill overlap into the match percentage,
// its confidence and a reproducible explanation.
package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/spigell/cv-matcher/internal/embedding"
	"github.com/spigell/cv-matcher/internal/similarity"
	"github.com/spigell/cv-matcher/internal/skills"
)

const (
	SimilarityWeight = 0.7
	OverlapWeight    = 0.3
)

// Composition holds every number that makes up a match score.
type Composition struct {
	// RawSimilarity is the cosine of the document vectors in [-1, 1].
	RawSimilarity float64
	// Similarity is RawSimilarity clipped to [0, 1].
	Similarity float64
	// Overlap is the jaccard overlap of the skill sets.
	Overlap    float64
	Percent    int
	Confidence float64
	// Missing lists job skills absent from the resume, sorted.
	Missing []string
	// Matched lists skills present in both, sorted.
	Matched       []string
	JobSkillCount int
}

// Compose scores a resume against a job.
func Compose(resumeVec, jobVec embedding.Vector, resumeSkills, jobSkills skills.Set) Composition {
	raw := similarity.Cosine(resumeVec, jobVec)
	overlap := similarity.Jaccard(resumeSkills, jobSkills)

	return Composition{
		RawSimilarity: raw,
		Similarity:    similarity.Clip(raw, 0, 1),
		Overlap:       overlap,
		Percent:       Percent(raw, overlap),
		Confidence:    Confidence(raw, overlap),
		Missing:       jobSkills.Difference(resumeSkills).Sorted(),
		Matched:       jobSkills.Intersect(resumeSkills).Sorted(),
		JobSkillCount: jobSkills.Len(),
	}
}

// Percent returns round(100 * (0.7*sim + 0.3*overlap)) with both inputs clipped to [0, 1].
// Negative similarity counts as 0.
func Percent(sim, overlap float64) int {
	s := similarity.Clip(sim, 0, 1)
	o := similarity.Clip(overlap, 0, 1)

	pct := int(math.Round(100 * (SimilarityWeight*s + OverlapWeight*o)))
	return min(max(pct, 0), 100)
}

// Confidence is 0.4*s + 0.3*o + 0.3*sqrt(s*o) with s and o clipped to [0, 1]. It grows with
// either signal and rewards agreement between them.
func Confidence(sim, overlap float64) float64 {
	s := similarity.Clip(sim, 0, 1)
	o := similarity.Clip(overlap, 0, 1)

	return similarity.Clip(0.4*s+0.3*o+0.3*math.Sqrt(s*o), 0, 1)
}

// Explain renders c as text. The output depends only on c and notes.
func Explain(c Composition, notes ...string) string {
	simPoints := 100 * SimilarityWeight * c.Similarity
	overlapPoints := 100 * OverlapWeight * c.Overlap

	var b strings.Builder
	fmt.Fprintf(&b, "Semantic similarity %.2f contributes %.1f points and skill overlap %.2f contributes %.1f points",
		c.Similarity, simPoints, c.Overlap, overlapPoints)

	switch {
	case simPoints == 0 && overlapPoints == 0:
		b.WriteString("; neither signal found common ground. ")
	case simPoints > overlapPoints:
		b.WriteString("; semantic similarity is the dominant signal. ")
	case overlapPoints > simPoints:
		b.WriteString("; skill overlap is the dominant signal. ")
	default:
		b.WriteString("; both signals are balanced. ")
	}

	fmt.Fprintf(&b, "Matched %d/%d required skills.", len(c.Matched), c.JobSkillCount)
	if len(c.Missing) > 0 {
		fmt.Fprintf(&b, " Missing skills: %s.", strings.Join(c.Missing, ", "))
	}
	fmt.Fprintf(&b, " Match score: %d%%.", c.Percent)

	for _, note := range notes {
		note = strings.TrimSpace(note)
		if note == "" {
			continue
		}
		fmt.Fprintf(&b, " Note: %s.", strings.TrimRight(note, "."))
	}

	return b.String()
}
