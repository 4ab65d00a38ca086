// Package ranking splits resume text into candidate spans and orders them by relevance to
// a query vector.
package ranking

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spigell/cv-matcher/internal/embedding"
	"github.com/spigell/cv-matcher/internal/similarity"
)

// ErrInputMismatch is returned when spans and their vectors do not line up.
var ErrInputMismatch = errors.New("spans and vectors length mismatch")

// Span is one candidate line of the resume. Index is the zero-based line number in the
// source text.
type Span struct {
	Index int    `json:"index" yaml:"index"`
	Text  string `json:"text" yaml:"text"`
}

// Scored is a span with its similarity to the query.
type Scored struct {
	Span  `yaml:",inline"`
	Score float64 `json:"score" yaml:"score"`
}

// SplitLines returns one span per non-blank line of text, trimmed.
func SplitLines(text string) []Span {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	spans := make([]Span, 0)
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		spans = append(spans, Span{Index: i, Text: line})
	}
	return spans
}

// Texts returns the text of every span in order.
func Texts(spans []Span) []string {
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = s.Text
	}
	return out
}

// TopK scores every span against query and returns the best k, highest score first. Equal
// scores keep ascending span index. k <= 0 yields an empty result, k larger than the
// number of spans yields all of them.
func TopK(query embedding.Vector, spans []Span, vectors []embedding.Vector, k int) ([]Scored, error) {
	if len(spans) != len(vectors) {
		return nil, fmt.Errorf("%w: %d spans, %d vectors", ErrInputMismatch, len(spans), len(vectors))
	}

	if k <= 0 || len(spans) == 0 {
		return []Scored{}, nil
	}

	scored := make([]Scored, len(spans))
	for i, span := range spans {
		scored[i] = Scored{Span: span, Score: similarity.Cosine(query, vectors[i])}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Index < scored[j].Index
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k:k], nil
}
