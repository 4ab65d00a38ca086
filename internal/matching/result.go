package matching

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spigell/cv-matcher/internal/ranking"
	"github.com/spigell/cv-matcher/internal/scoring"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Result is the outcome of one match.
type Result struct {
	RequestID string `json:"request_id" yaml:"request_id"`
	// Score is the match percentage in [0, 100].
	Score      int     `json:"score" yaml:"score"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
	// Similarity is RawSimilarity clipped to [0, 1].
	Similarity    float64          `json:"similarity" yaml:"similarity"`
	RawSimilarity float64          `json:"raw_similarity" yaml:"raw_similarity"`
	Overlap       float64          `json:"overlap" yaml:"overlap"`
	MissingSkills []string         `json:"missing_skills" yaml:"missing_skills"`
	MatchedSkills []string         `json:"matched_skills" yaml:"matched_skills"`
	Explanation   string           `json:"explanation" yaml:"explanation"`
	TopSpans      []ranking.Scored `json:"top_spans" yaml:"top_spans"`
	// Provider names the embedding strategy behind every vector of this result.
	Provider       string   `json:"provider" yaml:"provider"`
	Degraded       bool     `json:"degraded" yaml:"degraded"`
	DegradedReason string   `json:"degraded_reason,omitempty" yaml:"degraded_reason,omitempty"`
	Notes          []string `json:"notes" yaml:"notes"`
	// Insights and Suggestions describe the resume text. They do not affect Score.
	Insights    scoring.Insights `json:"insights" yaml:"insights"`
	Suggestions []string         `json:"suggestions" yaml:"suggestions"`
}

// Dump writes the result to w as JSON or YAML.
func (r *Result) Dump(w io.Writer, format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML, "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported dump format: %s", format)
	}
}

// DumpToTmpFile writes the result to a new temporary file and returns its path.
func (r *Result) DumpToTmpFile(format string) (string, error) {
	ext := strings.ToLower(strings.TrimSpace(format))
	switch ext {
	case "":
		ext = FormatJSON
	case "yml":
		ext = FormatYAML
	}
	if ext != FormatJSON && ext != FormatYAML {
		return "", fmt.Errorf("unsupported dump format: %s", format)
	}

	file, err := os.CreateTemp("", "match_*."+ext)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if err := r.Dump(file, ext); err != nil {
		return "", err
	}
	return file.Name(), nil
}
