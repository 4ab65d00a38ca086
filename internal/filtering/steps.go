package filtering

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/spigell/cv-matcher/internal/ranking"
	"github.com/spigell/cv-matcher/internal/utils"
	"go.uber.org/zap"
)

const (
	BlankName     = "blank"
	MinLengthName = "min_length"
	DedupeName    = "dedupe"
	MaxSpansName  = "max_spans"

	logPreviewLength = 40
)

// toggle carries the enable state shared by all steps.
type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

func keep(spans []ranking.Span, fn func(ranking.Span) bool) ([]ranking.Span, []string) {
	kept := make([]ranking.Span, 0, len(spans))
	var dropped []string
	for _, s := range spans {
		if fn(s) {
			kept = append(kept, s)
			continue
		}
		dropped = append(dropped, utils.TruncateForLog(s.Text, logPreviewLength))
	}
	return kept, dropped
}

type blankFilter struct{}

// NewBlank creates the filter that removes whitespace-only spans. It cannot be disabled.
func NewBlank() Filter {
	return &blankFilter{}
}

func (f *blankFilter) Name() string { return BlankName }

func (f *blankFilter) Disable(string) {}

func (f *blankFilter) IsEnabled() bool { return true }

func (f *blankFilter) Validate(*Config) error { return nil }

func (f *blankFilter) Apply(_ context.Context, _ Deps, spans []ranking.Span) ([]ranking.Span, Step, error) {
	kept, _ := keep(spans, func(s ranking.Span) bool {
		return strings.TrimSpace(s.Text) != ""
	})
	return kept, Step{Initial: len(spans), Dropped: len(spans) - len(kept), Left: len(kept)}, nil
}

func (f *blankFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: true}
}

type minLengthFilter struct {
	toggle
	min int
}

// NewMinLength creates the filter that removes spans shorter than spans.min-length runes.
func NewMinLength() Filter {
	return &minLengthFilter{}
}

func (f *minLengthFilter) Name() string { return MinLengthName }

func (f *minLengthFilter) Validate(cfg *Config) error {
	f.min = 0
	if cfg != nil {
		f.min = cfg.MinLength
	}
	if f.min < 0 {
		return fmt.Errorf("minimum span length must not be negative, got %d", f.min)
	}
	return nil
}

func (f *minLengthFilter) Apply(_ context.Context, deps Deps, spans []ranking.Span) ([]ranking.Span, Step, error) {
	if f.min == 0 {
		return spans, Step{Initial: len(spans), Left: len(spans)}, nil
	}

	kept, dropped := keep(spans, func(s ranking.Span) bool {
		return utf8.RuneCountInString(strings.TrimSpace(s.Text)) >= f.min
	})
	if deps.Logger != nil && len(dropped) > 0 {
		deps.Logger.Debug("dropping short spans",
			zap.Int("min_length", f.min),
			zap.Strings("dropped_spans", dropped),
		)
	}

	return kept, Step{Initial: len(spans), Dropped: len(dropped), Left: len(kept)}, nil
}

func (f *minLengthFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"min_length": strconv.Itoa(f.min)},
	}
}

type dedupeFilter struct {
	toggle
}

// NewDedupe creates the filter that keeps only the first of case-insensitively equal spans.
func NewDedupe() Filter {
	return &dedupeFilter{}
}

func (f *dedupeFilter) Name() string { return DedupeName }

func (f *dedupeFilter) Validate(*Config) error { return nil }

func (f *dedupeFilter) Apply(_ context.Context, deps Deps, spans []ranking.Span) ([]ranking.Span, Step, error) {
	seen := make(map[string]struct{}, len(spans))
	kept, dropped := keep(spans, func(s ranking.Span) bool {
		key := strings.Join(strings.Fields(strings.ToLower(s.Text)), " ")
		if _, ok := seen[key]; ok {
			return false
		}
		seen[key] = struct{}{}
		return true
	})
	if deps.Logger != nil && len(dropped) > 0 {
		deps.Logger.Debug("dropping duplicate spans", zap.Strings("dropped_spans", dropped))
	}

	return kept, Step{Initial: len(spans), Dropped: len(dropped), Left: len(kept)}, nil
}

func (f *dedupeFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}

type maxSpansFilter struct {
	toggle
	max int
}

// NewMaxSpans creates the filter that caps the number of spans, keeping the earliest ones.
func NewMaxSpans() Filter {
	return &maxSpansFilter{}
}

func (f *maxSpansFilter) Name() string { return MaxSpansName }

func (f *maxSpansFilter) Validate(cfg *Config) error {
	f.max = 0
	if cfg != nil {
		f.max = cfg.MaxSpans
	}
	if f.max < 0 {
		return fmt.Errorf("maximum span count must not be negative, got %d", f.max)
	}
	return nil
}

func (f *maxSpansFilter) Apply(_ context.Context, _ Deps, spans []ranking.Span) ([]ranking.Span, Step, error) {
	if f.max == 0 || len(spans) <= f.max {
		return spans, Step{Initial: len(spans), Left: len(spans)}, nil
	}

	kept := spans[:f.max:f.max]
	return kept, Step{Initial: len(spans), Dropped: len(spans) - len(kept), Left: len(kept)}, nil
}

func (f *maxSpansFilter) Status() Status {
	details := map[string]string{"max_spans": "unlimited"}
	if f.max > 0 {
		details["max_spans"] = strconv.Itoa(f.max)
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
