package ranking

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/spigell/cv-matcher/internal/embedding"
)

func TestSplitLines(t *testing.T) {
	t.Parallel()

	got := SplitLines("  led team of 5 \r\n\n\twrote SQL queries\n   \nunrelated hobby line")
	expect := []Span{
		{Index: 0, Text: "led team of 5"},
		{Index: 2, Text: "wrote SQL queries"},
		{Index: 4, Text: "unrelated hobby line"},
	}

	if !reflect.DeepEqual(got, expect) {
		t.Fatalf("expected %+v, got %+v", expect, got)
	}

	if empty := SplitLines(" \n\n "); empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", empty)
	}
}

func TestTopKRanksSQLLineFirst(t *testing.T) {
	t.Parallel()

	local, err := embedding.NewLocal(embedding.DefaultDimensions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	spans := SplitLines("led team of 5\nwrote SQL queries\nunrelated hobby line")
	vectors, err := local.Embed(ctx, Texts(spans), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	queries, err := local.Embed(ctx, []string{"SQL database work"}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	query := queries[0]

	top, err := TopK(query, spans, vectors, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(top) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(top))
	}
	if top[0].Text != "wrote SQL queries" {
		t.Fatalf("expected SQL line first, got %+v", top)
	}
	if top[0].Score < top[1].Score {
		t.Fatalf("scores must be descending: %+v", top)
	}

	again, err := TopK(query, spans, vectors, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(top, again) {
		t.Fatalf("ranking must be idempotent")
	}
}

func TestTopKTiesKeepOriginalOrder(t *testing.T) {
	t.Parallel()

	spans := []Span{{Index: 3, Text: "c"}, {Index: 1, Text: "a"}, {Index: 2, Text: "b"}, {Index: 0, Text: "best"}}
	vectors := []embedding.Vector{{1, 0}, {1, 0}, {1, 0}, {1, 1}}
	query := embedding.Vector{1, 1}

	top, err := TopK(query, spans, vectors, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var order []int
	for _, s := range top {
		order = append(order, s.Index)
	}
	if !reflect.DeepEqual(order, []int{0, 1, 2, 3}) {
		t.Fatalf("expected best span then ties by index, got %v", order)
	}
}

func TestTopKBounds(t *testing.T) {
	t.Parallel()

	spans := []Span{{Index: 0, Text: "a"}, {Index: 1, Text: "b"}}
	vectors := []embedding.Vector{{1, 0}, {0, 1}}
	query := embedding.Vector{1, 0}

	tests := []struct {
		name   string
		k      int
		expect int
	}{
		{name: "zero", k: 0, expect: 0},
		{name: "negative", k: -1, expect: 0},
		{name: "within", k: 1, expect: 1},
		{name: "beyond", k: 5, expect: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			top, err := TopK(query, spans, vectors, tt.k)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if top == nil || len(top) != tt.expect {
				t.Fatalf("expected %d spans, got %#v", tt.expect, top)
			}
		})
	}
}

func TestTopKMismatch(t *testing.T) {
	t.Parallel()

	spans := []Span{{Index: 0, Text: "a"}, {Index: 1, Text: "b"}}
	vectors := []embedding.Vector{{1, 0}}

	if _, err := TopK(embedding.Vector{1, 0}, spans, vectors, 1); !errors.Is(err, ErrInputMismatch) {
		t.Fatalf("expected ErrInputMismatch, got %v", err)
	}
}
