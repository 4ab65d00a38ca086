package gemini

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type embedCallRecord struct {
	model    string
	config   *genai.EmbedContentConfig
	contents []string
}

type fakeEmbedResponse struct {
	resp *genai.EmbedContentResponse
	err  error
}

type fakeModels struct {
	mu    sync.Mutex
	calls []embedCallRecord
	queue []fakeEmbedResponse
}

func (f *fakeModels) enqueue(resp *genai.EmbedContentResponse, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, fakeEmbedResponse{resp: resp, err: err})
}

func (f *fakeModels) EmbedContent(_ context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	texts := make([]string, 0, len(contents))
	for _, c := range contents {
		texts = append(texts, c.Parts[0].Text)
	}
	f.calls = append(f.calls, embedCallRecord{model: model, config: config, contents: texts})

	if len(f.queue) == 0 {
		return nil, errors.New("unexpected call")
	}
	res := f.queue[0]
	f.queue = f.queue[1:]
	return res.resp, res.err
}

func embeddings(dims int, values ...float32) *genai.EmbedContentResponse {
	resp := &genai.EmbedContentResponse{}
	for _, v := range values {
		vec := make([]float32, dims)
		vec[0] = v
		resp.Embeddings = append(resp.Embeddings, &genai.ContentEmbedding{Values: vec})
	}
	return resp
}

func noWait(t *testing.T) {
	t.Helper()
	original := wait
	wait = func(context.Context, time.Duration) error { return nil }
	t.Cleanup(func() { wait = original })
}

func TestEmbedderSkipsBlankTexts(t *testing.T) {
	models := &fakeModels{}
	models.enqueue(embeddings(4, 1, 2), nil)

	e := newEmbedder(models, Config{Model: "embed-test", Dimensions: 4}, zap.NewNop())

	vectors, err := e.Embed(context.Background(), []string{"go developer", "  ", "sql"}, false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(vectors) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vectors))
	}
	if vectors[0][0] != 1 || vectors[2][0] != 2 {
		t.Fatalf("vectors are out of order: %v", vectors)
	}
	for _, v := range vectors[1] {
		if v != 0 {
			t.Fatalf("expected zero vector for blank text, got %v", vectors[1])
		}
	}

	if len(models.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(models.calls))
	}
	call := models.calls[0]
	if call.model != "embed-test" {
		t.Fatalf("unexpected model: %q", call.model)
	}
	if len(call.contents) != 2 || call.contents[0] != "go developer" || call.contents[1] != "sql" {
		t.Fatalf("unexpected contents: %v", call.contents)
	}
	if call.config.TaskType != taskDocument {
		t.Fatalf("expected document task type, got %q", call.config.TaskType)
	}
	if call.config.OutputDimensionality == nil || *call.config.OutputDimensionality != 4 {
		t.Fatalf("expected output dimensionality 4")
	}
}

func TestEmbedderQueryTaskType(t *testing.T) {
	models := &fakeModels{}
	models.enqueue(embeddings(defaultDimensions, 1), nil)

	e := newEmbedder(models, Config{}, zap.NewNop())

	if _, err := e.Embed(context.Background(), []string{"sql database work"}, true); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	call := models.calls[0]
	if call.model != defaultModel {
		t.Fatalf("expected default model, got %q", call.model)
	}
	if call.config.TaskType != taskQuery {
		t.Fatalf("expected query task type, got %q", call.config.TaskType)
	}
	if call.config.OutputDimensionality != nil {
		t.Fatalf("default dimensions must not be sent explicitly")
	}
}

func TestEmbedderOutputDimensionality(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		expect int32
	}{
		{name: "default model", cfg: Config{}, expect: 0},
		{name: "default model with explicit size", cfg: Config{Dimensions: defaultDimensions}, expect: defaultDimensions},
		{name: "other model keeps default size", cfg: Config{Model: "gemini-embedding-001"}, expect: defaultDimensions},
		{name: "other model with explicit size", cfg: Config{Model: "gemini-embedding-001", Dimensions: 1536}, expect: 1536},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dims := int(tt.expect)
			if dims == 0 {
				dims = defaultDimensions
			}
			models := &fakeModels{}
			models.enqueue(embeddings(dims, 1), nil)

			e := newEmbedder(models, tt.cfg, zap.NewNop())
			if _, err := e.Embed(context.Background(), []string{"go"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			got := models.calls[0].config.OutputDimensionality
			if tt.expect == 0 {
				if got != nil {
					t.Fatalf("expected no output dimensionality, got %d", *got)
				}
				return
			}
			if got == nil || *got != tt.expect {
				t.Fatalf("expected output dimensionality %d, got %v", tt.expect, got)
			}
		})
	}
}

func TestEmbedderRetriesOnTemporaryError(t *testing.T) {
	noWait(t)

	models := &fakeModels{}
	models.enqueue(nil, genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"})
	models.enqueue(embeddings(4, 3), nil)

	e := newEmbedder(models, Config{Dimensions: 4, MaxRetries: 2}, zap.NewNop())

	vectors, err := e.Embed(context.Background(), []string{"retry"}, false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if vectors[0][0] != 3 {
		t.Fatalf("unexpected vector: %v", vectors[0])
	}
	if len(models.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(models.calls))
	}
}

func TestEmbedderStopsAfterRetriesExhausted(t *testing.T) {
	noWait(t)

	models := &fakeModels{}
	tempErr := genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"}
	models.enqueue(nil, tempErr)
	models.enqueue(nil, tempErr)

	e := newEmbedder(models, Config{Dimensions: 4, MaxRetries: 2}, zap.NewNop())

	if _, err := e.Embed(context.Background(), []string{"msg"}, false); err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if len(models.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(models.calls))
	}
}

func TestEmbedderDoesNotRetryOnLongQuotaDelay(t *testing.T) {
	models := &fakeModels{}
	models.enqueue(nil, genai.APIError{
		Code:    http.StatusTooManyRequests,
		Status:  "RESOURCE_EXHAUSTED",
		Message: "quota exhausted, retry after 60 seconds",
	})

	e := newEmbedder(models, Config{Dimensions: 4, MaxRetries: 3}, zap.NewNop())

	if _, err := e.Embed(context.Background(), []string{"msg"}, false); err == nil {
		t.Fatal("expected error when quota delay too long")
	}
	if len(models.calls) != 1 {
		t.Fatalf("expected single call, got %d", len(models.calls))
	}
}

func TestEmbedderDoesNotRetryOnAuthError(t *testing.T) {
	models := &fakeModels{}
	models.enqueue(nil, genai.APIError{Code: http.StatusUnauthorized, Status: "UNAUTHENTICATED"})

	e := newEmbedder(models, Config{Dimensions: 4, MaxRetries: 3}, zap.NewNop())

	if _, err := e.Embed(context.Background(), []string{"msg"}, false); err == nil {
		t.Fatal("expected auth error")
	}
	if len(models.calls) != 1 {
		t.Fatalf("expected single call, got %d", len(models.calls))
	}
}

func TestEmbedderRejectsWrongDimensions(t *testing.T) {
	models := &fakeModels{}
	models.enqueue(embeddings(3, 1), nil)

	e := newEmbedder(models, Config{Dimensions: 4}, zap.NewNop())

	if _, err := e.Embed(context.Background(), []string{"msg"}, false); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestNewEmbedderRequiresAPIKey(t *testing.T) {
	if _, err := NewEmbedder(context.Background(), "  ", Config{}, zap.NewNop()); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestParseRetryDelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		message string
		expect  time.Duration
		ok      bool
	}{
		{message: "retry after 60 seconds", expect: 60 * time.Second, ok: true},
		{message: "Please retry in 1.5s", expect: 1500 * time.Millisecond, ok: true},
		{message: "quota exhausted", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			t.Parallel()
			got, ok := parseRetryDelay(tt.message)
			if ok != tt.ok || got != tt.expect {
				t.Fatalf("expected (%v, %v), got (%v, %v)", tt.expect, tt.ok, got, ok)
			}
		})
	}
}
