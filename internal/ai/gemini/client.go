package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/cv-matcher/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const (
	// Name is the provider name reported in results and logs.
	Name = "gemini"

	defaultModel      = "text-embedding-004"
	defaultDimensions = 768
	defaultMaxRetries = 2

	// maxBatchSize is the number of contents accepted by one EmbedContent call.
	maxBatchSize  = 100
	baseBackoff   = 500 * time.Millisecond
	maxRetryDelay = 10 * time.Second

	taskQuery    = "RETRIEVAL_QUERY"
	taskDocument = "RETRIEVAL_DOCUMENT"
)

var (
	wait = utils.WaitFor

	retryDelayPattern = regexp.MustCompile(`(?i)retry (?:after|in) ([0-9]+(?:\.[0-9]+)?) ?(s|sec|secs|seconds)?`)
)

type embedContentAPI interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Config describes the Gemini embedding model to call.
type Config struct {
	Model             string
	Dimensions        int
	MaxRetries        int
	RequestsPerMinute int
}

// Embedder wraps the Google GenAI client to produce text embeddings.
type Embedder struct {
	models     embedContentAPI
	model      string
	dimensions int
	// sendDimensions asks the API to truncate to dimensions instead of relying on the
	// model's native size.
	sendDimensions bool
	maxRetries     int
	limiter        *rate.Limiter
	logger         *zap.Logger
}

// NewEmbedder creates a new Embedder configured for the Gemini API backend.
func NewEmbedder(ctx context.Context, apiKey string, cfg Config, logger *zap.Logger) (*Embedder, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newEmbedder(client.Models, cfg, logger), nil
}

func newEmbedder(models embedContentAPI, cfg Config, logger *zap.Logger) *Embedder {
	if logger == nil {
		logger = zap.NewNop()
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	dims := cfg.Dimensions
	if dims <= 0 {
		dims = defaultDimensions
	}

	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	return &Embedder{
		models:     models,
		model:      model,
		dimensions: dims,
		// Only the default model is known to produce defaultDimensions natively.
		sendDimensions: cfg.Dimensions > 0 || model != defaultModel,
		maxRetries:     retries,
		limiter:        limiter,
		logger:         logger,
	}
}

func (e *Embedder) Name() string {
	return Name
}

func (e *Embedder) Dimensions() int {
	return e.dimensions
}

func (e *Embedder) Model() string {
	if e == nil {
		return ""
	}
	return e.model
}

// Embed returns one vector per text. Blank texts get a zero vector without a network call.
func (e *Embedder) Embed(ctx context.Context, texts []string, isQuery bool) ([][]float32, error) {
	if e == nil || e.models == nil {
		return nil, errors.New("gemini embedder is not initialized")
	}

	vectors := make([][]float32, len(texts))
	pending := make([]int, 0, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			vectors[i] = make([]float32, e.dimensions)
			continue
		}
		pending = append(pending, i)
	}

	for start := 0; start < len(pending); start += maxBatchSize {
		end := min(start+maxBatchSize, len(pending))
		chunk := pending[start:end]

		contents := make([]*genai.Content, 0, len(chunk))
		for _, idx := range chunk {
			contents = append(contents, genai.NewContentFromText(strings.TrimSpace(texts[idx]), genai.RoleUser))
		}

		embeddings, err := e.embedWithRetry(ctx, contents, isQuery)
		if err != nil {
			return nil, err
		}
		if len(embeddings) != len(chunk) {
			return nil, fmt.Errorf("gemini api returned %d embeddings for %d texts", len(embeddings), len(chunk))
		}

		for j, idx := range chunk {
			if embeddings[j] == nil || len(embeddings[j].Values) != e.dimensions {
				got := 0
				if embeddings[j] != nil {
					got = len(embeddings[j].Values)
				}
				return nil, fmt.Errorf("unexpected embedding dimensions: got %d, want %d", got, e.dimensions)
			}
			vectors[idx] = embeddings[j].Values
		}
	}

	return vectors, nil
}

func (e *Embedder) embedWithRetry(ctx context.Context, contents []*genai.Content, isQuery bool) ([]*genai.ContentEmbedding, error) {
	cfg := &genai.EmbedContentConfig{TaskType: taskDocument}
	if isQuery {
		cfg.TaskType = taskQuery
	}
	if e.sendDimensions {
		dims := int32(e.dimensions)
		cfg.OutputDimensionality = &dims
	}

	var lastErr error
	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("waiting for rate limiter: %w", err)
			}
		}

		resp, err := e.models.EmbedContent(ctx, e.model, contents, cfg)
		if err == nil {
			if resp == nil {
				return nil, errors.New("gemini api returned empty response")
			}
			return resp.Embeddings, nil
		}
		lastErr = err

		delay, retry := retryDelay(err, attempt)
		if !retry || attempt == e.maxRetries {
			break
		}

		e.logger.Debug("retrying gemini embed request",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if err := wait(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("embed content: %w", lastErr)
}

// retryDelay decides whether err is temporary and how long to wait before the next attempt.
func retryDelay(err error, attempt int) (time.Duration, bool) {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var apiErrPtr *genai.APIError
		if !errors.As(err, &apiErrPtr) || apiErrPtr == nil {
			return 0, false
		}
		apiErr = *apiErrPtr
	}

	backoff := baseBackoff * time.Duration(1<<(attempt-1))

	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		if d, ok := parseRetryDelay(apiErr.Message); ok {
			if d > maxRetryDelay {
				return 0, false
			}
			return d, true
		}
		return backoff, true
	case apiErr.Code >= http.StatusInternalServerError:
		return backoff, true
	default:
		return 0, false
	}
}

func parseRetryDelay(message string) (time.Duration, bool) {
	m := retryDelayPattern.FindStringSubmatch(message)
	if m == nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}
