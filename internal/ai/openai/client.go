// Package openai talks to any OpenAI-compatible /v1/embeddings endpoint.
package openai

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// Name is the provider name reported in results and logs.
	Name = "openai"

	DefaultBaseURL = "https://api.openai.com"
	defaultModel   = "text-embedding-3-small"
	// defaultDimensions matches text-embedding-3-small.
	defaultDimensions = 1536

	embeddingsPath  = "/v1/embeddings"
	contentType     = "application/json"
	contentEncoding = "gzip"
	userAgent       = "spigell/cv-matcher"
)

// Config describes the endpoint and model to call.
type Config struct {
	BaseURL           string
	Model             string
	Dimensions        int
	RequestsPerMinute int
}

// Client calls an OpenAI-compatible embeddings endpoint.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string

	token      string
	endpoint   string
	model      string
	dimensions int
	limiter    *rate.Limiter
	logger     *zap.Logger
}

type embeddingRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingItem struct {
	Embedding []float32 `mapstructure:"embedding"`
	Index     int       `mapstructure:"index"`
}

// New creates a client. The token may be empty for local endpoints that do not check auth.
func New(token string, cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	endpoint := base
	if !strings.HasSuffix(endpoint, embeddingsPath) {
		endpoint = strings.TrimRight(endpoint, "/") + embeddingsPath
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	dims := cfg.Dimensions
	if dims <= 0 {
		dims = defaultDimensions
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	return &Client{
		HTTPClient: &http.Client{},
		UserAgent:  userAgent,
		token:      strings.TrimSpace(token),
		endpoint:   endpoint,
		model:      model,
		dimensions: dims,
		limiter:    limiter,
		logger:     logger,
	}
}

func (c *Client) Name() string {
	return Name
}

func (c *Client) Dimensions() int {
	return c.dimensions
}

func (c *Client) Model() string {
	return c.model
}

// Embed sends the non-blank texts in one request and returns vectors in input order.
// isQuery is ignored: the endpoint has no notion of query and document embeddings.
func (c *Client) Embed(ctx context.Context, texts []string, _ bool) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	input := make([]string, 0, len(texts))
	positions := make([]int, 0, len(texts))
	for i, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			vectors[i] = make([]float32, c.dimensions)
			continue
		}
		input = append(input, text)
		positions = append(positions, i)
	}

	if len(input) == 0 {
		return vectors, nil
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	items, err := c.post(ctx, embeddingRequest{Input: input, Model: c.model, Dimensions: c.requestDimensions()})
	if err != nil {
		return nil, err
	}

	if len(items) != len(input) {
		return nil, fmt.Errorf("embedding response contained %d items for %d texts", len(items), len(input))
	}

	for _, item := range items {
		if item.Index < 0 || item.Index >= len(input) {
			return nil, fmt.Errorf("embedding response index %d out of range [0, %d)", item.Index, len(input))
		}
		if len(item.Embedding) != c.dimensions {
			return nil, fmt.Errorf("unexpected embedding dimensions: got %d, want %d", len(item.Embedding), c.dimensions)
		}
		vectors[positions[item.Index]] = item.Embedding
	}

	for _, pos := range positions {
		if vectors[pos] == nil {
			return nil, fmt.Errorf("embedding response is missing text %d", pos)
		}
	}

	return vectors, nil
}

func (c *Client) requestDimensions() int {
	if c.dimensions == defaultDimensions {
		return 0
	}
	return c.dimensions
}

func (c *Client) post(ctx context.Context, payload embeddingRequest) ([]embeddingItem, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating embedding request: %w", err)
	}
	req = c.setHeaders(req)

	c.logger.Debug("make request", zap.String("url", req.URL.String()), zap.Int("texts", len(payload.Input)))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("reading embedding response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing embedding response: %w", err)
	}

	rawItems, ok := raw["data"]
	if !ok || rawItems == nil {
		return nil, errors.New("embedding response contained no data")
	}

	var items []embeddingItem
	if err := mapstructure.Decode(rawItems, &items); err != nil {
		return nil, fmt.Errorf("decoding embedding data: %w", err)
	}

	return items, nil
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept-Encoding", contentEncoding)

	return req
}

func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	}
	return io.ReadAll(reader)
}
