package embedder

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	// Default models
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultChatModel   = "gpt-4o-mini"
	DefaultLocalModel  = "local-hash-384"

	// Endpoints
	JinaBaseURL = "https://api.jina.ai/v1"

	// Dimensions
	JinaDimension   = 1024
	OpenAIDimension = 1536
	LocalDimension  = 384
)

// OpenAIConfig configures an OpenAI-compatible embedding endpoint
type OpenAIConfig struct {
	Name       string // reported provider name, defaults to "openai"
	APIKey     string
	BaseURL    string // empty uses the OpenAI default
	Model      string
	ChatModel  string
	Dimensions int // requested output dimensions, 0 for model default
	Timeout    time.Duration
}

// OpenAIProvider implements Provider using the OpenAI embeddings API. Any
// service speaking the same protocol (Jina AI, local gateways) is reached by
// setting BaseURL.
type OpenAIProvider struct {
	client     *openai.Client
	name       string
	model      string
	chatModel  string
	dimensions int
}

// NewOpenAIProvider creates a new OpenAI-compatible embedder
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: api key not set", ErrNoProviderEnabled)
	}
	if cfg.Name == "" {
		cfg.Name = ProviderOpenAI
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultCallTimeout
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAIProvider{
		client:     openai.NewClientWithConfig(clientCfg),
		name:       cfg.Name,
		model:      cfg.Model,
		chatModel:  cfg.ChatModel,
		dimensions: cfg.Dimensions,
	}, nil
}

// NewJinaProvider creates an embedder for the Jina AI embeddings endpoint
func NewJinaProvider(apiKey, model string) (*OpenAIProvider, error) {
	if model == "" {
		model = DefaultJinaModel
	}
	return NewOpenAIProvider(OpenAIConfig{
		Name:    ProviderJina,
		APIKey:  apiKey,
		BaseURL: JinaBaseURL,
		Model:   model,
	})
}

func (o *OpenAIProvider) Name() string         { return o.name }
func (o *OpenAIProvider) DefaultModel() string { return o.model }

// EmbedBatch sends all texts in a single request
func (o *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string, model string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if model == "" {
		model = o.model
	}

	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(model),
		Dimensions: o.dimensions,
	})
	if err != nil {
		return nil, classifyOpenAIError(fmt.Errorf("%s embeddings: %w", o.name, err))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) || len(d.Embedding) == 0 {
			continue
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// Complete runs a single-turn chat completion
func (o *OpenAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", classifyOpenAIError(fmt.Errorf("%s completion: %w", o.name, err))
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", ErrProviderFailed)
	}
	return resp.Choices[0].Message.Content, nil
}

// classifyOpenAIError marks client errors other than rate limiting and
// request timeouts as permanent. Transport errors stay retryable.
func classifyOpenAIError(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	if status >= 400 && status < 500 &&
		status != http.StatusTooManyRequests && status != http.StatusRequestTimeout {
		return permanent(err)
	}
	return err
}

// LocalProvider produces deterministic feature-hashed vectors without any
// network access. Texts sharing words produce vectors with positive cosine
// similarity, which is enough for offline use and tests.
type LocalProvider struct {
	dimension int
	model     string
}

// NewLocalProvider creates a new local embedder. A non-positive dimension
// selects LocalDimension.
func NewLocalProvider(dimension int) *LocalProvider {
	if dimension <= 0 {
		dimension = LocalDimension
	}
	model := DefaultLocalModel
	if dimension != LocalDimension {
		model = fmt.Sprintf("local-hash-%d", dimension)
	}
	return &LocalProvider{dimension: dimension, model: model}
}

func (l *LocalProvider) Name() string         { return ProviderLocal }
func (l *LocalProvider) DefaultModel() string { return l.model }
func (l *LocalProvider) Dimension() int       { return l.dimension }

func (l *LocalProvider) EmbedBatch(ctx context.Context, texts []string, _ string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = l.vector(text)
	}
	return out, nil
}

func (l *LocalProvider) vector(text string) []float32 {
	v := make([]float32, l.dimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New64a()
		_, _ = h.Write([]byte(w))
		sum := h.Sum64()
		idx := int(sum % uint64(l.dimension))
		if sum&(1<<63) != 0 {
			v[idx]--
		} else {
			v[idx]++
		}
	}
	if len(words) == 0 {
		sum := sha256.Sum256([]byte(text))
		for i := 0; i < l.dimension; i++ {
			v[i] = float32(sum[i%len(sum)])/255.0 - 0.5
		}
	}
	return NormalizeVector(v)
}

// NormalizeVector normalizes a vector to unit length in place
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}

// RateLimitedProvider throttles calls to an underlying provider
type RateLimitedProvider struct {
	Provider
	limiter *rate.Limiter
}

// NewRateLimitedProvider allows rps calls per second with the given burst
func NewRateLimitedProvider(p Provider, rps float64, burst int) *RateLimitedProvider {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedProvider{
		Provider: p,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (r *RateLimitedProvider) EmbedBatch(ctx context.Context, texts []string, model string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	return r.Provider.EmbedBatch(ctx, texts, model)
}

// Complete forwards to the wrapped provider when it supports completions
func (r *RateLimitedProvider) Complete(ctx context.Context, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}
	return Complete(ctx, r.Provider, prompt)
}
