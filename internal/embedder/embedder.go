package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Common errors
var (
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
	ErrNoCompletion      = errors.New("provider does not support completions")
)

// Provider produces embedding vectors for batches of text.
type Provider interface {
	// EmbedBatch returns one vector per input, in input order. An entry is
	// nil when the provider returned no embedding for that input; the call
	// itself only fails when the whole request failed.
	EmbedBatch(ctx context.Context, texts []string, model string) ([][]float32, error)

	// Name returns the provider name used in logs and metrics
	Name() string

	// DefaultModel is used when a caller passes an empty model
	DefaultModel() string
}

// Completer is implemented by providers that can also generate text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Embed generates a single embedding through p
func Embed(ctx context.Context, p Provider, text, model string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, permanent(fmt.Errorf("embed: empty text"))
	}
	vectors, err := p.EmbedBatch(ctx, []string{text}, model)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || vectors[0] == nil {
		return nil, fmt.Errorf("%w: no embedding returned", ErrProviderFailed)
	}
	return vectors[0], nil
}

// Complete asks p for a completion when it supports one
func Complete(ctx context.Context, p Provider, prompt string) (string, error) {
	c, ok := p.(Completer)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoCompletion, p.Name())
	}
	return c.Complete(ctx, prompt)
}

// ModelOrDefault resolves an empty model name against the provider default
func ModelOrDefault(p Provider, model string) string {
	if model != "" {
		return model
	}
	return p.DefaultModel()
}

// ComputeHash computes SHA-256 hash of text for caching
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
