// Package llm wraps the hosted embedding and generation providers behind
// interfaces the pipeline consumes.
package llm

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"
)

var (
	// ErrEmptyText is returned when there is nothing to embed
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrNoAPIKey is returned when the provider API key is not set
	ErrNoAPIKey = errors.New("provider API key not set")
)

// Embedder converts text into fixed-dimension vectors. Document and query
// embeddings carry different retrieval intents and may use different
// underlying model configurations.
type Embedder interface {
	// EmbedDocuments embeds a batch of document chunks; output[i]
	// corresponds to input[i].
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a single retrieval query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Generator produces a completion for a single prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Client bundles everything the answering pipeline needs from a provider.
type Client interface {
	Embedder
	Generator
}

func waitLimiter(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

func checkDimension(vec []float32, want int) error {
	if len(vec) != want {
		return fmt.Errorf("embedding has wrong dimensions: expected %d, got %d", want, len(vec))
	}
	return nil
}
