package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// openAIBackend is the slice of the OpenAI SDK the client needs; tests
// substitute a fake.
type openAIBackend interface {
	Embed(ctx context.Context, texts []string, dimensions int) ([][]float32, error)
	Complete(ctx context.Context, prompt string) (string, error)
}

type sdkBackend struct {
	client     *openai.Client
	embedModel openai.EmbeddingModel
	genModel   string
}

func (b *sdkBackend) Embed(ctx context.Context, texts []string, dimensions int) ([][]float32, error) {
	resp, err := b.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      b.embedModel,
		Dimensions: dimensions,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	// The API documents Data as input-ordered; Index is authoritative.
	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}

	return vectors, nil
}

func (b *sdkBackend) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.genModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}

	return resp.Choices[0].Message.Content, nil
}

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	APIKey          string
	EmbeddingModel  string
	GenerativeModel string
	Dimension       int
	Limiter         *rate.Limiter
}

// OpenAIClient implements Client on top of the OpenAI API.
type OpenAIClient struct {
	backend   openAIBackend
	dimension int
	limiter   *rate.Limiter
}

// NewOpenAIClient creates an OpenAI-backed LLM client.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", cfg.Dimension)
	}

	return &OpenAIClient{
		backend: &sdkBackend{
			client:     openai.NewClient(cfg.APIKey),
			embedModel: openai.EmbeddingModel(cfg.EmbeddingModel),
			genModel:   cfg.GenerativeModel,
		},
		dimension: cfg.Dimension,
		limiter:   cfg.Limiter,
	}, nil
}

// EmbedDocuments embeds a batch of chunks.
func (c *OpenAIClient) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyText
	}

	if err := waitLimiter(ctx, c.limiter); err != nil {
		return nil, err
	}

	vectors, err := c.backend.Embed(ctx, texts, c.dimension)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}

	for _, vec := range vectors {
		if err := checkDimension(vec, c.dimension); err != nil {
			return nil, err
		}
	}

	return vectors, nil
}

// EmbedQuery embeds a single query.
func (c *OpenAIClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Generate produces a completion for the prompt.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyText
	}

	if err := waitLimiter(ctx, c.limiter); err != nil {
		return "", err
	}

	completion, err := c.backend.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to create completion: %w", err)
	}

	return completion, nil
}
