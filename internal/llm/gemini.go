package llm

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// Gemini embedding task types, per the retrieval intent of the call.
const (
	taskTypeDocument = "RETRIEVAL_DOCUMENT"
	taskTypeQuery    = "RETRIEVAL_QUERY"
)

// GeminiConfig configures a GeminiClient.
type GeminiConfig struct {
	APIKey          string
	EmbeddingModel  string
	GenerativeModel string
	Dimension       int
	Limiter         *rate.Limiter
}

// GeminiClient implements Client on top of the Google Gemini API.
type GeminiClient struct {
	client     *genai.Client
	embedModel string
	genModel   string
	dimension  int
	limiter    *rate.Limiter
}

// NewGeminiClient creates a Gemini-backed LLM client.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", cfg.Dimension)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	return &GeminiClient{
		client:     client,
		embedModel: cfg.EmbeddingModel,
		genModel:   cfg.GenerativeModel,
		dimension:  cfg.Dimension,
		limiter:    cfg.Limiter,
	}, nil
}

// EmbedDocuments embeds a batch of chunks with document retrieval intent.
func (c *GeminiClient) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return c.embed(ctx, texts, taskTypeDocument)
}

// EmbedQuery embeds a single query with query retrieval intent.
func (c *GeminiClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.embed(ctx, []string{text}, taskTypeQuery)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *GeminiClient) embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyText
	}

	if err := waitLimiter(ctx, c.limiter); err != nil {
		return nil, err
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	outputDim := int32(c.dimension)
	result, err := c.client.Models.EmbedContent(ctx, c.embedModel, contents, &genai.EmbedContentConfig{
		TaskType:             taskType,
		OutputDimensionality: &outputDim,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}

	if result == nil {
		return nil, fmt.Errorf("expected %d embeddings, got none", len(texts))
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}

	vectors := make([][]float32, 0, len(texts))
	for _, emb := range result.Embeddings {
		if err := checkDimension(emb.Values, c.dimension); err != nil {
			return nil, err
		}
		vectors = append(vectors, emb.Values)
	}

	return vectors, nil
}

// Generate produces a completion for the prompt.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyText
	}

	if err := waitLimiter(ctx, c.limiter); err != nil {
		return "", err
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := c.client.Models.GenerateContent(ctx, c.genModel, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	var b strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					b.WriteString(part.Text)
				}
			}
			if b.Len() > 0 {
				break
			}
		}
	}

	if b.Len() == 0 {
		return "", fmt.Errorf("no response generated from model")
	}

	return b.String(), nil
}
