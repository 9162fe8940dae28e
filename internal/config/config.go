package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Provider identifiers for the embedding/generation backend.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Answer output formats.
const (
	AnswerFormatText = "text"
	AnswerFormatJSON = "json"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Static bearer token for the run endpoint
	BearerToken string `envconfig:"BEARER_TOKEN" required:"true"`

	LLMProvider  string `envconfig:"LLM_PROVIDER" default:"gemini"`
	GoogleAPIKey string `envconfig:"GOOGLE_API_KEY"`
	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`

	EmbeddingModel     string `envconfig:"EMBEDDING_MODEL"`
	GenerativeModel    string `envconfig:"GENERATIVE_MODEL"`
	EmbeddingDimension int    `envconfig:"EMBEDDING_DIMENSION" default:"768"`

	ChunkSize    int `envconfig:"CHUNK_SIZE" default:"1500"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"200"`

	TopK                int `envconfig:"TOP_K" default:"5"`
	QuestionConcurrency int `envconfig:"QUESTION_CONCURRENCY" default:"3"`

	AnswerFormat string `envconfig:"ANSWER_FORMAT" default:"text"`

	// Requests per second allowed against the LLM provider, shared by
	// embedding and generation calls.
	LLMRateLimit float64 `envconfig:"LLM_RATE_LIMIT" default:"2"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("DOCQA", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate checks cross-field constraints that envconfig tags cannot express.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderGemini:
		if c.GoogleAPIKey == "" {
			return fmt.Errorf("GOOGLE_API_KEY is required when LLM_PROVIDER is %q", ProviderGemini)
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER is %q", ProviderOpenAI)
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}

	if c.AnswerFormat != AnswerFormatText && c.AnswerFormat != AnswerFormatJSON {
		return fmt.Errorf("unknown ANSWER_FORMAT %q", c.AnswerFormat)
	}

	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSION must be positive, got %d", c.EmbeddingDimension)
	}

	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", c.ChunkOverlap, c.ChunkSize)
	}

	if c.QuestionConcurrency <= 0 {
		return fmt.Errorf("QUESTION_CONCURRENCY must be positive, got %d", c.QuestionConcurrency)
	}

	return nil
}

// EmbeddingModelName returns the configured embedding model, falling back to
// the provider default.
func (c *Config) EmbeddingModelName() string {
	if c.EmbeddingModel != "" {
		return c.EmbeddingModel
	}
	if c.LLMProvider == ProviderOpenAI {
		return "text-embedding-3-small"
	}
	return "gemini-embedding-001"
}

// GenerativeModelName returns the configured generative model, falling back to
// the provider default.
func (c *Config) GenerativeModelName() string {
	if c.GenerativeModel != "" {
		return c.GenerativeModel
	}
	if c.LLMProvider == ProviderOpenAI {
		return "gpt-4o-mini"
	}
	return "gemini-2.0-flash"
}
