package service

import (
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// ChunkConfig controls document chunking.
type ChunkConfig struct {
	MaxChars int
	Overlap  int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChars: 1500,
		Overlap:  200,
	}
}

// Chunker splits document text into bounded, overlapping chunks using a
// recursive separator strategy (paragraphs, then lines, then sentences,
// then words, then characters). Deterministic for identical input and
// configuration.
type Chunker struct {
	splitter textsplitter.TextSplitter
}

// NewChunker creates a Chunker from the given configuration.
func NewChunker(cfg ChunkConfig) *Chunker {
	if cfg.MaxChars <= 0 {
		cfg = DefaultChunkConfig()
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(cfg.MaxChars),
		textsplitter.WithChunkOverlap(cfg.Overlap),
		textsplitter.WithSeparators([]string{"\n\n", "\n", ". ", "? ", "! ", " ", ""}),
	)

	return &Chunker{splitter: splitter}
}

// Chunk splits text into chunks, filtering out empty and whitespace-only
// pieces. Empty input yields an empty result.
func (c *Chunker) Chunk(text string) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}

	pieces, err := c.splitter.SplitText(clean)
	if err != nil {
		return nil
	}

	chunks := make([]string, 0, len(pieces))
	for _, piece := range pieces {
		if strings.TrimSpace(piece) == "" {
			continue
		}
		chunks = append(chunks, piece)
	}

	return chunks
}
