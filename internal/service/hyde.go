package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/claryon/docqa/internal/llm"
)

const hydePromptTemplate = `Write a short passage, in the formal register of a policy or contract document, that would plausibly answer the question below. Write it as if it were an excerpt from the document itself: state concrete terms, periods, and amounts where the question calls for them. Do not mention that the passage is hypothetical and do not address the reader.

QUESTION: %s

PASSAGE:`

// HydeService produces a hypothetical answer passage for a question. The
// passage, not the raw question, is embedded for retrieval so the query
// vector lands closer to document-style chunks.
type HydeService struct {
	generator llm.Generator
}

// NewHydeService creates a new HydeService instance
func NewHydeService(generator llm.Generator) *HydeService {
	return &HydeService{generator: generator}
}

// Hypothesize returns a plausible answer passage for the question. On
// generation failure it falls back to the raw question text so retrieval
// degrades instead of failing.
func (s *HydeService) Hypothesize(ctx context.Context, question string) string {
	prompt := fmt.Sprintf(hydePromptTemplate, question)

	passage, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		log.Printf("hyde: generation failed, falling back to raw question: %v", err)
		return question
	}

	passage = strings.TrimSpace(passage)
	if passage == "" {
		return question
	}
	return passage
}
