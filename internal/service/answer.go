package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/claryon/docqa/internal/config"
	"github.com/claryon/docqa/internal/llm"
)

// Fixed answer texts. Failures are encoded as answer content, never as
// transport-level errors.
const (
	documentUnusableMessage = "The document could not be processed. Please verify the document URL and try again."
	noContextMessage        = "No relevant information was found in the document to answer this question."
	generationErrorMessage  = "Error: could not retrieve an answer for this question."

	absentInfoSentinel = "The document does not specify this detail."
)

const answerPromptTemplate = `You are a meticulous policy analyst. Your task is to provide a precise and direct answer to the question based ONLY on the provided context from the document.

CONTEXT:
---
%s
---

INSTRUCTIONS:
1. Scrutinize the context to find the exact information that answers the question.
2. Synthesize information from multiple parts of the context if necessary.
3. Your answer must be a direct response to the question, with no preamble and no summary of the context.
4. If the context explicitly contains the answer, you MUST provide it. Do not claim the information is missing if it is present.
5. If, and only if, the context definitively does NOT contain the information, reply exactly: "%s"

QUESTION: %s`

const jsonOutputInstruction = `

Your entire output must be a single, clean JSON object with two keys: "answer" and "rationale".
The "answer" must be the direct answer extracted from the context.
The "rationale" must briefly explain which part of the context justifies the answer.`

// AnswerService asks the generative model for a final answer constrained to
// the retrieved context.
type AnswerService struct {
	generator llm.Generator
	format    string
}

// NewAnswerService creates a new AnswerService instance
func NewAnswerService(generator llm.Generator, format string) *AnswerService {
	if format == "" {
		format = config.AnswerFormatText
	}
	return &AnswerService{generator: generator, format: format}
}

// Answer generates an answer to the question from the given context. An
// empty context short-circuits to a fixed message without a model call, and
// a model failure yields a fixed error string rather than an error: one
// question's failure must never sink the rest of the request.
func (s *AnswerService) Answer(ctx context.Context, question, contextText string) string {
	if strings.TrimSpace(contextText) == "" {
		return s.fixed(noContextMessage, "No context was retrieved for this question.")
	}

	prompt := fmt.Sprintf(answerPromptTemplate, contextText, absentInfoSentinel, question)
	if s.format == config.AnswerFormatJSON {
		prompt += jsonOutputInstruction
	}

	answer, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		log.Printf("answer: generation failed: %v", err)
		return s.fixed(generationErrorMessage, "The generative model failed.")
	}

	answer = strings.TrimSpace(answer)
	if s.format == config.AnswerFormatJSON {
		answer = stripCodeFences(answer)
	}
	if answer == "" {
		return s.fixed(generationErrorMessage, "The generative model returned no text.")
	}

	return answer
}

// DocumentUnusableAnswer is the uniform answer for every question when the
// document could not be fetched, chunked, or indexed.
func (s *AnswerService) DocumentUnusableAnswer() string {
	return s.fixed(documentUnusableMessage, "The document could not be fetched or parsed.")
}

// ErrorAnswer is the per-question answer when retrieval or generation failed.
func (s *AnswerService) ErrorAnswer() string {
	return s.fixed(generationErrorMessage, "Retrieval or generation failed for this question.")
}

// fixed renders a canned message in the configured output format.
func (s *AnswerService) fixed(message, rationale string) string {
	if s.format != config.AnswerFormatJSON {
		return message
	}

	payload, err := json.Marshal(struct {
		Answer    string `json:"answer"`
		Rationale string `json:"rationale"`
	}{Answer: message, Rationale: rationale})
	if err != nil {
		return message
	}
	return string(payload)
}

// stripCodeFences removes markdown code fences some models wrap JSON in.
func stripCodeFences(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}
