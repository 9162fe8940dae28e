package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/claryon/docqa/internal/document"
	"github.com/claryon/docqa/internal/domain"
	"github.com/claryon/docqa/internal/llm"
	"github.com/claryon/docqa/internal/telemetry"
	"github.com/claryon/docqa/internal/vectorstore"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DocumentFetcher downloads a document and extracts its text. An empty
// result means the document is unusable.
type DocumentFetcher interface {
	Fetch(ctx context.Context, url string) string
}

// TextChunker splits document text into indexable chunks.
type TextChunker interface {
	Chunk(text string) []string
}

// VectorStore is the namespaced chunk index used for retrieval.
type VectorStore interface {
	Upsert(ctx context.Context, namespace string, chunks []domain.Chunk) error
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]vectorstore.Match, error)
	DeleteNamespace(ctx context.Context, namespace string) error
}

// HypothesisGenerator produces the passage embedded in place of the raw
// question for retrieval.
type HypothesisGenerator interface {
	Hypothesize(ctx context.Context, question string) string
}

// AnswerGenerator produces final and fixed-form answers.
type AnswerGenerator interface {
	Answer(ctx context.Context, question, contextText string) string
	DocumentUnusableAnswer() string
	ErrorAnswer() string
}

// OrchestratorConfig controls retrieval depth and question fan-out.
type OrchestratorConfig struct {
	TopK        int
	Concurrency int
}

// DefaultOrchestratorConfig returns the default orchestrator configuration.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		TopK:        5,
		Concurrency: 3,
	}
}

// Orchestrator drives one request end to end: it allocates an ephemeral
// namespace, indexes the document into it, answers every question against
// it under a bounded fan-out, and deletes the namespace when done.
type Orchestrator struct {
	fetcher  DocumentFetcher
	chunker  TextChunker
	embedder llm.Embedder
	store    VectorStore
	hyde     HypothesisGenerator
	answerer AnswerGenerator
	cfg      OrchestratorConfig
}

// NewOrchestrator creates a new Orchestrator instance
func NewOrchestrator(
	fetcher DocumentFetcher,
	chunker TextChunker,
	embedder llm.Embedder,
	store VectorStore,
	hyde HypothesisGenerator,
	answerer AnswerGenerator,
	cfg OrchestratorConfig,
) *Orchestrator {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultOrchestratorConfig().TopK
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultOrchestratorConfig().Concurrency
	}

	return &Orchestrator{
		fetcher:  fetcher,
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		hyde:     hyde,
		answerer: answerer,
		cfg:      cfg,
	}
}

// Run processes one request. The returned slice always has one answer per
// question, in question order; failures surface as answer content.
func (o *Orchestrator) Run(ctx context.Context, documentURL string, questions []string) []string {
	namespace := uuid.NewString()

	ctx, span := telemetry.StartSpan(ctx, "Orchestrator.Run", telemetry.SpanAttributes{
		Namespace: namespace,
		Document:  documentURL,
	})
	defer span.End()

	// Cleanup is best effort: the namespace never outlives the request,
	// but a failed delete must not disturb the answers already computed.
	defer func() {
		if err := o.store.DeleteNamespace(context.WithoutCancel(ctx), namespace); err != nil {
			log.Printf("orchestrator: cleanup of namespace %s failed: %v", namespace, err)
			telemetry.CaptureError(ctx, err)
			return
		}
		log.Printf("orchestrator: cleaned up namespace %s", namespace)
	}()

	answers := make([]string, len(questions))

	if err := o.index(ctx, namespace, documentURL); err != nil {
		log.Printf("orchestrator: indexing failed for %s: %v", documentURL, err)
		unusable := o.answerer.DocumentUnusableAnswer()
		for i := range answers {
			answers[i] = unusable
		}
		return answers
	}

	g := new(errgroup.Group)
	g.SetLimit(o.cfg.Concurrency)
	for i, question := range questions {
		g.Go(func() error {
			answers[i] = o.answerOne(ctx, namespace, question)
			return nil
		})
	}
	_ = g.Wait()

	return answers
}

// index runs the fetch → chunk → embed → upsert phase. Any failure leaves
// the request in the index-failed state.
func (o *Orchestrator) index(ctx context.Context, namespace, documentURL string) error {
	ctx, span := telemetry.StartSpan(ctx, "Orchestrator.index", telemetry.SpanAttributes{
		Namespace: namespace,
		Operation: "index",
	})
	defer span.End()

	text := o.fetcher.Fetch(ctx, documentURL)
	if text == "" {
		return fmt.Errorf("document yielded no text")
	}

	chunks := o.chunker.Chunk(text)
	if len(chunks) == 0 {
		return fmt.Errorf("document yielded no chunks")
	}

	embeddings, err := o.embedder.EmbedDocuments(ctx, chunks)
	if err != nil {
		span.SetError(err)
		return domain.NewDomainErrorWithCause(domain.ErrEmbeddingFailed.Code, domain.ErrEmbeddingFailed.Message, err)
	}

	docName := document.DocumentName(documentURL)
	entries := make([]domain.Chunk, len(chunks))
	for i, chunk := range chunks {
		entries[i] = domain.Chunk{
			ID:        fmt.Sprintf("%s-chunk-%d", docName, i),
			Namespace: namespace,
			Text:      chunk,
			Embedding: embeddings[i],
		}
	}

	if err := o.store.Upsert(ctx, namespace, entries); err != nil {
		span.SetError(err)
		return domain.NewDomainErrorWithCause(domain.ErrIndexingFailed.Code, domain.ErrIndexingFailed.Message, err)
	}

	log.Printf("orchestrator: indexed %d chunks for %s into namespace %s", len(entries), docName, namespace)
	return nil
}

// answerOne runs the HyDE → embed → retrieve → answer pipeline for a single
// question. Failures are isolated: they produce a fixed error answer for
// this question only.
func (o *Orchestrator) answerOne(ctx context.Context, namespace, question string) string {
	hypothesis := o.hyde.Hypothesize(ctx, question)

	vector, err := o.embedder.EmbedQuery(ctx, hypothesis)
	if err != nil {
		log.Printf("orchestrator: query embedding failed: %v", err)
		telemetry.CaptureError(ctx, err)
		return o.answerer.ErrorAnswer()
	}

	matches, err := o.store.Query(ctx, namespace, vector, o.cfg.TopK)
	if err != nil {
		log.Printf("orchestrator: retrieval failed: %v", err)
		telemetry.CaptureError(ctx, err)
		return o.answerer.ErrorAnswer()
	}

	texts := make([]string, 0, len(matches))
	for _, m := range matches {
		texts = append(texts, m.Text)
	}
	contextText := strings.Join(texts, "\n\n")

	return o.answerer.Answer(ctx, question, contextText)
}
