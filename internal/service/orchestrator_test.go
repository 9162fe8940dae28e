package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/claryon/docqa/internal/domain"
	"github.com/claryon/docqa/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockFetcher is a mock implementation of DocumentFetcher
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) string {
	args := m.Called(ctx, url)
	return args.String(0)
}

// MockChunker is a mock implementation of TextChunker
type MockChunker struct {
	mock.Mock
}

func (m *MockChunker) Chunk(text string) []string {
	args := m.Called(text)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]string)
}

// MockEmbedder is a mock implementation of llm.Embedder
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *MockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockStore is a mock implementation of VectorStore
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Upsert(ctx context.Context, namespace string, chunks []domain.Chunk) error {
	args := m.Called(ctx, namespace, chunks)
	return args.Error(0)
}

func (m *MockStore) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]vectorstore.Match, error) {
	args := m.Called(ctx, namespace, vector, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]vectorstore.Match), args.Error(1)
}

func (m *MockStore) DeleteNamespace(ctx context.Context, namespace string) error {
	args := m.Called(ctx, namespace)
	return args.Error(0)
}

// MockHyde is a mock implementation of HypothesisGenerator
type MockHyde struct {
	mock.Mock
}

func (m *MockHyde) Hypothesize(ctx context.Context, question string) string {
	args := m.Called(ctx, question)
	return args.String(0)
}

// MockAnswerer is a mock implementation of AnswerGenerator
type MockAnswerer struct {
	mock.Mock
}

func (m *MockAnswerer) Answer(ctx context.Context, question, contextText string) string {
	args := m.Called(ctx, question, contextText)
	return args.String(0)
}

func (m *MockAnswerer) DocumentUnusableAnswer() string {
	return "document could not be processed"
}

func (m *MockAnswerer) ErrorAnswer() string {
	return "error answer"
}

func newTestOrchestrator(
	fetcher *MockFetcher,
	chunker *MockChunker,
	embedder *MockEmbedder,
	store *MockStore,
	hyde *MockHyde,
	answerer AnswerGenerator,
	cfg OrchestratorConfig,
) *Orchestrator {
	return NewOrchestrator(fetcher, chunker, embedder, store, hyde, answerer, cfg)
}

func TestRun_Success(t *testing.T) {
	fetcher := new(MockFetcher)
	chunker := new(MockChunker)
	embedder := new(MockEmbedder)
	store := new(MockStore)
	hyde := new(MockHyde)
	answerer := new(MockAnswerer)

	fetcher.On("Fetch", mock.Anything, "https://example.com/policy.pdf").Return("policy text")
	chunker.On("Chunk", "policy text").Return([]string{"chunk one", "chunk two"})
	embedder.On("EmbedDocuments", mock.Anything, []string{"chunk one", "chunk two"}).
		Return([][]float32{{1, 0}, {0, 1}}, nil)
	store.On("Upsert", mock.Anything, mock.AnythingOfType("string"), mock.MatchedBy(func(chunks []domain.Chunk) bool {
		return len(chunks) == 2 &&
			chunks[0].ID == "policy.pdf-chunk-0" &&
			chunks[1].ID == "policy.pdf-chunk-1"
	})).Return(nil)

	hyde.On("Hypothesize", mock.Anything, "What is the grace period?").Return("hypothetical passage")
	embedder.On("EmbedQuery", mock.Anything, "hypothetical passage").Return([]float32{1, 0}, nil)
	store.On("Query", mock.Anything, mock.AnythingOfType("string"), []float32{1, 0}, 5).
		Return([]vectorstore.Match{
			{ID: "policy.pdf-chunk-0", Score: 0.92, Text: "Grace period is 30 days."},
			{ID: "policy.pdf-chunk-1", Score: 0.31, Text: "Premiums are annual."},
		}, nil)
	answerer.On("Answer", mock.Anything, "What is the grace period?",
		"Grace period is 30 days.\n\nPremiums are annual.").
		Return("The grace period is 30 days.")

	store.On("DeleteNamespace", mock.Anything, mock.AnythingOfType("string")).Return(nil)

	orch := newTestOrchestrator(fetcher, chunker, embedder, store, hyde, answerer, DefaultOrchestratorConfig())

	answers := orch.Run(context.Background(), "https://example.com/policy.pdf", []string{"What is the grace period?"})

	require.Len(t, answers, 1)
	assert.Equal(t, "The grace period is 30 days.", answers[0])

	fetcher.AssertExpectations(t)
	chunker.AssertExpectations(t)
	embedder.AssertExpectations(t)
	store.AssertExpectations(t)
	hyde.AssertExpectations(t)
	answerer.AssertExpectations(t)
}

func TestRun_UnusableDocumentSkipsPipeline(t *testing.T) {
	fetcher := new(MockFetcher)
	chunker := new(MockChunker)
	embedder := new(MockEmbedder)
	store := new(MockStore)
	hyde := new(MockHyde)
	answerer := new(MockAnswerer)

	fetcher.On("Fetch", mock.Anything, "https://host.invalid/doc.pdf").Return("")
	store.On("DeleteNamespace", mock.Anything, mock.AnythingOfType("string")).Return(nil)

	orch := newTestOrchestrator(fetcher, chunker, embedder, store, hyde, answerer, DefaultOrchestratorConfig())

	answers := orch.Run(context.Background(), "https://host.invalid/doc.pdf", []string{"q1", "q2", "q3"})

	require.Len(t, answers, 3)
	for _, answer := range answers {
		assert.Equal(t, "document could not be processed", answer)
	}

	// No chunking, embedding, indexing, retrieval, or generation happened.
	chunker.AssertNotCalled(t, "Chunk", mock.Anything)
	embedder.AssertNotCalled(t, "EmbedDocuments", mock.Anything, mock.Anything)
	embedder.AssertNotCalled(t, "EmbedQuery", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	hyde.AssertNotCalled(t, "Hypothesize", mock.Anything, mock.Anything)
	answerer.AssertNotCalled(t, "Answer", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_NoChunksIsIndexFailure(t *testing.T) {
	fetcher := new(MockFetcher)
	chunker := new(MockChunker)
	embedder := new(MockEmbedder)
	store := new(MockStore)

	fetcher.On("Fetch", mock.Anything, mock.Anything).Return("   ")
	chunker.On("Chunk", "   ").Return([]string{})
	store.On("DeleteNamespace", mock.Anything, mock.AnythingOfType("string")).Return(nil)

	orch := newTestOrchestrator(fetcher, chunker, embedder, store, new(MockHyde), new(MockAnswerer), DefaultOrchestratorConfig())

	answers := orch.Run(context.Background(), "https://example.com/empty.txt", []string{"q1"})

	require.Len(t, answers, 1)
	assert.Equal(t, "document could not be processed", answers[0])
	embedder.AssertNotCalled(t, "EmbedDocuments", mock.Anything, mock.Anything)
}

func TestRun_UpsertFailureIsIndexFailure(t *testing.T) {
	fetcher := new(MockFetcher)
	chunker := new(MockChunker)
	embedder := new(MockEmbedder)
	store := new(MockStore)

	fetcher.On("Fetch", mock.Anything, mock.Anything).Return("text")
	chunker.On("Chunk", "text").Return([]string{"chunk"})
	embedder.On("EmbedDocuments", mock.Anything, []string{"chunk"}).Return([][]float32{{1}}, nil)
	store.On("Upsert", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(errors.New("connection reset"))
	store.On("DeleteNamespace", mock.Anything, mock.AnythingOfType("string")).Return(nil)

	orch := newTestOrchestrator(fetcher, chunker, embedder, store, new(MockHyde), new(MockAnswerer), DefaultOrchestratorConfig())

	answers := orch.Run(context.Background(), "https://example.com/doc.txt", []string{"q1", "q2"})

	require.Len(t, answers, 2)
	assert.Equal(t, "document could not be processed", answers[0])
	assert.Equal(t, "document could not be processed", answers[1])
}

func TestRun_PerQuestionFailureIsolated(t *testing.T) {
	fetcher := new(MockFetcher)
	chunker := new(MockChunker)
	embedder := new(MockEmbedder)
	store := new(MockStore)
	hyde := new(MockHyde)
	answerer := new(MockAnswerer)

	fetcher.On("Fetch", mock.Anything, mock.Anything).Return("text")
	chunker.On("Chunk", "text").Return([]string{"chunk"})
	embedder.On("EmbedDocuments", mock.Anything, []string{"chunk"}).Return([][]float32{{1}}, nil)
	store.On("Upsert", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(nil)
	store.On("DeleteNamespace", mock.Anything, mock.AnythingOfType("string")).Return(nil)

	hyde.On("Hypothesize", mock.Anything, "good question").Return("good hypothesis")
	hyde.On("Hypothesize", mock.Anything, "bad question").Return("bad hypothesis")
	embedder.On("EmbedQuery", mock.Anything, "good hypothesis").Return([]float32{1}, nil)
	embedder.On("EmbedQuery", mock.Anything, "bad hypothesis").Return(nil, errors.New("quota exceeded"))
	store.On("Query", mock.Anything, mock.AnythingOfType("string"), []float32{1}, 5).
		Return([]vectorstore.Match{{ID: "c0", Score: 0.9, Text: "relevant"}}, nil)
	answerer.On("Answer", mock.Anything, "good question", "relevant").Return("good answer")

	orch := newTestOrchestrator(fetcher, chunker, embedder, store, hyde, answerer, DefaultOrchestratorConfig())

	answers := orch.Run(context.Background(), "https://example.com/doc.txt", []string{"good question", "bad question"})

	require.Len(t, answers, 2)
	assert.Equal(t, "good answer", answers[0])
	assert.Equal(t, "error answer", answers[1])
}

func TestRun_AnswersPreserveQuestionOrder(t *testing.T) {
	fetcher := new(MockFetcher)
	chunker := new(MockChunker)
	embedder := new(MockEmbedder)
	store := new(MockStore)
	hyde := new(MockHyde)
	answerer := new(MockAnswerer)

	fetcher.On("Fetch", mock.Anything, mock.Anything).Return("text")
	chunker.On("Chunk", "text").Return([]string{"chunk"})
	embedder.On("EmbedDocuments", mock.Anything, []string{"chunk"}).Return([][]float32{{1}}, nil)
	store.On("Upsert", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(nil)
	store.On("DeleteNamespace", mock.Anything, mock.AnythingOfType("string")).Return(nil)

	questions := []string{"q0", "q1", "q2"}
	// Earlier questions finish later: completion order is the reverse of
	// submission order.
	delays := []time.Duration{60 * time.Millisecond, 30 * time.Millisecond, 1 * time.Millisecond}
	for i, q := range questions {
		hyde.On("Hypothesize", mock.Anything, q).Return("h-" + q)
		embedder.On("EmbedQuery", mock.Anything, "h-"+q).Return([]float32{1}, nil)
		answerer.On("Answer", mock.Anything, q, "ctx").Return("answer-"+q).After(delays[i])
	}
	store.On("Query", mock.Anything, mock.AnythingOfType("string"), []float32{1}, 5).
		Return([]vectorstore.Match{{ID: "c0", Score: 0.5, Text: "ctx"}}, nil)

	orch := newTestOrchestrator(fetcher, chunker, embedder, store, hyde, answerer, OrchestratorConfig{TopK: 5, Concurrency: 3})

	answers := orch.Run(context.Background(), "https://example.com/doc.txt", questions)

	require.Len(t, answers, 3)
	assert.Equal(t, []string{"answer-q0", "answer-q1", "answer-q2"}, answers)
}

// gaugeAnswerer tracks the maximum number of concurrent Answer calls.
type gaugeAnswerer struct {
	mu      sync.Mutex
	current int
	max     int
}

func (g *gaugeAnswerer) Answer(ctx context.Context, question, contextText string) string {
	g.mu.Lock()
	g.current++
	if g.current > g.max {
		g.max = g.current
	}
	g.mu.Unlock()

	time.Sleep(20 * time.Millisecond)

	g.mu.Lock()
	g.current--
	g.mu.Unlock()

	return "answer to " + question
}

func (g *gaugeAnswerer) DocumentUnusableAnswer() string { return "unusable" }
func (g *gaugeAnswerer) ErrorAnswer() string            { return "error" }

func TestRun_ConcurrencyBound(t *testing.T) {
	fetcher := new(MockFetcher)
	chunker := new(MockChunker)
	embedder := new(MockEmbedder)
	store := new(MockStore)
	hyde := new(MockHyde)
	answerer := &gaugeAnswerer{}

	fetcher.On("Fetch", mock.Anything, mock.Anything).Return("text")
	chunker.On("Chunk", "text").Return([]string{"chunk"})
	embedder.On("EmbedDocuments", mock.Anything, []string{"chunk"}).Return([][]float32{{1}}, nil)
	store.On("Upsert", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(nil)
	store.On("DeleteNamespace", mock.Anything, mock.AnythingOfType("string")).Return(nil)
	hyde.On("Hypothesize", mock.Anything, mock.AnythingOfType("string")).Return("hypothesis")
	embedder.On("EmbedQuery", mock.Anything, "hypothesis").Return([]float32{1}, nil)
	store.On("Query", mock.Anything, mock.AnythingOfType("string"), []float32{1}, 5).
		Return([]vectorstore.Match{{ID: "c0", Score: 0.5, Text: "ctx"}}, nil)

	questions := make([]string, 9)
	for i := range questions {
		questions[i] = fmt.Sprintf("question %d", i)
	}

	orch := newTestOrchestrator(fetcher, chunker, embedder, store, hyde, answerer, OrchestratorConfig{TopK: 5, Concurrency: 3})

	answers := orch.Run(context.Background(), "https://example.com/doc.txt", questions)

	require.Len(t, answers, 9)
	for i, answer := range answers {
		assert.Equal(t, "answer to "+questions[i], answer)
	}
	assert.LessOrEqual(t, answerer.max, 3, "more than 3 question pipelines ran concurrently")
	assert.Greater(t, answerer.max, 1, "questions did not run concurrently at all")
}

func TestRun_CleanupFailureDoesNotAffectAnswers(t *testing.T) {
	fetcher := new(MockFetcher)
	chunker := new(MockChunker)
	embedder := new(MockEmbedder)
	store := new(MockStore)
	hyde := new(MockHyde)
	answerer := new(MockAnswerer)

	fetcher.On("Fetch", mock.Anything, mock.Anything).Return("text")
	chunker.On("Chunk", "text").Return([]string{"chunk"})
	embedder.On("EmbedDocuments", mock.Anything, []string{"chunk"}).Return([][]float32{{1}}, nil)
	store.On("Upsert", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(nil)
	hyde.On("Hypothesize", mock.Anything, "q").Return("h")
	embedder.On("EmbedQuery", mock.Anything, "h").Return([]float32{1}, nil)
	store.On("Query", mock.Anything, mock.AnythingOfType("string"), []float32{1}, 5).
		Return([]vectorstore.Match{{ID: "c0", Score: 0.9, Text: "ctx"}}, nil)
	answerer.On("Answer", mock.Anything, "q", "ctx").Return("the answer")

	store.On("DeleteNamespace", mock.Anything, mock.AnythingOfType("string")).
		Return(errors.New("service unavailable"))

	orch := newTestOrchestrator(fetcher, chunker, embedder, store, hyde, answerer, DefaultOrchestratorConfig())

	answers := orch.Run(context.Background(), "https://example.com/doc.txt", []string{"q"})

	require.Len(t, answers, 1)
	assert.Equal(t, "the answer", answers[0])
	store.AssertCalled(t, "DeleteNamespace", mock.Anything, mock.AnythingOfType("string"))
}

func TestRun_EmptyRetrievalStillAnswers(t *testing.T) {
	fetcher := new(MockFetcher)
	chunker := new(MockChunker)
	embedder := new(MockEmbedder)
	store := new(MockStore)
	hyde := new(MockHyde)
	answerer := new(MockAnswerer)

	fetcher.On("Fetch", mock.Anything, mock.Anything).Return("text")
	chunker.On("Chunk", "text").Return([]string{"chunk"})
	embedder.On("EmbedDocuments", mock.Anything, []string{"chunk"}).Return([][]float32{{1}}, nil)
	store.On("Upsert", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(nil)
	store.On("DeleteNamespace", mock.Anything, mock.AnythingOfType("string")).Return(nil)
	hyde.On("Hypothesize", mock.Anything, "q").Return("h")
	embedder.On("EmbedQuery", mock.Anything, "h").Return([]float32{1}, nil)
	store.On("Query", mock.Anything, mock.AnythingOfType("string"), []float32{1}, 5).
		Return([]vectorstore.Match{}, nil)
	answerer.On("Answer", mock.Anything, "q", "").Return("no context message")

	orch := newTestOrchestrator(fetcher, chunker, embedder, store, hyde, answerer, DefaultOrchestratorConfig())

	answers := orch.Run(context.Background(), "https://example.com/doc.txt", []string{"q"})

	require.Len(t, answers, 1)
	assert.Equal(t, "no context message", answers[0])
}
