//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/claryon/docqa/internal/api/handlers"
	"github.com/claryon/docqa/internal/document"
	"github.com/claryon/docqa/internal/server"
	"github.com/claryon/docqa/internal/service"
	"github.com/claryon/docqa/internal/testutil"
	"github.com/claryon/docqa/internal/vectorstore"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	e2eBearerToken = "e2e-test-token"

	// Small chunks so a short test document still splits into several.
	e2eChunkSize    = 120
	e2eChunkOverlap = 20
)

// keywordVocabulary drives the fake embedder. Each dimension counts one term,
// so chunks and questions about the same topic land near each other under
// cosine distance without any hosted model.
var keywordVocabulary = []string{
	"grace", "waiting", "maternity", "premium", "hospital", "claim", "period", "cover",
}

// fakeLLM is a deterministic stand-in for the hosted provider.
type fakeLLM struct{}

func embedKeywords(text string) []float32 {
	lower := strings.ToLower(text)
	vec := make([]float32, len(keywordVocabulary))
	var norm float64
	for i, word := range keywordVocabulary {
		count := float32(strings.Count(lower, word))
		vec[i] = count
		norm += float64(count * count)
	}
	if norm == 0 {
		// Nothing matched; a unit vector keeps cosine distance defined.
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func (f *fakeLLM) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = embedKeywords(text)
	}
	return vectors, nil
}

func (f *fakeLLM) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return embedKeywords(text), nil
}

// Generate answers both prompt shapes the pipeline produces: hypothetical
// passages echo the question, final answers echo the retrieved context.
func (f *fakeLLM) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.Contains(prompt, "PASSAGE:") {
		if _, after, ok := strings.Cut(prompt, "QUESTION: "); ok {
			if question, _, ok := strings.Cut(after, "\n"); ok {
				return question, nil
			}
			return after, nil
		}
		return prompt, nil
	}

	if _, after, ok := strings.Cut(prompt, "CONTEXT:\n---\n"); ok {
		if contextText, _, ok := strings.Cut(after, "\n---"); ok {
			return "Based on the document: " + strings.TrimSpace(contextText), nil
		}
	}
	return "Based on the document: (no context)", nil
}

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E environment: pgvector container plus an
// in-process server wired with the deterministic fake provider.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC)

	store := vectorstore.NewStore(pool)
	if err := store.EnsureSchema(ctx, len(keywordVocabulary)); err != nil {
		t.Fatalf("failed to ensure schema: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	serverURL, serverCloser := startServer(t, store, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// ChunkCount returns the number of stored chunks across all namespaces.
func (e *E2ETestEnv) ChunkCount() int {
	var count int
	row := e.Pool.QueryRow(e.Ctx, "SELECT count(*) FROM document_chunks")
	if err := row.Scan(&count); err != nil {
		e.T.Fatalf("failed to count chunks: %v", err)
	}
	return count
}

// Run posts a run request with the given auth token.
func (e *E2ETestEnv) Run(documentURL string, questions []string, authToken string) (*handlers.RunResponse, int, error) {
	payload, err := json.Marshal(handlers.RunRequest{
		Documents: documentURL,
		Questions: questions,
	})
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequest(http.MethodPost, e.ServerURL+"/hackrx/run", bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var runResp handlers.RunResponse
	if err := json.Unmarshal(body, &runResp); err != nil {
		return nil, resp.StatusCode, err
	}
	return &runResp, resp.StatusCode, nil
}

func startServer(t *testing.T, store *vectorstore.Store, port int) (string, func()) {
	llmClient := &fakeLLM{}

	fetcher := document.NewFetcher()
	chunker := service.NewChunker(service.ChunkConfig{
		MaxChars: e2eChunkSize,
		Overlap:  e2eChunkOverlap,
	})
	hydeSvc := service.NewHydeService(llmClient)
	answerSvc := service.NewAnswerService(llmClient, "text")

	orchestrator := service.NewOrchestrator(fetcher, chunker, llmClient, store, hydeSvc, answerSvc, service.DefaultOrchestratorConfig())

	router := server.NewRouter(server.RouterConfig{
		BearerToken: e2eBearerToken,
		RunHandler:  handlers.NewRunHandler(orchestrator),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
