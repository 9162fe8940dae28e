package admin

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/claryon/docqa/internal/api/handlers"
	"github.com/claryon/docqa/internal/config"
	"github.com/claryon/docqa/internal/database"
	"github.com/claryon/docqa/internal/document"
	"github.com/claryon/docqa/internal/llm"
	"github.com/claryon/docqa/internal/server"
	"github.com/claryon/docqa/internal/service"
	"github.com/claryon/docqa/internal/telemetry"
	"github.com/claryon/docqa/internal/vectorstore"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the document question-answering API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	store := vectorstore.NewStore(pool)
	if err := store.EnsureSchema(ctx, cfg.EmbeddingDimension); err != nil {
		return fmt.Errorf("failed to ensure vector schema: %w", err)
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.LLMRateLimit), 1)

	var llmClient llm.Client
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		llmClient, err = llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:          cfg.OpenAIAPIKey,
			EmbeddingModel:  cfg.EmbeddingModelName(),
			GenerativeModel: cfg.GenerativeModelName(),
			Dimension:       cfg.EmbeddingDimension,
			Limiter:         limiter,
		})
	default:
		llmClient, err = llm.NewGeminiClient(ctx, llm.GeminiConfig{
			APIKey:          cfg.GoogleAPIKey,
			EmbeddingModel:  cfg.EmbeddingModelName(),
			GenerativeModel: cfg.GenerativeModelName(),
			Dimension:       cfg.EmbeddingDimension,
			Limiter:         limiter,
		})
	}
	if err != nil {
		return fmt.Errorf("failed to create %s client: %w", cfg.LLMProvider, err)
	}
	log.Printf("using %s provider (embedding %s, generation %s)",
		cfg.LLMProvider, cfg.EmbeddingModelName(), cfg.GenerativeModelName())

	fetcher := document.NewFetcher()
	chunker := service.NewChunker(service.ChunkConfig{
		MaxChars: cfg.ChunkSize,
		Overlap:  cfg.ChunkOverlap,
	})
	hydeSvc := service.NewHydeService(llmClient)
	answerSvc := service.NewAnswerService(llmClient, cfg.AnswerFormat)

	orchestrator := service.NewOrchestrator(fetcher, chunker, llmClient, store, hydeSvc, answerSvc, service.OrchestratorConfig{
		TopK:        cfg.TopK,
		Concurrency: cfg.QuestionConcurrency,
	})

	router := server.NewRouter(server.RouterConfig{
		BearerToken: cfg.BearerToken,
		RunHandler:  handlers.NewRunHandler(orchestrator),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}
