package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/genai"

	"github.com/queryquack/queryquack/config"
	"github.com/queryquack/queryquack/controller"
	"github.com/queryquack/queryquack/logger"
	"github.com/queryquack/queryquack/services"
	"github.com/queryquack/queryquack/vectorstore"
	"github.com/queryquack/queryquack/vectorstore/chroma"
	"github.com/queryquack/queryquack/vectorstore/memory"
	"github.com/queryquack/queryquack/vectorstore/qdrant"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.GinMode == "debug")
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := newStore(ctx, cfg)
	if err != nil {
		logger.Error("vector store setup failed", "backend", cfg.VectorStore, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	var geminiClient *genai.Client
	if cfg.GeminiAPIKey != "" {
		geminiClient, err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.GeminiAPIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			logger.Error("gemini client setup failed", "error", err)
			os.Exit(1)
		}
		logger.Info("connected to Gemini", "model", cfg.GenerationModel)
	} else {
		logger.Warn("GEMINI_API_KEY not set, answers degrade to retrieval-only fallbacks")
	}

	embedder, err := newEmbedder(cfg, geminiClient)
	if err != nil {
		logger.Error("embedder setup failed", "embedder", cfg.Embedder, "error", err)
		os.Exit(1)
	}

	chunker, err := services.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		logger.Error("chunker setup failed", "error", err)
		os.Exit(1)
	}

	var strategies []services.RewriteStrategy
	if cfg.Rewrite {
		if geminiClient != nil {
			strategies = append(strategies, services.NewGeminiRewriter(geminiClient, cfg.GenerationModel))
		}
		strategies = append(strategies, services.HeuristicRewriter{})
	}
	processor := services.NewQueryProcessor(embedder, strategies...)

	var reranker services.Reranker
	if cfg.Rerank {
		reranker = services.NewLexicalReranker()
	}
	retriever := services.NewRetriever(store, reranker)

	var textGen services.TextGenerator
	var memoryChats services.MemoryChatProvider
	if geminiClient != nil {
		gg := services.NewGeminiGenerator(geminiClient, cfg.GenerationModel)
		textGen = gg
		memoryChats = gg
	}
	generator := services.NewResponseGenerator(textGen, memoryChats)

	ragService := services.NewRAGService(chunker, embedder, store, processor, retriever, generator, memoryChats, cfg.TopK)
	ragController := controller.NewRAGController(ragService)

	if cfg.WatchDir != "" {
		watcher := services.NewDirectoryWatcher(ragService, cfg.WatchDir)
		go func() {
			if err := watcher.Watch(ctx); err != nil {
				logger.Error("directory watcher stopped", "error", err)
			}
		}()
	}

	router := gin.Default()
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "queryquack"})
	})

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/sessions", ragController.CreateSession)
		apiV1.DELETE("/sessions/:id", ragController.EndSession)
		apiV1.POST("/sessions/:id/documents", ragController.IngestDocuments)
		apiV1.POST("/sessions/:id/query", ragController.Ask)
		apiV1.GET("/sessions/:id/history", ragController.History)
		apiV1.GET("/sessions/:id/sources", ragController.Sources)
	}

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		logger.Info("server listening", "port", cfg.Port, "store", cfg.VectorStore, "embedder", cfg.Embedder)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

func newStore(ctx context.Context, cfg *config.Config) (vectorstore.Store, error) {
	switch cfg.VectorStore {
	case "chroma":
		return chroma.New(ctx, chroma.Config{
			URL:        cfg.ChromaURL,
			Collection: cfg.IndexName,
			Dimension:  cfg.EmbeddingDim,
		})
	case "qdrant":
		return qdrant.New(ctx, qdrant.Config{
			Host:       cfg.QdrantHost,
			Port:       cfg.QdrantPort,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.IndexName,
			Dimension:  cfg.EmbeddingDim,
		})
	default:
		return memory.New(cfg.EmbeddingDim), nil
	}
}

func newEmbedder(cfg *config.Config, geminiClient *genai.Client) (services.Embedder, error) {
	switch cfg.Embedder {
	case "gemini":
		if geminiClient == nil {
			return nil, fmt.Errorf("EMBEDDER=gemini requires GEMINI_API_KEY")
		}
		return services.NewGeminiEmbedder(geminiClient, cfg.EmbeddingModel, cfg.EmbeddingDim), nil
	case "placeholder":
		logger.Warn("using placeholder embeddings, retrieval quality is degraded")
		return services.NewPlaceholderEmbedder(cfg.EmbeddingDim), nil
	default:
		httpClient := &http.Client{Timeout: 30 * time.Second}
		return services.NewOllamaEmbedder(httpClient, cfg.OllamaURL, cfg.EmbeddingModel, cfg.EmbeddingDim), nil
	}
}
