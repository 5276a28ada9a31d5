// Package main runs the knowledge-base chatbot server: WebSocket chat,
// document ingestion, and health endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/shinhan-ai/kb-chatbot/internal/chat"
	"github.com/shinhan-ai/kb-chatbot/internal/config"
	"github.com/shinhan-ai/kb-chatbot/internal/httpapi"
	"github.com/shinhan-ai/kb-chatbot/internal/indexer"
	"github.com/shinhan-ai/kb-chatbot/internal/ollama"
	"github.com/shinhan-ai/kb-chatbot/internal/rag"
	"github.com/shinhan-ai/kb-chatbot/internal/vectorstore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "kbchat-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	logger.Info().
		Int("port", cfg.Port).
		Str("vector_store", cfg.VectorStore).
		Str("ollama_url", cfg.Ollama.URL).
		Msg("starting kbchat server")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	ollamaClient := ollama.NewClient(ollama.Config{
		BaseURL:    cfg.Ollama.URL,
		ChatModel:  cfg.Ollama.ChatModel,
		EmbedModel: cfg.Ollama.EmbedModel,
		Options: ollama.GenerateOptions{
			Temperature: cfg.Ollama.Temperature,
			TopP:        cfg.Ollama.TopP,
			NumPredict:  cfg.Ollama.NumPredict,
		},
	})

	store, storeURL, err := newStore(cfg, logger)
	if err != nil {
		return err
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	if err := store.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	chunker := rag.NewChunker(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	retriever := rag.NewRetriever(ollamaClient, store, cfg.RAG.TopK)
	pipeline := indexer.NewPipeline(chunker, ollamaClient, store, logger)
	coordinator := chat.NewCoordinator(retriever, ollamaClient, cfg.Ollama.URL, storeURL, logger)
	gateway := chat.NewGateway(coordinator, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", httpapi.NewHealthHandler(ollamaClient, cfg.Ollama.URL, store, storeURL))
	mux.Handle("GET /api/v1/chat/ws", gateway)
	httpapi.NewDocumentsHandler(pipeline, store, logger).Register(mux)

	server := &http.Server{
		Addr:    fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func newStore(cfg config.Specification, logger zerolog.Logger) (vectorstore.Store, string, error) {
	switch cfg.VectorStore {
	case "memory":
		return vectorstore.NewMemoryStore(), "memory", nil
	default:
		store, err := vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			Collection: cfg.Qdrant.Collection,
			Dimension:  cfg.Ollama.EmbedDim,
		}, logger)
		if err != nil {
			return nil, "", fmt.Errorf("connect to qdrant: %w", err)
		}
		url := fmt.Sprintf("%s:%d", cfg.Qdrant.Host, cfg.Qdrant.Port)
		return store, url, nil
	}
}
