// Package main provides ragctl, the knowledge-base maintenance CLI:
// index local documents, inspect the chunk count, and probe dependency
// health.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/shinhan-ai/kb-chatbot/internal/config"
	"github.com/shinhan-ai/kb-chatbot/internal/indexer"
	"github.com/shinhan-ai/kb-chatbot/internal/ollama"
	"github.com/shinhan-ai/kb-chatbot/internal/rag"
	"github.com/shinhan-ai/kb-chatbot/internal/vectorstore"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "ragctl",
	Short: "Knowledge-base maintenance tool",
	Long:  "CLI for managing the chatbot knowledge base: index documents, inspect the collection, probe dependencies.",
}

var indexCmd = &cobra.Command{
	Use:   "index <file>...",
	Short: "Index local text documents into the vector store",
	Long: `Chunks each file, embeds the chunks via Ollama, and upserts the
vectors into the configured vector store. Only plain-text formats are
accepted (.md, .txt); extract text from PDFs or Office documents before
indexing.

Environment variables:
  KBCHAT_OLLAMA_URL    Ollama endpoint (default: http://localhost:11434)
  KBCHAT_QDRANT_HOST   Qdrant hostname (default: localhost)
  KBCHAT_QDRANT_PORT   Qdrant gRPC port (default: 6334)`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndex,
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of stored chunks",
	RunE:  runCount,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe Ollama and the vector store",
	RunE:  runHealth,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.AddCommand(indexCmd, countCmd, healthCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type deps struct {
	cfg    config.Specification
	client *ollama.Client
	store  vectorstore.Store
}

func setup() (*deps, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Logger()

	client := ollama.NewClient(ollama.Config{
		BaseURL:    cfg.Ollama.URL,
		ChatModel:  cfg.Ollama.ChatModel,
		EmbedModel: cfg.Ollama.EmbedModel,
	})

	var store vectorstore.Store
	if cfg.VectorStore == "memory" {
		store = vectorstore.NewMemoryStore()
	} else {
		qs, err := vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			Collection: cfg.Qdrant.Collection,
			Dimension:  cfg.Ollama.EmbedDim,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to qdrant: %w", err)
		}
		store = qs
	}

	return &deps{cfg: cfg, client: client, store: store}, nil
}

func (d *deps) close() {
	if closer, ok := d.store.(interface{ Close() error }); ok {
		closer.Close()
	}
}

func runIndex(cmd *cobra.Command, args []string) error {
	d, err := setup()
	if err != nil {
		return err
	}
	defer d.close()

	ctx := context.Background()
	start := time.Now()

	if err := d.store.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Logger()
	chunker := rag.NewChunker(d.cfg.RAG.ChunkSize, d.cfg.RAG.ChunkOverlap)
	pipeline := indexer.NewPipeline(chunker, d.client, d.store, logger)

	totalChunks := 0
	for _, path := range args {
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".md" && ext != ".txt" {
			fmt.Printf("  skipping %s (unsupported extension)\n", path)
			continue
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		result, err := pipeline.IndexDocument(ctx, filepath.Base(path), string(content))
		if err != nil {
			return fmt.Errorf("index %s: %w", path, err)
		}
		fmt.Printf("  indexed %s (%d chunks)\n", path, result.ChunkCount)
		totalChunks += result.ChunkCount
	}

	fmt.Println()
	fmt.Printf("Done: %d chunks in %s\n", totalChunks, time.Since(start).Round(time.Millisecond))
	return nil
}

func runCount(cmd *cobra.Command, args []string) error {
	d, err := setup()
	if err != nil {
		return err
	}
	defer d.close()

	fmt.Printf("%d\n", d.store.Count(context.Background()))
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	d, err := setup()
	if err != nil {
		return err
	}
	defer d.close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ok := true
	if err := d.client.Health(ctx); err != nil {
		fmt.Printf("ollama: down (%v)\n", err)
		ok = false
	} else {
		fmt.Println("ollama: up")
	}
	if err := d.store.Health(ctx); err != nil {
		fmt.Printf("vector store: down (%v)\n", err)
		ok = false
	} else {
		fmt.Println("vector store: up")
	}

	if !ok {
		return fmt.Errorf("one or more dependencies are unhealthy")
	}
	return nil
}
