// Package indexer turns raw document text into stored chunk vectors:
// chunk, embed, upsert.
package indexer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/shinhan-ai/kb-chatbot/internal/rag"
	"github.com/shinhan-ai/kb-chatbot/internal/upstream"
	"github.com/shinhan-ai/kb-chatbot/internal/vectorstore"
)

// BatchEmbedder embeds a batch of texts, one vector per input, order
// preserved.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// IndexResult reports what one indexing pass produced.
type IndexResult struct {
	Filename   string
	ChunkCount int
	Duration   time.Duration
}

// Pipeline runs the chunk -> embed -> upsert sequence for one document
// at a time. Any stage failure aborts the whole document.
type Pipeline struct {
	chunker  *rag.Chunker
	embedder BatchEmbedder
	store    vectorstore.Store
	logger   zerolog.Logger
}

// NewPipeline creates an indexing pipeline with the given components.
func NewPipeline(chunker *rag.Chunker, embedder BatchEmbedder, store vectorstore.Store, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		logger:   logger.With().Str("component", "indexer").Logger(),
	}
}

// IndexDocument chunks content, embeds every chunk, and upserts the
// vectors under the given filename as source.
func (p *Pipeline) IndexDocument(ctx context.Context, filename, content string) (*IndexResult, error) {
	start := time.Now()

	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: document %q has no content", upstream.ErrValidation, filename)
	}

	chunks := p.chunker.Chunk(content, filename)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: document %q produced no chunks", upstream.ErrValidation, filename)
	}
	p.logger.Debug().Str("filename", filename).Int("chunks", len(chunks)).Msg("chunked document")

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	embeddings, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks of %q: %w", filename, err)
	}

	if err := p.store.Upsert(ctx, chunks, embeddings); err != nil {
		return nil, fmt.Errorf("store chunks of %q: %w", filename, err)
	}

	result := &IndexResult{
		Filename:   filename,
		ChunkCount: len(chunks),
		Duration:   time.Since(start),
	}
	p.logger.Info().
		Str("filename", filename).
		Int("chunks", result.ChunkCount).
		Dur("duration", result.Duration).
		Msg("indexed document")
	return result, nil
}
