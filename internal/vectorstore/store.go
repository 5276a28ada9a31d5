// Package vectorstore persists chunk embeddings and serves
// nearest-neighbor similarity queries. The production implementation
// talks to Qdrant over gRPC; an in-memory brute-force store backs tests
// and dependency-free runs.
package vectorstore

import (
	"context"
	"errors"

	"github.com/shinhan-ai/kb-chatbot/internal/rag"
)

// Store is the vector database gateway used by indexing and retrieval.
type Store interface {
	// EnsureCollection is an idempotent get-or-create of the backing
	// collection. Two near-simultaneous callers must both succeed.
	EnsureCollection(ctx context.Context) error
	// Upsert stores chunk/embedding tuples. Requires equal lengths.
	Upsert(ctx context.Context, chunks []rag.DocumentChunk, embeddings [][]float32) error
	// Query returns up to topK nearest neighbors ordered by descending
	// similarity. A failing upstream call degrades to an empty result,
	// never an error: retrieval failure means "no context", not an
	// aborted chat.
	Query(ctx context.Context, embedding []float32, topK int) ([]rag.VectorSearchResult, error)
	// Count returns the number of stored chunks, 0 on any failure.
	Count(ctx context.Context) uint64
	// Health reports whether the store is reachable.
	Health(ctx context.Context) error
}

var (
	ErrUnreachable       = errors.New("vector store unreachable")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
