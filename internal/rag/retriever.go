package rag

import (
	"context"
	"fmt"
)

// DefaultTopK is the default number of chunks retrieved per query.
const DefaultTopK = 4

// Embedder converts text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher performs nearest-neighbor queries against the vector
// store. Implementations degrade query failures to empty results.
type VectorSearcher interface {
	Query(ctx context.Context, embedding []float32, topK int) ([]VectorSearchResult, error)
}

// Retriever embeds a query and fetches its top-K most similar chunks.
type Retriever struct {
	embedder Embedder
	store    VectorSearcher
	topK     int
}

// NewRetriever creates a retriever. topK <= 0 falls back to DefaultTopK.
func NewRetriever(embedder Embedder, store VectorSearcher, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{embedder: embedder, store: store, topK: topK}
}

// Retrieve embeds the query (a single embed call, never batched) and
// queries the store. An embedding failure propagates to the caller; a
// store query failure has already been degraded to zero results by the
// store itself.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]VectorSearchResult, error) {
	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return r.store.Query(ctx, embedding, r.topK)
}
