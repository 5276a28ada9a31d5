package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/shinhan-ai/kb-chatbot/internal/rag"
	"github.com/shinhan-ai/kb-chatbot/internal/upstream"
)

// MemoryStore is a brute-force cosine-similarity Store kept entirely in
// memory. It backs tests and vector-database-free development runs.
type MemoryStore struct {
	mu         sync.RWMutex
	chunks     map[string]rag.DocumentChunk
	embeddings map[string][]float32
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chunks:     make(map[string]rag.DocumentChunk),
		embeddings: make(map[string][]float32),
	}
}

// EnsureCollection is a no-op: the collection is the store itself.
func (s *MemoryStore) EnsureCollection(ctx context.Context) error { return nil }

// Upsert stores chunk/embedding tuples keyed by chunk ID, so
// re-indexing a document replaces its chunks.
func (s *MemoryStore) Upsert(ctx context.Context, chunks []rag.DocumentChunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("%w: %d chunks but %d embeddings",
			upstream.ErrValidation, len(chunks), len(embeddings))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, chunk := range chunks {
		s.chunks[chunk.ID] = chunk
		s.embeddings[chunk.ID] = embeddings[i]
	}
	return nil
}

// Query scores every stored chunk by cosine similarity and returns the
// topK best, descending.
func (s *MemoryStore) Query(ctx context.Context, embedding []float32, topK int) ([]rag.VectorSearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]rag.VectorSearchResult, 0, len(s.chunks))
	for id, chunk := range s.chunks {
		results = append(results, rag.VectorSearchResult{
			ID:       id,
			Document: chunk.Content,
			Metadata: chunk.Metadata,
			Score:    cosineSimilarity(embedding, s.embeddings[id]),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Count returns the number of stored chunks.
func (s *MemoryStore) Count(ctx context.Context) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.chunks))
}

// Health always succeeds.
func (s *MemoryStore) Health(ctx context.Context) error { return nil }

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
