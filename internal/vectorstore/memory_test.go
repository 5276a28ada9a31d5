package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinhan-ai/kb-chatbot/internal/rag"
	"github.com/shinhan-ai/kb-chatbot/internal/upstream"
)

func chunk(id, content, source string, index int) rag.DocumentChunk {
	return rag.DocumentChunk{
		ID:      id,
		Content: content,
		Metadata: rag.ChunkMetadata{
			Source:     source,
			ChunkIndex: index,
		},
	}
}

func TestMemoryStore_UpsertAndQuery(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	chunks := []rag.DocumentChunk{
		chunk("a-chunk-0", "leave policy details", "a.md", 0),
		chunk("a-chunk-1", "password rules", "a.md", 1),
		chunk("b-chunk-0", "office hours", "b.md", 0),
	}
	embeddings := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
	require.NoError(t, store.Upsert(ctx, chunks, embeddings))
	assert.Equal(t, uint64(3), store.Count(ctx))

	results, err := store.Query(ctx, []float32{0, 1, 0.2}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "a-chunk-1", results[0].ID)
	assert.Equal(t, "password rules", results[0].Document)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score, "results must be sorted by descending score")
}

func TestMemoryStore_UpsertMismatchedLengths(t *testing.T) {
	store := NewMemoryStore()
	err := store.Upsert(context.Background(),
		[]rag.DocumentChunk{chunk("a-chunk-0", "x", "a.md", 0)},
		[][]float32{{1}, {2}},
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, upstream.ErrValidation)
}

func TestMemoryStore_UpsertReplacesByID(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx,
		[]rag.DocumentChunk{chunk("a-chunk-0", "old", "a.md", 0)},
		[][]float32{{1, 0}},
	))
	require.NoError(t, store.Upsert(ctx,
		[]rag.DocumentChunk{chunk("a-chunk-0", "new", "a.md", 0)},
		[][]float32{{1, 0}},
	))

	assert.Equal(t, uint64(1), store.Count(ctx))
	results, err := store.Query(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "new", results[0].Document)
}

func TestMemoryStore_QueryEmpty(t *testing.T) {
	store := NewMemoryStore()
	results, err := store.Query(context.Background(), []float32{1, 2, 3}, 4)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Zero(t, cosineSimilarity([]float32{1}, []float32{1, 2}), "dimension mismatch scores zero")
	assert.Zero(t, cosineSimilarity(nil, nil))
}
