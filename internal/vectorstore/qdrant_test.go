//go:build integration
// +build integration

package vectorstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinhan-ai/kb-chatbot/internal/rag"
)

const testDimension = 4

// setupTestStore connects to a local Qdrant with a unique collection
// per test. Skips the test if Qdrant is not running.
func setupTestStore(t *testing.T) *QdrantStore {
	t.Helper()
	store, err := NewQdrantStore(QdrantConfig{
		Host:       "localhost",
		Port:       6334,
		Collection: "test-" + uuid.New().String(),
		Dimension:  testDimension,
	}, zerolog.Nop())
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}

	err = store.EnsureCollection(context.Background())
	require.NoError(t, err, "Failed to ensure collection")

	t.Cleanup(func() { store.Close() })
	return store
}

func testChunks(source string, n int) ([]rag.DocumentChunk, [][]float32) {
	chunks := make([]rag.DocumentChunk, n)
	embeddings := make([][]float32, n)
	for i := range chunks {
		chunks[i] = rag.DocumentChunk{
			ID:      fmt.Sprintf("%s-chunk-%d", source, i),
			Content: fmt.Sprintf("Paragraph %d of %s.", i, source),
			Metadata: rag.ChunkMetadata{
				Source:     source,
				Section:    "Policies",
				ChunkIndex: i,
			},
		}
		embeddings[i] = []float32{float32(i + 1), 1, 0, 0}
	}
	return chunks, embeddings
}

func TestQdrantUpsertQueryRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	chunks, embeddings := testChunks("handbook.md", 3)
	require.NoError(t, store.Upsert(ctx, chunks, embeddings))

	results, err := store.Query(ctx, embeddings[0], 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Identical vector must come back first with maximal similarity.
	assert.Equal(t, "handbook.md-chunk-0", results[0].ID)
	assert.Equal(t, chunks[0].Content, results[0].Document)
	assert.Equal(t, "handbook.md", results[0].Metadata.Source)
	assert.Equal(t, "Policies", results[0].Metadata.Section)
	assert.Equal(t, 0, results[0].Metadata.ChunkIndex)
	assert.InDelta(t, 1.0, results[0].Score, 0.001)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestQdrantReindexOverwrites(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	chunks, embeddings := testChunks("faq.md", 2)
	require.NoError(t, store.Upsert(ctx, chunks, embeddings))
	require.Equal(t, uint64(2), store.Count(ctx))

	// Same chunk IDs map to the same point IDs, so a second pass
	// replaces rather than duplicates.
	chunks[0].Content = "Updated paragraph."
	require.NoError(t, store.Upsert(ctx, chunks, embeddings))
	assert.Equal(t, uint64(2), store.Count(ctx))

	results, err := store.Query(ctx, embeddings[0], 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Updated paragraph.", results[0].Document)
}

func TestQdrantDimensionValidation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	chunks, _ := testChunks("wrong.md", 1)
	err := store.Upsert(ctx, chunks, [][]float32{{0.1, 0.2}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestQdrantUpsertLengthMismatch(t *testing.T) {
	store := setupTestStore(t)

	chunks, embeddings := testChunks("mismatch.md", 2)
	err := store.Upsert(context.Background(), chunks, embeddings[:1])
	assert.Error(t, err)
}

func TestQdrantBatchUpsert(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// More than one batch of 100.
	chunks, embeddings := testChunks("large.md", 250)
	require.NoError(t, store.Upsert(ctx, chunks, embeddings))
	assert.Equal(t, uint64(250), store.Count(ctx))
}

func TestQdrantPersistenceAcrossReconnect(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	chunks, embeddings := testChunks("persist.md", 1)
	require.NoError(t, store.Upsert(ctx, chunks, embeddings))

	collection := store.collection
	require.NoError(t, store.Close())

	store2, err := NewQdrantStore(QdrantConfig{
		Host:       "localhost",
		Port:       6334,
		Collection: collection,
		Dimension:  testDimension,
	}, zerolog.Nop())
	require.NoError(t, err, "Failed to reconnect to Qdrant")
	defer store2.Close()

	results, err := store2.Query(ctx, embeddings[0], 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "persist.md-chunk-0", results[0].ID)
}
