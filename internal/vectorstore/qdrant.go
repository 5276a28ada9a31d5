package vectorstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog"

	"github.com/shinhan-ai/kb-chatbot/internal/rag"
	"github.com/shinhan-ai/kb-chatbot/internal/upstream"
)

// DefaultCollection is the single Qdrant collection holding all chunks.
const DefaultCollection = "shinhan-knowledge-base"

// pointNamespace makes Qdrant point UUIDs a deterministic function of
// the chunk ID, so re-indexing the same document overwrites its chunks
// instead of duplicating them.
var pointNamespace = uuid.MustParse("7b9643b2-5c3f-4f92-9a6d-1f2ce07d8a41")

// QdrantStore is the production Store backed by Qdrant over gRPC.
// The collection is ensured lazily on first use and remembered for the
// store's lifetime; if it later goes missing the next operation ensures
// it again.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	dimension  uint64
	logger     zerolog.Logger

	mu      sync.Mutex
	ensured bool
}

// QdrantConfig holds connection settings for the Qdrant gateway.
type QdrantConfig struct {
	Host       string
	Port       int
	Collection string
	Dimension  int
}

// NewQdrantStore creates the store and verifies connectivity with an
// exponential-backoff health check, failing fast if Qdrant never
// answers.
func NewQdrantStore(cfg QdrantConfig, logger zerolog.Logger) (*QdrantStore, error) {
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.Host,
		Port: cfg.Port,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	store := &QdrantStore{
		client:     client,
		collection: cfg.Collection,
		dimension:  uint64(cfg.Dimension),
		logger:     logger.With().Str("component", "qdrant").Logger(),
	}

	if err := store.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	return store, nil
}

func (s *QdrantStore) healthCheckWithRetry(ctx context.Context) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, backoff.WithContext(exponentialBackoff, ctx))
}

// Health performs a single health check against Qdrant.
func (s *QdrantStore) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return upstream.Classify(upstream.ServiceVectorDB, err)
	}
	if result == nil || result.Title == "" {
		return upstream.Failed(upstream.ServiceVectorDB,
			fmt.Errorf("health check returned invalid response"))
	}
	return nil
}

// EnsureCollection creates the collection with cosine distance if it
// does not exist yet. Safe to call concurrently: a lost create race is
// resolved by re-checking existence.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLocked(ctx)
}

func (s *QdrantStore) ensureLocked(ctx context.Context) error {
	if s.ensured {
		return nil
	}

	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return upstream.Classify(upstream.ServiceVectorDB, err)
	}
	if exists {
		s.ensured = true
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		// Another caller may have created it between our check and the
		// create. Existence wins over the create error.
		exists, checkErr := s.client.CollectionExists(ctx, s.collection)
		if checkErr == nil && exists {
			s.ensured = true
			return nil
		}
		return upstream.Classify(upstream.ServiceVectorDB, err)
	}

	s.ensured = true
	return nil
}

// invalidate forgets the cached collection state so the next operation
// re-ensures it.
func (s *QdrantStore) invalidate() {
	s.mu.Lock()
	s.ensured = false
	s.mu.Unlock()
}

// Upsert stores chunk/embedding tuples in batches of 100 with retry.
func (s *QdrantStore) Upsert(ctx context.Context, chunks []rag.DocumentChunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("%w: %d chunks but %d embeddings",
			upstream.ErrValidation, len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		return nil
	}
	for i, embedding := range embeddings {
		if uint64(len(embedding)) != s.dimension {
			return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(embedding), s.dimension)
		}
	}

	if err := s.EnsureCollection(ctx); err != nil {
		return err
	}

	batchSize := 100
	for i := 0; i < len(chunks); i += batchSize {
		end := min(i+batchSize, len(chunks))
		batch := chunks[i:end]

		points := make([]*qdrant.PointStruct, len(batch))
		for j, chunk := range batch {
			points[j] = &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(pointID(chunk.ID)),
				Vectors: qdrant.NewVectors(embeddings[i+j]...),
				Payload: qdrant.NewValueMap(map[string]any{
					"chunk_id":    chunk.ID,
					"content":     chunk.Content,
					"source":      chunk.Metadata.Source,
					"section":     chunk.Metadata.Section,
					"chunk_index": chunk.Metadata.ChunkIndex,
				}),
			}
		}

		if err := s.upsertWithRetry(ctx, points); err != nil {
			return fmt.Errorf("upsert batch %d-%d: %w", i, end,
				upstream.Classify(upstream.ServiceVectorDB, err))
		}
	}

	return nil
}

func (s *QdrantStore) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         points,
		})
		return err
	}, backoff.WithContext(exponentialBackoff, ctx))
}

// pointID derives a deterministic UUID from the chunk's string ID.
func pointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

// Query returns up to topK nearest neighbors by cosine similarity,
// descending. Qdrant's cosine score already is the similarity
// (1 - cosine distance). Upstream failures are logged and degrade to an
// empty result set.
func (s *QdrantStore) Query(ctx context.Context, embedding []float32, topK int) ([]rag.VectorSearchResult, error) {
	if err := s.EnsureCollection(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("query degraded to empty results")
		return nil, nil
	}

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		s.invalidate()
		s.logger.Warn().Err(err).Msg("query degraded to empty results")
		return nil, nil
	}

	results := make([]rag.VectorSearchResult, 0, len(points))
	for _, point := range points {
		payload := point.Payload
		results = append(results, rag.VectorSearchResult{
			ID:       payload["chunk_id"].GetStringValue(),
			Document: payload["content"].GetStringValue(),
			Metadata: rag.ChunkMetadata{
				Source:     payload["source"].GetStringValue(),
				Section:    payload["section"].GetStringValue(),
				ChunkIndex: int(payload["chunk_index"].GetIntegerValue()),
			},
			Score: float64(point.Score),
		})
	}
	return results, nil
}

// Count returns the number of stored points, 0 on any failure.
func (s *QdrantStore) Count(ctx context.Context) uint64 {
	if err := s.EnsureCollection(ctx); err != nil {
		return 0
	}
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
	})
	if err != nil {
		s.invalidate()
		s.logger.Warn().Err(err).Msg("count failed")
		return 0
	}
	return count
}

// Close closes the underlying gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
