package vectorstore

import (
	"context"
	"fmt"

	"talk-to-krishna/internal/contextutil"
	"talk-to-krishna/internal/corpus"
)

// MemoryIndex scores passages by brute-force cosine similarity over the
// embeddings held in the corpus store.
type MemoryIndex struct {
	store *corpus.Store
}

// NewMemoryIndex creates a dense index backed by the in-memory store.
func NewMemoryIndex(store *corpus.Store) *MemoryIndex {
	return &MemoryIndex{store: store}
}

// DenseScores returns one cosine score per passage in corpus order.
func (m *MemoryIndex) DenseScores(_ context.Context, query []float32) ([]float64, error) {
	return m.store.DenseScores(query)
}

// QdrantIndex scores passages through a Qdrant collection. Passages the
// collection does not return score 0.
type QdrantIndex struct {
	vs         VectorStore
	collection string
	store      *corpus.Store
}

// NewQdrantIndex creates a dense index backed by a Qdrant collection that
// was populated with Sync.
func NewQdrantIndex(vs VectorStore, collection string, store *corpus.Store) *QdrantIndex {
	return &QdrantIndex{vs: vs, collection: collection, store: store}
}

// DenseScores searches the whole collection and maps hits back to corpus positions.
func (q *QdrantIndex) DenseScores(ctx context.Context, query []float32) ([]float64, error) {
	scores := make([]float64, q.store.Len())
	if q.store.Len() == 0 {
		return scores, nil
	}
	if len(query) != q.store.Dim() {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d", corpus.ErrDimensionMismatch, len(query), q.store.Dim())
	}

	results, err := q.vs.Search(ctx, q.collection, query, q.store.Len(), nil)
	if err != nil {
		return nil, err
	}

	for _, r := range results {
		id, _ := r.Meta[PayloadPassageID].(string)
		if idx := q.store.Index(id); idx >= 0 {
			scores[idx] = float64(r.Score)
		}
	}
	return scores, nil
}

// Sync upserts every passage of the store into collection, creating the
// collection when needed. Points are written in batches of batchSize.
func Sync(ctx context.Context, vs VectorStore, collection string, store *corpus.Store, batchSize int) (int, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if store.Len() == 0 {
		return 0, corpus.ErrEmptyCorpus
	}
	if batchSize <= 0 {
		batchSize = 64
	}

	if err := vs.EnsureCollection(ctx, collection, store.Dim()); err != nil {
		return 0, fmt.Errorf("failed to ensure collection: %w", err)
	}

	var synced int
	batch := make([]Point, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := vs.Upsert(ctx, collection, batch); err != nil {
			return err
		}
		synced += len(batch)
		batch = make([]Point, 0, batchSize)
		return nil
	}

	for _, p := range store.Passages() {
		batch = append(batch, Point{
			ID:  PointID(p.ID),
			Vec: p.Embedding,
			Meta: map[string]any{
				PayloadPassageID: p.ID,
				"chapter":        int64(p.Chapter),
				"verse":          int64(p.Verse),
				"speaker":        p.Speaker,
			},
		})
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return synced, err
			}
		}
	}
	if err := flush(); err != nil {
		return synced, err
	}

	logger.InfoContext(ctx, "synced corpus to qdrant", "collection", collection, "points", synced)
	return synced, nil
}
