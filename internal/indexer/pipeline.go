package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"talk-to-krishna/internal/config"
	"talk-to-krishna/internal/contextutil"
	"talk-to-krishna/internal/corpus"
	"talk-to-krishna/internal/llm"
	"talk-to-krishna/internal/storage"
)

// DefaultBatchSize is the number of passages embedded per request.
const DefaultBatchSize = 32

// Options configures a Pipeline.
type Options struct {
	// EmbeddingModel is recorded in the snapshot metadata.
	EmbeddingModel string
	BatchSize      int
}

// Pipeline builds a corpus snapshot: dataset verses become passages, each
// passage is embedded and the validated result replaces the stored snapshot.
type Pipeline struct {
	embedder  llm.Embedder
	repo      storage.PassageStore
	tuning    *config.Tuning
	model     string
	batchSize int
	now       func() time.Time
}

// NewPipeline creates a new build pipeline.
func NewPipeline(embedder llm.Embedder, repo storage.PassageStore, tuning *config.Tuning, opts Options) *Pipeline {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Pipeline{
		embedder:  embedder,
		repo:      repo,
		tuning:    tuning,
		model:     opts.EmbeddingModel,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// BuildFile loads the dataset at path and builds the snapshot from it.
func (p *Pipeline) BuildFile(ctx context.Context, path string) (*corpus.Store, *BuildStats, error) {
	ds, checksum, err := corpus.LoadDataset(path)
	if err != nil {
		return nil, nil, err
	}
	return p.Build(ctx, ds, checksum)
}

// Build embeds every passage of ds, validates the corpus and saves it.
// Nothing is saved when any step fails, so the previous snapshot survives.
func (p *Pipeline) Build(ctx context.Context, ds *corpus.Dataset, checksum string) (*corpus.Store, *BuildStats, error) {
	logger := contextutil.LoggerFromContext(ctx)
	started := p.now()

	passages, err := ds.Passages(BuildRules(p.tuning))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	if len(passages) == 0 {
		return nil, nil, corpus.ErrEmptyCorpus
	}
	logger.InfoContext(ctx, "starting corpus build", "passages", len(passages), "batch_size", p.batchSize)

	for start := 0; start < len(passages); start += p.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		end := min(start+p.batchSize, len(passages))
		texts := make([]string, 0, end-start)
		for _, passage := range passages[start:end] {
			texts = append(texts, corpus.EmbeddingText(passage))
		}

		embeddings, err := p.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to embed passages %s..%s: %w", passages[start].ID, passages[end-1].ID, err)
		}
		if len(embeddings) != len(texts) {
			return nil, nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(texts), len(embeddings))
		}
		for i, vec := range embeddings {
			passages[start+i].Embedding = vec
		}
		logger.DebugContext(ctx, "embedded batch", "from", passages[start].ID, "to", passages[end-1].ID)
	}

	meta := corpus.Meta{
		EmbeddingModel:  p.model,
		PassageCount:    len(passages),
		BuiltAt:         p.now().UTC(),
		DatasetChecksum: checksum,
	}
	store, err := corpus.NewStore(passages, Mappings(p.tuning), StoreOptions(p.tuning, meta))
	if err != nil {
		return nil, nil, fmt.Errorf("corpus validation failed: %w", err)
	}
	meta = store.Meta()

	if err := p.repo.SaveSnapshot(ctx, store.Passages(), meta); err != nil {
		return nil, nil, fmt.Errorf("failed to save snapshot: %w", err)
	}

	stats := ComputeStats(store)
	logger.InfoContext(ctx, "corpus build completed",
		"passages", stats.Passages,
		"dimension", stats.Dimension,
		"index_version", stats.IndexVersion,
		"duration", p.now().Sub(started),
	)
	return store, stats, nil
}

// LoadStore reads the stored snapshot and rebuilds the in-memory Store.
// A missing snapshot wraps corpus.ErrEmptyCorpus.
func LoadStore(ctx context.Context, repo storage.PassageStore, tuning *config.Tuning) (*corpus.Store, error) {
	meta, err := repo.Meta(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: no corpus snapshot, run corpusctl build first", corpus.ErrEmptyCorpus)
	}
	if err != nil {
		return nil, err
	}
	passages, err := repo.LoadPassages(ctx)
	if err != nil {
		return nil, err
	}
	if len(passages) != meta.PassageCount {
		return nil, fmt.Errorf("%w: snapshot lists %d passages, found %d", corpus.ErrInvalidPassage, meta.PassageCount, len(passages))
	}
	store, err := corpus.NewStore(passages, Mappings(tuning), StoreOptions(tuning, *meta))
	if err != nil {
		return nil, err
	}
	if meta.Dimension != 0 && store.Dim() != meta.Dimension {
		return nil, fmt.Errorf("%w: snapshot records %d dimensions, passages have %d", corpus.ErrDimensionMismatch, meta.Dimension, store.Dim())
	}
	return store, nil
}

// BuildRules derives the dataset conversion rules from the tuning.
func BuildRules(tuning *config.Tuning) corpus.BuildRules {
	markers := make([]corpus.SpeakerMarker, len(tuning.Speakers.Markers))
	for i, m := range tuning.Speakers.Markers {
		markers[i] = corpus.SpeakerMarker{Phrase: m.Phrase, Speaker: m.Speaker}
	}
	return corpus.BuildRules{
		DefaultSpeaker:   tuning.Speakers.Default,
		Markers:          markers,
		EmotionThreshold: tuning.Labels.EmotionThreshold,
	}
}

// Mappings converts the curated mapping table of the tuning.
func Mappings(tuning *config.Tuning) []corpus.Mapping {
	mappings := make([]corpus.Mapping, len(tuning.Mappings))
	for i, m := range tuning.Mappings {
		mappings[i] = corpus.Mapping{Triggers: m.Triggers, Passages: m.Passages}
	}
	return mappings
}

// StoreOptions returns the Store options of the tuning.
func StoreOptions(tuning *config.Tuning, meta corpus.Meta) corpus.Options {
	return corpus.Options{
		BM25K1:       tuning.Retrieval.BM25K1,
		BM25B:        tuning.Retrieval.BM25B,
		MappingDecay: tuning.Retrieval.MappingDecay,
		MappingFloor: tuning.Retrieval.MappingFloor,
		Synonyms:     tuning.Synonyms,
		Meta:         meta,
	}
}
