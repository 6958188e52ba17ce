package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"talk-to-krishna/internal/config"
	"talk-to-krishna/internal/contextutil"
	"talk-to-krishna/internal/corpus"
	"talk-to-krishna/internal/llm"
)

// DenseIndex scores every corpus passage against a query vector. Scores are
// returned in store order.
type DenseIndex interface {
	DenseScores(ctx context.Context, query []float32) ([]float64, error)
}

// Retriever fuses dense, lexical and curated-mapping signals into a ranked
// candidate list.
type Retriever struct {
	store     *corpus.Store
	dense     DenseIndex
	embedder  llm.Embedder
	tuning    config.RetrievalTuning
	aliases   map[string]string
	narrative map[string]bool
}

// NewRetriever creates a Retriever. A nil dense index or embedder disables
// the dense channel.
func NewRetriever(store *corpus.Store, dense DenseIndex, embedder llm.Embedder, tuning *config.Tuning) *Retriever {
	narrative := make(map[string]bool, len(tuning.Speakers.Narrative))
	for _, speaker := range tuning.Speakers.Narrative {
		narrative[speaker] = true
	}
	return &Retriever{
		store:     store,
		dense:     dense,
		embedder:  embedder,
		tuning:    tuning.Retrieval,
		aliases:   tuning.Labels.EmotionAliases,
		narrative: narrative,
	}
}

// Retrieval is the outcome of one retrieval.
type Retrieval struct {
	Candidates []ScoredCandidate
	// DenseErr is set when the dense channel was dropped.
	DenseErr        error
	MatchedTriggers []string
}

// Retrieve scores every passage for qc and returns at most search_limit
// candidates ordered by score, ties broken by passage id. A failing dense
// channel is dropped and reported in DenseErr. When nothing clears the
// min-score floor the error wraps ErrEmptyCorpusResult.
func (r *Retriever) Retrieve(ctx context.Context, qc QueryContext) (Retrieval, error) {
	logger := contextutil.LoggerFromContext(ctx)

	var result Retrieval
	n := r.store.Len()
	if n == 0 {
		return result, &StageError{Stage: StageRetrieve, Err: ErrEmptyCorpusResult}
	}

	dense, err := r.denseScores(ctx, qc.Rewritten)
	if err != nil {
		result.DenseErr = err
		dense = make([]float64, n)
	}

	lexical := r.store.Lexical().Scores(lexicalQuery(qc))
	mapping, triggers := r.store.MappingScores(qc.Raw, qc.Rewritten)
	result.MatchedTriggers = triggers

	w := r.tuning.Weights
	candidates := make([]ScoredCandidate, 0, n)
	for i := 0; i < n; i++ {
		c := ScoredCandidate{
			Passage: r.store.Passage(i),
			Dense:   dense[i],
			Lexical: lexical[i],
			Mapping: mapping[i],
		}
		c.Fused = w.Dense*c.Dense + w.Lexical*c.Lexical + w.Mapping*c.Mapping
		if c.Fused <= 0 {
			continue
		}
		if r.matchesEmotion(c.Passage, qc.EmotionalState) {
			c.EmotionBoost = r.tuning.EmotionBoost
		}
		if r.narrative[c.Passage.Speaker] {
			c.Penalty = r.tuning.NarrativePenalty
		}
		c.Score = c.Fused + c.EmotionBoost - c.Penalty
		if c.Score < r.tuning.MinScore {
			continue
		}
		candidates = append(candidates, c)
	}

	sortCandidates(candidates)
	if len(candidates) > r.tuning.SearchLimit {
		candidates = candidates[:r.tuning.SearchLimit]
	}
	result.Candidates = candidates

	logger.DebugContext(ctx, "retrieval scored",
		"candidates", len(candidates),
		"dense", result.DenseErr == nil,
		"triggers", triggers,
	)

	if len(candidates) == 0 {
		return result, &StageError{Stage: StageRetrieve, Err: ErrEmptyCorpusResult}
	}
	return result, nil
}

func (r *Retriever) denseScores(ctx context.Context, text string) ([]float64, error) {
	if r.dense == nil || r.embedder == nil {
		return nil, &StageError{Stage: StageRetrieve, Err: fmt.Errorf("%w: dense index not configured", ErrUpstream)}
	}
	vectors, err := r.embedder.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, upstream(StageRetrieve, fmt.Errorf("embed query: %w", err))
	}
	if len(vectors) != 1 {
		return nil, malformed(StageRetrieve, "embedder returned %d vectors for 1 text", len(vectors))
	}
	scores, err := r.dense.DenseScores(ctx, vectors[0])
	if err != nil {
		return nil, upstream(StageRetrieve, fmt.Errorf("dense scores: %w", err))
	}
	if len(scores) != r.store.Len() {
		return nil, malformed(StageRetrieve, "dense index returned %d scores for %d passages", len(scores), r.store.Len())
	}
	return scores, nil
}

// matchesEmotion reports whether p is tagged with state or with the corpus
// tag the state is aliased to.
func (r *Retriever) matchesEmotion(p corpus.Passage, state string) bool {
	if state == "" {
		return false
	}
	if p.HasEmotion(state) {
		return true
	}
	alias, ok := r.aliases[state]
	return ok && p.HasEmotion(alias)
}

func lexicalQuery(qc QueryContext) string {
	if qc.Raw == "" || strings.EqualFold(qc.Raw, qc.Rewritten) {
		return qc.Rewritten
	}
	return qc.Rewritten + " " + qc.Raw
}

// sortCandidates orders by descending score with passage id as the tie-break,
// so equal inputs always produce the same order.
func sortCandidates(candidates []ScoredCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return corpus.CompareIDs(candidates[i].Passage.ID, candidates[j].Passage.ID) < 0
	})
}
