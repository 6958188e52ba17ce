package rag

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"

	"go.uber.org/mock/gomock"

	"talk-to-krishna/internal/config"
	"talk-to-krishna/internal/corpus"
	"talk-to-krishna/internal/llm/mocks"
)

// denseOnly returns tuning where only the dense signal counts, so tests can
// control scores exactly through embeddings.
func denseOnly(t *testing.T) *config.Tuning {
	tuning := testTuning(t)
	tuning.Retrieval.Weights = config.Weights{Dense: 1}
	return tuning
}

func twin(id, speaker string, tags ...string) corpus.Passage {
	chapter, verse, _ := corpus.ParseID(id)
	return corpus.Passage{
		ID: id, Chapter: chapter, Verse: verse, Speaker: speaker,
		SourceText:  "श्लोक " + id,
		Translation: "identical meaning",
		EmotionTags: tags,
		Embedding:   []float32{1, 0, 0},
	}
}

func newDenseRetriever(t *testing.T, tuning *config.Tuning, passages []corpus.Passage, queryVec []float32) *Retriever {
	t.Helper()
	ctrl := gomock.NewController(t)
	embedder := mocks.NewMockEmbedder(ctrl)
	embedder.EXPECT().EmbedTexts(gomock.Any(), gomock.Len(1)).Return([][]float32{queryVec}, nil).AnyTimes()
	store := newTestStore(t, tuning, passages)
	return NewRetriever(store, storeDense{store: store}, embedder, tuning)
}

func TestRetrieve_TiesBrokenByPassageID(t *testing.T) {
	tuning := denseOnly(t)
	passages := []corpus.Passage{twin("10.1", "krishna"), twin("2.10", "krishna"), twin("2.9", "krishna")}
	r := newDenseRetriever(t, tuning, passages, []float32{1, 0, 0})
	qc := QueryContext{Raw: "q", Rewritten: "q", EmotionalState: "neutral"}

	first, err := r.Retrieve(context.Background(), qc)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	want := []string{"2.9", "2.10", "10.1"}
	if got := candidateIDs(first.Candidates); !reflect.DeepEqual(got, want) {
		t.Errorf("Retrieve() order = %v, want %v", got, want)
	}

	for i := 0; i < 5; i++ {
		again, err := r.Retrieve(context.Background(), qc)
		if err != nil {
			t.Fatalf("Retrieve() error = %v", err)
		}
		if !reflect.DeepEqual(again.Candidates, first.Candidates) {
			t.Fatalf("Retrieve() run %d differs from first run", i)
		}
	}
}

func TestRetrieve_EmotionBoostNeverRanksTaggedBelowUntagged(t *testing.T) {
	tests := []struct {
		name  string
		state string
		tag   string
	}{
		{name: "direct tag", state: "fear", tag: "fear"},
		{name: "alias tag", state: "sad", tag: "sadness"},
		{name: "anxious aliases fear", state: "anxious", tag: "fear"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tuning := denseOnly(t)
			// The tagged passage has the larger id, so only the boost can put it first.
			passages := []corpus.Passage{twin("3.1", "krishna"), twin("3.2", "krishna", tt.tag)}
			r := newDenseRetriever(t, tuning, passages, []float32{1, 0, 0})

			got, err := r.Retrieve(context.Background(), QueryContext{Raw: "q", Rewritten: "q", EmotionalState: tt.state})
			if err != nil {
				t.Fatalf("Retrieve() error = %v", err)
			}
			if ids := candidateIDs(got.Candidates); !reflect.DeepEqual(ids, []string{"3.2", "3.1"}) {
				t.Fatalf("Retrieve() order = %v, want [3.2 3.1]", ids)
			}
			tagged, untagged := got.Candidates[0], got.Candidates[1]
			if tagged.EmotionBoost != tuning.Retrieval.EmotionBoost {
				t.Errorf("EmotionBoost = %v, want %v", tagged.EmotionBoost, tuning.Retrieval.EmotionBoost)
			}
			if untagged.EmotionBoost != 0 {
				t.Errorf("untagged EmotionBoost = %v, want 0", untagged.EmotionBoost)
			}
			if tagged.Score < untagged.Score {
				t.Errorf("tagged score %v < untagged score %v", tagged.Score, untagged.Score)
			}
		})
	}
}

func TestRetrieve_NoBoostForOtherEmotion(t *testing.T) {
	tuning := denseOnly(t)
	passages := []corpus.Passage{twin("3.1", "krishna"), twin("3.2", "krishna", "anger")}
	r := newDenseRetriever(t, tuning, passages, []float32{1, 0, 0})

	got, err := r.Retrieve(context.Background(), QueryContext{Raw: "q", Rewritten: "q", EmotionalState: "fear"})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	for _, c := range got.Candidates {
		if c.EmotionBoost != 0 {
			t.Errorf("%s EmotionBoost = %v, want 0", c.Passage.ID, c.EmotionBoost)
		}
	}
}

func TestRetrieve_NarrativePenaltyIsExact(t *testing.T) {
	tuning := denseOnly(t)
	passages := []corpus.Passage{twin("1.2", "arjuna"), twin("1.3", "krishna")}
	r := newDenseRetriever(t, tuning, passages, []float32{1, 0, 0})

	got, err := r.Retrieve(context.Background(), QueryContext{Raw: "q", Rewritten: "q", EmotionalState: "neutral"})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if ids := candidateIDs(got.Candidates); !reflect.DeepEqual(ids, []string{"1.3", "1.2"}) {
		t.Fatalf("Retrieve() order = %v, want [1.3 1.2]", ids)
	}
	narrative, teaching := got.Candidates[1], got.Candidates[0]
	if narrative.Penalty != tuning.Retrieval.NarrativePenalty {
		t.Errorf("Penalty = %v, want %v", narrative.Penalty, tuning.Retrieval.NarrativePenalty)
	}
	if teaching.Penalty != 0 {
		t.Errorf("teaching Penalty = %v, want 0", teaching.Penalty)
	}
	if narrative.Score != narrative.Fused+narrative.EmotionBoost-tuning.Retrieval.NarrativePenalty {
		t.Errorf("Score = %v, want Fused %v - penalty %v", narrative.Score, narrative.Fused, tuning.Retrieval.NarrativePenalty)
	}
	if narrative.Fused != teaching.Fused {
		t.Errorf("Fused = %v and %v, want equal for identical passages", narrative.Fused, teaching.Fused)
	}
}

func TestRetrieve_MinScoreFloor(t *testing.T) {
	tuning := denseOnly(t)
	passages := []corpus.Passage{twin("4.1", "krishna")}
	r := newDenseRetriever(t, tuning, passages, []float32{0, 1, 0})

	got, err := r.Retrieve(context.Background(), QueryContext{Raw: "q", Rewritten: "q", EmotionalState: "neutral"})
	if !errors.Is(err, ErrEmptyCorpusResult) {
		t.Fatalf("Retrieve() error = %v, want ErrEmptyCorpusResult", err)
	}
	if len(got.Candidates) != 0 {
		t.Errorf("Retrieve() candidates = %v, want none", candidateIDs(got.Candidates))
	}
}

func TestRetrieve_CapsAtSearchLimit(t *testing.T) {
	tuning := denseOnly(t)
	var passages []corpus.Passage
	for v := 1; v <= 20; v++ {
		passages = append(passages, twin(fmt.Sprintf("5.%d", v), "krishna"))
	}
	r := newDenseRetriever(t, tuning, passages, []float32{1, 0, 0})

	got, err := r.Retrieve(context.Background(), QueryContext{Raw: "q", Rewritten: "q", EmotionalState: "neutral"})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got.Candidates) != tuning.Retrieval.SearchLimit {
		t.Errorf("Retrieve() returned %d candidates, want %d", len(got.Candidates), tuning.Retrieval.SearchLimit)
	}
	if got.Candidates[0].Passage.ID != "5.1" || got.Candidates[len(got.Candidates)-1].Passage.ID != "5.15" {
		t.Errorf("Retrieve() kept %v, want 5.1 through 5.15", candidateIDs(got.Candidates))
	}
}

func TestRetrieve_EmbeddingFailureDropsDenseChannel(t *testing.T) {
	tuning := testTuning(t)
	ctrl := gomock.NewController(t)
	embedder := mocks.NewMockEmbedder(ctrl)
	embedder.EXPECT().EmbedTexts(gomock.Any(), []string{"surrender to me and do not fear"}).Return(nil, errors.New("connection refused"))
	store := newTestStore(t, tuning, testPassages())
	r := NewRetriever(store, storeDense{store: store}, embedder, tuning)

	got, err := r.Retrieve(context.Background(), QueryContext{
		Raw:            "surrender to me and do not fear",
		Rewritten:      "surrender to me and do not fear",
		EmotionalState: "fear",
	})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if !errors.Is(got.DenseErr, ErrUpstream) {
		t.Errorf("DenseErr = %v, want ErrUpstream", got.DenseErr)
	}
	if len(got.Candidates) == 0 || got.Candidates[0].Passage.ID != "18.66" {
		t.Fatalf("Retrieve() = %v, want 18.66 first", candidateIDs(got.Candidates))
	}
	for _, c := range got.Candidates {
		if c.Dense != 0 {
			t.Errorf("%s Dense = %v, want 0 without the dense channel", c.Passage.ID, c.Dense)
		}
	}
}

func TestRetrieve_WithoutDenseIndex(t *testing.T) {
	tuning := testTuning(t)
	store := newTestStore(t, tuning, testPassages())
	r := NewRetriever(store, nil, nil, tuning)

	got, err := r.Retrieve(context.Background(), QueryContext{Raw: "I feel hopeless", Rewritten: "I feel hopeless", EmotionalState: "hopeless"})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if got.DenseErr == nil {
		t.Error("DenseErr = nil, want the dense channel reported unavailable")
	}
	if !reflect.DeepEqual(got.MatchedTriggers, []string{"hopeless"}) {
		t.Errorf("MatchedTriggers = %v, want [hopeless]", got.MatchedTriggers)
	}
	byID := make(map[string]ScoredCandidate)
	for _, c := range got.Candidates {
		byID[c.Passage.ID] = c
	}
	if c, ok := byID["6.5"]; !ok || c.Mapping != 1 {
		t.Errorf("6.5 mapping = %v (present %v), want 1", c.Mapping, ok)
	}
	if c, ok := byID["18.66"]; !ok || math.Abs(c.Mapping-0.7) > 1e-9 {
		t.Errorf("18.66 mapping = %v (present %v), want 0.7", c.Mapping, ok)
	}
}

func TestRetrieve_DenseIndexSizeMismatch(t *testing.T) {
	tuning := denseOnly(t)
	ctrl := gomock.NewController(t)
	embedder := mocks.NewMockEmbedder(ctrl)
	embedder.EXPECT().EmbedTexts(gomock.Any(), gomock.Any()).Return([][]float32{{1, 0, 0}}, nil)
	store := newTestStore(t, tuning, []corpus.Passage{twin("4.1", "krishna")})
	short := denseFunc(func(context.Context, []float32) ([]float64, error) { return []float64{}, nil })
	r := NewRetriever(store, short, embedder, tuning)

	got, err := r.Retrieve(context.Background(), QueryContext{Raw: "q", Rewritten: "q"})
	if !errors.Is(err, ErrEmptyCorpusResult) {
		t.Fatalf("Retrieve() error = %v, want ErrEmptyCorpusResult", err)
	}
	if !errors.Is(got.DenseErr, ErrUpstream) {
		t.Errorf("DenseErr = %v, want ErrUpstream", got.DenseErr)
	}
}

func TestRetrieve_EmptyStore(t *testing.T) {
	tuning := testTuning(t)
	store := newTestStore(t, tuning, nil)
	r := NewRetriever(store, storeDense{store: store}, nil, tuning)

	_, err := r.Retrieve(context.Background(), QueryContext{Raw: "q", Rewritten: "q"})
	if !errors.Is(err, ErrEmptyCorpusResult) {
		t.Errorf("Retrieve() error = %v, want ErrEmptyCorpusResult", err)
	}
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageRetrieve {
		t.Errorf("Retrieve() error = %v, want a retrieve StageError", err)
	}
}

type denseFunc func(ctx context.Context, query []float32) ([]float64, error)

func (f denseFunc) DenseScores(ctx context.Context, query []float32) ([]float64, error) {
	return f(ctx, query)
}
