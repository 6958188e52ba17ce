package rag

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"talk-to-krishna/internal/config"
	"talk-to-krishna/internal/corpus"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testTuning(t *testing.T) *config.Tuning {
	t.Helper()
	tuning, err := config.DefaultTuning()
	if err != nil {
		t.Fatalf("DefaultTuning() error = %v", err)
	}
	return tuning
}

func testPassages() []corpus.Passage {
	return []corpus.Passage{
		{
			ID: "2.47", Chapter: 2, Verse: 47, Speaker: "krishna",
			SourceText:       "कर्मण्येवाधिकारस्ते मा फलेषु कदाचन",
			Translation:      "You have a right to perform your prescribed duty, but you are not entitled to the fruits of action.",
			TranslationHindi: "तुम्हारा अधिकार केवल कर्म पर है, फल पर नहीं।",
			EmotionTags:      []string{"fear"},
			Embedding:        []float32{1, 0, 0},
		},
		{
			ID: "2.14", Chapter: 2, Verse: 14, Speaker: "krishna",
			SourceText:       "मात्रास्पर्शास्तु कौन्तेय शीतोष्णसुखदुःखदाः",
			Translation:      "Happiness and distress appear and disappear like winter and summer. Learn to tolerate them without being disturbed.",
			TranslationHindi: "सुख और दुख सर्दी-गर्मी की तरह आते जाते हैं।",
			EmotionTags:      []string{"sadness"},
			Embedding:        []float32{0, 1, 0},
		},
		{
			ID: "1.1", Chapter: 1, Verse: 1, Speaker: "dhritarashtra",
			SourceText:  "धर्मक्षेत्रे कुरुक्षेत्रे समवेता युयुत्सवः",
			Translation: "Dhritarashtra said: assembled on the field of dharma, desiring to fight, what did my sons do?",
			Embedding:   []float32{0.9, 0.1, 0},
		},
		{
			ID: "6.5", Chapter: 6, Verse: 5, Speaker: "krishna",
			SourceText:  "उद्धरेदात्मनात्मानं नात्मानमवसादयेत्",
			Translation: "Elevate yourself through the power of your mind and do not degrade yourself. The mind is the friend of the self.",
			Embedding:   []float32{0.5, 0.5, 0},
		},
		{
			ID: "18.66", Chapter: 18, Verse: 66, Speaker: "krishna",
			SourceText:  "सर्वधर्मान्परित्यज्य मामेकं शरणं व्रज",
			Translation: "Abandon all varieties of dharma and surrender unto me. I shall protect you. Do not fear.",
			EmotionTags: []string{"fear", "sadness"},
			Embedding:   []float32{0, 0.8, 0.2},
		},
	}
}

func newTestStore(t *testing.T, tuning *config.Tuning, passages []corpus.Passage) *corpus.Store {
	t.Helper()
	mappings := make([]corpus.Mapping, len(tuning.Mappings))
	for i, m := range tuning.Mappings {
		mappings[i] = corpus.Mapping{Triggers: m.Triggers, Passages: m.Passages}
	}
	store, err := corpus.NewStore(passages, mappings, corpus.Options{
		AllowEmpty:   true,
		BM25K1:       tuning.Retrieval.BM25K1,
		BM25B:        tuning.Retrieval.BM25B,
		MappingDecay: tuning.Retrieval.MappingDecay,
		MappingFloor: tuning.Retrieval.MappingFloor,
		Synonyms:     tuning.Synonyms,
	})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

// storeDense scores with the store's own brute-force scan.
type storeDense struct {
	store *corpus.Store
}

func (d storeDense) DenseScores(_ context.Context, query []float32) ([]float64, error) {
	return d.store.DenseScores(query)
}

func candidateIDs(candidates []ScoredCandidate) []string {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.Passage.ID
	}
	return ids
}
