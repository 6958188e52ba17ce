package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"talk-to-krishna/internal/corpus"
)

func samplePassages() []corpus.Passage {
	return []corpus.Passage{
		{
			ID: "2.47", Chapter: 2, Verse: 47,
			SourceText:       "कर्मण्येवाधिकारस्ते",
			Translation:      "You have a right to action alone",
			TranslationHindi: "तेरा कर्म करने में ही अधिकार है",
			Speaker:          "krishna",
			EmotionTags:      []string{"peace"},
			Embedding:        []float32{0.25, -1.5, 3},
		},
		{
			ID: "1.1", Chapter: 1, Verse: 1,
			SourceText:  "धृतराष्ट्र उवाच",
			Translation: "Dhritarashtra said",
			Speaker:     "dhritarashtra",
			Embedding:   []float32{1, 0, 0},
		},
	}
}

func TestPassageRepo_SaveAndLoad(t *testing.T) {
	repo := NewPassageRepo(openTestDB(t))
	ctx := context.Background()

	builtAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	meta := corpus.Meta{EmbeddingModel: "bge-small", Dimension: 3, DatasetChecksum: "abc", BuiltAt: builtAt}
	if err := repo.SaveSnapshot(ctx, samplePassages(), meta); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}

	got, err := repo.LoadPassages(ctx)
	if err != nil {
		t.Fatalf("LoadPassages() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("LoadPassages() returned %d passages, want 2", len(got))
	}
	if got[0].ID != "1.1" || got[1].ID != "2.47" {
		t.Errorf("LoadPassages() order = [%s %s], want [1.1 2.47]", got[0].ID, got[1].ID)
	}

	p := got[1]
	if p.TranslationHindi != "तेरा कर्म करने में ही अधिकार है" {
		t.Errorf("TranslationHindi = %q", p.TranslationHindi)
	}
	if len(p.EmotionTags) != 1 || p.EmotionTags[0] != "peace" {
		t.Errorf("EmotionTags = %v, want [peace]", p.EmotionTags)
	}
	want := []float32{0.25, -1.5, 3}
	for i, v := range want {
		if p.Embedding[i] != v {
			t.Errorf("Embedding[%d] = %v, want %v", i, p.Embedding[i], v)
		}
	}
	if len(got[0].EmotionTags) != 0 {
		t.Errorf("untagged passage EmotionTags = %v, want empty", got[0].EmotionTags)
	}

	m, err := repo.Meta(ctx)
	if err != nil {
		t.Fatalf("Meta() error = %v", err)
	}
	if m.PassageCount != 2 || m.Dimension != 3 || m.EmbeddingModel != "bge-small" || m.DatasetChecksum != "abc" {
		t.Errorf("Meta() = %+v", m)
	}
	if !m.BuiltAt.Equal(builtAt) {
		t.Errorf("Meta().BuiltAt = %v, want %v", m.BuiltAt, builtAt)
	}
}

func TestPassageRepo_SnapshotReplaces(t *testing.T) {
	repo := NewPassageRepo(openTestDB(t))
	ctx := context.Background()

	if err := repo.SaveSnapshot(ctx, samplePassages(), corpus.Meta{EmbeddingModel: "a", Dimension: 3}); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}
	if err := repo.SaveSnapshot(ctx, samplePassages()[:1], corpus.Meta{EmbeddingModel: "b", Dimension: 3}); err != nil {
		t.Fatalf("SaveSnapshot() second error = %v", err)
	}

	got, err := repo.LoadPassages(ctx)
	if err != nil {
		t.Fatalf("LoadPassages() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "2.47" {
		t.Errorf("LoadPassages() = %v, want only 2.47", got)
	}

	m, err := repo.Meta(ctx)
	if err != nil {
		t.Fatalf("Meta() error = %v", err)
	}
	if m.EmbeddingModel != "b" || m.PassageCount != 1 {
		t.Errorf("Meta() = %+v, want model b with 1 passage", m)
	}
}

func TestPassageRepo_FailedSaveKeepsPrevious(t *testing.T) {
	repo := NewPassageRepo(openTestDB(t))
	ctx := context.Background()

	if err := repo.SaveSnapshot(ctx, samplePassages(), corpus.Meta{Dimension: 3}); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}

	dup := append(samplePassages(), samplePassages()[0])
	if err := repo.SaveSnapshot(ctx, dup, corpus.Meta{Dimension: 3}); err == nil {
		t.Fatal("SaveSnapshot() with duplicate ids should fail")
	}

	got, err := repo.LoadPassages(ctx)
	if err != nil {
		t.Fatalf("LoadPassages() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("LoadPassages() returned %d passages after failed save, want 2", len(got))
	}
}

func TestPassageRepo_Empty(t *testing.T) {
	repo := NewPassageRepo(openTestDB(t))
	ctx := context.Background()

	got, err := repo.LoadPassages(ctx)
	if err != nil {
		t.Fatalf("LoadPassages() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("LoadPassages() = %v, want empty", got)
	}

	if _, err := repo.Meta(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("Meta() error = %v, want ErrNotFound", err)
	}
}

func TestDecodeEmbedding_BadLength(t *testing.T) {
	if _, err := decodeEmbedding([]byte{1, 2, 3}); err == nil {
		t.Error("decodeEmbedding() should reject a truncated blob")
	}
}
