package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talk-to-krishna/internal/corpus"
	"talk-to-krishna/internal/indexer"
	"talk-to-krishna/internal/storage"
)

func seedSnapshot(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "corpus.db")
	db, err := storage.New(dbPath)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, storage.Migrate(db))

	passages := []corpus.Passage{{
		ID: "2.47", Chapter: 2, Verse: 47, Speaker: "krishna",
		SourceText:  "कर्मण्येवाधिकारस्ते मा फलेषु कदाचन",
		Translation: "Your right is to action alone",
		EmotionTags: []string{"fear"},
		Embedding:   []float32{1, 0, 0},
	}}
	meta := corpus.Meta{EmbeddingModel: "bge-small-en-v1.5", Dimension: 3, PassageCount: 1, DatasetChecksum: "abc"}
	require.NoError(t, storage.NewPassageRepo(db).SaveSnapshot(context.Background(), passages, meta))
	return dbPath
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	a := newApp()
	a.Writer = &out
	a.ErrWriter = &out
	err := a.Run(append([]string{"corpusctl"}, args...))
	return out.String(), err
}

func TestBuildCommandFlags(t *testing.T) {
	t.Run("dataset is required", func(t *testing.T) {
		_, err := runApp(t, "build")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dataset")
	})

	t.Run("missing dataset file", func(t *testing.T) {
		t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "corpus.db"))
		_, err := runApp(t, "build", "--dataset", filepath.Join(t.TempDir(), "missing.json"))
		require.Error(t, err)
	})
}

func TestSetupLogger_InvalidLevel(t *testing.T) {
	_, err := runApp(t, "--log-level", "loud", "inspect")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestInspectCommand(t *testing.T) {
	t.Setenv("DB_PATH", seedSnapshot(t))

	t.Run("statistics", func(t *testing.T) {
		out, err := runApp(t, "inspect")
		require.NoError(t, err)

		var stats indexer.BuildStats
		require.NoError(t, json.Unmarshal([]byte(out), &stats))
		assert.Equal(t, 1, stats.Passages)
		assert.Equal(t, 3, stats.Dimension)
		assert.Equal(t, "bge-small-en-v1.5", stats.EmbeddingModel)
		assert.Equal(t, 1, stats.EmotionTags["fear"])
	})

	t.Run("single passage", func(t *testing.T) {
		out, err := runApp(t, "inspect", "--passage", "2.47")
		require.NoError(t, err)

		var view passageView
		require.NoError(t, json.Unmarshal([]byte(out), &view))
		assert.Equal(t, "2.47", view.ID)
		assert.Equal(t, 3, view.Dimension)
	})

	t.Run("unknown passage", func(t *testing.T) {
		_, err := runApp(t, "inspect", "--passage", "99.1")
		require.Error(t, err)
	})
}

func TestInspectCommand_NoSnapshot(t *testing.T) {
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "empty.db"))

	_, err := runApp(t, "inspect")
	require.ErrorIs(t, err, corpus.ErrEmptyCorpus)
}
