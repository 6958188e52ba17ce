package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_passage_store.go -package=mocks talk-to-krishna/internal/storage PassageStore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"talk-to-krishna/internal/corpus"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

// PassageStore defines the interface for corpus snapshot storage.
type PassageStore interface {
	// SaveSnapshot replaces the stored corpus with passages and meta in one transaction.
	SaveSnapshot(ctx context.Context, passages []corpus.Passage, meta corpus.Meta) error
	// LoadPassages returns every stored passage ordered by chapter and verse.
	LoadPassages(ctx context.Context) ([]corpus.Passage, error)
	// Meta returns the snapshot metadata. Returns ErrNotFound if no snapshot exists.
	Meta(ctx context.Context) (*corpus.Meta, error)
}

// PassageRepo provides methods for corpus snapshot operations.
// It implements the PassageStore interface.
type PassageRepo struct {
	db *sql.DB
}

// NewPassageRepo creates a new PassageRepo.
func NewPassageRepo(db *sql.DB) *PassageRepo {
	return &PassageRepo{db: db}
}

// SaveSnapshot replaces all passages and the meta row.
// A failed save leaves the previous snapshot in place.
func (r *PassageRepo) SaveSnapshot(ctx context.Context, passages []corpus.Passage, meta corpus.Meta) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM passages"); err != nil {
		return fmt.Errorf("failed to clear passages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO passages (id, chapter, verse, source_text, translation, translation_hindi, speaker, emotion_tags, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare passage insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, p := range passages {
		tags, err := json.Marshal(nonNil(p.EmotionTags))
		if err != nil {
			return fmt.Errorf("failed to encode emotion tags for %s: %w", p.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			p.ID, p.Chapter, p.Verse, p.SourceText, p.Translation, p.TranslationHindi, p.Speaker,
			string(tags), encodeEmbedding(p.Embedding),
		); err != nil {
			return fmt.Errorf("failed to insert passage %s: %w", p.ID, err)
		}
	}

	builtAt := meta.BuiltAt
	if builtAt.IsZero() {
		builtAt = time.Now().UTC()
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO corpus_meta (id, embedding_model, dimension, passage_count, dataset_checksum, built_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			embedding_model = excluded.embedding_model,
			dimension = excluded.dimension,
			passage_count = excluded.passage_count,
			dataset_checksum = excluded.dataset_checksum,
			built_at = excluded.built_at`,
		meta.EmbeddingModel, meta.Dimension, len(passages), meta.DatasetChecksum, builtAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save corpus meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// LoadPassages returns all passages ordered by chapter and verse.
// Returns an empty slice if the corpus has not been built (not an error).
func (r *PassageRepo) LoadPassages(ctx context.Context) ([]corpus.Passage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, chapter, verse, source_text, translation, translation_hindi, speaker, emotion_tags, embedding
		FROM passages ORDER BY chapter, verse`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query passages: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var passages []corpus.Passage
	for rows.Next() {
		var (
			p     corpus.Passage
			hindi sql.NullString
			tags  string
			blob  []byte
		)
		if err := rows.Scan(&p.ID, &p.Chapter, &p.Verse, &p.SourceText, &p.Translation, &hindi, &p.Speaker, &tags, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan passage: %w", err)
		}
		p.TranslationHindi = hindi.String
		if err := json.Unmarshal([]byte(tags), &p.EmotionTags); err != nil {
			return nil, fmt.Errorf("failed to decode emotion tags for %s: %w", p.ID, err)
		}
		if p.Embedding, err = decodeEmbedding(blob); err != nil {
			return nil, fmt.Errorf("failed to decode embedding for %s: %w", p.ID, err)
		}
		passages = append(passages, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return passages, nil
}

// Meta returns the snapshot metadata. Returns ErrNotFound if not found.
func (r *PassageRepo) Meta(ctx context.Context) (*corpus.Meta, error) {
	var meta corpus.Meta
	err := r.db.QueryRowContext(ctx,
		"SELECT embedding_model, dimension, passage_count, dataset_checksum, built_at FROM corpus_meta WHERE id = 1",
	).Scan(&meta.EmbeddingModel, &meta.Dimension, &meta.PassageCount, &meta.DatasetChecksum, &meta.BuiltAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query corpus meta: %w", err)
	}

	return &meta, nil
}

// encodeEmbedding packs a vector as little-endian float32 values.
func encodeEmbedding(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeEmbedding(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 4", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
