package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"time"

	"talk-to-krishna/internal/corpus"
	"talk-to-krishna/internal/textutil"
)

// BuildStats describes a built corpus.
type BuildStats struct {
	// Passages is the number of passages in the corpus.
	Passages int `json:"passages"`
	// Chapters is the number of distinct chapters.
	Chapters int `json:"chapters"`
	// Dimension is the embedding dimension.
	Dimension int `json:"dimension"`
	// EmbeddingModel is the model the embeddings were produced with.
	EmbeddingModel string `json:"embedding_model"`
	// DatasetChecksum is the sha256 of the dataset file.
	DatasetChecksum string `json:"dataset_checksum"`
	// BuiltAt is when the snapshot was built.
	BuiltAt time.Time `json:"built_at"`
	// Speakers counts passages per speaker.
	Speakers map[string]int `json:"speakers"`
	// EmotionTags counts passages per emotion tag.
	EmotionTags map[string]int `json:"emotion_tags"`
	// Untagged is the number of passages without any emotion tag.
	Untagged int `json:"untagged"`
	// MappedPassages is the number of passages reachable from a curated mapping.
	MappedPassages int `json:"mapped_passages"`
	// TokenStats summarizes the search tokens per passage.
	TokenStats TokenStats `json:"token_stats"`
	// IndexVersion identifies the build (model, dimension and dataset).
	IndexVersion string `json:"index_version"`
}

// TokenStats contains statistics about token counts in passages.
type TokenStats struct {
	// Min is the minimum token count across all passages.
	Min int `json:"min"`
	// Max is the maximum token count across all passages.
	Max int `json:"max"`
	// Mean is the mean token count across all passages.
	Mean float64 `json:"mean"`
	// P95 is the 95th percentile token count.
	P95 int `json:"p95"`
}

// ComputeStats summarizes store.
func ComputeStats(store *corpus.Store) *BuildStats {
	meta := store.Meta()
	stats := &BuildStats{
		Passages:        store.Len(),
		Dimension:       store.Dim(),
		EmbeddingModel:  meta.EmbeddingModel,
		DatasetChecksum: meta.DatasetChecksum,
		BuiltAt:         meta.BuiltAt,
		Speakers:        make(map[string]int),
		EmotionTags:     make(map[string]int),
		IndexVersion:    IndexVersion(meta.EmbeddingModel, store.Dim(), meta.DatasetChecksum),
	}

	chapters := make(map[int]struct{})
	tokenCounts := make([]int, 0, store.Len())
	for _, p := range store.Passages() {
		chapters[p.Chapter] = struct{}{}
		stats.Speakers[p.Speaker]++
		if len(p.EmotionTags) == 0 {
			stats.Untagged++
		}
		for _, tag := range p.EmotionTags {
			stats.EmotionTags[tag]++
		}
		if len(p.Keywords) > 0 {
			stats.MappedPassages++
		}
		tokenCounts = append(tokenCounts, len(textutil.Tokenize(p.Translation+" "+p.SourceText)))
	}
	stats.Chapters = len(chapters)
	stats.TokenStats = computeTokenStats(tokenCounts)
	return stats
}

// IndexVersion hashes the inputs that make two builds interchangeable.
func IndexVersion(model string, dim int, checksum string) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s|dim=%d|dataset=%s", model, dim, checksum)))
	return hex.EncodeToString(hash[:])[:16] // 16 hex chars = 64 bits
}

// computeTokenStats computes min, max, mean, and p95 from token counts.
func computeTokenStats(tokenCounts []int) TokenStats {
	if len(tokenCounts) == 0 {
		return TokenStats{}
	}

	// Sort for percentile calculation
	sorted := make([]int, len(tokenCounts))
	copy(sorted, tokenCounts)
	sort.Ints(sorted)

	sum := 0
	for _, count := range tokenCounts {
		sum += count
	}
	mean := float64(sum) / float64(len(tokenCounts))

	p95Index := int(math.Ceil(float64(len(sorted))*0.95)) - 1
	if p95Index < 0 {
		p95Index = 0
	}

	return TokenStats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: math.Round(mean*100) / 100, // Round to 2 decimal places
		P95:  sorted[p95Index],
	}
}
