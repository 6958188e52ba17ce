package corpus

import (
	"fmt"
	"math"
	"strings"
	"time"

	"talk-to-krishna/internal/textutil"
)

// Meta describes how a corpus snapshot was built.
type Meta struct {
	EmbeddingModel  string
	Dimension       int
	PassageCount    int
	BuiltAt         time.Time
	DatasetChecksum string
}

// Options configures store construction.
type Options struct {
	// AllowEmpty permits a store without passages.
	AllowEmpty   bool
	BM25K1       float64
	BM25B        float64
	MappingDecay float64
	MappingFloor float64
	Synonyms     map[string][]string
	Meta         Meta
}

// Store is the immutable in-memory corpus: passages, embeddings, the lexical
// index and the curated mapping. It is built once and never mutated, so it
// is safe for unsynchronized concurrent reads.
type Store struct {
	passages []Passage
	norms    []float64
	byID     map[string]int
	dim      int
	lexical  *LexicalIndex
	mapping  *mappingTable
	meta     Meta
}

// NewStore validates passages and builds a Store. Every passage needs a
// unique id, non-empty source text and translation, and an embedding of the
// same length as every other passage.
func NewStore(passages []Passage, mappings []Mapping, opts Options) (*Store, error) {
	if len(passages) == 0 && !opts.AllowEmpty {
		return nil, ErrEmptyCorpus
	}

	s := &Store{
		passages: make([]Passage, len(passages)),
		norms:    make([]float64, len(passages)),
		byID:     make(map[string]int, len(passages)),
		meta:     opts.Meta,
	}

	for i, p := range passages {
		if p.ID == "" {
			return nil, fmt.Errorf("%w: passage %d has no id", ErrInvalidPassage, i)
		}
		if _, dup := s.byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidPassage, p.ID)
		}
		if strings.TrimSpace(p.SourceText) == "" {
			return nil, fmt.Errorf("%w: %s has empty source text", ErrInvalidPassage, p.ID)
		}
		if strings.TrimSpace(p.Translation) == "" {
			return nil, fmt.Errorf("%w: %s has empty translation", ErrInvalidPassage, p.ID)
		}
		if len(p.Embedding) == 0 {
			return nil, fmt.Errorf("%w: %s has no embedding", ErrDimensionMismatch, p.ID)
		}
		if i == 0 {
			s.dim = len(p.Embedding)
		} else if len(p.Embedding) != s.dim {
			return nil, fmt.Errorf("%w: %s has %d dimensions, expected %d", ErrDimensionMismatch, p.ID, len(p.Embedding), s.dim)
		}

		owned := p
		owned.Embedding = append([]float32(nil), p.Embedding...)
		owned.EmotionTags = sortedUnique(p.EmotionTags)
		s.passages[i] = owned
		s.norms[i] = norm(owned.Embedding)
		s.byID[p.ID] = i
	}

	table, keywords := newMappingTable(mappings, s.byID, opts.MappingDecay, opts.MappingFloor)
	s.mapping = table
	for idx, triggers := range keywords {
		s.passages[idx].Keywords = sortedUnique(append(s.passages[idx].Keywords, triggers...))
	}
	s.lexical = newLexicalIndex(s.passages, opts.BM25K1, opts.BM25B, opts.Synonyms)

	s.meta.PassageCount = len(s.passages)
	if s.meta.Dimension == 0 {
		s.meta.Dimension = s.dim
	}
	return s, nil
}

// Len returns the number of passages.
func (s *Store) Len() int { return len(s.passages) }

// Dim returns the embedding dimension, 0 for an empty store.
func (s *Store) Dim() int { return s.dim }

// Meta returns the build metadata.
func (s *Store) Meta() Meta { return s.meta }

// Passage returns the passage at position i in corpus order.
// The returned slices must not be modified.
func (s *Store) Passage(i int) Passage { return s.passages[i] }

// Passages returns all passages in corpus order.
// The returned slices inside each Passage must not be modified.
func (s *Store) Passages() []Passage {
	return append([]Passage(nil), s.passages...)
}

// Get looks up a passage by id.
func (s *Store) Get(id string) (Passage, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Passage{}, false
	}
	return s.passages[i], true
}

// Index returns the corpus position of id, or -1.
func (s *Store) Index(id string) int {
	if i, ok := s.byID[id]; ok {
		return i
	}
	return -1
}

// Lexical returns the BM25 index.
func (s *Store) Lexical() *LexicalIndex { return s.lexical }

// DenseScores computes the cosine similarity between query and every passage.
func (s *Store) DenseScores(query []float32) ([]float64, error) {
	scores := make([]float64, len(s.passages))
	if len(s.passages) == 0 {
		return scores, nil
	}
	if len(query) != s.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d", ErrDimensionMismatch, len(query), s.dim)
	}
	qNorm := norm(query)
	if qNorm == 0 {
		return scores, nil
	}
	for i, p := range s.passages {
		if s.norms[i] == 0 {
			continue
		}
		var dot float64
		for j, v := range p.Embedding {
			dot += float64(v) * float64(query[j])
		}
		scores[i] = dot / (qNorm * s.norms[i])
	}
	return scores, nil
}

// MappingScores returns the curated-mapping score of every passage for the
// given texts, plus the triggers that matched.
func (s *Store) MappingScores(texts ...string) ([]float64, []string) {
	tokenSets := make([][]string, 0, len(texts))
	for _, text := range texts {
		if tokens := textutil.Tokenize(text); len(tokens) > 0 {
			tokenSets = append(tokenSets, tokens)
		}
	}
	return s.mapping.scores(len(s.passages), tokenSets...)
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
