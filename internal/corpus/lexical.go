package corpus

import (
	"math"

	"talk-to-krishna/internal/textutil"
)

const (
	defaultBM25K1 = 1.2
	defaultBM25B  = 0.75
)

// LexicalIndex is a BM25 index over passage texts. It is built once and
// safe for concurrent reads.
type LexicalIndex struct {
	termFreqs []map[string]int
	docLens   []int
	docFreq   map[string]int
	avgDocLen float64
	k1        float64
	b         float64
	// expansions maps a term to the full synonym group it belongs to.
	expansions map[string][]string
}

func newLexicalIndex(passages []Passage, k1, b float64, synonyms map[string][]string) *LexicalIndex {
	if k1 <= 0 {
		k1 = defaultBM25K1
	}
	if b < 0 || b > 1 {
		b = defaultBM25B
	}

	idx := &LexicalIndex{
		termFreqs:  make([]map[string]int, len(passages)),
		docLens:    make([]int, len(passages)),
		docFreq:    make(map[string]int),
		k1:         k1,
		b:          b,
		expansions: buildExpansions(synonyms),
	}

	var totalLen int
	for i, p := range passages {
		tokens := textutil.FilterStopwords(textutil.Tokenize(p.Translation + " " + p.SourceText + " " + p.TranslationHindi))
		freqs := make(map[string]int, len(tokens))
		for _, token := range tokens {
			freqs[token]++
		}
		for token := range freqs {
			idx.docFreq[token]++
		}
		idx.termFreqs[i] = freqs
		idx.docLens[i] = len(tokens)
		totalLen += len(tokens)
	}
	if len(passages) > 0 {
		idx.avgDocLen = float64(totalLen) / float64(len(passages))
	}
	return idx
}

func buildExpansions(synonyms map[string][]string) map[string][]string {
	expansions := make(map[string][]string)
	for _, group := range synonyms {
		var terms []string
		for _, term := range group {
			terms = append(terms, textutil.Tokenize(term)...)
		}
		terms = sortedUnique(terms)
		for _, term := range terms {
			expansions[term] = mergeTerms(expansions[term], terms)
		}
	}
	return expansions
}

func mergeTerms(a, b []string) []string {
	return sortedUnique(append(append([]string{}, a...), b...))
}

// QueryTerms tokenizes a query, removes stopwords and adds every term of
// each synonym group the query touches.
func (idx *LexicalIndex) QueryTerms(query string) []string {
	tokens := textutil.FilterStopwords(textutil.Tokenize(query))
	if len(tokens) == 0 {
		return nil
	}
	terms := append([]string{}, tokens...)
	for _, token := range tokens {
		terms = append(terms, idx.expansions[token]...)
	}
	return sortedUnique(terms)
}

// Scores returns BM25 scores for every passage, normalized so the best
// passage scores 1. All scores are 0 when nothing matches.
func (idx *LexicalIndex) Scores(query string) []float64 {
	scores := make([]float64, len(idx.termFreqs))
	terms := idx.QueryTerms(query)
	if len(terms) == 0 || len(scores) == 0 {
		return scores
	}

	n := float64(len(idx.termFreqs))
	var best float64
	for i, freqs := range idx.termFreqs {
		docLen := float64(idx.docLens[i])
		var score float64
		for _, term := range terms {
			tf := float64(freqs[term])
			if tf == 0 {
				continue
			}
			df := float64(idx.docFreq[term])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			norm := 1 - idx.b
			if idx.avgDocLen > 0 {
				norm += idx.b * docLen / idx.avgDocLen
			}
			score += idf * tf * (idx.k1 + 1) / (tf + idx.k1*norm)
		}
		scores[i] = score
		if score > best {
			best = score
		}
	}

	if best == 0 {
		return scores
	}
	for i := range scores {
		scores[i] /= best
	}
	return scores
}
