package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var stopwords = map[string]struct{}{
	// English
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "have": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {},
	"or": {}, "the": {}, "to": {}, "was": {}, "were": {}, "with": {}, "i": {}, "my": {}, "me": {},
	"this": {}, "that": {},
	// Romanized Hindi
	"mein": {}, "ko": {}, "se": {}, "ka": {}, "ki": {}, "ke": {}, "hai": {}, "hain": {}, "aur": {},
	"toh": {}, "bhi": {}, "tha": {}, "thi": {}, "ne": {}, "par": {}, "liye": {}, "ye": {}, "wo": {},
	"woh": {},
	// Devanagari
	"है": {}, "हैं": {}, "का": {}, "की": {}, "के": {}, "को": {}, "से": {}, "में": {}, "और": {},
	"तो": {}, "भी": {}, "था": {}, "थी": {}, "ने": {}, "पर": {}, "लिए": {}, "यह": {}, "वह": {},
}

// Normalize applies NFKC normalization and Unicode case folding.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	return cases.Fold().String(norm.NFKC.String(text))
}

// Tokenize normalizes text and splits it into tokens made of letters, digits
// and combining marks. Combining marks are kept so Devanagari words stay whole.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}

	normalized := Normalize(text)
	var builder strings.Builder
	builder.Grow(len(normalized))
	for _, r := range normalized {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) {
			builder.WriteRune(r)
		} else {
			builder.WriteRune(' ')
		}
	}
	tokens := strings.Fields(builder.String())
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}

// FilterStopwords drops common English and Hindi function words.
func FilterStopwords(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}

	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := stopwords[token]; isStop {
			continue
		}
		result = append(result, token)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// Phrase is a tokenized pattern matched against token sequences.
type Phrase []string

// NewPhrase tokenizes a pattern. It returns nil for patterns without tokens.
func NewPhrase(pattern string) Phrase {
	return Phrase(Tokenize(pattern))
}

// String joins the phrase tokens with single spaces.
func (p Phrase) String() string {
	return strings.Join(p, " ")
}

// MatchIn reports whether the phrase occurs in tokens as a contiguous run.
// Matching happens on token boundaries, so "match" never matches "matched".
func (p Phrase) MatchIn(tokens []string) bool {
	if len(p) == 0 || len(p) > len(tokens) {
		return false
	}
	for i := 0; i+len(p) <= len(tokens); i++ {
		if tokens[i] != p[0] {
			continue
		}
		matched := true
		for j := 1; j < len(p); j++ {
			if tokens[i+j] != p[j] {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

// PhraseSet is an immutable set of phrases indexed by their first token.
type PhraseSet struct {
	byFirst map[string][]Phrase
	size    int
}

// NewPhraseSet tokenizes patterns into a PhraseSet, dropping empty ones.
func NewPhraseSet(patterns []string) *PhraseSet {
	set := &PhraseSet{byFirst: make(map[string][]Phrase, len(patterns))}
	for _, pattern := range patterns {
		phrase := NewPhrase(pattern)
		if len(phrase) == 0 {
			continue
		}
		set.byFirst[phrase[0]] = append(set.byFirst[phrase[0]], phrase)
		set.size++
	}
	return set
}

// Len returns the number of phrases in the set.
func (s *PhraseSet) Len() int {
	if s == nil {
		return 0
	}
	return s.size
}

// Match returns the first phrase found in tokens.
func (s *PhraseSet) Match(tokens []string) (Phrase, bool) {
	if s == nil {
		return nil, false
	}
	for i, token := range tokens {
		for _, phrase := range s.byFirst[token] {
			if phrase.MatchIn(tokens[i:]) {
				return phrase, true
			}
		}
	}
	return nil, false
}

// Contains reports whether a single-token or multi-token phrase equal to
// the tokens exists in the set.
func (s *PhraseSet) Contains(tokens []string) bool {
	if s == nil || len(tokens) == 0 {
		return false
	}
	for _, phrase := range s.byFirst[tokens[0]] {
		if len(phrase) == len(tokens) && phrase.MatchIn(tokens) {
			return true
		}
	}
	return false
}

// Truncate shortens text to at most max runes.
func Truncate(text string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
