package corpus

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Passage is a single retrievable verse with its translations and metadata.
// Passages held by a Store are read-only.
type Passage struct {
	ID               string // "chapter.verse"
	Chapter          int
	Verse            int
	SourceText       string
	Translation      string // English meaning, used for search
	TranslationHindi string // Hindi meaning, used for display
	Speaker          string
	EmotionTags      []string // sorted, unique
	Keywords         []string // curated triggers, sorted, unique
	Embedding        []float32
}

// HasEmotion reports whether tag is one of the passage's emotion tags.
func (p Passage) HasEmotion(tag string) bool {
	i := sort.SearchStrings(p.EmotionTags, tag)
	return i < len(p.EmotionTags) && p.EmotionTags[i] == tag
}

// DisplayTranslation prefers the Hindi meaning and falls back to English.
func (p Passage) DisplayTranslation() string {
	if p.TranslationHindi != "" {
		return p.TranslationHindi
	}
	return p.Translation
}

// PassageID formats a chapter and verse as a passage id.
func PassageID(chapter, verse int) string {
	return fmt.Sprintf("%d.%d", chapter, verse)
}

// ParseID splits a "chapter.verse" id. ok is false for any other form.
func ParseID(id string) (chapter, verse int, ok bool) {
	c, v, found := strings.Cut(id, ".")
	if !found {
		return 0, 0, false
	}
	chapter, err := strconv.Atoi(c)
	if err != nil {
		return 0, 0, false
	}
	verse, err = strconv.Atoi(v)
	if err != nil {
		return 0, 0, false
	}
	return chapter, verse, true
}

// CompareIDs orders passage ids by chapter then verse. Ids that do not parse
// sort after parseable ones, by plain string order.
func CompareIDs(a, b string) int {
	ac, av, aok := ParseID(a)
	bc, bv, bok := ParseID(b)
	switch {
	case aok && bok:
		if ac != bc {
			return ac - bc
		}
		return av - bv
	case aok:
		return -1
	case bok:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

func sortedUnique(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}
