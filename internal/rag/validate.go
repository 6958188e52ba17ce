package rag

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"talk-to-krishna/internal/config"
	"talk-to-krishna/internal/corpus"
	"talk-to-krishna/internal/textutil"
)

var (
	citationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`अध्याय\s*(\d+)\s*[,:\-]?\s*श्लोक\s*(\d+)`),
		regexp.MustCompile(`(?i)chapter\s*(\d+)\s*[,:\-]?\s*verse\s*(\d+)`),
	}
	// shortCitation matches "C.V"; neighbours are checked by hand so that
	// adjacent citations are not swallowed.
	shortCitation = regexp.MustCompile(`(\d{1,2})\.(\d{1,3})`)
	actionLine    = regexp.MustCompile(`(?m)^\s*(?:\d+[.)]|[-•*])\s+\S`)
)

// Validator checks generated answers before they are returned.
type Validator struct {
	maxWords       int
	minActionSteps int
	safety         *textutil.PhraseSet
	unsafe         *textutil.PhraseSet
}

// NewValidator builds the structure and safety validators.
func NewValidator(tuning config.SynthesisTuning) *Validator {
	return &Validator{
		maxWords:       tuning.MaxWords,
		minActionSteps: tuning.MinActionSteps,
		safety:         textutil.NewPhraseSet(tuning.SafetyPhrases),
		unsafe:         textutil.NewPhraseSet(tuning.UnsafePhrases),
	}
}

// Structure checks a general or distress answer: non-empty, within the word
// limit, listing the action steps and, when passages were offered, quoting
// exactly one of them after an opening acknowledgment.
func (v *Validator) Structure(text string, shortlist []corpus.Passage) error {
	if strings.TrimSpace(text) == "" {
		return invalid(StageSynthesize, "empty answer")
	}
	if words := len(strings.Fields(text)); words > v.maxWords {
		return invalid(StageSynthesize, "answer has %d words, limit %d", words, v.maxWords)
	}
	if len(shortlist) > 0 {
		if err := checkQuote(text, shortlist); err != nil {
			return err
		}
	}
	if steps := countActionSteps(text); steps < v.minActionSteps {
		return invalid(StageSynthesize, "answer has %d action steps, want %d", steps, v.minActionSteps)
	}
	return nil
}

// quotePrefixTokens is how many leading tokens of the source text must
// follow the citation.
const quotePrefixTokens = 2

func checkQuote(text string, shortlist []corpus.Passage) error {
	text = asciiDigits(text)
	offered := make(map[string]int, len(shortlist))
	for i, p := range shortlist {
		offered[p.ID] = i
	}

	var first citation
	distinct := make(map[string]bool)
	for _, c := range citations(text) {
		if _, ok := offered[c.id]; !ok {
			continue
		}
		if len(distinct) == 0 {
			first = c
		}
		distinct[c.id] = true
	}
	switch {
	case len(distinct) == 0:
		return invalid(StageSynthesize, "answer cites no shortlisted passage")
	case len(distinct) > 1:
		return invalid(StageSynthesize, "answer quotes %d passages, want one", len(distinct))
	}

	lineStart := strings.LastIndex(text[:first.start], "\n") + 1
	if len(textutil.Tokenize(text[:lineStart])) == 0 {
		return invalid(StageSynthesize, "answer has no opening before the citation of %s", first.id)
	}

	quote := textutil.NewPhrase(asciiDigits(shortlist[offered[first.id]].SourceText))
	if len(quote) > quotePrefixTokens {
		quote = quote[:quotePrefixTokens]
	}
	if len(quote) > 0 && !quote.MatchIn(textutil.Tokenize(text[first.start:])) {
		return invalid(StageSynthesize, "answer does not quote the text of %s", first.id)
	}
	return nil
}

// Safety checks a crisis answer: non-empty, within the word limit, free of
// unsafe phrases and containing at least one supportive phrase.
func (v *Validator) Safety(text string) error {
	if strings.TrimSpace(text) == "" {
		return invalid(StageSynthesize, "empty answer")
	}
	if words := len(strings.Fields(text)); words > v.maxWords {
		return invalid(StageSynthesize, "answer has %d words, limit %d", words, v.maxWords)
	}
	tokens := textutil.Tokenize(text)
	if phrase, ok := v.unsafe.Match(tokens); ok {
		return invalid(StageSynthesize, "answer contains unsafe phrase %q", phrase.String())
	}
	if _, ok := v.safety.Match(tokens); !ok {
		return invalid(StageSynthesize, "answer contains no supportive phrase")
	}
	return nil
}

// Evidence returns the ids of shortlisted passages cited in text, in
// shortlist order.
func Evidence(text string, shortlist []corpus.Passage) []string {
	cited := citedIDs(text)
	evidence := make([]string, 0, len(shortlist))
	for _, p := range shortlist {
		if cited[p.ID] {
			evidence = append(evidence, p.ID)
		}
	}
	return evidence
}

type citation struct {
	id    string
	start int
}

func citedIDs(text string) map[string]bool {
	cited := make(map[string]bool)
	for _, c := range citations(asciiDigits(text)) {
		cited[c.id] = true
	}
	return cited
}

// citations lists the passage references in text, ordered by position.
// text must already have ASCII digits.
func citations(text string) []citation {
	var out []citation
	for _, pattern := range citationPatterns {
		for _, m := range pattern.FindAllStringSubmatchIndex(text, -1) {
			chapter, err1 := strconv.Atoi(text[m[2]:m[3]])
			verse, err2 := strconv.Atoi(text[m[4]:m[5]])
			if err1 != nil || err2 != nil {
				continue
			}
			out = append(out, citation{id: corpus.PassageID(chapter, verse), start: m[0]})
		}
	}
	for _, m := range shortCitation.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[0], m[1]
		if start > 0 && (isDigit(text[start-1]) || text[start-1] == '.') {
			continue
		}
		if end < len(text) && (isDigit(text[end]) || text[end] == '.' && end+1 < len(text) && isDigit(text[end+1])) {
			continue
		}
		chapter, _ := strconv.Atoi(text[m[2]:m[3]])
		verse, _ := strconv.Atoi(text[m[4]:m[5]])
		out = append(out, citation{id: corpus.PassageID(chapter, verse), start: start})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func countActionSteps(text string) int {
	return len(actionLine.FindAllStringIndex(asciiDigits(text), -1))
}

// asciiDigits rewrites Devanagari digits as ASCII digits.
func asciiDigits(text string) string {
	return strings.Map(func(r rune) rune {
		if r >= '०' && r <= '९' {
			return '0' + (r - '०')
		}
		return r
	}, text)
}
