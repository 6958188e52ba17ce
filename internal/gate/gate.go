// Package gate decides locally, without any model call, whether a query is a
// greeting, out of domain, or should continue through the answer pipeline.
package gate

import (
	"sort"

	"talk-to-krishna/internal/config"
	"talk-to-krishna/internal/textutil"
)

// Verdict is the result of classifying a raw query.
type Verdict struct {
	// InDomain is false only when a blocked topic matched and no allowed topic did.
	InDomain bool
	// Greeting short-circuits the pipeline with the fixed greeting answer.
	Greeting bool
	// BlockedCategory names the first blocked category that matched, if any.
	BlockedCategory string
	// AllowedMatch is the allowed-topic phrase that matched, if any.
	AllowedMatch string
}

type category struct {
	name     string
	patterns *textutil.PhraseSet
}

// Classifier holds the compiled pattern sets. It is immutable after New.
type Classifier struct {
	greetings     *textutil.PhraseSet
	crisis        *textutil.PhraseSet
	questionWords map[string]struct{}
	blocked       []category
	allowed       *textutil.PhraseSet
}

// New compiles the gate patterns. A query matching one of crisisPatterns is
// never answered with the greeting, whatever words it opens with.
func New(t config.GateTuning, crisisPatterns []string) *Classifier {
	c := &Classifier{
		greetings:     textutil.NewPhraseSet(t.Greetings),
		crisis:        textutil.NewPhraseSet(crisisPatterns),
		questionWords: make(map[string]struct{}, len(t.QuestionWords)),
		allowed:       textutil.NewPhraseSet(t.AllowedTopics),
	}
	for _, w := range t.QuestionWords {
		for _, token := range textutil.Tokenize(w) {
			c.questionWords[token] = struct{}{}
		}
	}

	names := make([]string, 0, len(t.BlockedTopics))
	for name := range t.BlockedTopics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c.blocked = append(c.blocked, category{name: name, patterns: textutil.NewPhraseSet(t.BlockedTopics[name])})
	}
	return c
}

// Classify inspects raw query text.
func (c *Classifier) Classify(raw string) Verdict {
	tokens := textutil.Tokenize(raw)
	if len(tokens) == 0 {
		return Verdict{InDomain: true}
	}
	if c.isGreeting(tokens) && !c.isCrisis(tokens) {
		return Verdict{InDomain: true, Greeting: true}
	}

	v := Verdict{InDomain: true}
	if phrase, ok := c.allowed.Match(tokens); ok {
		v.AllowedMatch = phrase.String()
	}
	for _, cat := range c.blocked {
		if _, ok := cat.patterns.Match(tokens); ok {
			v.BlockedCategory = cat.name
			break
		}
	}
	if v.BlockedCategory != "" && v.AllowedMatch == "" {
		v.InDomain = false
	}
	return v
}

func (c *Classifier) isGreeting(tokens []string) bool {
	if c.greetings.Contains(tokens) {
		return true
	}

	if len(tokens) >= 2 && c.greetings.Contains(tokens[:2]) {
		if len(tokens) <= 3 || !c.hasQuestionWord(tokens) {
			return true
		}
	}

	if len(tokens) <= 3 {
		for _, token := range tokens {
			if c.greetings.Contains([]string{token}) {
				return true
			}
		}
		return false
	}

	if len(tokens) <= 6 && c.greetings.Contains(tokens[:1]) {
		return !c.hasQuestionWord(tokens)
	}
	return false
}

func (c *Classifier) isCrisis(tokens []string) bool {
	_, ok := c.crisis.Match(tokens)
	return ok
}

func (c *Classifier) hasQuestionWord(tokens []string) bool {
	for _, token := range tokens {
		if _, ok := c.questionWords[token]; ok {
			return true
		}
	}
	return false
}
