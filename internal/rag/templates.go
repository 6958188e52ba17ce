package rag

import (
	"fmt"
	"strings"
	"text/template"

	"talk-to-krishna/internal/config"
	"talk-to-krishna/internal/corpus"
)

// Templates renders the fixed answers used when generation is skipped or fails.
type Templates struct {
	texts  config.TextTuning
	answer *template.Template
}

type answerData struct {
	Chapter    int
	Verse      int
	SourceText string
	Meaning    string
}

// NewTemplates parses the answer template.
func NewTemplates(texts config.TextTuning) (*Templates, error) {
	tmpl, err := template.New("answer").Option("missingkey=error").Parse(texts.AnswerTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse answer template: %w", err)
	}
	return &Templates{texts: texts, answer: tmpl}, nil
}

// Greeting returns the fixed greeting.
func (t *Templates) Greeting() string { return t.texts.Greeting }

// Rejection returns the out-of-domain answer.
func (t *Templates) Rejection() string { return t.texts.Rejection }

// Timeout returns the retryable placeholder answer.
func (t *Templates) Timeout() string { return t.texts.Timeout }

// Fallback returns the template answer for tone and the cited evidence.
// Crisis answers never cite; other tones cite the top passage when there is one.
func (t *Templates) Fallback(tone Tone, shortlist []corpus.Passage) (string, []string) {
	if tone == ToneCrisis {
		return t.texts.CrisisTemplate, []string{}
	}
	if len(shortlist) == 0 {
		return t.texts.Generic, []string{}
	}
	top := shortlist[0]
	var b strings.Builder
	err := t.answer.Execute(&b, answerData{
		Chapter:    top.Chapter,
		Verse:      top.Verse,
		SourceText: top.SourceText,
		Meaning:    top.DisplayTranslation(),
	})
	if err != nil {
		return t.texts.Generic, []string{}
	}
	return b.String(), []string{top.ID}
}
