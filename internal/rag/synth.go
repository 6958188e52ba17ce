package rag

import (
	"context"
	"strings"

	"talk-to-krishna/internal/config"
	"talk-to-krishna/internal/contextutil"
	"talk-to-krishna/internal/corpus"
	"talk-to-krishna/internal/llm"
)

// Draft is a validated generated answer.
type Draft struct {
	Text     string
	Evidence []string
}

// Synthesizer generates the final answer with the policy of the tone and
// validates it.
type Synthesizer struct {
	completer llm.Completer
	model     string
	tuning    config.SynthesisTuning
	validator *Validator
}

// NewSynthesizer creates a Synthesizer that calls model through completer.
func NewSynthesizer(completer llm.Completer, model string, tuning *config.Tuning) *Synthesizer {
	return &Synthesizer{
		completer: completer,
		model:     model,
		tuning:    tuning.Synthesis,
		validator: NewValidator(tuning.Synthesis),
	}
}

// Synthesize makes one model call. Crisis answers see at most one passage
// and must pass the safety validator; other answers must pass the structure
// validator. A failed call or a rejected answer wraps ErrUpstream.
func (s *Synthesizer) Synthesize(ctx context.Context, qc QueryContext, tone Tone, shortlist []corpus.Passage) (Draft, error) {
	logger := contextutil.LoggerFromContext(ctx)

	temperature := s.tuning.AnswerTemperature
	if tone == ToneCrisis {
		shortlist = crisisShortlist(shortlist)
		temperature = s.tuning.CrisisTemperature
	}

	prompt := llm.UserPrompt(s.systemPrompt(tone), s.userPrompt(qc, tone, shortlist), llm.ChatParams{
		Model:       s.model,
		MaxTokens:   s.tuning.MaxTokens,
		Temperature: float32(temperature),

		FrequencyPenalty: float32(s.tuning.FrequencyPenalty),
		PresencePenalty:  float32(s.tuning.PresencePenalty),
	})
	output, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		return Draft{}, upstream(StageSynthesize, err)
	}
	text := strings.TrimSpace(output)

	if tone == ToneCrisis {
		err = s.validator.Safety(text)
	} else {
		err = s.validator.Structure(text, shortlist)
	}
	if err != nil {
		return Draft{}, err
	}

	draft := Draft{Text: text, Evidence: Evidence(text, shortlist)}
	logger.DebugContext(ctx, "answer synthesized", "tone", tone, "evidence", draft.Evidence)
	return draft, nil
}

func crisisShortlist(shortlist []corpus.Passage) []corpus.Passage {
	if len(shortlist) > 1 {
		return shortlist[:1]
	}
	return shortlist
}
