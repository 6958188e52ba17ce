package rag

import (
	"talk-to-krishna/internal/config"
	"talk-to-krishna/internal/textutil"
)

// ToneClassifier picks the answer policy from the understood query.
// It makes no external calls.
type ToneClassifier struct {
	crisisStates   map[string]bool
	distressStates map[string]bool
	crisisPatterns *textutil.PhraseSet
}

// NewToneClassifier builds a classifier from the tone tuning.
func NewToneClassifier(tuning config.ToneTuning) *ToneClassifier {
	return &ToneClassifier{
		crisisStates:   toSet(tuning.CrisisStates),
		distressStates: toSet(tuning.DistressStates),
		crisisPatterns: textutil.NewPhraseSet(tuning.CrisisPatterns),
	}
}

// Classify returns crisis when the state is a crisis state or a crisis
// pattern occurs in the raw or rewritten text, distress for distress states
// and general otherwise.
func (t *ToneClassifier) Classify(qc QueryContext) Tone {
	if t.crisisStates[qc.EmotionalState] {
		return ToneCrisis
	}
	if t.matchesCrisis(qc.Raw) || t.matchesCrisis(qc.Rewritten) {
		return ToneCrisis
	}
	if t.distressStates[qc.EmotionalState] {
		return ToneDistress
	}
	return ToneGeneral
}

func (t *ToneClassifier) matchesCrisis(text string) bool {
	if text == "" {
		return false
	}
	_, ok := t.crisisPatterns.Match(textutil.Tokenize(text))
	return ok
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
