package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed tuning.yaml
var defaultTuning []byte

// Tuning holds every tunable literal of the answer pipeline: fusion weights,
// adjustment values, label vocabularies, gate patterns, curated mappings and
// the fixed answer texts.
type Tuning struct {
	Retrieval RetrievalTuning     `yaml:"retrieval"`
	Labels    LabelTuning         `yaml:"labels"`
	Speakers  SpeakerTuning       `yaml:"speakers"`
	Gate      GateTuning          `yaml:"gate"`
	Tone      ToneTuning          `yaml:"tone"`
	Synthesis SynthesisTuning     `yaml:"synthesis"`
	Texts     TextTuning          `yaml:"texts"`
	Mappings  []MappingEntry      `yaml:"mappings" validate:"dive"`
	Synonyms  map[string][]string `yaml:"synonyms"`
}

// Weights are the non-negative fusion weights of the three retrieval signals.
type Weights struct {
	Dense   float64 `yaml:"dense" validate:"gte=0"`
	Lexical float64 `yaml:"lexical" validate:"gte=0"`
	Mapping float64 `yaml:"mapping" validate:"gte=0"`
}

// RetrievalTuning configures the hybrid retriever.
type RetrievalTuning struct {
	Weights          Weights `yaml:"weights"`
	EmotionBoost     float64 `yaml:"emotion_boost" validate:"gt=0"`
	NarrativePenalty float64 `yaml:"narrative_penalty" validate:"gte=0"`
	MinScore         float64 `yaml:"min_score"`
	SearchLimit      int     `yaml:"search_limit" validate:"gt=0"`
	FinalLimit       int     `yaml:"final_limit" validate:"gt=0,ltefield=SearchLimit"`
	// MappingDecay is subtracted per position in a curated mapping list.
	MappingDecay float64 `yaml:"mapping_decay" validate:"gte=0,lt=1"`
	MappingFloor float64 `yaml:"mapping_floor" validate:"gte=0,lte=1"`
	BM25K1       float64 `yaml:"bm25_k1" validate:"gt=0"`
	BM25B        float64 `yaml:"bm25_b" validate:"gte=0,lte=1"`
	// RerankSnippetChars bounds the translation text sent per rerank option.
	RerankSnippetChars int `yaml:"rerank_snippet_chars" validate:"gt=0"`
}

// LabelTuning holds the fixed label vocabularies produced by query understanding.
type LabelTuning struct {
	EmotionalStates       []string          `yaml:"emotional_states" validate:"min=1"`
	DefaultEmotionalState string            `yaml:"default_emotional_state" validate:"required"`
	Intents               []string          `yaml:"intents" validate:"min=1"`
	DefaultIntent         string            `yaml:"default_intent" validate:"required"`
	EmotionAliases        map[string]string `yaml:"emotion_aliases"`
	// EmotionThreshold is the minimum strength for a dataset emotion to become a tag.
	EmotionThreshold float64 `yaml:"emotion_threshold" validate:"gte=0,lte=1"`
}

// SpeakerMarker maps the opening phrase of a source text to its speaker.
type SpeakerMarker struct {
	Phrase  string `yaml:"phrase" validate:"required"`
	Speaker string `yaml:"speaker" validate:"required"`
}

// SpeakerTuning configures speaker detection and the narrative-frame set.
type SpeakerTuning struct {
	Default   string          `yaml:"default" validate:"required"`
	Narrative []string        `yaml:"narrative"`
	Markers   []SpeakerMarker `yaml:"markers" validate:"dive"`
}

// GateTuning holds the relevance gate pattern sets.
type GateTuning struct {
	Greetings     []string            `yaml:"greetings" validate:"min=1"`
	QuestionWords []string            `yaml:"question_words"`
	BlockedTopics map[string][]string `yaml:"blocked_topics"`
	AllowedTopics []string            `yaml:"allowed_topics"`
}

// ToneTuning configures local tone classification.
type ToneTuning struct {
	CrisisStates   []string `yaml:"crisis_states" validate:"min=1"`
	DistressStates []string `yaml:"distress_states"`
	CrisisPatterns []string `yaml:"crisis_patterns"`
}

// SynthesisTuning configures answer generation and validation.
type SynthesisTuning struct {
	Language           string   `yaml:"language" validate:"required"`
	AnswerTemperature  float64  `yaml:"answer_temperature" validate:"gte=0,lte=2"`
	CrisisTemperature  float64  `yaml:"crisis_temperature" validate:"gte=0,lte=2"`
	FrequencyPenalty   float64  `yaml:"frequency_penalty" validate:"gte=-2,lte=2"`
	PresencePenalty    float64  `yaml:"presence_penalty" validate:"gte=-2,lte=2"`
	MaxTokens          int      `yaml:"max_tokens" validate:"gt=0"`
	MaxWords           int      `yaml:"max_words" validate:"gt=0"`
	MinActionSteps     int      `yaml:"min_action_steps" validate:"gte=0"`
	HistoryTurns       int      `yaml:"history_turns" validate:"gte=0"`
	HistoryAnswerChars int      `yaml:"history_answer_chars" validate:"gt=0"`
	SafetyPhrases      []string `yaml:"safety_phrases" validate:"min=1"`
	UnsafePhrases      []string `yaml:"unsafe_phrases"`
}

// TextTuning holds fixed answer texts. AnswerTemplate is a text/template
// rendered with the top passage.
type TextTuning struct {
	Greeting       string `yaml:"greeting" validate:"required"`
	Rejection      string `yaml:"rejection" validate:"required"`
	Timeout        string `yaml:"timeout" validate:"required"`
	Generic        string `yaml:"generic" validate:"required"`
	CrisisTemplate string `yaml:"crisis_template" validate:"required"`
	AnswerTemplate string `yaml:"answer_template" validate:"required"`
}

// MappingEntry links modern trigger terms to passages in priority order.
type MappingEntry struct {
	Triggers []string `yaml:"triggers" validate:"min=1,dive,required"`
	Passages []string `yaml:"passages" validate:"min=1,dive,required"`
}

// DefaultTuning returns the embedded tuning document.
func DefaultTuning() (*Tuning, error) {
	return ParseTuning(defaultTuning)
}

// LoadTuning reads a tuning document from path. An empty path returns the
// embedded default. A file replaces the default entirely.
func LoadTuning(path string) (*Tuning, error) {
	if path == "" {
		return DefaultTuning()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tuning file %s: %w", path, err)
	}
	return ParseTuning(data)
}

// ParseTuning decodes and validates a YAML tuning document.
func ParseTuning(data []byte) (*Tuning, error) {
	var t Tuning
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse tuning: %w", err)
	}
	if err := validator.New().Struct(&t); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
			fe := validationErrs[0]
			return nil, fmt.Errorf("invalid tuning: %s failed %q check", fe.Namespace(), fe.Tag())
		}
		return nil, fmt.Errorf("invalid tuning: %w", err)
	}
	if !contains(t.Labels.EmotionalStates, t.Labels.DefaultEmotionalState) {
		return nil, fmt.Errorf("invalid tuning: default emotional state %q is not in the vocabulary", t.Labels.DefaultEmotionalState)
	}
	if !contains(t.Labels.Intents, t.Labels.DefaultIntent) {
		return nil, fmt.Errorf("invalid tuning: default intent %q is not in the vocabulary", t.Labels.DefaultIntent)
	}
	return &t, nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
