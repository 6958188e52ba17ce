package rag

import (
	"time"

	"talk-to-krishna/internal/corpus"
)

// Stage is one step of the answer pipeline.
type Stage int

const (
	StageGate Stage = iota
	StageUnderstand
	StageRetrieve
	StageRerank
	StageSynthesize
	StageAssemble
	StageDone
)

var stageNames = [...]string{"gate", "understand", "retrieve", "rerank", "synthesize", "assemble", "done"}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// Route names a path taken through the pipeline, including every fallback edge.
type Route string

const (
	RouteGreeting           Route = "greeting"
	RouteRejected           Route = "rejected"
	RouteUnderstandFallback Route = "understand_fallback"
	RouteDenseUnavailable   Route = "dense_unavailable"
	RouteEmptyFallback      Route = "empty_fallback"
	RouteUnrankedFallback   Route = "unranked_fallback"
	RouteTemplateFallback   Route = "template_fallback"
	RouteTimeout            Route = "timeout"
)

// Tone selects the answer policy.
type Tone string

const (
	ToneCrisis   Tone = "crisis"
	ToneDistress Tone = "distress"
	ToneGeneral  Tone = "general"
)

// Turn is one earlier question and answer of the conversation.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Query is the input of one pipeline run.
type Query struct {
	Text    string
	History []Turn
	// Debug asks for the scored candidates, routes and stage latencies.
	Debug bool
}

// QueryContext is the understood form of a query.
type QueryContext struct {
	Raw            string
	Rewritten      string
	EmotionalState string
	Intent         string
	History        []Turn
}

// ScoredCandidate is a passage with its retrieval sub-scores.
// Score = Fused + EmotionBoost - Penalty.
type ScoredCandidate struct {
	Passage      corpus.Passage
	Dense        float64
	Lexical      float64
	Mapping      float64
	Fused        float64
	EmotionBoost float64
	Penalty      float64
	Score        float64
}

// Answer is the result of one pipeline run.
type Answer struct {
	Text string
	Tone Tone
	// Evidence lists the ids of passages cited in Text.
	Evidence []string
	// Retryable is set when the answer is a placeholder for a timed out request.
	Retryable bool
	Routes    []Route
	Debug     *DebugInfo
}

// DebugInfo is the optional trace of one pipeline run.
type DebugInfo struct {
	Rewritten       string             `json:"rewritten"`
	EmotionalState  string             `json:"emotional_state"`
	Intent          string             `json:"intent"`
	MatchedTriggers []string           `json:"matched_triggers,omitempty"`
	Candidates      []DebugCandidate   `json:"candidates"`
	Reranked        []string           `json:"reranked"`
	Routes          []Route            `json:"routes"`
	LatenciesMS     map[string]float64 `json:"latencies_ms"`
}

// DebugCandidate is the serializable view of a ScoredCandidate.
type DebugCandidate struct {
	ID           string  `json:"id"`
	Speaker      string  `json:"speaker"`
	Dense        float64 `json:"dense"`
	Lexical      float64 `json:"lexical"`
	Mapping      float64 `json:"mapping"`
	Fused        float64 `json:"fused"`
	EmotionBoost float64 `json:"emotion_boost"`
	Penalty      float64 `json:"penalty"`
	Score        float64 `json:"score"`
}

func debugCandidates(candidates []ScoredCandidate) []DebugCandidate {
	out := make([]DebugCandidate, len(candidates))
	for i, c := range candidates {
		out[i] = DebugCandidate{
			ID:           c.Passage.ID,
			Speaker:      c.Passage.Speaker,
			Dense:        c.Dense,
			Lexical:      c.Lexical,
			Mapping:      c.Mapping,
			Fused:        c.Fused,
			EmotionBoost: c.EmotionBoost,
			Penalty:      c.Penalty,
			Score:        c.Score,
		}
	}
	return out
}

func milliseconds(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
