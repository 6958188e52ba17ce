package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"talk-to-krishna/internal/config"
	"talk-to-krishna/internal/contextutil"
	"talk-to-krishna/internal/llm"
	"talk-to-krishna/internal/textutil"
)

const (
	understandMaxTokens = 150
	understandSystem    = "You analyze questions sent to a Bhagavad Gita guidance assistant. Respond with a single JSON object and nothing else."
)

// Understander rewrites a raw query into a search-friendly form and labels
// its emotional state and intent.
type Understander struct {
	completer    llm.Completer
	model        string
	labels       config.LabelTuning
	historyTurns int
	historyChars int
}

// NewUnderstander creates an Understander that calls model through completer.
func NewUnderstander(completer llm.Completer, model string, tuning *config.Tuning) *Understander {
	return &Understander{
		completer:    completer,
		model:        model,
		labels:       tuning.Labels,
		historyTurns: tuning.Synthesis.HistoryTurns,
		historyChars: tuning.Synthesis.HistoryAnswerChars,
	}
}

type understandResponse struct {
	RewrittenText  string `json:"rewritten_text"`
	RewrittenQuery string `json:"rewritten_query"`
	EmotionalState string `json:"emotional_state"`
	Intent         string `json:"intent"`
}

// Fallback returns the context used when understanding fails: the raw text
// with default labels.
func (u *Understander) Fallback(raw string, history []Turn) QueryContext {
	return QueryContext{
		Raw:            raw,
		Rewritten:      raw,
		EmotionalState: u.labels.DefaultEmotionalState,
		Intent:         u.labels.DefaultIntent,
		History:        history,
	}
}

// Understand calls the model once. Labels outside the vocabularies are
// replaced by the defaults and an empty rewrite keeps the raw text.
// Call or parse failures wrap ErrUpstream.
func (u *Understander) Understand(ctx context.Context, raw string, history []Turn) (QueryContext, error) {
	logger := contextutil.LoggerFromContext(ctx)

	prompt := llm.UserPrompt(understandSystem, u.buildPrompt(raw, history), llm.ChatParams{
		Model:       u.model,
		MaxTokens:   understandMaxTokens,
		Temperature: 0,
	})
	output, err := u.completer.Complete(ctx, prompt)
	if err != nil {
		return QueryContext{}, upstream(StageUnderstand, err)
	}

	object, ok := extractJSON(output, '{')
	if !ok {
		return QueryContext{}, malformed(StageUnderstand, "no JSON object in response")
	}
	var resp understandResponse
	if err := json.Unmarshal([]byte(object), &resp); err != nil {
		return QueryContext{}, malformed(StageUnderstand, "decode response: %v", err)
	}

	qc := u.Fallback(raw, history)
	rewritten := strings.TrimSpace(resp.RewrittenText)
	if rewritten == "" {
		rewritten = strings.TrimSpace(resp.RewrittenQuery)
	}
	if rewritten != "" {
		qc.Rewritten = rewritten
	}
	if state := normalizeLabel(resp.EmotionalState); slices.Contains(u.labels.EmotionalStates, state) {
		qc.EmotionalState = state
	}
	if intent := normalizeLabel(resp.Intent); slices.Contains(u.labels.Intents, intent) {
		qc.Intent = intent
	}

	logger.DebugContext(ctx, "query understood",
		"rewritten", qc.Rewritten,
		"emotional_state", qc.EmotionalState,
		"intent", qc.Intent,
	)
	return qc, nil
}

func (u *Understander) buildPrompt(raw string, history []Turn) string {
	var b strings.Builder
	if h := formatHistory(history, u.historyTurns, u.historyChars); h != "" {
		b.WriteString("Conversation so far:\n")
		b.WriteString(h)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Question: %q\n\n", raw)
	b.WriteString("Tasks:\n")
	b.WriteString("1. Rewrite the question as a short English search query about the underlying life problem, resolving references to the conversation.\n")
	fmt.Fprintf(&b, "2. Pick the emotional state from: %s.\n", strings.Join(u.labels.EmotionalStates, ", "))
	fmt.Fprintf(&b, "3. Pick the intent from: %s.\n\n", strings.Join(u.labels.Intents, ", "))
	b.WriteString(`Return JSON: {"rewritten_text": "...", "emotional_state": "...", "intent": "..."}`)
	return b.String()
}

// formatHistory renders the last turns as Q:/A: lines with answers cut to
// answerChars runes.
func formatHistory(history []Turn, turns, answerChars int) string {
	if turns <= 0 || len(history) == 0 {
		return ""
	}
	if len(history) > turns {
		history = history[len(history)-turns:]
	}
	var b strings.Builder
	for i, turn := range history {
		if i > 0 {
			b.WriteString("\n")
		}
		answer := textutil.Truncate(turn.Answer, answerChars)
		if answer != turn.Answer {
			answer += "..."
		}
		fmt.Fprintf(&b, "Q: %s\nA: %s", turn.Question, answer)
	}
	return b.String()
}

func normalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}
