package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"talk-to-krishna/internal/config"
	"talk-to-krishna/internal/contextutil"
	"talk-to-krishna/internal/llm"
	"talk-to-krishna/internal/textutil"
)

const rerankSystem = "You select Bhagavad Gita verses that best answer a person's question. Respond with a JSON array of verse IDs and nothing else."

// Reranker asks the model to pick the most relevant candidates.
type Reranker struct {
	completer    llm.Completer
	model        string
	limit        int
	snippetChars int
}

// NewReranker creates a Reranker returning at most final_limit passages.
func NewReranker(completer llm.Completer, model string, tuning *config.Tuning) *Reranker {
	return &Reranker{
		completer:    completer,
		model:        model,
		limit:        tuning.Retrieval.FinalLimit,
		snippetChars: tuning.Retrieval.RerankSnippetChars,
	}
}

// Unranked is the fallback shortlist: the top candidates in retrieval order.
func (r *Reranker) Unranked(candidates []ScoredCandidate) []ScoredCandidate {
	if len(candidates) > r.limit {
		candidates = candidates[:r.limit]
	}
	return append([]ScoredCandidate(nil), candidates...)
}

// Rerank returns the candidates chosen by the model, in the model's order.
// Ids that are not candidates are dropped, duplicates removed and the result
// capped at the limit. With one candidate or none no call is made. A call
// failure or an empty selection wraps ErrUpstream.
func (r *Reranker) Rerank(ctx context.Context, qc QueryContext, candidates []ScoredCandidate) ([]ScoredCandidate, error) {
	if len(candidates) <= 1 {
		return r.Unranked(candidates), nil
	}
	logger := contextutil.LoggerFromContext(ctx)

	prompt := llm.UserPrompt(rerankSystem, r.buildPrompt(qc, candidates), llm.ChatParams{
		Model:       r.model,
		MaxTokens:   100,
		Temperature: 0,
	})
	output, err := r.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, upstream(StageRerank, err)
	}

	ids, err := parseIDs(output)
	if err != nil {
		return nil, malformed(StageRerank, "%v", err)
	}

	byID := make(map[string]int, len(candidates))
	for i, c := range candidates {
		byID[c.Passage.ID] = i
	}
	selected := make([]ScoredCandidate, 0, r.limit)
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		i, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		selected = append(selected, candidates[i])
		if len(selected) == r.limit {
			break
		}
	}
	if len(selected) == 0 {
		return nil, malformed(StageRerank, "no known passage id in %q", textutil.Truncate(output, 80))
	}

	logger.DebugContext(ctx, "candidates reranked", "selected", len(selected), "returned_ids", len(ids))
	return selected, nil
}

func (r *Reranker) buildPrompt(qc QueryContext, candidates []ScoredCandidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %q\n", qc.Raw)
	if qc.Rewritten != "" && qc.Rewritten != qc.Raw {
		fmt.Fprintf(&b, "Underlying problem: %s\n", qc.Rewritten)
	}
	fmt.Fprintf(&b, "Emotional state: %s\n\nOptions:\n", qc.EmotionalState)
	for i, c := range candidates {
		fmt.Fprintf(&b, "Option %d (ID %s): %s\n", i+1, c.Passage.ID, textutil.Truncate(c.Passage.Translation, r.snippetChars))
	}
	fmt.Fprintf(&b, "\nReturn the IDs of up to %d options that best address the question, most relevant first, as a JSON array such as [\"2.47\", \"6.5\"].", r.limit)
	return b.String()
}

// parseIDs reads the first JSON array in output. Numeric ids keep their
// literal form so that "2.10" is not read as 2.1.
func parseIDs(output string) ([]string, error) {
	array, ok := extractJSON(output, '[')
	if !ok {
		return nil, fmt.Errorf("no JSON array in response")
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(array)))
	dec.UseNumber()
	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode ids: %w", err)
	}
	ids := make([]string, 0, len(raw))
	for _, v := range raw {
		switch id := v.(type) {
		case string:
			ids = append(ids, strings.TrimSpace(id))
		case json.Number:
			ids = append(ids, id.String())
		}
	}
	return ids, nil
}
