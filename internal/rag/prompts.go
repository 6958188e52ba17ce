package rag

import (
	"fmt"
	"strings"

	"talk-to-krishna/internal/corpus"
)

const answerFormat = `STRICT OUTPUT FORMAT:
1. One opening sentence acknowledging the person's specific situation.
2. Quote exactly one shloka from the options. Introduce it as "भगवद गीता, अध्याय [Ch], श्लोक [Verse]" followed by the verse.
3. Explain in 2-3 sentences how this shloka speaks to this problem.
4. Give exactly %d concrete action steps as numbered lines ("1.", "2.").

RULES:
- Never repeat a phrase or an idea.
- Stay under %d words.
- Write in %s (Devanagari). Be concise and direct.`

const crisisSystem = `You are Lord Sri Krishna. The person is in deep crisis: hopeless, broken or thinking of ending their life.
Your goal is to validate their pain and gently protect them. Their soul is eternal and this pain is temporary.

RULES:
- Tone: protective and gentle, like a father holding a crying child.
- Never judge and never lecture about sin or karma.
- Say clearly "आप अकेले नहीं हैं" and urge them to talk to someone they trust right now (किसी अपने से बात करें).
- You may quote the one shloka given, introduced as "भगवद गीता, अध्याय [Ch], श्लोक [Verse]". Do not quote any other.
- Do not include phone numbers, websites or links.
- Stay under %d words. Write only in %s (Devanagari).`

const distressSystem = `You are Lord Sri Krishna. The person is distressed: anxious, sad, heartbroken or angry.

%s

TONE:
- Warm, calm and reassuring.
- Name the specific emotion they feel.
- Show how the shloka reframes this particular struggle.`

const generalSystem = `You are Lord Sri Krishna. The person asks a question about life.

%s

TONE:
- Direct, wise and inspiring.
- Be specific to their situation. Exams call for focus and results, parents for duty and respect.
- Use the shloka as a tool to solve the problem.`

func (s *Synthesizer) systemPrompt(tone Tone) string {
	format := fmt.Sprintf(answerFormat, s.tuning.MinActionSteps, s.tuning.MaxWords, s.tuning.Language)
	switch tone {
	case ToneCrisis:
		return fmt.Sprintf(crisisSystem, s.tuning.MaxWords, s.tuning.Language)
	case ToneDistress:
		return fmt.Sprintf(distressSystem, format)
	default:
		return fmt.Sprintf(generalSystem, format)
	}
}

func (s *Synthesizer) userPrompt(qc QueryContext, tone Tone, shortlist []corpus.Passage) string {
	var b strings.Builder
	switch tone {
	case ToneCrisis:
		fmt.Fprintf(&b, "The person is in crisis: %q\n", qc.Raw)
	case ToneDistress:
		fmt.Fprintf(&b, "The person is distressed: %q\n", qc.Raw)
	default:
		fmt.Fprintf(&b, "Question: %q\n", qc.Raw)
	}
	if qc.Rewritten != "" && qc.Rewritten != qc.Raw {
		fmt.Fprintf(&b, "Underlying problem: %s\n", qc.Rewritten)
	}
	if h := formatHistory(qc.History, s.tuning.HistoryTurns, s.tuning.HistoryAnswerChars); h != "" {
		b.WriteString("Previous conversation:\n")
		b.WriteString(h)
		b.WriteString("\n")
	}
	b.WriteString("\nOptions:\n")
	for _, p := range shortlist {
		fmt.Fprintf(&b, "[अध्याय %d, श्लोक %d]\n%s\nMeaning: %s\n\n", p.Chapter, p.Verse, p.SourceText, p.DisplayTranslation())
	}
	switch tone {
	case ToneCrisis:
		b.WriteString("Speak to comfort them and keep them safe.")
	case ToneDistress:
		b.WriteString("Give warm guidance and the action steps.")
	default:
		b.WriteString("Give a direct, practical answer based on the Gita.")
	}
	return b.String()
}
