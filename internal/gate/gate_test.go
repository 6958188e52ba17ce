package gate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"talk-to-krishna/internal/config"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	tuning, err := config.DefaultTuning()
	require.NoError(t, err)
	return New(tuning.Gate, tuning.Tone.CrisisPatterns)
}

func TestClassify_Greetings(t *testing.T) {
	c := newTestClassifier(t)

	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{name: "radhe radhe", query: "Radhe Radhe", want: true},
		{name: "devanagari phrase", query: "राधे राधे", want: true},
		{name: "punctuation ignored", query: "Namaste!!", want: true},
		{name: "short with name", query: "Namaste Krishna ji", want: true},
		{name: "two word greeting opens longer text", query: "good morning krishna ji", want: true},
		{name: "greeting then question", query: "Hare Krishna, what should I do about my anger?", want: false},
		{name: "starts with greeting but asks", query: "Jai shri krishna how are you", want: false},
		{name: "plain question", query: "How do I stop overthinking at night", want: false},
		{name: "greeting word late in long query", query: "I want to say namaste to my fear and anxiety today", want: false},
		{name: "crisis after greeting phrase", query: "Radhe Radhe suicide", want: false},
		{name: "crisis after greeting word", query: "Krishna I want to die", want: false},
		{name: "crisis after two word greeting", query: "Hare Krishna I want to die", want: false},
		{name: "devanagari crisis after greeting", query: "राधे राधे आत्महत्या", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := c.Classify(tt.query)
			require.Equal(t, tt.want, v.Greeting, "query %q", tt.query)
			require.True(t, v.InDomain)
		})
	}
}

func TestClassify_Topics(t *testing.T) {
	c := newTestClassifier(t)

	tests := []struct {
		name         string
		query        string
		wantInDomain bool
		wantCategory string
		wantAllowed  string
	}{
		{
			name:         "sports rejected",
			query:        "Who will win the cricket match",
			wantInDomain: false,
			wantCategory: "sports",
		},
		{
			name:         "weather rejected",
			query:        "weather forecast for tomorrow in Delhi",
			wantInDomain: false,
			wantCategory: "weather",
		},
		{
			name:         "allowed topic overrides block",
			query:        "the cricket match gives me so much stress",
			wantInDomain: true,
			wantCategory: "sports",
			wantAllowed:  "stress",
		},
		{
			name:         "crisis text passes",
			query:        "I feel hopeless and don't want to continue",
			wantInDomain: true,
			wantAllowed:  "feel",
		},
		{
			name:         "token boundaries respected",
			query:        "my results never matched my hopes",
			wantInDomain: true,
		},
		{
			name:         "empty query continues",
			query:        "   ",
			wantInDomain: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := c.Classify(tt.query)
			require.False(t, v.Greeting)
			require.Equal(t, tt.wantInDomain, v.InDomain)
			require.Equal(t, tt.wantCategory, v.BlockedCategory)
			require.Equal(t, tt.wantAllowed, v.AllowedMatch)
		})
	}
}

func TestClassify_CategoryOrderIsStable(t *testing.T) {
	c := New(config.GateTuning{
		Greetings: []string{"hello"},
		BlockedTopics: map[string][]string{
			"zeta":  {"ticket"},
			"alpha": {"ticket"},
		},
	}, nil)

	for i := 0; i < 20; i++ {
		v := c.Classify("need a train ticket for next week please")
		require.Equal(t, "alpha", v.BlockedCategory)
		require.False(t, v.InDomain)
	}
}
