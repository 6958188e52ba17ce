package llm

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_llm.go -package=mocks talk-to-krishna/internal/llm Completer,Embedder

import "context"

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatParams holds parameters for chat completion requests.
type ChatParams struct {
	// Model specifies the model to use. If empty, the client's default model is used.
	Model string

	// MaxTokens specifies the maximum number of tokens to generate.
	// If 0, no limit is applied.
	MaxTokens int

	// Temperature controls the randomness of the output.
	Temperature float32

	// FrequencyPenalty and PresencePenalty discourage repeated tokens.
	// Zero leaves the provider default.
	FrequencyPenalty float32
	PresencePenalty  float32
}

// Prompt is one completion request: an optional system instruction, the
// conversation messages and the generation parameters.
type Prompt struct {
	System   string
	Messages []Message
	Params   ChatParams
}

// UserPrompt builds a prompt with a system instruction and one user message.
func UserPrompt(system, user string, params ChatParams) Prompt {
	return Prompt{
		System:   system,
		Messages: []Message{{Role: RoleUser, Content: user}},
		Params:   params,
	}
}

// Completer generates a chat completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// Embedder turns texts into vectors, one per text, in input order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}
