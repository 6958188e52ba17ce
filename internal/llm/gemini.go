package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiClient implements Completer and Embedder on the Gemini API.
type GeminiClient struct {
	client     *genai.Client
	model      string
	embedModel string
}

// NewGeminiClient creates a Gemini client. model is the default chat model,
// embedModel the embedding model; either may be empty if unused.
func NewGeminiClient(ctx context.Context, apiKey, model, embedModel string) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: model, embedModel: embedModel}, nil
}

// Complete generates content for the prompt. System text becomes the
// system instruction and assistant turns map to the model role.
func (g *GeminiClient) Complete(ctx context.Context, prompt Prompt) (string, error) {
	model := prompt.Params.Model
	if model == "" {
		model = g.model
	}

	contents := geminiContents(prompt.Messages)
	if len(contents) == 0 {
		return "", fmt.Errorf("empty prompt")
	}

	config := geminiConfig(prompt)

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("empty completion")
	}
	return text, nil
}

// EmbedTexts embeds texts in one request.
func (g *GeminiClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty input array")
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	resp, err := g.client.Models.EmbedContent(ctx, g.embedModel, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embedding failed: %w", err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings from gemini", len(texts))
	}

	result := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("embedding %d is empty", i)
		}
		result[i] = e.Values
	}
	return result, nil
}

// geminiConfig maps the prompt parameters onto a generation config.
func geminiConfig(prompt Prompt) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(prompt.Params.Temperature),
	}
	if prompt.Params.MaxTokens > 0 {
		config.MaxOutputTokens = int32(prompt.Params.MaxTokens)
	}
	if p := prompt.Params.FrequencyPenalty; p != 0 {
		config.FrequencyPenalty = genai.Ptr(p)
	}
	if p := prompt.Params.PresencePenalty; p != 0 {
		config.PresencePenalty = genai.Ptr(p)
	}
	if prompt.System != "" {
		config.SystemInstruction = genai.NewContentFromText(prompt.System, genai.RoleUser)
	}
	return config
}

func geminiContents(messages []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		var role string
		switch m.Role {
		case RoleAssistant:
			role = genai.RoleModel
		default:
			role = genai.RoleUser
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(m.Content)},
		})
	}
	return contents
}
