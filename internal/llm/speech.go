package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxAudioBytes bounds a synthesized clip.
const maxAudioBytes = 20 << 20

// SpeechClient is a client for OpenAI-compatible text-to-speech APIs.
type SpeechClient struct {
	BaseURL string
	APIKey  string
	Model   string
	client  *http.Client
}

// NewSpeechClient creates a new speech client.
func NewSpeechClient(baseURL, apiKey, model string) *SpeechClient {
	return &SpeechClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		client:  newHTTPClient(),
	}
}

// SpeechRequest represents the request payload for the speech API.
type SpeechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Synthesize renders text as mp3 audio with the given voice.
func (c *SpeechClient) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty speech input")
	}

	url := fmt.Sprintf("%s/v1/audio/speech", c.BaseURL)

	resp, err := postJSON(ctx, c.client, url, c.APIKey, "audio/mpeg", SpeechRequest{
		Model:          c.Model,
		Input:          text,
		Voice:          voice,
		ResponseFormat: "mp3",
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("empty audio response")
	}
	if len(audio) > maxAudioBytes {
		return nil, fmt.Errorf("audio response exceeds %d bytes", maxAudioBytes)
	}
	return audio, nil
}
