// Package app wires configured providers for the binaries.
package app

import (
	"context"
	"fmt"

	"talk-to-krishna/internal/config"
	"talk-to-krishna/internal/llm"
	"talk-to-krishna/internal/vectorstore"
)

// NewCompleter returns the configured chat provider behind the shared rate limit.
func NewCompleter(ctx context.Context, cfg *config.Config) (llm.Completer, error) {
	var completer llm.Completer
	switch cfg.LLMProvider {
	case "gemini":
		client, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.LLMModelName, cfg.EmbeddingModelName)
		if err != nil {
			return nil, err
		}
		completer = client
	case "openai":
		completer = llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
	return llm.NewRateLimitedCompleter(completer, cfg.LLMRateLimit, cfg.LLMRateBurst), nil
}

// NewEmbedder returns the configured embedding provider behind the shared
// rate limit. expectedSize is checked on every response; 0 disables the check.
func NewEmbedder(ctx context.Context, cfg *config.Config, expectedSize int) (llm.Embedder, error) {
	var embedder llm.Embedder
	switch cfg.EmbeddingProvider {
	case "gemini":
		client, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.LLMModelName, cfg.EmbeddingModelName)
		if err != nil {
			return nil, err
		}
		embedder = client
	case "openai":
		embedder = llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, expectedSize)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
	return llm.NewRateLimitedEmbedder(embedder, cfg.LLMRateLimit, cfg.LLMRateBurst), nil
}

// NewQdrant opens the configured Qdrant store.
func NewQdrant(cfg *config.Config) (*vectorstore.QdrantStore, error) {
	if cfg.QdrantURL == "" {
		return nil, fmt.Errorf("QDRANT_URL is not set")
	}
	return vectorstore.NewQdrantStore(cfg.QdrantURL)
}
