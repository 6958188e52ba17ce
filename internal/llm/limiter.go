package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedCompleter spaces out completion calls to stay within the
// upstream provider's request quota. Waiting honors context cancellation.
type RateLimitedCompleter struct {
	next    Completer
	limiter *rate.Limiter
}

// NewRateLimitedCompleter allows perSecond calls on average with bursts of burst.
func NewRateLimitedCompleter(next Completer, perSecond float64, burst int) *RateLimitedCompleter {
	return &RateLimitedCompleter{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Complete waits for a token and forwards the prompt.
func (r *RateLimitedCompleter) Complete(ctx context.Context, prompt Prompt) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	return r.next.Complete(ctx, prompt)
}

// RateLimitedEmbedder applies the same quota to embedding calls. One batch
// counts as one request.
type RateLimitedEmbedder struct {
	next    Embedder
	limiter *rate.Limiter
}

// NewRateLimitedEmbedder allows perSecond batches on average with bursts of burst.
func NewRateLimitedEmbedder(next Embedder, perSecond float64, burst int) *RateLimitedEmbedder {
	return &RateLimitedEmbedder{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// EmbedTexts waits for a token and forwards the batch.
func (r *RateLimitedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return r.next.EmbedTexts(ctx, texts)
}
