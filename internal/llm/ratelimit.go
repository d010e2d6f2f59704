package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited throttles a provider with a token bucket. Waiting honours ctx.
type RateLimited struct {
	Provider
	limiter *rate.Limiter
}

// WithRateLimit wraps p when rps is positive; otherwise p is returned unchanged.
func WithRateLimit(p Provider, rps float64, burst int) Provider {
	if rps <= 0 {
		return p
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{Provider: p, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Chat waits for a token before delegating.
func (r *RateLimited) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return ChatResponse{}, err
	}
	return r.Provider.Chat(ctx, req)
}
