package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"aihub/internal/domain"
)

// RateLimitedProvider paces requests to an inner provider with a token
// bucket. Chat blocks until a token is available or ctx is done.
type RateLimitedProvider struct {
	inner   domain.LLMProvider
	limiter *rate.Limiter
}

// NewRateLimitedProvider allows rps requests per second with the given burst.
// A burst below one is raised to one.
func NewRateLimitedProvider(inner domain.LLMProvider, rps float64, burst int) *RateLimitedProvider {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedProvider{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Chat implements domain.LLMProvider.
func (p *RateLimitedProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: provider %q: %v", domain.ErrRateLimit, p.inner.Name(), err)
	}
	return p.inner.Chat(ctx, req)
}

// Name implements domain.LLMProvider.
func (p *RateLimitedProvider) Name() string { return p.inner.Name() }

var _ domain.LLMProvider = (*RateLimitedProvider)(nil)
