package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aihub/internal/domain"
)

func TestRateLimitedProviderPassesThrough(t *testing.T) {
	inner := &mockProvider{
		name: "paced",
		chatFunc: func(context.Context, domain.ChatRequest) (*domain.ChatResponse, error) {
			return okResponse("ok"), nil
		},
	}
	p := NewRateLimitedProvider(inner, 100, 0)

	resp, err := p.Chat(context.Background(), domain.ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.FirstMessage().Content)
	assert.Equal(t, "paced", p.Name())
}

func TestRateLimitedProviderHonorsContext(t *testing.T) {
	calls := 0
	inner := &mockProvider{
		name: "paced",
		chatFunc: func(context.Context, domain.ChatRequest) (*domain.ChatResponse, error) {
			calls++
			return okResponse("ok"), nil
		},
	}
	// One token, refilled every 10s.
	p := NewRateLimitedProvider(inner, 0.1, 1)

	_, err := p.Chat(context.Background(), domain.ChatRequest{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.Chat(ctx, domain.ChatRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRateLimit)
	assert.Equal(t, 1, calls)
}
