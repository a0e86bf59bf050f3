package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"aihub/internal/domain"
	"aihub/internal/infra/config"
)

// Default base URLs for the OpenAI-compatible provider types.
var defaultBaseURLs = map[string]string{
	"openai":     "https://api.openai.com/v1",
	"openrouter": "https://openrouter.ai/api/v1",
	"fireworks":  "https://api.fireworks.ai/inference/v1",
	"ollama":     "http://localhost:11434/v1",
}

// Registry holds named LLM providers.
type Registry struct {
	mu              sync.RWMutex
	providers       map[string]domain.LLMProvider
	defaultProvider string
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]domain.LLMProvider),
	}
}

// NewRegistryFromConfig builds a client for every configured provider
// (Bedrock for type "bedrock", OpenAI-compatible otherwise) and wraps it
// with the configured resilience layers.
func NewRegistryFromConfig(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := NewRegistry()
	r.defaultProvider = cfg.DefaultProvider
	for _, pc := range cfg.Providers {
		if pc.BaseURL == "" {
			pc.BaseURL = defaultBaseURLs[pc.Type]
		}
		p, err := newProvider(ctx, pc, logger)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", pc.Name, err)
		}
		if cfg.RequestsPerSecond > 0 {
			p = NewRateLimitedProvider(p, cfg.RequestsPerSecond, cfg.Burst)
		}
		if cfg.CircuitBreaker.Enabled {
			p = NewCircuitBreakerProvider(p, cfg.CircuitBreaker, logger)
		}
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func newProvider(ctx context.Context, pc config.ProviderConfig, logger *slog.Logger) (domain.LLMProvider, error) {
	if pc.Type == "bedrock" {
		return NewBedrockProvider(ctx, pc, logger)
	}
	return NewOpenAIProvider(pc, logger), nil
}

// Register adds a provider. Returns error if name already registered.
func (r *Registry) Register(provider domain.LLMProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := provider.Name()
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}
	r.providers[name] = provider
	return nil
}

// Get retrieves a provider by name. An empty name selects the default
// provider.
func (r *Registry) Get(name string) (domain.LLMProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		name = r.defaultProvider
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, domain.NewDomainError("Registry.Get", domain.ErrProviderNotFound, name)
	}
	return p, nil
}

// SetDefault selects the provider used when no name is given.
func (r *Registry) SetDefault(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultProvider = name
}

// List returns all registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
