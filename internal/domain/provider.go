package domain

import "context"

// LLMProvider is the interface for any completion backend.
type LLMProvider interface {
	// Chat sends a request and returns a complete response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	// Name returns the provider's identifier (e.g., "openai", "fireworks").
	Name() string
}

// VectorStore answers similarity queries against a stored collection.
type VectorStore interface {
	Query(ctx context.Context, vectorStoreID, query string) ([]VectorResult, error)
}

// VectorResult is one chunk returned by a vector-store query.
type VectorResult struct {
	FileID    string  `json:"file_id"`
	ChunkText string  `json:"chunk_text"`
	Distance  float64 `json:"distance"`
}

// RegistryClient persists and fetches agents and run snapshots.
type RegistryClient interface {
	// Save stores a snapshot archive and returns its identifier.
	Save(ctx context.Context, snapshot []byte, metadata map[string]string) (string, error)
	// Load fetches the files stored under identifier, keyed by relative path.
	Load(ctx context.Context, identifier string) (map[string][]byte, error)
}

// CompletionOptions selects the model and sampling settings for one
// completion. Zero fields fall back to the primary agent's defaults.
type CompletionOptions struct {
	Model       string
	Provider    string
	Temperature float64
	MaxTokens   int
	Stream      bool
}
