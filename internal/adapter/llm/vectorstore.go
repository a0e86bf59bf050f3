package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"aihub/internal/domain"
	"aihub/internal/infra/config"
)

// VectorStoreClient queries an OpenAI-compatible vector store search
// endpoint: POST {base_url}/vector_stores/{id}/search.
type VectorStoreClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewVectorStoreClient creates a client for the configured search service.
func NewVectorStoreClient(cfg config.VectorStoreConfig, logger *slog.Logger) *VectorStoreClient {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &VectorStoreClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  NewHTTPClient(config.ProviderConfig{RespTimeout: cfg.Timeout}),
		logger:  logger,
	}
}

type vectorSearchResponse struct {
	Data []vectorSearchHit `json:"data"`
}

type vectorSearchHit struct {
	FileID    string  `json:"file_id"`
	ChunkText string  `json:"chunk_text"`
	Distance  float64 `json:"distance"`
}

// Query implements domain.VectorStore.
func (c *VectorStoreClient) Query(ctx context.Context, vectorStoreID, query string) ([]domain.VectorResult, error) {
	if c.baseURL == "" {
		return nil, domain.NewDomainError("VectorStoreClient.Query", domain.ErrVectorStoreUnavailable, "no base_url configured")
	}
	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	endpoint := c.baseURL + "/vector_stores/" + url.PathEscape(vectorStoreID) + "/search"
	respBody, err := doJSONRequest(ctx, c.client, endpoint, body, bearer(c.apiKey))
	if err != nil {
		return nil, domain.NewDomainError("VectorStoreClient.Query", domain.ErrVectorStoreUnavailable, err.Error())
	}

	// The service answers either with a bare list or with {"data": [...]}.
	var hits []vectorSearchHit
	if err := json.Unmarshal(respBody, &hits); err != nil {
		var wrapped vectorSearchResponse
		if err := json.Unmarshal(respBody, &wrapped); err != nil {
			return nil, fmt.Errorf("unmarshal search response: %w", err)
		}
		hits = wrapped.Data
	}

	results := make([]domain.VectorResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, domain.VectorResult(h))
	}
	c.logger.Debug("vector store queried", "vector_store_id", vectorStoreID, "results", len(results))
	return results, nil
}

var _ domain.VectorStore = (*VectorStoreClient)(nil)
