// Package ai holds the capability adapters around google.golang.org/genai:
// the embeddings provider consumed by the semantic features. Absence of the
// capability is a legal state; callers branch on it at construction time.
package ai

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/benidevo/matchcore/internal/common/logger"
	"github.com/benidevo/matchcore/internal/matchcore/matcherr"
	"github.com/benidevo/matchcore/internal/matchcore/resilience"
)

// EmbeddingsConfig tunes the Gemini embeddings adapter.
type EmbeddingsConfig struct {
	APIKey string
	Model  string
}

// GeminiEmbedder implements the EmbeddingsProvider capability against the
// Gemini embeddings endpoint.
type GeminiEmbedder struct {
	client  *genai.Client
	model   string
	retry   resilience.RetryPolicy
	breaker *resilience.CircuitBreaker
	log     zerolog.Logger
}

// NewGeminiEmbedder builds the embedder, failing when the client cannot be
// initialized. breaker guards the upstream; retry follows the configured
// defaults.
func NewGeminiEmbedder(ctx context.Context, cfg EmbeddingsConfig, breaker *resilience.CircuitBreaker, retry resilience.RetryPolicy) (*GeminiEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embeddings: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-embedding-001"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("embeddings: init client: %w", err)
	}

	return &GeminiEmbedder{
		client:  client,
		model:   cfg.Model,
		retry:   retry,
		breaker: breaker,
		log:     logger.GetLogger("matchcore.ai.embeddings"),
	}, nil
}

// Embed returns one fixed-dimensional vector per input text.
func (g *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	call := func(ctx context.Context) ([][]float32, error) {
		resp, err := g.client.Models.EmbedContent(ctx, g.model, contents, nil)
		if err != nil {
			return nil, matcherr.Transient(fmt.Errorf("embed content: %w", err))
		}
		if len(resp.Embeddings) != len(texts) {
			return nil, matcherr.Internal(fmt.Errorf("embed content: got %d vectors for %d texts", len(resp.Embeddings), len(texts)))
		}

		vectors := make([][]float32, len(resp.Embeddings))
		for i, e := range resp.Embeddings {
			vectors[i] = e.Values
		}
		return vectors, nil
	}

	if g.breaker != nil {
		return resilience.Execute(g.breaker, func() ([][]float32, error) {
			return resilience.RetryWithBackoff(ctx, g.retry, matcherr.IsRetryable, call)
		})
	}
	return resilience.RetryWithBackoff(ctx, g.retry, matcherr.IsRetryable, call)
}
