package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"helpdesk-rag/internal/config"
	"helpdesk-rag/internal/llmservice"
	"helpdesk-rag/internal/models"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrDimensionMismatch means the remote returned a vector whose length does
// not match models.EmbeddingDim. Mixed dimensionality makes similarity math
// invalid, so such vectors never reach the store.
var ErrDimensionMismatch = errors.New("embedding dimensionality mismatch")

// Client wraps a remote text-embedding call. It pins output dimensionality
// and carries the producing model id so stored vectors are never compared
// across different embedding models. No retry at this layer; retry/backoff
// is the caller's responsibility.
type Client struct {
	embedder embeddings.Embedder
	modelID  string
}

// NewClient builds an embedding client for the configured provider.
func NewClient(llmConfig *config.LLMConfig) (*Client, error) {
	embedder, err := newEmbedder(llmConfig)
	if err != nil {
		return nil, err
	}
	return &Client{embedder: embedder, modelID: llmConfig.Model}, nil
}

// NewClientWithEmbedder wires an already-constructed embedder, used by tests.
func NewClientWithEmbedder(embedder embeddings.Embedder, modelID string) *Client {
	return &Client{embedder: embedder, modelID: modelID}
}

func newEmbedder(llmConfig *config.LLMConfig) (embeddings.Embedder, error) {
	if llmConfig.Provider == "ollama" {
		llm, err := ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
		)
		if err != nil {
			return nil, err
		}
		return embeddings.NewEmbedder(llm)
	}
	llm, err := openai.New(
		openai.WithBaseURL(llmConfig.BaseURL),
		openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
		openai.WithModel(llmConfig.Model),
		openai.WithEmbeddingModel(llmConfig.Model),
	)
	if err != nil {
		return nil, err
	}
	return embeddings.NewEmbedder(llm)
}

// ModelID identifies which embedding model produced this client's vectors.
func (c *Client) ModelID() string { return c.modelID }

// Embed returns the fixed-length vector for text. A remote failure surfaces
// as *llmservice.ProviderError; a wrong-length vector as
// ErrDimensionMismatch.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, &llmservice.ProviderError{Op: "embed", Err: err}
	}
	if len(vec) != models.EmbeddingDim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), models.EmbeddingDim)
	}
	return vec, nil
}
