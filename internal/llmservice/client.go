package llmservice

import (
	"context"
	"fmt"
	"strings"

	"helpdesk-rag/internal/config"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// ProviderError is any failed remote embedding/caption/generation call.
// Callers treat it as fatal for the single unit of work in progress, not for
// the whole pipeline.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider: %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Client wraps one remote text-generation endpoint. The remote call is
// stateless and idempotent for a given prompt; no conversation state is
// carried between calls.
type Client struct {
	llm llms.Model
}

// NewClient builds a client from config, supporting the same two providers
// as the embedder.
func NewClient(llmConfig *config.LLMConfig) (*Client, error) {
	llm, err := newModel(llmConfig)
	if err != nil {
		return nil, err
	}
	return &Client{llm: llm}, nil
}

// NewClientWithModel wires an already-constructed model, used by tests.
func NewClientWithModel(llm llms.Model) *Client {
	return &Client{llm: llm}
}

func newModel(llmConfig *config.LLMConfig) (llms.Model, error) {
	if llmConfig.Provider == "ollama" {
		return ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
		)
	}
	return openai.New(
		openai.WithBaseURL(llmConfig.BaseURL),
		openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
		openai.WithModel(llmConfig.Model),
	)
}

// GenerateText sends a single-turn prompt and returns the raw completion.
func (c *Client) GenerateText(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt, options...)
	if err != nil {
		return "", &ProviderError{Op: "generate", Err: err}
	}
	return out, nil
}

// GenerateContent forwards multi-part messages (used for multimodal calls).
func (c *Client) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	res, err := c.llm.GenerateContent(ctx, messages, options...)
	if err != nil {
		return nil, &ProviderError{Op: "generate", Err: err}
	}
	if len(res.Choices) == 0 {
		return nil, &ProviderError{Op: "generate", Err: fmt.Errorf("empty response")}
	}
	return res, nil
}
