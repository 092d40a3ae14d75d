package rag

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"helpdesk-rag/internal/config"
	"helpdesk-rag/internal/models"
	"helpdesk-rag/internal/ratelimit"
	"helpdesk-rag/internal/retriever"
)

// NoRelevantContentMessage is what end users see when retrieval came up
// empty; never a raw provider error.
const NoRelevantContentMessage = "I couldn't find relevant material in the knowledge base for this question."

// Answer is a generated response with the provenance of its supporting
// chunks, persisted together by the caller for display.
type Answer struct {
	Content string
	Sources []models.Provenance
}

// RAG glues retrieval to answer generation.
type RAG struct {
	retriever *retriever.Retriever
	limiter   *ratelimit.Limiter
	cfg       *config.Config
	client    *http.Client
}

func NewRAG(r *retriever.Retriever, limiter *ratelimit.Limiter, cfg *config.Config) *RAG {
	return &RAG{
		retriever: r,
		limiter:   limiter,
		cfg:       cfg,
		client:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Query retrieves supporting chunks for the question and generates an
// answer over them. callerKey scopes rate limiting.
func (r *RAG) Query(ctx context.Context, callerKey, query string) (*Answer, error) {
	if r.limiter != nil && r.cfg.RateLimit.Enabled && !r.limiter.Allow(callerKey) {
		return nil, ratelimit.ErrLimited
	}

	chunks, err := r.retriever.Retrieve(ctx, query, retriever.Options{})
	if err != nil {
		if errors.Is(err, retriever.ErrNoRelevantContent) {
			return &Answer{Content: NoRelevantContentMessage}, nil
		}
		return nil, err
	}

	var contextText strings.Builder
	sources := make([]models.Provenance, len(chunks))
	for i, c := range chunks {
		fmt.Fprintf(&contextText, "[%s] %s\n\n", c.Chunk.SourceLabel, c.Chunk.Content)
		sources[i] = models.Provenance{
			SourceLabel:    c.Chunk.SourceLabel,
			SourceCategory: c.Chunk.SourceCategory,
			Similarity:     c.Similarity,
		}
	}

	content, err := r.generate(ctx, query, contextText.String())
	if err != nil {
		return nil, err
	}
	return &Answer{Content: content, Sources: sources}, nil
}

// generate streams a chat completion over the retrieved context.
func (r *RAG) generate(ctx context.Context, query, contextText string) (string, error) {
	payload := struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		Stream bool `json:"stream"`
	}{
		Model: r.cfg.GenLLM.Model,
		Messages: []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		}{
			{Role: "system", Content: models.AnswerSystemPrompt},
			{Role: "user", Content: fmt.Sprintf("Context:\n%s\nQuestion: %s", contextText, query)},
		},
		Stream: true,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.cfg.GenLLM.BaseURL+"/v1/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", r.cfg.GenLLM.Key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("request failed: %d, %s", resp.StatusCode, string(body))
	}

	var response strings.Builder
	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return "", err
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if line == "data: [DONE]" {
			break
		}
		if strings.HasPrefix(line, "data: ") {
			data := strings.TrimPrefix(line, "data: ")
			var chunk struct {
				Choices []struct {
					Delta struct {
						Content string `json:"content"`
					} `json:"delta"`
				} `json:"choices"`
			}
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				response.WriteString(chunk.Choices[0].Delta.Content)
			}
		}
	}

	return response.String(), nil
}
