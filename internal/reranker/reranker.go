package reranker

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"helpdesk-rag/internal/llmservice"
	"helpdesk-rag/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
)

const (
	// below this many candidates reranking is not worth the latency
	minCandidates = 4

	// how much of each chunk goes into the scoring prompt
	promptSnippetRunes = 200

	// score assigned when the remote returned nothing usable for a chunk
	neutralScore = 0.5

	DefaultTimeout = 2 * time.Second
)

var numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// Reranker runs a second-pass relevance scoring over already-retrieved
// candidates. It is a pure quality enhancement: any failure, timeout, or
// parse trouble falls back to the original order.
type Reranker struct {
	client  *llmservice.Client
	timeout time.Duration
}

func New(client *llmservice.Client, timeout time.Duration) *Reranker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Reranker{client: client, timeout: timeout}
}

// Rerank reorders chunks by remote relevance score, descending. The remote
// call is raced against the timeout; if the timer fires first the original
// order is returned and the late result is discarded.
func (r *Reranker) Rerank(ctx context.Context, query string, chunks []models.ScoredChunk) []models.ScoredChunk {
	if len(chunks) < minCandidates {
		return chunks
	}

	prompt := buildPrompt(query, chunks)

	type result struct {
		out string
		err error
	}
	resCh := make(chan result, 1)
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	go func() {
		out, err := r.client.GenerateText(callCtx, prompt,
			llms.WithTemperature(0),
			llms.WithMaxTokens(200),
		)
		resCh <- result{out: out, err: err}
	}()

	var raw string
	select {
	case res := <-resCh:
		if res.err != nil {
			log.Warn().Err(res.err).Msg("rerank call failed, keeping original order")
			return chunks
		}
		raw = res.out
	case <-callCtx.Done():
		log.Warn().Dur("timeout", r.timeout).Msg("rerank timed out, keeping original order")
		return chunks
	}

	scores := parseScores(raw, len(chunks))

	reranked := make([]models.ScoredChunk, len(chunks))
	for i := range chunks {
		reranked[i] = chunks[i]
		reranked[i].Reranked = true
		reranked[i].RerankScore = scores[i]
	}
	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].RerankScore > reranked[j].RerankScore
	})
	return reranked
}

func buildPrompt(query string, chunks []models.ScoredChunk) string {
	var b strings.Builder
	for i, c := range chunks {
		snippet := []rune(c.Chunk.Content)
		if len(snippet) > promptSnippetRunes {
			snippet = snippet[:promptSnippetRunes]
		}
		fmt.Fprintf(&b, "[%d] %s\n", i, string(snippet))
	}
	return fmt.Sprintf(models.RerankPromptTemplate, query, b.String())
}

// parseScores is two-tier: strict JSON-array extraction first, then a
// numeric-substring sweep. Missing or invalid scores default to neutral,
// and everything is clamped into [0,1].
func parseScores(raw string, n int) []float64 {
	scores := parseJSONArray(raw)
	if len(scores) < n {
		scores = parseLooseNumbers(raw)
	}

	out := make([]float64, n)
	for i := range out {
		if i < len(scores) {
			out[i] = clamp(scores[i])
		} else {
			out[i] = neutralScore
		}
	}
	return out
}

func parseJSONArray(raw string) []float64 {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil
	}
	var scores []float64
	if err := json.Unmarshal([]byte(raw[start:end+1]), &scores); err != nil {
		return nil
	}
	return scores
}

func parseLooseNumbers(raw string) []float64 {
	var scores []float64
	for _, m := range numberPattern.FindAllString(raw, -1) {
		f, err := strconv.ParseFloat(m, 64)
		if err != nil {
			continue
		}
		scores = append(scores, f)
	}
	return scores
}

func clamp(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
