package expander

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"

	"helpdesk-rag/internal/embedding"
	"helpdesk-rag/internal/llmservice"
	"helpdesk-rag/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
)

const (
	// queries with fewer significant runes than this carry too little signal
	// to usefully rewrite; whitespace does not count toward the length
	minQueryRunes = 10

	minCandidateRunes = 4
	maxCandidateRunes = 200
	maxAlternates     = 2

	// candidates less similar than this to the original query are assumed to
	// have drifted off-topic
	similarityGate = 0.3
)

var listMarker = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)

// Expander generates up to two alternate phrasings of a user question to
// broaden recall before vector search.
type Expander struct {
	client   *llmservice.Client
	embedder *embedding.Client
}

func New(client *llmservice.Client, embedder *embedding.Client) *Expander {
	return &Expander{client: client, embedder: embedder}
}

// Expand returns the original query first, followed by 0-2 accepted
// alternates. It never fails: any trouble during generation or filtering
// falls back to the original-only slice.
func (e *Expander) Expand(ctx context.Context, query string) []string {
	if significantRunes(query) < minQueryRunes {
		return []string{query}
	}

	prompt := fmt.Sprintf(models.ExpandPromptTemplate, query)
	out, err := e.client.GenerateText(ctx, prompt,
		llms.WithTemperature(0.3),
		llms.WithMaxTokens(200),
	)
	if err != nil {
		log.Warn().Err(err).Msg("query expansion failed, using original query only")
		return []string{query}
	}

	candidates := parseCandidates(out, query)
	if len(candidates) == 0 {
		return []string{query}
	}

	accepted := e.filterByRelevance(ctx, query, candidates)
	if len(accepted) > maxAlternates {
		accepted = accepted[:maxAlternates]
	}
	return append([]string{query}, accepted...)
}

func significantRunes(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

func parseCandidates(out, query string) []string {
	var candidates []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		n := len([]rune(line))
		if n < minCandidateRunes || n > maxCandidateRunes {
			continue
		}
		if strings.EqualFold(line, query) {
			continue
		}
		candidates = append(candidates, line)
	}
	return candidates
}

// filterByRelevance drops candidates whose embedding strays too far from the
// original query. If the similarity check itself fails, all candidates are
// kept: a provider hiccup should not discard otherwise fine rewrites.
func (e *Expander) filterByRelevance(ctx context.Context, query string, candidates []string) []string {
	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		log.Warn().Err(err).Msg("similarity gate unavailable, keeping all expansion candidates")
		return candidates
	}

	var accepted []string
	for _, cand := range candidates {
		vec, err := e.embedder.Embed(ctx, cand)
		if err != nil {
			log.Warn().Err(err).Str("candidate", cand).Msg("similarity gate unavailable, keeping candidate")
			accepted = append(accepted, cand)
			continue
		}
		if cosineSimilarity(queryVec, vec) >= similarityGate {
			accepted = append(accepted, cand)
		}
	}
	return accepted
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
