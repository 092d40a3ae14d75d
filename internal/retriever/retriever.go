package retriever

import (
	"context"
	"errors"
	"fmt"

	"helpdesk-rag/internal/config"
	"helpdesk-rag/internal/embedding"
	"helpdesk-rag/internal/models"
	"helpdesk-rag/internal/store"

	"github.com/rs/zerolog/log"
)

// ErrNoRelevantContent is the domain outcome for a retrieval that ends with
// zero usable chunks, whether because nothing matched or because every
// variant's search failed. Callers show a neutral "couldn't find relevant
// material" message instead of a provider error.
var ErrNoRelevantContent = errors.New("no relevant content found")

// Expander is the slice of the query expander the retriever needs.
type Expander interface {
	Expand(ctx context.Context, query string) []string
}

// Reranker is the slice of the reranker the retriever needs.
type Reranker interface {
	Rerank(ctx context.Context, query string, chunks []models.ScoredChunk) []models.ScoredChunk
}

// Options narrows one retrieval call.
type Options struct {
	TopK int
	// MinSimilarity overrides the configured floor for this call; a
	// negative value disables the floor entirely.
	MinSimilarity float64
	Categories    []string
}

// Retriever turns a user question into a ranked, relevance-filtered set of
// supporting chunks: expand -> vector search per variant -> merge -> rerank
// -> truncate. Expansion and reranking are quality enhancements that degrade
// silently; only a fully failed search surfaces, and then as
// ErrNoRelevantContent rather than a provider error.
type Retriever struct {
	store    store.ChunkStore
	embedder *embedding.Client
	expander Expander
	reranker Reranker

	topK                int
	minSimilarity       float64
	candidateMultiplier int
}

func New(chunkStore store.ChunkStore, embedder *embedding.Client, exp Expander, rr Reranker, ragCfg *config.RAGConfig) *Retriever {
	r := &Retriever{
		store:               chunkStore,
		embedder:            embedder,
		expander:            exp,
		reranker:            rr,
		topK:                5,
		candidateMultiplier: 3,
	}
	if ragCfg != nil {
		if ragCfg.TopK > 0 {
			r.topK = ragCfg.TopK
		}
		if ragCfg.CandidateMultiplier > 0 {
			r.candidateMultiplier = ragCfg.CandidateMultiplier
		}
		r.minSimilarity = ragCfg.MinSimilarity
	}
	return r
}

// Retrieve returns at most opts.TopK chunks with their originating
// similarity scores, ordered best first.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts Options) ([]models.ScoredChunk, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = r.topK
	}
	minSim := opts.MinSimilarity
	switch {
	case minSim < 0:
		minSim = 0
	case minSim == 0:
		minSim = r.minSimilarity
	}

	variants := []string{query}
	if r.expander != nil {
		variants = r.expander.Expand(ctx, query)
	}

	candidates, searched, err := r.searchVariants(ctx, variants, store.SearchOptions{
		Limit:         topK * r.candidateMultiplier,
		MinSimilarity: minSim,
		Categories:    opts.Categories,
	})
	if err != nil {
		return nil, err
	}
	if searched == 0 {
		// every variant's search failed; report the domain outcome, not the
		// provider failure
		return nil, ErrNoRelevantContent
	}
	if len(candidates) == 0 {
		return nil, ErrNoRelevantContent
	}

	if r.reranker != nil {
		candidates = r.reranker.Rerank(ctx, query, candidates)
	}
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

// searchVariants runs the vector search for each variant and merges the
// candidate sets, de-duplicating by chunk id. First occurrence wins and
// keeps its similarity score: alternates broaden recall, they do not
// re-score. Returns how many variant searches actually succeeded.
func (r *Retriever) searchVariants(ctx context.Context, variants []string, searchOpts store.SearchOptions) ([]models.ScoredChunk, int, error) {
	var merged []models.ScoredChunk
	seen := make(map[int64]bool)
	seenContent := make(map[string]bool)
	searched := 0

	for i, variant := range variants {
		vec, err := r.embedder.Embed(ctx, variant)
		if err != nil {
			if i == 0 {
				// no sensible fallback for the original query itself
				return nil, 0, fmt.Errorf("embedding query: %w", err)
			}
			log.Warn().Err(err).Str("variant", variant).Msg("variant embedding failed, skipping")
			continue
		}

		results, err := r.store.Search(ctx, vec, searchOpts)
		if err != nil {
			log.Warn().Err(err).Str("variant", variant).Msg("vector search failed for variant")
			continue
		}
		searched++

		for _, res := range results {
			if res.Chunk.ID != 0 {
				if seen[res.Chunk.ID] {
					continue
				}
				seen[res.Chunk.ID] = true
			} else {
				// store backends without numeric ids dedupe on identity
				key := res.Chunk.ParentRef + "\x00" + res.Chunk.SourceCategory + "\x00" + res.Chunk.Content
				if seenContent[key] {
					continue
				}
				seenContent[key] = true
			}
			merged = append(merged, res)
		}
	}
	return merged, searched, nil
}
