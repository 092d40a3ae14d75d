package store

import (
	"context"
	"errors"
	"fmt"

	"helpdesk-rag/internal/models"
)

// ErrInvalidVector means a chunk arrived with an embedding whose length does
// not match the system dimensionality. Such rows are rejected before they
// reach the store; one mismatched row silently corrupts every similarity
// comparison against it.
var ErrInvalidVector = errors.New("chunk embedding has wrong dimensionality")

// SearchOptions narrows a similarity search.
type SearchOptions struct {
	Limit         int
	MinSimilarity float64
	Categories    []string
}

// ChunkStore is the persistence contract for the retrieval pipeline. Rows
// are immutable once inserted; re-indexing replaces a parent's rows
// wholesale.
type ChunkStore interface {
	// InsertChunks persists chunks. Every chunk must carry a non-empty
	// content and a vector of the system dimensionality.
	InsertChunks(ctx context.Context, chunks []models.Chunk) error

	// ReplaceParentChunks atomically deletes every chunk matching parentRef
	// and any of the categories, then inserts the fresh set. Concurrent
	// replacements for the same parent are serialized; a reader never
	// observes a partial mix of stale and fresh rows.
	ReplaceParentChunks(ctx context.Context, parentRef string, categories []string, chunks []models.Chunk) error

	// DeleteByParent removes every chunk matching parentRef and any of the
	// categories.
	DeleteByParent(ctx context.Context, parentRef string, categories []string) error

	// Search returns chunks ordered by similarity to the query vector,
	// descending, honoring the options.
	Search(ctx context.Context, queryVector []float32, opts SearchOptions) ([]models.ScoredChunk, error)
}

func validateChunks(chunks []models.Chunk) error {
	for i := range chunks {
		if chunks[i].Content == "" {
			return fmt.Errorf("chunk %d: empty content", i)
		}
		if len(chunks[i].Embedding) != models.EmbeddingDim {
			return fmt.Errorf("chunk %d: %w: got %d, want %d",
				i, ErrInvalidVector, len(chunks[i].Embedding), models.EmbeddingDim)
		}
	}
	return nil
}
