package store

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"

	"helpdesk-rag/internal/models"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
)

const metadataPrefix = "meta."

// ChromemStore is an embedded chromem-go implementation of ChunkStore, used
// for local single-instance deployments and tests. Chunk fields ride in the
// document metadata so rows survive a round trip.
type ChromemStore struct {
	collection *chromem.Collection

	// serializes ReplaceParentChunks per parent; chromem has no transactions
	mu      sync.Mutex
	parents map[string]*sync.Mutex
}

// NewChromemStore opens (or creates) a collection, persisted under path
// unless path is empty, in which case everything stays in memory.
func NewChromemStore(path, collectionName string) (*ChromemStore, error) {
	var db *chromem.DB
	var err error
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("opening chromem db: %w", err)
		}
	}
	collection, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("opening collection: %w", err)
	}
	return &ChromemStore{collection: collection, parents: make(map[string]*sync.Mutex)}, nil
}

func (s *ChromemStore) InsertChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := validateChunks(chunks); err != nil {
		return err
	}
	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:        uuid.NewString(),
			Content:   c.Content,
			Embedding: c.Embedding,
			Metadata:  chunkMetadata(c),
		}
	}
	return s.collection.AddDocuments(ctx, docs, runtime.NumCPU())
}

func (s *ChromemStore) ReplaceParentChunks(ctx context.Context, parentRef string, categories []string, chunks []models.Chunk) error {
	if err := validateChunks(chunks); err != nil {
		return err
	}
	lock := s.parentLock(parentRef)
	lock.Lock()
	defer lock.Unlock()

	if err := s.DeleteByParent(ctx, parentRef, categories); err != nil {
		return err
	}
	return s.InsertChunks(ctx, chunks)
}

func (s *ChromemStore) DeleteByParent(ctx context.Context, parentRef string, categories []string) error {
	if len(categories) == 0 {
		return s.collection.Delete(ctx, map[string]string{"parent_ref": parentRef}, nil)
	}
	for _, cat := range categories {
		where := map[string]string{"parent_ref": parentRef, "source_category": cat}
		if err := s.collection.Delete(ctx, where, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *ChromemStore) Search(ctx context.Context, queryVector []float32, opts SearchOptions) ([]models.ScoredChunk, error) {
	if len(queryVector) != models.EmbeddingDim {
		return nil, fmt.Errorf("query vector: %w: got %d, want %d",
			ErrInvalidVector, len(queryVector), models.EmbeddingDim)
	}
	if opts.Limit <= 0 {
		opts.Limit = 10
	}

	total := s.collection.Count()
	if total == 0 {
		return nil, nil
	}
	// chromem filters only on single-value equality, so over-fetch and apply
	// category/floor filters here
	n := opts.Limit * 4
	if n > total {
		n = total
	}

	results, err := s.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: queryVector,
		NResults:       n,
	})
	if err != nil {
		return nil, err
	}

	var out []models.ScoredChunk
	for _, res := range results {
		sim := float64(res.Similarity)
		if opts.MinSimilarity > 0 && sim < opts.MinSimilarity {
			continue
		}
		chunk := chunkFromResult(res)
		if len(opts.Categories) > 0 && !containsString(opts.Categories, chunk.SourceCategory) {
			continue
		}
		out = append(out, models.ScoredChunk{Chunk: chunk, Similarity: sim})
		if len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

func (s *ChromemStore) parentLock(parentRef string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.parents[parentRef]
	if !ok {
		lock = &sync.Mutex{}
		s.parents[parentRef] = lock
	}
	return lock
}

func chunkMetadata(c models.Chunk) map[string]string {
	m := map[string]string{
		"source_label":       c.SourceLabel,
		"source_category":    c.SourceCategory,
		"sequence_index":     strconv.Itoa(c.SequenceIndex),
		"sequence_total":     strconv.Itoa(c.SequenceTotal),
		"embedding_model_id": c.EmbeddingModelID,
		"priority":           strconv.Itoa(c.Priority),
		"parent_ref":         c.ParentRef,
	}
	if c.ImageRef != "" {
		m["image_ref"] = c.ImageRef
	}
	for k, v := range c.Metadata {
		m[metadataPrefix+k] = v
	}
	return m
}

func chunkFromResult(res chromem.Result) models.Chunk {
	seqIdx, _ := strconv.Atoi(res.Metadata["sequence_index"])
	seqTotal, _ := strconv.Atoi(res.Metadata["sequence_total"])
	priority, _ := strconv.Atoi(res.Metadata["priority"])

	var meta map[string]string
	for k, v := range res.Metadata {
		if len(k) > len(metadataPrefix) && k[:len(metadataPrefix)] == metadataPrefix {
			if meta == nil {
				meta = make(map[string]string)
			}
			meta[k[len(metadataPrefix):]] = v
		}
	}
	return models.Chunk{
		SourceLabel:      res.Metadata["source_label"],
		SourceCategory:   res.Metadata["source_category"],
		SequenceIndex:    seqIdx,
		SequenceTotal:    seqTotal,
		Content:          res.Content,
		Embedding:        res.Embedding,
		EmbeddingModelID: res.Metadata["embedding_model_id"],
		Priority:         priority,
		ImageRef:         res.Metadata["image_ref"],
		ParentRef:        res.Metadata["parent_ref"],
		Metadata:         meta,
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
