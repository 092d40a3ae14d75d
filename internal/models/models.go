package models

import (
	"github.com/uptrace/bun"
)

// EmbeddingDim is the fixed dimensionality of every stored vector. All rows
// in the chunk table must match it or similarity search is meaningless.
const EmbeddingDim = 768

// Source categories distinguish where a chunk came from. They drive both
// retrieval filtering and priority weighting.
const (
	CategoryDocument     = "document"
	CategoryQAQuestion   = "qa_question"
	CategoryQAAnswer     = "qa_answer"
	CategoryImageCaption = "image_caption"
)

// CategoryPriority returns the rank boost for a source category. Curated
// document content outranks Q&A-derived content.
func CategoryPriority(category string) int {
	switch category {
	case CategoryDocument:
		return 100
	case CategoryImageCaption:
		return 80
	case CategoryQAQuestion, CategoryQAAnswer:
		return 50
	default:
		return 0
	}
}

// Chunk is the atomic retrievable unit: a bounded piece of text (or an image
// caption standing in for non-text content) with its embedding vector.
type Chunk struct {
	bun.BaseModel `bun:"table:chunks,alias:c"`

	ID               int64             `bun:"id,pk,autoincrement"`
	SourceLabel      string            `bun:"source_label,notnull"`
	SourceCategory   string            `bun:"source_category,notnull"`
	SequenceIndex    int               `bun:"sequence_index,notnull"`
	SequenceTotal    int               `bun:"sequence_total,notnull"`
	Content          string            `bun:"content,notnull"`
	Embedding        []float32         `bun:"embedding,notnull,type:vector(768)"`
	EmbeddingModelID string            `bun:"embedding_model_id,notnull"`
	Priority         int               `bun:"priority,notnull,default:0"`
	ImageRef         string            `bun:"image_ref,nullzero"`
	ParentRef        string            `bun:"parent_ref,nullzero"`
	Metadata         map[string]string `bun:"metadata,type:jsonb,nullzero"`
}

// ScoredChunk pairs a retrieved chunk with its similarity score and, when
// reranking ran, the rerank score. Transient: built per request, discarded
// once the consumer extracted provenance.
type ScoredChunk struct {
	Chunk       Chunk
	Similarity  float64
	Reranked    bool
	RerankScore float64
}

// Content is a knowledge-base article handed to the indexer.
type Content struct {
	ID        string
	Title     string
	Body      string
	ImageURLs []string
}

// QAPair is an approved question/answer handed to the indexer.
type QAPair struct {
	QuestionID    string
	AnswerID      string
	QuestionTitle string
	QuestionBody  string
	AnswerBody    string
	QuestionImage string
	AnswerImage   string
}

// Provenance is what the answer layer persists alongside a generated answer
// so it can be traced back to its supporting chunks.
type Provenance struct {
	SourceLabel    string  `json:"source_label"`
	SourceCategory string  `json:"source_category"`
	Similarity     float64 `json:"similarity"`
}
