package indexer

import (
	"context"
	"fmt"
	"strings"

	"helpdesk-rag/internal/chunker"
	"helpdesk-rag/internal/config"
	"helpdesk-rag/internal/embedding"
	"helpdesk-rag/internal/models"
	"helpdesk-rag/internal/store"
	"helpdesk-rag/internal/vision"

	"github.com/rs/zerolog/log"
)

// Captioner is the slice of the vision client the indexer needs.
type Captioner interface {
	Caption(ctx context.Context, imageURL, promptHint string) (string, error)
}

var _ Captioner = (*vision.Captioner)(nil)

// Indexer turns content items and approved QA pairs into persisted,
// searchable chunk rows. Re-indexing a parent replaces its rows wholesale;
// stale and fresh chunks never mix.
type Indexer struct {
	store     store.ChunkStore
	embedder  *embedding.Client
	captioner Captioner
	maxChars  int
	overlap   int
}

func New(chunkStore store.ChunkStore, embedder *embedding.Client, captioner Captioner, ragCfg *config.RAGConfig) *Indexer {
	maxChars, overlap := chunker.DefaultMaxChars, chunker.DefaultOverlap
	if ragCfg != nil {
		if ragCfg.ChunkSize > 0 {
			maxChars = ragCfg.ChunkSize
		}
		if ragCfg.ChunkOverlap > 0 {
			overlap = ragCfg.ChunkOverlap
		}
	}
	return &Indexer{
		store:     chunkStore,
		embedder:  embedder,
		captioner: captioner,
		maxChars:  maxChars,
		overlap:   overlap,
	}
}

// IndexContent (re)indexes one content item and returns the number of chunks
// created. Image captions are folded inline into the text stream before
// chunking; the dedicated image path is IndexImage. Per-chunk embedding
// failures are skipped and logged, so a partial run still succeeds for the
// chunks that embedded.
func (ix *Indexer) IndexContent(ctx context.Context, content models.Content) (int, error) {
	text := content.Body
	for _, imageURL := range content.ImageURLs {
		caption, err := ix.caption(ctx, imageURL, content.Title)
		if err != nil {
			log.Warn().Err(err).Str("image", imageURL).Msg("caption failed, indexing without it")
			continue
		}
		text += "\n\n[image] " + caption
	}

	pieces := chunker.Chunk(text, ix.maxChars, ix.overlap)
	chunks := ix.embedPieces(ctx, pieces, chunkTemplate{
		sourceLabel: content.Title,
		category:    models.CategoryDocument,
		parentRef:   content.ID,
	})

	err := ix.store.ReplaceParentChunks(ctx, content.ID, []string{models.CategoryDocument}, chunks)
	if err != nil {
		return 0, fmt.Errorf("replacing chunks for content %s: %w", content.ID, err)
	}
	return len(chunks), nil
}

// IndexImage stores an image caption as its own standalone chunk row with
// the image reference attached.
func (ix *Indexer) IndexImage(ctx context.Context, contentID, title, imageURL string) error {
	caption, err := ix.caption(ctx, imageURL, title)
	if err != nil {
		return err
	}
	vec, err := ix.embedder.Embed(ctx, caption)
	if err != nil {
		return err
	}
	chunk := models.Chunk{
		SourceLabel:      title,
		SourceCategory:   models.CategoryImageCaption,
		SequenceIndex:    0,
		SequenceTotal:    1,
		Content:          caption,
		Embedding:        vec,
		EmbeddingModelID: ix.embedder.ModelID(),
		Priority:         models.CategoryPriority(models.CategoryImageCaption),
		ImageRef:         imageURL,
		ParentRef:        contentID,
	}
	return ix.store.InsertChunks(ctx, []models.Chunk{chunk})
}

// IndexQAPair (re)indexes an approved question/answer pair. It is invoked
// fire-and-forget from the approval workflow, so it never returns an error:
// every failure is logged and swallowed. Existing rows for both QA
// categories are deleted first, making re-approval idempotent.
func (ix *Indexer) IndexQAPair(ctx context.Context, pair models.QAPair) {
	questionText := pair.QuestionTitle
	if pair.QuestionBody != "" {
		questionText += "\n" + pair.QuestionBody
	}
	if pair.QuestionImage != "" {
		if caption, err := ix.caption(ctx, pair.QuestionImage, pair.QuestionTitle); err == nil {
			questionText += "\n[image: " + caption + "]"
		} else {
			log.Warn().Err(err).Str("question_id", pair.QuestionID).Msg("question image caption failed")
		}
	}

	answerText := pair.AnswerBody
	if pair.AnswerImage != "" {
		if caption, err := ix.caption(ctx, pair.AnswerImage, pair.QuestionTitle); err == nil {
			answerText += "\n[image: " + caption + "]"
		} else {
			log.Warn().Err(err).Str("answer_id", pair.AnswerID).Msg("answer image caption failed")
		}
	}

	meta := map[string]string{
		"question_id": pair.QuestionID,
		"answer_id":   pair.AnswerID,
	}

	var chunks []models.Chunk
	chunks = append(chunks, ix.embedPieces(ctx, chunker.Chunk(questionText, ix.maxChars, ix.overlap), chunkTemplate{
		sourceLabel: pair.QuestionTitle,
		category:    models.CategoryQAQuestion,
		parentRef:   pair.QuestionID,
		metadata:    meta,
	})...)
	chunks = append(chunks, ix.embedPieces(ctx, chunker.Chunk(answerText, ix.maxChars, ix.overlap), chunkTemplate{
		sourceLabel: pair.QuestionTitle,
		category:    models.CategoryQAAnswer,
		parentRef:   pair.QuestionID,
		metadata:    meta,
	})...)

	categories := []string{models.CategoryQAQuestion, models.CategoryQAAnswer}
	if err := ix.store.ReplaceParentChunks(ctx, pair.QuestionID, categories, chunks); err != nil {
		log.Error().Err(err).
			Str("question_id", pair.QuestionID).
			Str("answer_id", pair.AnswerID).
			Msg("storing QA chunks failed")
		return
	}
	log.Info().
		Str("question_id", pair.QuestionID).
		Int("chunks", len(chunks)).
		Msg("QA pair indexed")
}

type chunkTemplate struct {
	sourceLabel string
	category    string
	parentRef   string
	metadata    map[string]string
}

// embedPieces embeds each text piece and builds chunk rows. A failed
// embedding skips that piece and logs; surviving pieces keep their original
// sequence numbering.
func (ix *Indexer) embedPieces(ctx context.Context, pieces []string, tmpl chunkTemplate) []models.Chunk {
	var chunks []models.Chunk
	for i, piece := range pieces {
		if strings.TrimSpace(piece) == "" {
			continue
		}
		vec, err := ix.embedder.Embed(ctx, piece)
		if err != nil {
			log.Warn().Err(err).
				Str("parent_ref", tmpl.parentRef).
				Int("sequence_index", i).
				Msg("embedding failed, skipping chunk")
			continue
		}
		chunks = append(chunks, models.Chunk{
			SourceLabel:      tmpl.sourceLabel,
			SourceCategory:   tmpl.category,
			SequenceIndex:    i,
			SequenceTotal:    len(pieces),
			Content:          piece,
			Embedding:        vec,
			EmbeddingModelID: ix.embedder.ModelID(),
			Priority:         models.CategoryPriority(tmpl.category),
			ParentRef:        tmpl.parentRef,
			Metadata:         tmpl.metadata,
		})
	}
	return chunks
}

func (ix *Indexer) caption(ctx context.Context, imageURL, hint string) (string, error) {
	if ix.captioner == nil {
		return "", fmt.Errorf("no captioner configured")
	}
	return ix.captioner.Caption(ctx, imageURL, hint)
}
