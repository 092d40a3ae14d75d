package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"helpdesk-rag/internal/models"

	"github.com/uptrace/bun"
)

// PostgresStore keeps chunks in a pgvector-enabled table through bun.
type PostgresStore struct {
	db *bun.DB
}

func NewPostgresStore(db *bun.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) InsertChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := validateChunks(chunks); err != nil {
		return err
	}
	_, err := s.db.NewInsert().Model(&chunks).Exec(ctx)
	return err
}

// ReplaceParentChunks serializes concurrent re-indexing of the same parent
// with a transaction-scoped advisory lock, so a delete from one run can
// never race an insert from another.
func (s *PostgresStore) ReplaceParentChunks(ctx context.Context, parentRef string, categories []string, chunks []models.Chunk) error {
	if err := validateChunks(chunks); err != nil {
		return err
	}
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext(?))", parentRef); err != nil {
			return fmt.Errorf("acquiring parent lock: %w", err)
		}
		if err := deleteByParent(ctx, tx, parentRef, categories); err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		_, err := tx.NewInsert().Model(&chunks).Exec(ctx)
		return err
	})
}

func (s *PostgresStore) DeleteByParent(ctx context.Context, parentRef string, categories []string) error {
	return deleteByParent(ctx, s.db, parentRef, categories)
}

func deleteByParent(ctx context.Context, db bun.IDB, parentRef string, categories []string) error {
	q := db.NewDelete().
		Model((*models.Chunk)(nil)).
		Where("parent_ref = ?", parentRef)
	if len(categories) > 0 {
		q = q.Where("source_category IN (?)", bun.In(categories))
	}
	_, err := q.Exec(ctx)
	return err
}

func (s *PostgresStore) Search(ctx context.Context, queryVector []float32, opts SearchOptions) ([]models.ScoredChunk, error) {
	if len(queryVector) != models.EmbeddingDim {
		return nil, fmt.Errorf("query vector: %w: got %d, want %d",
			ErrInvalidVector, len(queryVector), models.EmbeddingDim)
	}
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	vec := vectorLiteral(queryVector)

	var rows []similarityRow
	q := s.db.NewSelect().
		Model(&rows).
		ColumnExpr("c.*").
		ColumnExpr("1 - (c.embedding <=> ?) AS similarity", vec)
	if len(opts.Categories) > 0 {
		q = q.Where("source_category IN (?)", bun.In(opts.Categories))
	}
	if opts.MinSimilarity > 0 {
		q = q.Where("1 - (c.embedding <=> ?) >= ?", vec, opts.MinSimilarity)
	}
	q = q.OrderExpr("c.embedding <=> ?", vec).
		OrderExpr("c.priority DESC").
		Limit(opts.Limit)

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	out := make([]models.ScoredChunk, len(rows))
	for i, row := range rows {
		out[i] = models.ScoredChunk{Chunk: row.Chunk, Similarity: row.Similarity}
	}
	return out, nil
}

type similarityRow struct {
	models.Chunk `bun:",extend"`

	Similarity float64 `bun:"similarity,scanonly"`
}

// vectorLiteral renders a pgvector input literal like [0.1,0.2,...].
func vectorLiteral(vec []float32) string {
	parts := make([]string, len(vec))
	for i, f := range vec {
		parts[i] = strconv.FormatFloat(float64(f), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
