package db

import (
	"context"
	"database/sql"

	"helpdesk-rag/internal/config"
	"helpdesk-rag/internal/models"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	dsn := cfg.DSN + "?sslmode=disable"
	return sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithPassword(cfg.Password),
	)), nil
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// InitDB creates the vector extension, the chunk table, and the indexes the
// pipeline relies on.
func InitDB(ctx context.Context, db *bun.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return err
	}
	if _, err := db.NewCreateTable().Model((*models.Chunk)(nil)).IfNotExists().Exec(ctx); err != nil {
		return err
	}
	// re-indexing deletes by (parent_ref, source_category)
	if _, err := db.NewCreateIndex().
		Model((*models.Chunk)(nil)).
		Index("idx_chunks_parent_category").
		IfNotExists().
		Column("parent_ref", "source_category").
		Exec(ctx); err != nil {
		return err
	}
	return nil
}

// DropChunks removes the chunk table entirely. Intended for local resets.
func DropChunks(ctx context.Context, db *bun.DB) error {
	_, err := db.NewDropTable().Model((*models.Chunk)(nil)).IfExists().Exec(ctx)
	return err
}
