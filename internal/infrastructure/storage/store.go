// Package storage implements the Catalog Store (§4.1) on top of an embedded
// SQLite database, grounded on hrom512-rss_bot's SQLite+goose wiring and
// Mimic890-hyprbot's squirrel-based query building.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/archivecast/podgen/internal/infrastructure/storage/migrations"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// SQLiteStore implements ports.CatalogStore.
type SQLiteStore struct {
	db  *sql.DB
	sql sq.StatementBuilderType
}

// Open opens (creating if absent) the SQLite database at dsn, applies
// pending migrations, and returns a ready store. A single connection is
// enforced so the embedded, single-writer database never sees concurrent
// writer contention (§4.1: "single embedded writer").
func Open(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{
		db:  db,
		sql: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
