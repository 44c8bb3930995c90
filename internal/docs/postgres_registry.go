package docs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresRegistry stores documents in a "documents" table.
type PostgresRegistry struct {
	db         *sql.DB
	schemaOnce sync.Once
	schemaErr  error
}

// OpenPostgresRegistry connects with the pgx driver and verifies the connection.
func OpenPostgresRegistry(ctx context.Context, dsn string) (*PostgresRegistry, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return NewPostgresRegistry(db), nil
}

func NewPostgresRegistry(db *sql.DB) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

func (r *PostgresRegistry) ensureSchema(ctx context.Context) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("db is nil")
	}
	r.schemaOnce.Do(func() {
		_, r.schemaErr = r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS documents (
  doc_id TEXT PRIMARY KEY,
  path TEXT NOT NULL DEFAULT '',
  updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
`)
	})
	return r.schemaErr
}

func (r *PostgresRegistry) Path(ctx context.Context, docID string) (string, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return "", err
	}
	var path string
	err := r.db.QueryRowContext(ctx, `SELECT path FROM documents WHERE doc_id = $1`, strings.TrimSpace(docID)).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && path == "") {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return path, nil
}

func (r *PostgresRegistry) Set(ctx context.Context, docID, path string) error {
	if err := r.ensureSchema(ctx); err != nil {
		return err
	}
	d := normalizeDocument(Document{DocID: docID, Path: path})
	if d.DocID == "" {
		return fmt.Errorf("doc_id is required")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (doc_id, path, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (doc_id)
DO UPDATE SET path=EXCLUDED.path, updated_at=EXCLUDED.updated_at`, d.DocID, d.Path)
	return err
}

func (r *PostgresRegistry) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}
