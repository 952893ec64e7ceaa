package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second

	pgUndefinedTable = "42P01"
)

const (
	createDocumentsSQL = `CREATE TABLE IF NOT EXISTS catalog_documents (
	name       TEXT PRIMARY KEY,
	body       TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	selectDocumentSQL = `SELECT body FROM catalog_documents WHERE name = $1`
	upsertDocumentSQL = `INSERT INTO catalog_documents (name, body, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`
)

func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := withTimeout(ctx, pingTimeout, db.PingContext); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// PostgresBackend stores the document as text in one row of
// catalog_documents, so the bytes come back exactly as written.
type PostgresBackend struct {
	db   *sql.DB
	name string
}

func NewPostgresBackend(db *sql.DB, name string) *PostgresBackend {
	return &PostgresBackend{db: db, name: name}
}

func (b *PostgresBackend) Source() string { return "postgres:" + b.name }

func (b *PostgresBackend) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return b.db.PingContext(ctx)
	})
}

func (b *PostgresBackend) EnsureSchema(ctx context.Context) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := b.db.ExecContext(ctx, createDocumentsSQL)
		return err
	})
}

func (b *PostgresBackend) Read(ctx context.Context) ([]byte, error) {
	var body string
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return b.db.QueryRowContext(ctx, selectDocumentSQL, b.name).Scan(&body)
	})
	if errors.Is(err, sql.ErrNoRows) || isUndefinedTable(err) {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, err
	}
	return []byte(body), nil
}

func (b *PostgresBackend) Write(ctx context.Context, doc []byte) error {
	err := b.upsert(ctx, b.name, doc)
	if !isUndefinedTable(err) {
		return err
	}
	if err := b.EnsureSchema(ctx); err != nil {
		return err
	}
	return b.upsert(ctx, b.name, doc)
}

func (b *PostgresBackend) Quarantine(ctx context.Context, doc []byte) (string, error) {
	name := fmt.Sprintf("%s.corrupt.%d", b.name, time.Now().UnixNano())
	if err := b.upsert(ctx, name, doc); err != nil {
		return "", err
	}
	return "postgres:" + name, nil
}

func (b *PostgresBackend) upsert(ctx context.Context, name string, doc []byte) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := b.db.ExecContext(ctx, upsertDocumentSQL, name, string(doc))
		return err
	})
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable
}
