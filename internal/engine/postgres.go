package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Queryer is the subset of a pgx pool the backend needs.
type Queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS ilpi_documents (
    key TEXT PRIMARY KEY,
    body TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
)`

// PostgresBackend stores documents in a PostgreSQL table. It is the storage
// of the remote service deployment.
type PostgresBackend struct {
	db    Queryer
	close func()
	now   func() time.Time
}

// NewPostgresBackend wraps an existing pool. Close is a no-op.
func NewPostgresBackend(db Queryer) *PostgresBackend {
	return &PostgresBackend{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// OpenPostgres connects to dsn, checks the connection and creates the table.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresBackend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	b := NewPostgresBackend(pool)
	b.close = pool.Close
	if err := b.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return b, nil
}

// EnsureSchema creates the documents table if it does not exist.
func (b *PostgresBackend) EnsureSchema(ctx context.Context) error {
	if _, err := b.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("postgres: create table: %w", err)
	}
	return nil
}

func (b *PostgresBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var body string
	err := b.db.QueryRow(ctx, `SELECT body FROM ilpi_documents WHERE key = $1`, key).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get %s: %w", key, err)
	}
	return []byte(body), nil
}

func (b *PostgresBackend) Put(ctx context.Context, key string, value []byte) error {
	_, err := b.db.Exec(ctx, `
        INSERT INTO ilpi_documents (key, body, updated_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (key) DO UPDATE
           SET body = EXCLUDED.body,
               updated_at = EXCLUDED.updated_at
    `, key, string(value), b.now())
	if err != nil {
		return fmt.Errorf("postgres: put %s: %w", key, err)
	}
	return nil
}

func (b *PostgresBackend) Delete(ctx context.Context, key string) error {
	if _, err := b.db.Exec(ctx, `DELETE FROM ilpi_documents WHERE key = $1`, key); err != nil {
		return fmt.Errorf("postgres: delete %s: %w", key, err)
	}
	return nil
}

func (b *PostgresBackend) Close() error {
	if b.close != nil {
		b.close()
	}
	return nil
}
