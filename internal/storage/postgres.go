package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
)

// Postgres keeps the dedup cache in a shared PostgreSQL database.
type Postgres struct {
	db *sql.DB
}

var _ Store = (*Postgres)(nil)

// NewPostgres connects with a lib/pq connection string and creates the schema.
func NewPostgres(connectionString string) (*Postgres, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("storage: connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: ping database: %w", err)
	}

	pg := &Postgres{db: db}
	if err := pg.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("PostgreSQL cache connected")
	return pg, nil
}

func (pg *Postgres) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS dedup_cache (
		key TEXT PRIMARY KEY,
		value JSONB NOT NULL,
		stored_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_dedup_cache_stored_at ON dedup_cache(stored_at);
	`

	if _, err := pg.db.Exec(schema); err != nil {
		return fmt.Errorf("storage: create schema: %w", err)
	}
	return nil
}

func (pg *Postgres) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := pg.db.QueryRowContext(ctx, `SELECT value FROM dedup_cache WHERE key = $1`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage: get %q: %w", key, err)
	}
	return value, true, nil
}

// Put upserts so concurrent writers of one key settle on the last value.
func (pg *Postgres) Put(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO dedup_cache (key, value, stored_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, stored_at = NOW()
	`
	if _, err := pg.db.ExecContext(ctx, query, key, string(value)); err != nil {
		return fmt.Errorf("storage: put %q: %w", key, err)
	}
	return nil
}

func (pg *Postgres) Clear(ctx context.Context) error {
	result, err := pg.db.ExecContext(ctx, `DELETE FROM dedup_cache`)
	if err != nil {
		return fmt.Errorf("storage: clear: %w", err)
	}
	rows, _ := result.RowsAffected()
	slog.Info("dedup cache cleared", "rows", rows)
	return nil
}

func (pg *Postgres) Len(ctx context.Context) (int, error) {
	var n int
	if err := pg.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dedup_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count: %w", err)
	}
	return n, nil
}

func (pg *Postgres) Close() error {
	if pg.db != nil {
		return pg.db.Close()
	}
	return nil
}
