// Package storage provides the persistent key-value backends behind the dedup cache.
package storage

import (
	"context"
	"fmt"
)

// Store persists opaque JSON values by key. Entries survive restarts until Clear.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Clear(ctx context.Context) error
	Len(ctx context.Context) (int, error)
	Close() error
}

// Open creates the backend named by kind: "sqlite", "postgres" or "file".
func Open(kind, dsn string) (Store, error) {
	switch kind {
	case "sqlite", "":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(dsn)
	case "file":
		return NewFileStore(dsn)
	}
	return nil, fmt.Errorf("storage: unknown backend %q", kind)
}
