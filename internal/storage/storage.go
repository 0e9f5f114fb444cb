// Package storage persists the map state as string values under string keys.
//
// Backends: file (JSON in the data dir), duckdb, sqlite, postgres, redis and
// memory. Values are opaque text; callers encode them.
package storage

import (
	"context"
	"fmt"
	"path/filepath"
)

// Keys used by the map state.
const (
	KeyAssignments = "chile-map-assignments"
	KeyLabels      = "chile-map-labels"
)

// Store is a string key/value store.
type Store interface {
	// Get returns the value for key; found is false when the key is absent.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend   string // file, duckdb, sqlite, postgres, redis, memory
	DataDir   string
	DSN       string // database DSN or path; redis address for redis
	RedisPass string
	RedisDB   int
	Prefix    string // redis key prefix
}

// Open creates the configured backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileStore(filepath.Join(cfg.DataDir, "state.json")), nil
	case "memory":
		return NewMemoryStore(), nil
	case "duckdb":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = filepath.Join(cfg.DataDir, "duckdb", "comunas.duckdb")
		}
		return OpenSQL(ctx, DialectDuckDB, dsn)
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = filepath.Join(cfg.DataDir, "comunas.db")
		}
		return OpenSQL(ctx, DialectSQLite, dsn)
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres storage needs a DSN")
		}
		return OpenSQL(ctx, DialectPostgres, cfg.DSN)
	case "redis":
		return OpenRedis(ctx, cfg.DSN, cfg.RedisPass, cfg.RedisDB, cfg.Prefix)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}
