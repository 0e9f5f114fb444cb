package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/joeblew999/plat-comunas/internal/db"
)

// Dialect captures the per-driver SQL differences.
type Dialect struct {
	Driver      string
	placeholder func(n int) string
}

func (d Dialect) bind(n int) string { return d.placeholder(n) }

func questionMark(int) string { return "?" }

func dollar(n int) string { return fmt.Sprintf("$%d", n) }

var (
	DialectDuckDB   = Dialect{Driver: db.DriverDuckDB, placeholder: questionMark}
	DialectSQLite   = Dialect{Driver: db.DriverSQLite, placeholder: questionMark}
	DialectPostgres = Dialect{Driver: db.DriverPostgres, placeholder: dollar}
)

const kvTable = "comunas_kv"

// SQLStore keeps values in a two-column table.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQL connects with the dialect's driver and ensures the table exists.
func OpenSQL(ctx context.Context, d Dialect, dsn string) (*SQLStore, error) {
	conn, err := db.Open(ctx, db.Config{Driver: d.Driver, DSN: dsn})
	if err != nil {
		return nil, err
	}
	s, err := NewSQLStore(ctx, conn, d)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an existing connection.
func NewSQLStore(ctx context.Context, conn *sql.DB, d Dialect) (*SQLStore, error) {
	s := &SQLStore{db: conn, dialect: d}
	q := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (k TEXT PRIMARY KEY, v TEXT NOT NULL)", kvTable)
	if _, err := conn.ExecContext(ctx, q); err != nil {
		return nil, fmt.Errorf("creating %s: %w", kvTable, err)
	}
	return s, nil
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	q := fmt.Sprintf("SELECT v FROM %s WHERE k = %s", kvTable, s.dialect.bind(1))
	var v string
	err := s.db.QueryRowContext(ctx, q, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	q := fmt.Sprintf(
		"INSERT INTO %s (k, v) VALUES (%s, %s) ON CONFLICT (k) DO UPDATE SET v = excluded.v",
		kvTable, s.dialect.bind(1), s.dialect.bind(2),
	)
	_, err := s.db.ExecContext(ctx, q, key, value)
	return err
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	q := fmt.Sprintf("DELETE FROM %s WHERE k = %s", kvTable, s.dialect.bind(1))
	_, err := s.db.ExecContext(ctx, q, key)
	return err
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
