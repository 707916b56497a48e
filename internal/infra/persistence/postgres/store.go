// Package postgres persists namespace payloads to PostgreSQL through the pgx
// database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"elwinator/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/elwinator?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store keeps one JSONB row per namespace.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a store using dsn, falling back to a local default, and ensures the
// namespaces table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func ensureTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS namespaces (
		name TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		payload JSONB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure namespaces table: %w", err)
	}
	return nil
}

// Load implements domain.PersistentStore.
func (s *Store) Load(ctx context.Context) ([]domain.NamespacePayload, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, payload FROM namespaces ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("select namespaces: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []domain.NamespacePayload{}
	for rows.Next() {
		var name string
		var payload []byte
		if err := rows.Scan(&name, &payload); err != nil {
			return nil, fmt.Errorf("scan namespace: %w", err)
		}
		var ns domain.NamespacePayload
		if err := json.Unmarshal(payload, &ns); err != nil {
			return nil, fmt.Errorf("decode namespace %s: %w", name, err)
		}
		out = append(out, ns)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate namespaces: %w", err)
	}
	return out, nil
}

// Save implements domain.PersistentStore. The table is truncated and rewritten in one
// transaction.
func (s *Store) Save(ctx context.Context, payloads []domain.NamespacePayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `TRUNCATE TABLE namespaces`); err != nil {
		return fmt.Errorf("truncate namespaces: %w", err)
	}
	for i, ns := range payloads {
		data, err := json.Marshal(ns)
		if err != nil {
			return fmt.Errorf("encode namespace %s: %w", ns.Name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO namespaces (name, position, payload) VALUES ($1,$2,$3)`, ns.Name, i, data); err != nil {
			return fmt.Errorf("insert namespace %s: %w", ns.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
