// Package sqlite persists namespace payloads to an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"elwinator/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ domain.PersistentStore = (*Store)(nil)

// DefaultPath is used when NewStore receives an empty path.
const DefaultPath = "elwinator.db"

// Store keeps one row per namespace: its name, its display position and its JSON
// payload. Save replaces the whole table in one transaction.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (or creates) the database at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS namespaces (
		name TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create namespaces table: %w", err)
	}
	return &Store{db: db, path: path}, nil
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
			return nil, fmt.Errorf("scan: %w", err)
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

// Save implements domain.PersistentStore.
func (s *Store) Save(ctx context.Context, payloads []domain.NamespacePayload) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `DELETE FROM namespaces`); err != nil {
		return fmt.Errorf("clear namespaces: %w", err)
	}
	for i, ns := range payloads {
		data, err := json.Marshal(ns)
		if err != nil {
			return fmt.Errorf("encode namespace %s: %w", ns.Name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO namespaces(name,position,payload) VALUES(?,?,?)`, ns.Name, i, data); err != nil {
			return fmt.Errorf("insert namespace %s: %w", ns.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
