// Package memory provides an in-process PersistentStore used for tests and
// ephemeral sessions.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"elwinator/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("memory store closed")

// Store keeps the last saved payloads in memory. Payloads are deep-copied on the way
// in and out so callers never share nested slices with the store.
type Store struct {
	mu       sync.RWMutex
	payloads []domain.NamespacePayload
	saves    int
	closed   bool
}

// NewStore returns a store seeded with the given payloads.
func NewStore(seed ...domain.NamespacePayload) *Store {
	s := &Store{}
	if len(seed) > 0 {
		cp, err := clonePayloads(seed)
		if err != nil {
			panic(fmt.Sprintf("memory: seed payloads: %v", err))
		}
		s.payloads = cp
	}
	return s
}

// Load implements domain.PersistentStore.
func (s *Store) Load(ctx context.Context) ([]domain.NamespacePayload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return clonePayloads(s.payloads)
}

// Save implements domain.PersistentStore.
func (s *Store) Save(ctx context.Context, payloads []domain.NamespacePayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp, err := clonePayloads(payloads)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.payloads = cp
	s.saves++
	return nil
}

// Saves reports how many times Save succeeded.
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// Close implements domain.PersistentStore.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func clonePayloads(in []domain.NamespacePayload) ([]domain.NamespacePayload, error) {
	if len(in) == 0 {
		return []domain.NamespacePayload{}, nil
	}
	data, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode payloads: %w", err)
	}
	var out []domain.NamespacePayload
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode payloads: %w", err)
	}
	return out, nil
}
