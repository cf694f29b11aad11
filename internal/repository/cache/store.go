// Package cache persists search results keyed by fingerprint. Entries
// have no TTL: they live until explicitly cleared or superseded by a new
// distinct fingerprint.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kindred-places/kindred/internal/db"
	"github.com/kindred-places/kindred/internal/domain"
	"github.com/kindred-places/kindred/internal/domain/search/result"
)

// store is the consumer interface for cache persistence (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
}

// Store reads and writes results-cache entries.
type Store struct {
	store     store
	keyPrefix string
}

// New creates a results cache store.
func New(s store, keyPrefix string) *Store {
	return &Store{store: s, keyPrefix: keyPrefix}
}

// Get returns the entry for a fingerprint, or
// domain.ErrCacheEntryNotFound when none exists.
func (s *Store) Get(ctx context.Context, fingerprint string) (*result.CacheEntry, error) {
	data, err := s.store.Get(ctx, s.key(fingerprint))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, domain.ErrCacheEntryNotFound
		}
		return nil, fmt.Errorf("results cache GET: %w", err)
	}

	var entry result.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("results cache decode: %w", err)
	}
	return &entry, nil
}

// Put stores an entry. No TTL: the cache is not time-based.
func (s *Store) Put(ctx context.Context, entry *result.CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("results cache encode: %w", err)
	}
	if err := s.store.Set(ctx, s.key(entry.Fingerprint), data); err != nil {
		return fmt.Errorf("results cache SET: %w", err)
	}
	return nil
}

// Clear removes the entry for a fingerprint. Clearing a missing entry is
// not an error.
func (s *Store) Clear(ctx context.Context, fingerprint string) error {
	if err := s.store.Del(ctx, s.key(fingerprint)); err != nil {
		return fmt.Errorf("results cache DEL: %w", err)
	}
	return nil
}

func (s *Store) key(fingerprint string) string {
	return s.keyPrefix + "results:" + fingerprint
}
