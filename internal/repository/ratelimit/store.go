// Package ratelimit persists fixed-window rate limit records in the
// counter store.
package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kindred-places/kindred/internal/db"
)

// store is the consumer interface for record persistence (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Record is one identity's window state.
type Record struct {
	WindowStart time.Time `json:"window_start"`
	Count       int       `json:"count"`
}

// Store reads and writes rate limit records keyed by identity.
type Store struct {
	store     store
	keyPrefix string
	recordTTL time.Duration
}

// New creates a record store. recordTTL should comfortably exceed the
// rate-limit window so stale identities age out of Redis on their own.
func New(s store, keyPrefix string, recordTTL time.Duration) *Store {
	return &Store{store: s, keyPrefix: keyPrefix, recordTTL: recordTTL}
}

// Get returns the record for an identity. found is false when the
// identity has no record yet; any store failure is returned as an error
// so the caller can fail closed.
func (s *Store) Get(ctx context.Context, identity string) (Record, bool, error) {
	data, err := s.store.Get(ctx, s.key(identity))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("ratelimit GET %s: %w", identity, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false, fmt.Errorf("ratelimit GET %s decode: %w", identity, err)
	}
	return rec, true, nil
}

// Put persists the record for an identity.
func (s *Store) Put(ctx context.Context, identity string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("ratelimit PUT %s encode: %w", identity, err)
	}
	if err := s.store.SetWithTTL(ctx, s.key(identity), data, s.recordTTL); err != nil {
		return fmt.Errorf("ratelimit PUT %s: %w", identity, err)
	}
	return nil
}

func (s *Store) key(identity string) string {
	return s.keyPrefix + "ratelimit:" + identity
}
