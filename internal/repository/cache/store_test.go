package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/kindred-places/kindred/internal/db"
	"github.com/kindred-places/kindred/internal/domain"
	"github.com/kindred-places/kindred/internal/domain/geo"
	"github.com/kindred-places/kindred/internal/domain/place"
	"github.com/kindred-places/kindred/internal/domain/search/result"
)

type mockKV struct {
	data   map[string][]byte
	getErr error
}

func newMockKV() *mockKV {
	return &mockKV{data: make(map[string][]byte)}
}

func (m *mockKV) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockKV) Set(_ context.Context, key string, value []byte) error {
	m.data[key] = value
	return nil
}

func (m *mockKV) Del(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func sampleEntry() *result.CacheEntry {
	return &result.CacheEntry{
		Fingerprint: "fp-1",
		SessionID:   "sess-1",
		Matches: []place.Match{{
			Candidate: place.Candidate{ID: "a", Name: "Place A"},
			Score:     1.8,
			Reasoning: "Similar vibe.",
		}},
		ShownIDs: []string{"a"},
		Offset:   1,
		HasMore:  true,
		Center:   geo.Point{Lat: 40.70, Lng: -73.99},
		Bounds:   geo.SquareAround(geo.Point{Lat: 40.70, Lng: -73.99}, 0.1),
		Keywords: []place.Keyword{{Term: "cozy", Source: place.SourceReviewConsensus}},
		Source:   place.Candidate{ID: "src-1", Name: "Anchor"},
	}
}

func TestStore_RoundTrip(t *testing.T) {
	kv := newMockKV()
	s := New(kv, "kindred:")
	entry := sampleEntry()

	if err := s.Put(context.Background(), entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.Get(context.Background(), "fp-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SessionID != "sess-1" || len(got.Matches) != 1 {
		t.Errorf("unexpected entry: %+v", got)
	}
	if got.Keywords[0].Term != "cozy" {
		t.Errorf("expected keywords preserved, got %+v", got.Keywords)
	}
	if got.Source.ID != "src-1" {
		t.Errorf("expected source anchor preserved, got %+v", got.Source)
	}
	if !got.Shown("a") || got.Shown("b") {
		t.Error("unexpected shown-id state after round trip")
	}
}

func TestStore_MissingEntry(t *testing.T) {
	s := New(newMockKV(), "kindred:")

	_, err := s.Get(context.Background(), "nope")
	if !errors.Is(err, domain.ErrCacheEntryNotFound) {
		t.Fatalf("expected ErrCacheEntryNotFound, got %v", err)
	}
}

func TestStore_Clear(t *testing.T) {
	kv := newMockKV()
	s := New(kv, "kindred:")
	if err := s.Put(context.Background(), sampleEntry()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.Clear(context.Background(), "fp-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Get(context.Background(), "fp-1"); !errors.Is(err, domain.ErrCacheEntryNotFound) {
		t.Fatalf("expected the entry gone, got %v", err)
	}

	// Clearing again is a no-op, not an error.
	if err := s.Clear(context.Background(), "fp-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStore_StoreErrorWrapped(t *testing.T) {
	kv := newMockKV()
	kv.getErr = errors.New("io timeout")
	s := New(kv, "kindred:")

	_, err := s.Get(context.Background(), "fp-1")
	if err == nil || errors.Is(err, domain.ErrCacheEntryNotFound) {
		t.Fatalf("expected a wrapped store error, got %v", err)
	}
}
