// Package request models a validated, immutable search request and its
// cache fingerprint.
package request

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/kindred-places/kindred/internal/domain/category"
)

// MaxSourcePlaces bounds the number of source places per request.
const MaxSourcePlaces = 5

// MaxFreeTextLength bounds the free-text hint.
const MaxFreeTextLength = 512

// Request is a validated search request. Immutable once constructed.
type Request struct {
	sourceIDs   []string
	sourceNames []string
	destination string
	freeText    string
	category    category.Type
	pageToken   string
}

// New validates and normalizes search parameters. Source ids are
// deduplicated preserving order; destination and free text are trimmed.
func New(
	sourceIDs, sourceNames []string,
	destination, freeText string,
	cat category.Type,
	pageToken string,
) (Request, error) {
	ids := dedup(sourceIDs)
	if len(ids) == 0 {
		return Request{}, fmt.Errorf("at least one source place is required")
	}
	if len(ids) > MaxSourcePlaces {
		return Request{}, fmt.Errorf("too many source places (max %d)", MaxSourcePlaces)
	}
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return Request{}, fmt.Errorf("destination is required")
	}
	freeText = strings.TrimSpace(freeText)
	if len(freeText) > MaxFreeTextLength {
		return Request{}, fmt.Errorf("free text too long (max %d chars)", MaxFreeTextLength)
	}
	if !cat.IsValid() {
		return Request{}, fmt.Errorf("invalid establishment type: %q", cat)
	}

	names := make([]string, len(sourceNames))
	copy(names, sourceNames)

	return Request{
		sourceIDs:   ids,
		sourceNames: names,
		destination: destination,
		freeText:    freeText,
		category:    cat,
		pageToken:   pageToken,
	}, nil
}

// SourceIDs returns the deduplicated source place identifiers in request
// order.
func (r *Request) SourceIDs() []string {
	out := make([]string, len(r.sourceIDs))
	copy(out, r.sourceIDs)
	return out
}

// SourceNames returns the source display names.
func (r *Request) SourceNames() []string {
	out := make([]string, len(r.sourceNames))
	copy(out, r.sourceNames)
	return out
}

// Destination returns the free-form destination text.
func (r *Request) Destination() string { return r.destination }

// FreeText returns the optional free-text hint.
func (r *Request) FreeText() string { return r.freeText }

// Category returns the establishment type.
func (r *Request) Category() category.Type { return r.category }

// PageToken returns the continuation token, empty for a first page.
func (r *Request) PageToken() string { return r.pageToken }

// Fingerprint derives the deterministic cache and single-flight key.
// Source ids are sorted and text fields case-folded, so two logically
// identical requests fingerprint identically regardless of array order.
// The page token is deliberately excluded: all pages of one search share
// one cache entry.
func (r *Request) Fingerprint() string {
	ids := make([]string, len(r.sourceIDs))
	copy(ids, r.sourceIDs)
	sort.Strings(ids)

	parts := []string{
		strings.Join(ids, ","),
		strings.ToLower(r.destination),
		strings.ToLower(r.freeText),
		string(r.category),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func dedup(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
