// Package result models the cacheable outcome of a pipeline run.
package result

import (
	"github.com/kindred-places/kindred/internal/domain/geo"
	"github.com/kindred-places/kindred/internal/domain/place"
)

// CacheEntry is the stored outcome of a search fingerprint. Created on
// the first successful run, read on repeat identical requests, extended
// on page continuation, and invalidated only by explicit clear.
type CacheEntry struct {
	Fingerprint string `json:"fingerprint"`
	SessionID   string `json:"session_id"`

	// Matches holds the full ranking, not just the served pages. The
	// first Offset entries have been served (and enriched); the tail is
	// ranked but still unserved. ShownIDs mirrors the served prefix.
	Matches  []place.Match `json:"matches"`
	ShownIDs []string      `json:"shown_ids"`

	// Offset counts served matches. NextPageToken is the directory
	// cursor, consulted only once the stored ranking is exhausted.
	Offset        int    `json:"offset"`
	HasMore       bool   `json:"has_more"`
	NextPageToken string `json:"next_page_token,omitempty"`

	// Resolved destination geometry and derived keywords, kept so page
	// continuation never re-runs geocoding or keyword extraction.
	Center   geo.Point       `json:"center"`
	Bounds   geo.Bounds      `json:"bounds"`
	Keywords []place.Keyword `json:"keywords"`
	Source   place.Candidate `json:"source"`
}

// Shown reports whether a place id was already returned to the user
// within this fingerprint.
func (e *CacheEntry) Shown(id string) bool {
	for _, s := range e.ShownIDs {
		if s == id {
			return true
		}
	}
	return false
}

// Page is the slice of a cache entry handed back to the caller.
type Page struct {
	Matches   []place.Match   `json:"matches"`
	Keywords  []place.Keyword `json:"keywords"`
	Center    geo.Point       `json:"center"`
	HasMore   bool            `json:"has_more"`
	PageToken string          `json:"page_token,omitempty"`
	SessionID string          `json:"session_id"`
	Cached    bool            `json:"cached"`
}

// PageFrom builds the response page for an entry: the served prefix of
// the stored ranking, never the unserved tail. cached marks replays
// served without running the pipeline. The page token is the session id;
// the directory cursor stays server-side.
func PageFrom(e *CacheEntry, cached bool) *Page {
	served := e.Matches
	if e.Offset >= 0 && e.Offset <= len(e.Matches) {
		served = e.Matches[:e.Offset]
	}
	token := ""
	if e.HasMore {
		token = e.SessionID
	}
	return &Page{
		Matches:   served,
		Keywords:  e.Keywords,
		Center:    e.Center,
		HasMore:   e.HasMore,
		PageToken: token,
		SessionID: e.SessionID,
		Cached:    cached,
	}
}
