package result

import (
	"testing"

	"github.com/kindred-places/kindred/internal/domain/place"
)

func entryWithRanking() *CacheEntry {
	return &CacheEntry{
		Fingerprint: "fp",
		SessionID:   "sess-1",
		Matches: []place.Match{
			{Candidate: place.Candidate{ID: "a"}},
			{Candidate: place.Candidate{ID: "b"}},
			{Candidate: place.Candidate{ID: "c"}},
		},
		ShownIDs: []string{"a", "b"},
		Offset:   2,
	}
}

func TestPageFrom_ServesOnlyTheServedPrefix(t *testing.T) {
	page := PageFrom(entryWithRanking(), true)

	if len(page.Matches) != 2 {
		t.Fatalf("expected 2 served matches, got %d", len(page.Matches))
	}
	if page.Matches[1].Candidate.ID != "b" {
		t.Errorf("unexpected served matches: %+v", page.Matches)
	}
	if !page.Cached {
		t.Error("expected the replay flag set")
	}
}

func TestPageFrom_TokenIsSessionScoped(t *testing.T) {
	e := entryWithRanking()
	e.HasMore = true
	e.NextPageToken = "directory-cursor"

	page := PageFrom(e, false)

	if page.PageToken != "sess-1" {
		t.Errorf("expected the session id as page token, got %q", page.PageToken)
	}

	e.HasMore = false
	if page := PageFrom(e, false); page.PageToken != "" {
		t.Errorf("expected no token on the last page, got %q", page.PageToken)
	}
}

func TestShown(t *testing.T) {
	e := entryWithRanking()
	if !e.Shown("a") || e.Shown("z") {
		t.Error("unexpected shown-id lookup")
	}
}
