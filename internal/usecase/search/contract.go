package search

import (
	"context"
	"time"

	"github.com/kindred-places/kindred/internal/domain/category"
	"github.com/kindred-places/kindred/internal/domain/geo"
	"github.com/kindred-places/kindred/internal/domain/place"
	"github.com/kindred-places/kindred/internal/domain/search/result"
	"github.com/kindred-places/kindred/internal/transport/geocode"
	ratelimituc "github.com/kindred-places/kindred/internal/usecase/ratelimit"
	"github.com/kindred-places/kindred/internal/usecase/retrieve"
	"github.com/kindred-places/kindred/internal/usecase/scoring"
)

// Limiter admits searches per identity.
type Limiter interface {
	CheckAndConsume(ctx context.Context, userID, ip string, now time.Time) (ratelimituc.Decision, error)
}

// Geocoder resolves destination text to a center and bounds.
type Geocoder interface {
	Resolve(ctx context.Context, destination string) (geocode.Resolution, error)
}

// SourceFetcher loads source place metadata including reviews.
type SourceFetcher interface {
	GetPlace(ctx context.Context, id string) (place.SourceDetails, error)
}

// KeywordExtractor derives the match keyword list.
type KeywordExtractor interface {
	Extract(
		ctx context.Context,
		sources []place.SourceDetails,
		freeText string,
		cat category.Type,
	) []place.Keyword
}

// Retriever fetches candidates from the place directory.
type Retriever interface {
	Search(
		ctx context.Context,
		cat category.Type,
		bounds geo.Bounds,
		biasKeywords []string,
		excludeIDs map[string]struct{},
		pageToken string,
	) (retrieve.Result, error)
}

// HistoryLookup returns place ids to penalize. Failures are downgraded to
// an empty set.
type HistoryLookup interface {
	Penalized(
		ctx context.Context, destination string, keywords, sourceIDs []string,
	) (map[string]struct{}, error)
}

// Scorer ranks candidates.
type Scorer interface {
	Rank(candidates []place.Candidate, in scoring.Input) []place.Match
}

// Enricher attaches vibe and reasoning to the outgoing page.
type Enricher interface {
	Enrich(
		ctx context.Context,
		source place.Candidate,
		destination string,
		matches []place.Match,
	) []place.Match
}

// ResultsCache is the fingerprint-keyed entry store. The orchestrator is
// the only writer.
type ResultsCache interface {
	Get(ctx context.Context, fingerprint string) (*result.CacheEntry, error)
	Put(ctx context.Context, entry *result.CacheEntry) error
	Clear(ctx context.Context, fingerprint string) error
}
