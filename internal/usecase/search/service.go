// Package search orchestrates the matching pipeline: admission, geocoding,
// source metadata, keyword extraction, retrieval, penalization, scoring,
// enrichment, and the results cache.
package search

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kindred-places/kindred/internal/domain"
	"github.com/kindred-places/kindred/internal/domain/geo"
	"github.com/kindred-places/kindred/internal/domain/place"
	"github.com/kindred-places/kindred/internal/domain/search/request"
	"github.com/kindred-places/kindred/internal/domain/search/result"
	"github.com/kindred-places/kindred/internal/metrics"
	"github.com/kindred-places/kindred/internal/transport/geocode"
	"github.com/kindred-places/kindred/internal/usecase/retrieve"
	"github.com/kindred-places/kindred/internal/usecase/scoring"
)

// Stage names the pipeline states. An orchestrator moves through them in
// order; Error is reachable from any non-terminal stage.
type Stage string

// Pipeline stages.
const (
	StageIdle           Stage = "idle"
	StageRateLimitCheck Stage = "rate_limit_check"
	StageGeocoding      Stage = "geocoding"
	StageSourceFetch    Stage = "source_metadata_fetch"
	StageKeywords       Stage = "keyword_extraction"
	StageCandidates     Stage = "candidate_search"
	StagePenalization   Stage = "penalization"
	StageScoring        Stage = "scoring"
	StageEnrichment     Stage = "enrichment"
	StageCached         Stage = "cached"
	StageDone           Stage = "done"
	StageError          Stage = "error"
)

// Config holds pipeline tuning.
type Config struct {
	PageSize int
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Limiter   Limiter
	Geocoder  Geocoder
	Sources   SourceFetcher
	Keywords  KeywordExtractor
	Retriever Retriever
	History   HistoryLookup
	Scorer    Scorer
	Enricher  Enricher
	Cache     ResultsCache
	Logger    *zap.Logger
}

// Identity carries who is searching, for rate limiting.
type Identity struct {
	UserID string
	IP     string
}

// Orchestrator runs searches one at a time. A second Execute while one is
// in flight is rejected immediately with domain.ErrSearchInFlight: the
// guard is a single-flight discipline, not a queue.
type Orchestrator struct {
	deps     Deps
	cfg      Config
	logger   *zap.Logger
	inFlight atomic.Bool
	stage    atomic.Value // Stage
	now      func() time.Time
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(deps Deps, cfg Config) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	o := &Orchestrator{deps: deps, cfg: cfg, logger: logger, now: time.Now}
	o.stage.Store(StageIdle)
	return o
}

// Stage returns the current pipeline stage, for observability.
func (o *Orchestrator) Stage() Stage {
	return o.stage.Load().(Stage)
}

// Reset clears the stage and guard for session reuse. Safe to call only
// when no execution is running.
func (o *Orchestrator) Reset() {
	o.inFlight.Store(false)
	o.stage.Store(StageIdle)
}

// Execute runs the pipeline for one request. The fingerprint cache is
// consulted first: a hit short-circuits to the stored result without
// touching any external service. The in-flight guard is released on every
// path, success or failure.
func (o *Orchestrator) Execute(
	ctx context.Context, req *request.Request, id Identity,
) (*result.Page, error) {
	if !o.inFlight.CompareAndSwap(false, true) {
		o.logger.Warn("search rejected: orchestrator already in flight")
		return nil, domain.ErrSearchInFlight
	}
	defer o.inFlight.Store(false)

	fingerprint := req.Fingerprint()
	logger := o.logger.With(zap.String("fingerprint", fingerprint))

	page, err := o.run(ctx, req, id, fingerprint, logger)
	if err != nil {
		o.stage.Store(StageError)
		logger.Error("search pipeline failed",
			zap.String("stage", string(failedStage(err))), zap.Error(err))
		return nil, err
	}
	o.stage.Store(StageDone)
	return page, nil
}

func (o *Orchestrator) run(
	ctx context.Context,
	req *request.Request,
	id Identity,
	fingerprint string,
	logger *zap.Logger,
) (*result.Page, error) {
	// Cache probe before anything else. Page continuation extends an
	// existing entry instead of replaying it.
	entry, err := o.deps.Cache.Get(ctx, fingerprint)
	switch {
	case err == nil && req.PageToken() == "":
		metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
		o.enter(StageCached)
		logger.Info("serving cached search result")
		return result.PageFrom(entry, true), nil
	case err == nil:
		metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
		return o.continuePaging(ctx, req, id, entry, logger)
	case errors.Is(err, domain.ErrCacheEntryNotFound):
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
	default:
		// A broken cache read is not fatal: rebuild from scratch.
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		logger.Warn("results cache read failed, rebuilding", zap.Error(err))
	}

	if req.PageToken() != "" {
		return nil, stageErr(StageCached,
			fmt.Errorf("page token without prior search: %w", domain.ErrCacheEntryNotFound))
	}

	if err := o.admit(ctx, id); err != nil {
		return nil, err
	}

	resolution, err := o.geocode(ctx, req.Destination())
	if err != nil {
		return nil, err
	}

	sources, err := o.fetchSources(ctx, req, logger)
	if err != nil {
		return nil, err
	}

	// Keyword derivation never fails the search: the extractor degrades
	// to category base terms on its own.
	keywords := o.extractKeywords(ctx, sources, req)

	retrieved, err := o.retrieve(ctx, req, resolution.Bounds, keywords, nil, "")
	if err != nil {
		return nil, err
	}

	penalized := o.lookupPenalized(ctx, req, keywords, logger)

	ranked, pageMatches := o.score(retrieved.Candidates, scoring.Input{
		Source:    sources[0].Candidate,
		Keywords:  keywords,
		Category:  req.Category(),
		Penalized: penalized,
		Center:    resolution.Center,
	})

	enriched := o.enrich(ctx, sources[0].Candidate, req.Destination(), pageMatches)

	// The whole ranking is persisted, enriched page first. Continuation
	// serves from this tail before asking the directory for more, so a
	// candidate ranked here is never displaced by a later, unranked
	// directory page.
	o.enter(StageCached)
	stored := make([]place.Match, len(ranked))
	copy(stored, ranked)
	copy(stored, enriched)
	entry = &result.CacheEntry{
		Fingerprint:   fingerprint,
		SessionID:     uuid.NewString(),
		Matches:       stored,
		ShownIDs:      matchIDs(enriched),
		Offset:        len(enriched),
		HasMore:       len(stored) > len(enriched) || retrieved.NextPageToken != "",
		NextPageToken: retrieved.NextPageToken,
		Center:        resolution.Center,
		Bounds:        resolution.Bounds,
		Keywords:      keywords,
		Source:        sources[0].Candidate,
	}
	if err := o.deps.Cache.Put(ctx, entry); err != nil {
		return nil, stageErr(StageCached, err)
	}

	logger.Info("search pipeline complete",
		zap.String("session_id", entry.SessionID),
		zap.Int("matches", len(enriched)),
		zap.Bool("has_more", entry.HasMore),
	)
	return result.PageFrom(entry, false), nil
}

// continuePaging serves the next page of an existing fingerprint from
// the stored ranking. The destination geometry, keywords, and source
// anchor come from the cache entry. The directory is consulted only once
// the stored ranking runs out: candidates ranked on an earlier page are
// served before anything from a later directory page, and a shown id is
// never rescored.
func (o *Orchestrator) continuePaging(
	ctx context.Context,
	req *request.Request,
	id Identity,
	entry *result.CacheEntry,
	logger *zap.Logger,
) (*result.Page, error) {
	if !entry.HasMore {
		o.enter(StageCached)
		return result.PageFrom(entry, true), nil
	}

	if err := o.admit(ctx, id); err != nil {
		return nil, err
	}

	if entry.Offset >= len(entry.Matches) && entry.NextPageToken != "" {
		if err := o.extendRanking(ctx, req, entry, logger); err != nil {
			return nil, err
		}
	}

	end := entry.Offset + o.cfg.PageSize
	if end > len(entry.Matches) {
		end = len(entry.Matches)
	}
	enriched := o.enrich(ctx, entry.Source, req.Destination(), entry.Matches[entry.Offset:end])

	o.enter(StageCached)
	copy(entry.Matches[entry.Offset:end], enriched)
	entry.ShownIDs = append(entry.ShownIDs, matchIDs(enriched)...)
	entry.Offset = end
	entry.HasMore = entry.Offset < len(entry.Matches) || entry.NextPageToken != ""
	if err := o.deps.Cache.Put(ctx, entry); err != nil {
		return nil, stageErr(StageCached, err)
	}

	logger.Info("search page continuation complete",
		zap.String("session_id", entry.SessionID),
		zap.Int("new_matches", len(enriched)),
		zap.Bool("has_more", entry.HasMore),
	)

	page := &result.Page{
		Matches:   enriched,
		Keywords:  entry.Keywords,
		Center:    entry.Center,
		HasMore:   entry.HasMore,
		SessionID: entry.SessionID,
	}
	if entry.HasMore {
		page.PageToken = entry.SessionID
	}
	return page, nil
}

// extendRanking fetches further directory pages once the stored ranking
// is exhausted, ranks them, and appends them to the entry. Every id
// already ranked for this fingerprint is excluded so each id scores at
// most once.
func (o *Orchestrator) extendRanking(
	ctx context.Context,
	req *request.Request,
	entry *result.CacheEntry,
	logger *zap.Logger,
) error {
	exclude := make(map[string]struct{}, len(entry.Matches))
	for _, m := range entry.Matches {
		exclude[m.Candidate.ID] = struct{}{}
	}

	retrieved, err := o.retrieve(
		ctx, req, entry.Bounds, entry.Keywords, exclude, entry.NextPageToken,
	)
	if err != nil {
		return err
	}

	penalized := o.lookupPenalized(ctx, req, entry.Keywords, logger)

	ranked, _ := o.score(retrieved.Candidates, scoring.Input{
		Source:    entry.Source,
		Keywords:  entry.Keywords,
		Category:  req.Category(),
		Penalized: penalized,
		Center:    entry.Center,
	})

	entry.Matches = append(entry.Matches, ranked...)
	entry.NextPageToken = retrieved.NextPageToken
	return nil
}

// ClearCache removes the entry for a fingerprint. Invalidation flows
// through the orchestrator so the cache keeps a single owner.
func (o *Orchestrator) ClearCache(ctx context.Context, fingerprint string) error {
	return o.deps.Cache.Clear(ctx, fingerprint)
}

func (o *Orchestrator) admit(ctx context.Context, id Identity) error {
	o.enter(StageRateLimitCheck)
	defer o.observe(StageRateLimitCheck, o.now())
	decision, err := o.deps.Limiter.CheckAndConsume(ctx, id.UserID, id.IP, o.now())
	if err != nil {
		// Fail closed: a broken counter store denies the search.
		return stageErr(StageRateLimitCheck, err)
	}
	if !decision.Allowed {
		return &domain.RateLimitError{Scope: decision.BlockedBy, ResetAt: decision.ResetAt}
	}
	return nil
}

func (o *Orchestrator) geocode(ctx context.Context, destination string) (geocode.Resolution, error) {
	o.enter(StageGeocoding)
	defer o.observe(StageGeocoding, o.now())
	resolution, err := o.deps.Geocoder.Resolve(ctx, destination)
	if err != nil {
		return geocode.Resolution{}, stageErr(StageGeocoding, err)
	}
	return resolution, nil
}

// fetchSources loads metadata for each source place. The first id must
// resolve or the search fails; later ones degrade with a log line.
func (o *Orchestrator) fetchSources(
	ctx context.Context, req *request.Request, logger *zap.Logger,
) ([]place.SourceDetails, error) {
	o.enter(StageSourceFetch)
	defer o.observe(StageSourceFetch, o.now())
	ids := req.SourceIDs()
	sources := make([]place.SourceDetails, 0, len(ids))
	for i, sid := range ids {
		details, err := o.deps.Sources.GetPlace(ctx, sid)
		if err != nil {
			if i == 0 {
				return nil, stageErr(StageSourceFetch,
					fmt.Errorf("%w: place %s: %w", domain.ErrSourceUnavailable, sid, err))
			}
			logger.Warn("secondary source place unavailable, skipping",
				zap.String("place_id", sid), zap.Error(err))
			continue
		}
		sources = append(sources, details)
	}
	return sources, nil
}

func (o *Orchestrator) extractKeywords(
	ctx context.Context, sources []place.SourceDetails, req *request.Request,
) []place.Keyword {
	o.enter(StageKeywords)
	defer o.observe(StageKeywords, o.now())
	return o.deps.Keywords.Extract(ctx, sources, req.FreeText(), req.Category())
}

func (o *Orchestrator) retrieve(
	ctx context.Context,
	req *request.Request,
	bounds geo.Bounds,
	keywords []place.Keyword,
	exclude map[string]struct{},
	pageToken string,
) (retrieve.Result, error) {
	o.enter(StageCandidates)
	defer o.observe(StageCandidates, o.now())
	retrieved, err := o.deps.Retriever.Search(
		ctx, req.Category(), bounds, place.Terms(keywords), exclude, pageToken,
	)
	if err != nil {
		return retrieve.Result{}, stageErr(StageCandidates,
			fmt.Errorf("%w: %w", domain.ErrDirectoryUnavailable, err))
	}
	return retrieved, nil
}

// lookupPenalized consults interaction history. Failure downgrades to an
// empty penalty set rather than failing the search.
func (o *Orchestrator) lookupPenalized(
	ctx context.Context,
	req *request.Request,
	keywords []place.Keyword,
	logger *zap.Logger,
) map[string]struct{} {
	o.enter(StagePenalization)
	defer o.observe(StagePenalization, o.now())
	if o.deps.History == nil {
		return nil
	}
	penalized, err := o.deps.History.Penalized(
		ctx, req.Destination(), place.Terms(keywords), req.SourceIDs(),
	)
	if err != nil {
		logger.Warn("interaction history unavailable, no penalties applied", zap.Error(err))
		return nil
	}
	return penalized
}

func (o *Orchestrator) score(
	candidates []place.Candidate, in scoring.Input,
) (ranked, page []place.Match) {
	o.enter(StageScoring)
	defer o.observe(StageScoring, o.now())
	ranked = o.deps.Scorer.Rank(candidates, in)
	page = ranked
	if len(page) > o.cfg.PageSize {
		page = page[:o.cfg.PageSize]
	}
	return ranked, page
}

func (o *Orchestrator) enrich(
	ctx context.Context, source place.Candidate, destination string, matches []place.Match,
) []place.Match {
	o.enter(StageEnrichment)
	defer o.observe(StageEnrichment, o.now())
	return o.deps.Enricher.Enrich(ctx, source, destination, matches)
}

func (o *Orchestrator) enter(stage Stage) {
	o.stage.Store(stage)
}

func (o *Orchestrator) observe(stage Stage, start time.Time) {
	metrics.StageDuration.WithLabelValues(string(stage)).
		Observe(o.now().Sub(start).Seconds())
}

func stageErr(stage Stage, err error) error {
	var perr *domain.PipelineError
	if errors.As(err, &perr) {
		return err
	}
	return &domain.PipelineError{Stage: string(stage), Err: err}
}

func failedStage(err error) Stage {
	var perr *domain.PipelineError
	if errors.As(err, &perr) {
		return Stage(perr.Stage)
	}
	return StageError
}

func matchIDs(matches []place.Match) []string {
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.Candidate.ID
	}
	return ids
}
