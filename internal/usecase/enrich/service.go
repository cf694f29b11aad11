// Package enrich attaches image-vibe descriptions and reasoning sentences
// to the page of matches about to be returned. Every failure here
// degrades to a default: enrichment never fails or blocks the pipeline
// beyond its own deadlines.
package enrich

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kindred-places/kindred/internal/domain/place"
	"github.com/kindred-places/kindred/internal/metrics"
	"github.com/kindred-places/kindred/internal/transport/openai"
)

// GenericReasoning is the fixed fallback sentence used for every match
// when the batch reasoning call fails.
const GenericReasoning = "This place shares the qualities of the spot you like."

// Service runs the two enrichment legs.
type Service struct {
	analyzer     ImageAnalyzer
	reasoner     BatchReasoner
	pool         *ants.Pool
	imageTimeout time.Duration
	logger       *zap.Logger
}

// New creates an enrichment service with a bounded worker pool for the
// per-match image fan-out.
func New(
	analyzer ImageAnalyzer,
	reasoner BatchReasoner,
	poolSize int,
	imageTimeout time.Duration,
	logger *zap.Logger,
) (*Service, error) {
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		analyzer:     analyzer,
		reasoner:     reasoner,
		pool:         pool,
		imageTimeout: imageTimeout,
		logger:       logger,
	}, nil
}

// Release frees the worker pool.
func (s *Service) Release() {
	s.pool.Release()
}

// Enrich runs both legs concurrently and returns the enriched matches.
// The input slice is not mutated. Wall clock is bounded by the slower of
// the image-analysis deadline and the batch reasoning call, not by their
// sum.
func (s *Service) Enrich(
	ctx context.Context,
	source place.Candidate,
	destination string,
	matches []place.Match,
) []place.Match {
	out := make([]place.Match, len(matches))
	copy(out, matches)

	var wg sync.WaitGroup

	// Leg one: per-match image vibe, fanned out on the pool, each task
	// under its own hard deadline. Timeouts and errors leave the field
	// absent.
	var mu sync.Mutex
	for i := range out {
		if s.analyzer == nil || len(out[i].Candidate.PhotoRefs) == 0 {
			continue
		}
		i := i
		photoURL := out[i].Candidate.PhotoRefs[0]

		wg.Add(1)
		if err := s.pool.Submit(func() {
			defer wg.Done()
			taskCtx, cancel := context.WithTimeout(ctx, s.imageTimeout)
			defer cancel()

			vibe, err := s.analyzer.DescribeImage(taskCtx, photoURL)
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
					metrics.EnrichmentTimeoutsTotal.Inc()
				}
				s.logger.Debug("image analysis skipped",
					zap.String("place_id", out[i].Candidate.ID), zap.Error(err))
				return
			}
			mu.Lock()
			out[i].ImageVibe = vibe
			mu.Unlock()
		}); err != nil {
			wg.Done()
			s.logger.Warn("image analysis pool rejected task", zap.Error(err))
		}
	}

	// Leg two: one batch reasoning call for the whole page. Summaries are
	// built from the immutable input, never from out, which leg one is
	// writing vibes into concurrently.
	wg.Add(1)
	go func() {
		defer wg.Done()
		sentences := s.reasonBatch(ctx, source, destination, matches)
		mu.Lock()
		for i := range out {
			out[i].Reasoning = sentences[i]
		}
		mu.Unlock()
	}()

	wg.Wait()
	return out
}

// reasonBatch returns one sentence per match. Any failure, including a
// length mismatch, yields the generic sentence for every match rather
// than a partial mix.
func (s *Service) reasonBatch(
	ctx context.Context,
	source place.Candidate,
	destination string,
	matches []place.Match,
) []string {
	fallback := make([]string, len(matches))
	for i := range fallback {
		fallback[i] = GenericReasoning
	}
	if s.reasoner == nil || len(matches) == 0 {
		return fallback
	}

	summaries := make([]openai.CandidateSummary, len(matches))
	for i, m := range matches {
		summaries[i] = openai.CandidateSummary{
			Name:     m.Candidate.Name,
			Summary:  m.Candidate.Summary,
			Rating:   m.Candidate.Rating,
			Keywords: m.MatchedKeywords,
		}
	}

	sentences, err := s.reasoner.ReasonBatch(ctx, source, summaries, destination)
	if err != nil {
		s.logger.Warn("batch reasoning failed, using generic sentences", zap.Error(err))
		return fallback
	}
	if len(sentences) != len(matches) {
		s.logger.Warn("batch reasoning returned wrong count, using generic sentences",
			zap.Int("want", len(matches)), zap.Int("got", len(sentences)))
		return fallback
	}
	return sentences
}
