// Package keywords derives the descriptive terms that bias retrieval and
// explain matches: category base terms, consensus terms mined from source
// place reviews, and terms distilled from the free-text hint.
package keywords

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/kindred-places/kindred/internal/domain/category"
	"github.com/kindred-places/kindred/internal/domain/place"
)

// Per-place and cross-place promotion thresholds.
const (
	// minMentions is how often a term must appear in one place's reviews
	// to count as present there. Single mentions are noise.
	minMentions = 2
	// maxConsensusTerms caps review-consensus terms.
	maxConsensusTerms = 3
	// maxFreeTextTerms caps free-text terms.
	maxFreeTextTerms = 2
)

// Service extracts match keywords.
type Service struct {
	distiller FreeTextDistiller
	cap       int
	logger    *zap.Logger
}

// New creates an extractor. cap bounds the total keyword count excluding
// category base terms.
func New(distiller FreeTextDistiller, cap int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{distiller: distiller, cap: cap, logger: logger}
}

// Extract builds the ordered keyword list: base terms, then consensus
// terms (at most 3), then free-text terms (at most 2), the latter two
// capped together. Every failure here is non-fatal: the pipeline
// proceeds with whatever subset succeeded.
func (s *Service) Extract(
	ctx context.Context,
	sources []place.SourceDetails,
	freeText string,
	cat category.Type,
) []place.Keyword {
	out := make([]place.Keyword, 0, s.cap+2)
	for _, term := range cat.BaseTerms() {
		out = append(out, place.Keyword{Term: term, Source: place.SourceVibeDefault})
	}

	budget := s.cap
	for _, term := range s.consensus(sources, cat) {
		if budget == 0 {
			break
		}
		if containsTerm(out, term) {
			continue
		}
		out = append(out, place.Keyword{Term: term, Source: place.SourceReviewConsensus})
		budget--
	}

	if freeText != "" && s.distiller != nil {
		terms, err := s.distiller.DistillKeywords(ctx, freeText)
		if err != nil {
			s.logger.Warn("free-text keyword distillation failed, continuing without",
				zap.Error(err))
		} else {
			added := 0
			for _, term := range terms {
				if budget == 0 || added == maxFreeTextTerms {
					break
				}
				if containsTerm(out, term) {
					continue
				}
				out = append(out, place.Keyword{Term: term, Source: place.SourceFreeText})
				budget--
				added++
			}
		}
	}

	return out
}

// consensus mines the per-type vocabulary from review text. A term counts
// for a place when it appears at least minMentions times in that place's
// concatenated reviews; it is promoted when present in at least
// min(2, len(sources)) distinct places. Promoted terms rank by
// cross-place frequency, ties broken by first-seen vocabulary order, and
// truncate to maxConsensusTerms.
func (s *Service) consensus(sources []place.SourceDetails, cat category.Type) []string {
	if len(sources) == 0 {
		return nil
	}

	required := 2
	if len(sources) < required {
		required = len(sources)
	}

	vocab := cat.Vocabulary()
	counts := make(map[string]int, len(vocab))
	for _, src := range sources {
		text := strings.ToLower(strings.Join(src.Reviews, " "))
		for _, term := range vocab {
			if strings.Count(text, term) >= minMentions {
				counts[term]++
			}
		}
	}

	order := make(map[string]int, len(vocab))
	for i, term := range vocab {
		order[term] = i
	}

	promoted := make([]string, 0, len(counts))
	for term, n := range counts {
		if n >= required {
			promoted = append(promoted, term)
		}
	}
	sort.Slice(promoted, func(i, j int) bool {
		if counts[promoted[i]] != counts[promoted[j]] {
			return counts[promoted[i]] > counts[promoted[j]]
		}
		return order[promoted[i]] < order[promoted[j]]
	})

	if len(promoted) > maxConsensusTerms {
		promoted = promoted[:maxConsensusTerms]
	}
	return promoted
}

func containsTerm(keywords []place.Keyword, term string) bool {
	for _, k := range keywords {
		if k.Term == term {
			return true
		}
	}
	return false
}
