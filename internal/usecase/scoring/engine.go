// Package scoring computes match scores. The engine is a pure function of
// its inputs: no network calls, no clocks, identical inputs always
// produce identical scores and ordering.
package scoring

import (
	"math"
	"sort"
	"strings"

	"github.com/kindred-places/kindred/internal/domain/category"
	"github.com/kindred-places/kindred/internal/domain/geo"
	"github.com/kindred-places/kindred/internal/domain/place"
)

// Component weights for the base score. Amenity bonuses come on top from
// the per-type tables.
const (
	keywordWeight = 1.0
	ratingWeight  = 0.8
	priceWeight   = 0.4

	// ratingCountCeiling saturates the popularity signal so mega-venues
	// don't drown out well-reviewed small places.
	ratingCountCeiling = 500
)

// Engine scores candidates against a source place.
type Engine struct {
	penaltyFactor float64
}

// NewEngine creates a scoring engine. penaltyFactor (<1.0) multiplies the
// score of penalized candidates.
func NewEngine(penaltyFactor float64) *Engine {
	return &Engine{penaltyFactor: penaltyFactor}
}

// Input bundles everything one scoring pass needs.
type Input struct {
	Source    place.Candidate
	Keywords  []place.Keyword
	Category  category.Type
	Penalized map[string]struct{}
	// Center annotates distance on the matches; it does not affect the
	// score.
	Center geo.Point
}

// Rank scores every candidate and returns matches sorted by score
// descending, ties broken by rating count descending, then by id for
// determinism. Candidates with a non-positive or non-finite score are
// excluded rather than clamped. At most one match per distinct id.
func (e *Engine) Rank(candidates []place.Candidate, in Input) []place.Match {
	matches := make([]place.Match, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))

	for _, cand := range candidates {
		if _, ok := seen[cand.ID]; ok {
			continue
		}
		seen[cand.ID] = struct{}{}

		score, matched := e.scoreOne(cand, in)
		if !(score > 0) || math.IsInf(score, 0) {
			continue
		}

		m := place.Match{
			Candidate:       cand,
			Score:           score,
			MatchedKeywords: matched,
		}
		if cand.Location != nil {
			d := geo.Haversine(in.Center, *cand.Location)
			m.DistanceMeters = &d
		}
		matches = append(matches, m)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].Candidate.RatingCount != matches[j].Candidate.RatingCount {
			return matches[i].Candidate.RatingCount > matches[j].Candidate.RatingCount
		}
		return matches[i].Candidate.ID < matches[j].Candidate.ID
	})

	return matches
}

// scoreOne combines keyword overlap, rating strength relative to the
// source, price proximity, and per-type amenity bonuses, then applies the
// penalty multiplier.
func (e *Engine) scoreOne(cand place.Candidate, in Input) (float64, []string) {
	kwScore, matched := keywordOverlap(cand, in.Keywords)

	score := keywordWeight*kwScore +
		ratingWeight*ratingScore(cand, in.Source) +
		priceWeight*priceScore(cand, in.Source)

	for _, key := range cand.Amenities.SetKeys() {
		score += in.Category.AmenityWeight(key)
	}

	if _, ok := in.Penalized[cand.ID]; ok {
		score *= e.penaltyFactor
	}

	return score, matched
}

// keywordOverlap checks each keyword against the candidate's editorial
// summary, name, directory types, and amenity-derived terms. Returns the
// matched fraction and the matched terms in keyword order.
func keywordOverlap(cand place.Candidate, keywords []place.Keyword) (float64, []string) {
	if len(keywords) == 0 {
		return 0, nil
	}

	var sb strings.Builder
	sb.WriteString(strings.ToLower(cand.Summary))
	sb.WriteByte(' ')
	sb.WriteString(strings.ToLower(cand.Name))
	for _, t := range cand.Types {
		sb.WriteByte(' ')
		sb.WriteString(strings.ReplaceAll(strings.ToLower(t), "_", " "))
	}
	for _, t := range cand.Amenities.Terms() {
		sb.WriteByte(' ')
		sb.WriteString(t)
	}
	haystack := sb.String()

	var matched []string
	for _, k := range keywords {
		if strings.Contains(haystack, strings.ToLower(k.Term)) {
			matched = append(matched, k.Term)
		}
	}
	return float64(len(matched)) / float64(len(keywords)), matched
}

// ratingScore normalizes the candidate's rating against the source
// place's own rating and damps it by review volume.
func ratingScore(cand, source place.Candidate) float64 {
	if cand.Rating <= 0 {
		return 0
	}

	ratio := 1.0
	if source.Rating > 0 {
		ratio = cand.Rating / source.Rating
		if ratio > 1.2 {
			ratio = 1.2
		}
	} else {
		ratio = cand.Rating / 5.0
	}

	count := float64(cand.RatingCount)
	if count > ratingCountCeiling {
		count = ratingCountCeiling
	}
	volume := math.Log1p(count) / math.Log1p(ratingCountCeiling)

	return ratio * volume
}

// priceScore rewards candidates whose price tier sits close to the
// source's. Unknown tiers (zero) score neutral.
func priceScore(cand, source place.Candidate) float64 {
	if cand.PriceLevel == 0 || source.PriceLevel == 0 {
		return 0.5
	}
	diff := math.Abs(float64(cand.PriceLevel - source.PriceLevel))
	return 1 - diff/4
}
