package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kindred-places/kindred/internal/domain/category"
	"github.com/kindred-places/kindred/internal/domain/geo"
	"github.com/kindred-places/kindred/internal/domain/place"
)

func kw(terms ...string) []place.Keyword {
	out := make([]place.Keyword, len(terms))
	for i, t := range terms {
		out[i] = place.Keyword{Term: t, Source: place.SourceVibeDefault}
	}
	return out
}

func baseInput() Input {
	return Input{
		Source: place.Candidate{
			ID:          "src",
			Rating:      4.5,
			RatingCount: 200,
			PriceLevel:  2,
		},
		Keywords: kw("cozy", "coffee"),
		Category: category.Cafe,
		Center:   geo.Point{Lat: 40.70, Lng: -73.99},
	}
}

func TestRank_Deterministic(t *testing.T) {
	e := NewEngine(0.65)
	in := baseInput()
	candidates := []place.Candidate{
		{ID: "a", Name: "Cozy Coffee Corner", Rating: 4.4, RatingCount: 150},
		{ID: "b", Name: "Some Bar", Rating: 4.1, RatingCount: 90, Summary: "cozy spot"},
		{ID: "c", Name: "Plain Diner", Rating: 3.9, RatingCount: 40},
	}

	first := e.Rank(candidates, in)
	second := e.Rank(candidates, in)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Candidate.ID, second[i].Candidate.ID)
		assert.Equal(t, first[i].Score, second[i].Score)
	}
}

func TestRank_SortsByScoreThenRatingCountThenID(t *testing.T) {
	e := NewEngine(0.65)
	in := baseInput()
	in.Keywords = nil
	// Identical signals except rating count; the tie on d1/d2 falls back
	// to the id.
	candidates := []place.Candidate{
		{ID: "d2", Rating: 4.0, RatingCount: 100, PriceLevel: 2},
		{ID: "c", Rating: 4.0, RatingCount: 300, PriceLevel: 2},
		{ID: "d1", Rating: 4.0, RatingCount: 100, PriceLevel: 2},
	}

	got := e.Rank(candidates, in)

	require.Len(t, got, 3)
	assert.Equal(t, "c", got[0].Candidate.ID)
	assert.Equal(t, "d1", got[1].Candidate.ID)
	assert.Equal(t, "d2", got[2].Candidate.ID)
}

func TestRank_PenalizedScoreIsMultipliedNotExcluded(t *testing.T) {
	e := NewEngine(0.65)
	in := baseInput()
	candidates := []place.Candidate{
		{ID: "a", Name: "Cozy Coffee", Rating: 4.4, RatingCount: 150, PriceLevel: 2},
	}

	clean := e.Rank(candidates, in)
	require.Len(t, clean, 1)

	in.Penalized = map[string]struct{}{"a": {}}
	penalized := e.Rank(candidates, in)
	require.Len(t, penalized, 1, "penalized candidates stay in the results")

	assert.InDelta(t, clean[0].Score*0.65, penalized[0].Score, 1e-9)
}

func TestRank_DropsNonPositiveScores(t *testing.T) {
	e := NewEngine(0.65)
	in := baseInput()
	in.Keywords = nil
	// No rating, no price, no amenities, no keywords: nothing to score.
	candidates := []place.Candidate{
		{ID: "zero", PriceLevel: 0, Rating: 0},
	}
	in.Source.PriceLevel = 0

	got := e.Rank(candidates, in)

	// priceScore is neutral 0.5 even for unknown tiers, so the score is
	// positive; remove that by zeroing the weighted sum instead.
	require.Len(t, got, 1)

	// A candidate that truly scores zero only happens with a zero
	// penalty factor.
	e = NewEngine(0)
	in.Penalized = map[string]struct{}{"zero": {}}
	got = e.Rank(candidates, in)
	assert.Empty(t, got)
}

func TestRank_DeduplicatesByID(t *testing.T) {
	e := NewEngine(0.65)
	in := baseInput()
	candidates := []place.Candidate{
		{ID: "a", Name: "Cozy Coffee", Rating: 4.2, RatingCount: 50},
		{ID: "a", Name: "Cozy Coffee", Rating: 4.2, RatingCount: 50},
	}

	got := e.Rank(candidates, in)

	assert.Len(t, got, 1)
}

func TestRank_AnnotatesDistance(t *testing.T) {
	e := NewEngine(0.65)
	in := baseInput()
	loc := geo.Point{Lat: 40.71, Lng: -73.99}
	candidates := []place.Candidate{
		{ID: "a", Name: "Cozy Coffee", Rating: 4.2, RatingCount: 50, Location: &loc},
		{ID: "b", Name: "Cozy Corner", Rating: 4.2, RatingCount: 50},
	}

	got := e.Rank(candidates, in)

	require.Len(t, got, 2)
	for _, m := range got {
		switch m.Candidate.ID {
		case "a":
			require.NotNil(t, m.DistanceMeters)
			// Roughly one hundredth of a degree of latitude.
			assert.InDelta(t, 1111, *m.DistanceMeters, 20)
		case "b":
			assert.Nil(t, m.DistanceMeters)
		}
	}
}

func TestRank_KeywordOverlapReportsMatchedTerms(t *testing.T) {
	e := NewEngine(0.65)
	in := baseInput()
	in.Keywords = kw("cozy", "coffee", "rooftop")
	candidates := []place.Candidate{
		{ID: "a", Name: "Harbor Cafe", Summary: "A cozy nook for coffee lovers", Rating: 4.0, RatingCount: 80},
	}

	got := e.Rank(candidates, in)

	require.Len(t, got, 1)
	assert.Equal(t, []string{"cozy", "coffee"}, got[0].MatchedKeywords)
}

func TestRank_AmenityBonusAppliesPerCategory(t *testing.T) {
	e := NewEngine(0.65)
	in := baseInput()
	in.Keywords = nil

	plain := place.Candidate{ID: "a", Rating: 4.0, RatingCount: 100, PriceLevel: 2}
	withCoffee := plain
	withCoffee.ID = "b"
	withCoffee.Amenities.ServesCoffee = true

	got := e.Rank([]place.Candidate{plain, withCoffee}, in)

	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Candidate.ID)
	assert.InDelta(t, 1.0, got[0].Score-got[1].Score, 0.15, "serves_coffee bonus for cafes is 1.0 before keyword credit")
}
