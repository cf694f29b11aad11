// Package place holds the core result-set types of the matching pipeline:
// directory candidates, match keywords, and scored matches.
package place

import (
	"github.com/kindred-places/kindred/internal/domain/category"
	"github.com/kindred-places/kindred/internal/domain/geo"
)

// Candidate is an establishment as returned by the external place
// directory. Read-only once produced.
type Candidate struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Address      string     `json:"address,omitempty"`
	Location     *geo.Point `json:"location,omitempty"`
	Types        []string   `json:"types,omitempty"`
	Rating       float64    `json:"rating,omitempty"`
	RatingCount  int        `json:"rating_count,omitempty"`
	PriceLevel   int        `json:"price_level,omitempty"`
	OpeningHours []string   `json:"opening_hours,omitempty"`
	PhotoRefs    []string   `json:"photo_refs,omitempty"`
	Summary      string     `json:"summary,omitempty"`
	Amenities    Amenities  `json:"amenities"`
}

// SourceDetails is a source place the user already likes, with the review
// text the keyword extractor mines.
type SourceDetails struct {
	Candidate `json:"candidate"`
	Reviews   []string `json:"reviews,omitempty"`
}

// Amenities is the set of boolean establishment flags read from the
// directory.
type Amenities struct {
	OutdoorSeating  bool `json:"outdoor_seating,omitempty"`
	Takeout         bool `json:"takeout,omitempty"`
	Delivery        bool `json:"delivery,omitempty"`
	DineIn          bool `json:"dine_in,omitempty"`
	Reservable      bool `json:"reservable,omitempty"`
	GoodForGroups   bool `json:"good_for_groups,omitempty"`
	GoodForChildren bool `json:"good_for_children,omitempty"`
	LiveMusic       bool `json:"live_music,omitempty"`
	AllowsDogs      bool `json:"allows_dogs,omitempty"`
	ServesCoffee    bool `json:"serves_coffee,omitempty"`
	ServesBreakfast bool `json:"serves_breakfast,omitempty"`
	ServesLunch     bool `json:"serves_lunch,omitempty"`
	ServesDinner    bool `json:"serves_dinner,omitempty"`
	ServesCocktails bool `json:"serves_cocktails,omitempty"`
}

// amenityFlag pairs a category amenity key with its flag accessor and the
// human terms keyword matching sees.
type amenityFlag struct {
	key   string
	terms []string
	set   func(Amenities) bool
}

var amenityFlags = []amenityFlag{
	{category.AmenityOutdoorSeating, []string{"outdoor", "terrace"}, func(a Amenities) bool { return a.OutdoorSeating }},
	{category.AmenityTakeout, []string{"takeout"}, func(a Amenities) bool { return a.Takeout }},
	{category.AmenityDelivery, []string{"delivery"}, func(a Amenities) bool { return a.Delivery }},
	{category.AmenityDineIn, []string{"dine in"}, func(a Amenities) bool { return a.DineIn }},
	{category.AmenityReservable, []string{"reservable", "reservations"}, func(a Amenities) bool { return a.Reservable }},
	{category.AmenityGoodForGroups, []string{"groups"}, func(a Amenities) bool { return a.GoodForGroups }},
	{category.AmenityGoodForChildren, []string{"kids", "family"}, func(a Amenities) bool { return a.GoodForChildren }},
	{category.AmenityLiveMusic, []string{"live", "music"}, func(a Amenities) bool { return a.LiveMusic }},
	{category.AmenityAllowsDogs, []string{"dog"}, func(a Amenities) bool { return a.AllowsDogs }},
	{category.AmenityServesCoffee, []string{"coffee", "espresso", "laptop"}, func(a Amenities) bool { return a.ServesCoffee }},
	{category.AmenityServesBreakfast, []string{"breakfast", "brunch"}, func(a Amenities) bool { return a.ServesBreakfast }},
	{category.AmenityServesLunch, []string{"lunch"}, func(a Amenities) bool { return a.ServesLunch }},
	{category.AmenityServesDinner, []string{"dinner"}, func(a Amenities) bool { return a.ServesDinner }},
	{category.AmenityServesCocktails, []string{"cocktails", "drinks"}, func(a Amenities) bool { return a.ServesCocktails }},
}

// SetKeys returns the category amenity keys of every flag that is set.
func (a Amenities) SetKeys() []string {
	var keys []string
	for _, f := range amenityFlags {
		if f.set(a) {
			keys = append(keys, f.key)
		}
	}
	return keys
}

// Terms returns the searchable terms contributed by set flags, used for
// keyword-overlap scoring alongside the editorial summary.
func (a Amenities) Terms() []string {
	var terms []string
	for _, f := range amenityFlags {
		if f.set(a) {
			terms = append(terms, f.terms...)
		}
	}
	return terms
}
