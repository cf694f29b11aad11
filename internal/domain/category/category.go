// Package category models the closed set of establishment types and the
// per-type tables that drive retrieval, keyword extraction, and scoring.
// Adding a type means adding one row to each table here; Tables is checked
// for completeness by tests and at startup.
package category

// Type is an establishment category.
type Type string

// Supported establishment types.
const (
	Cafe       Type = "cafe"
	Restaurant Type = "restaurant"
	Museum     Type = "museum"
	Bar        Type = "bar"
)

// All lists every supported type.
var All = []Type{Cafe, Restaurant, Museum, Bar}

// IsValid checks whether the type is one of the supported values.
func (t Type) IsValid() bool {
	_, ok := tables[t]
	return ok
}

// tableRow bundles everything the pipeline needs to know about one type.
type tableRow struct {
	directoryType  string
	baseTerms      []string
	vocabulary     []string
	amenityWeights map[string]float64
}

// CommonVocabulary holds atmosphere terms shared across all types. They are
// appended after the type-specific vocabulary, so type terms win first-seen
// tie breaks.
var CommonVocabulary = []string{
	"cozy", "friendly", "atmosphere", "view", "outdoor",
	"local", "hidden", "spacious", "quiet", "lively",
}

// Amenity keys shared with the scoring weight tables. Each key corresponds
// to one boolean flag on place.Amenities.
const (
	AmenityOutdoorSeating  = "outdoor_seating"
	AmenityTakeout         = "takeout"
	AmenityDelivery        = "delivery"
	AmenityDineIn          = "dine_in"
	AmenityReservable      = "reservable"
	AmenityGoodForGroups   = "good_for_groups"
	AmenityGoodForChildren = "good_for_children"
	AmenityLiveMusic       = "live_music"
	AmenityAllowsDogs      = "allows_dogs"
	AmenityServesCoffee    = "serves_coffee"
	AmenityServesBreakfast = "serves_breakfast"
	AmenityServesLunch     = "serves_lunch"
	AmenityServesDinner    = "serves_dinner"
	AmenityServesCocktails = "serves_cocktails"
)

var tables = map[Type]tableRow{
	Cafe: {
		directoryType: "coffee_shop",
		baseTerms:     []string{"cafe", "coffee"},
		vocabulary: []string{
			"cozy", "laptop", "coffee", "espresso", "pastries",
			"wifi", "study", "brunch", "quiet", "matcha",
		},
		amenityWeights: map[string]float64{
			AmenityServesCoffee:    1.0,
			AmenityOutdoorSeating:  0.6,
			AmenityServesBreakfast: 0.5,
			AmenityTakeout:         0.3,
			AmenityAllowsDogs:      0.2,
		},
	},
	Restaurant: {
		directoryType: "restaurant",
		baseTerms:     []string{"restaurant"},
		vocabulary: []string{
			"romantic", "authentic", "portions", "service", "wine",
			"fresh", "family", "tasting", "seasonal", "chef",
		},
		amenityWeights: map[string]float64{
			AmenityReservable:    1.0,
			AmenityGoodForGroups: 0.8,
			AmenityServesDinner:  0.6,
			AmenityServesLunch:   0.4,
			AmenityDineIn:        0.3,
		},
	},
	Museum: {
		directoryType: "museum",
		baseTerms:     []string{"museum"},
		vocabulary: []string{
			"exhibits", "interactive", "modern", "historic", "art",
			"collection", "architecture", "kids", "immersive", "curated",
		},
		amenityWeights: map[string]float64{
			AmenityGoodForChildren: 0.8,
			AmenityGoodForGroups:   0.6,
			AmenityReservable:      0.4,
		},
	},
	Bar: {
		directoryType: "bar",
		baseTerms:     []string{"bar", "drinks"},
		vocabulary: []string{
			"cocktails", "craft", "rooftop", "dive", "beer",
			"dancing", "speakeasy", "wine", "happy hour", "late",
		},
		amenityWeights: map[string]float64{
			AmenityServesCocktails: 1.0,
			AmenityLiveMusic:       0.8,
			AmenityOutdoorSeating:  0.5,
			AmenityGoodForGroups:   0.4,
		},
	},
}

// DirectoryType maps the type to the external place directory's category
// vocabulary. The table is total over All; Validate enforces it.
func (t Type) DirectoryType() string {
	return tables[t].directoryType
}

// BaseTerms returns the category base keywords prepended to every keyword
// list for this type.
func (t Type) BaseTerms() []string {
	terms := tables[t].baseTerms
	out := make([]string, len(terms))
	copy(out, terms)
	return out
}

// Vocabulary returns the review-mining term list for the type: the
// type-specific terms followed by the shared atmosphere terms, deduplicated
// preserving first occurrence.
func (t Type) Vocabulary() []string {
	row := tables[t]
	seen := make(map[string]struct{}, len(row.vocabulary)+len(CommonVocabulary))
	out := make([]string, 0, len(row.vocabulary)+len(CommonVocabulary))
	for _, lists := range [][]string{row.vocabulary, CommonVocabulary} {
		for _, term := range lists {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			out = append(out, term)
		}
	}
	return out
}

// AmenityWeight returns the scoring weight of an amenity flag for this
// type. Flags not in the type's table contribute nothing.
func (t Type) AmenityWeight(amenity string) float64 {
	return tables[t].amenityWeights[amenity]
}

// Validate checks that every supported type has a complete table row.
// Called from the composition root so a missing row fails startup, not a
// live search.
func Validate() error {
	for _, t := range All {
		row, ok := tables[t]
		if !ok {
			return &TableError{Type: t, Missing: "row"}
		}
		if row.directoryType == "" {
			return &TableError{Type: t, Missing: "directory type"}
		}
		if len(row.baseTerms) == 0 {
			return &TableError{Type: t, Missing: "base terms"}
		}
		if len(row.vocabulary) == 0 {
			return &TableError{Type: t, Missing: "vocabulary"}
		}
	}
	return nil
}

// TableError reports an incomplete category table row.
type TableError struct {
	Type    Type
	Missing string
}

func (e *TableError) Error() string {
	return "category table: type " + string(e.Type) + " has no " + e.Missing
}
