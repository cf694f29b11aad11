package place

// KeywordSource records where a match keyword came from. Contribution
// order matters for ranking explanations, not for scoring.
type KeywordSource string

// Keyword sources, in contribution order.
const (
	// SourceVibeDefault marks category base terms.
	SourceVibeDefault KeywordSource = "vibe-default"
	// SourceReviewConsensus marks terms supported by multiple source places.
	SourceReviewConsensus KeywordSource = "review-consensus"
	// SourceFreeText marks terms distilled from the user's free-text hint.
	SourceFreeText KeywordSource = "free-text"
)

// Keyword is a normalized descriptive term used to bias retrieval and
// explain matches.
type Keyword struct {
	Term   string        `json:"term"`
	Source KeywordSource `json:"source"`
}

// Terms extracts the bare term strings preserving order.
func Terms(keywords []Keyword) []string {
	out := make([]string, len(keywords))
	for i, k := range keywords {
		out[i] = k.Term
	}
	return out
}
