package place

// Match is a candidate plus its match score and explanations. Created by
// the scoring engine, progressively filled by enrichment, and never
// mutated once the pipeline completes.
type Match struct {
	Candidate       Candidate `json:"candidate"`
	Score           float64   `json:"score"`
	MatchedKeywords []string  `json:"matched_keywords,omitempty"`
	// DistanceMeters from the destination center. Nil when the candidate
	// has no geographic point.
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
	// ImageVibe is the short visual description from image analysis.
	// Absent when analysis timed out or failed.
	ImageVibe string `json:"image_vibe,omitempty"`
	// Reasoning is the generated sentence explaining the match.
	Reasoning string `json:"reasoning,omitempty"`
}
