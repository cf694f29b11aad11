package enrich

import (
	"context"

	"github.com/kindred-places/kindred/internal/domain/place"
	"github.com/kindred-places/kindred/internal/transport/openai"
)

// ImageAnalyzer produces a short visual description of a photo.
type ImageAnalyzer interface {
	DescribeImage(ctx context.Context, imageURL string) (string, error)
}

// BatchReasoner produces one reasoning sentence per candidate, in
// submission order, from a single call.
type BatchReasoner interface {
	ReasonBatch(
		ctx context.Context,
		source place.Candidate,
		candidates []openai.CandidateSummary,
		destination string,
	) ([]string, error)
}
