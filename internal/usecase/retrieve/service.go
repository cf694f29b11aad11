// Package retrieve fetches candidate establishments from the place
// directory within the destination bounds, under a maximum result budget.
package retrieve

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kindred-places/kindred/internal/domain/category"
	"github.com/kindred-places/kindred/internal/domain/geo"
	"github.com/kindred-places/kindred/internal/domain/place"
)

// directoryPageSize is the per-request page size asked of the directory.
const directoryPageSize = 20

// Service retrieves candidates.
type Service struct {
	directory Directory
	budget    int
	logger    *zap.Logger
}

// New creates a retriever. budget caps the total candidates fetched per
// search across directory pages.
func New(directory Directory, budget int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{directory: directory, budget: budget, logger: logger}
}

// Result is a retrieval outcome.
type Result struct {
	Candidates    []place.Candidate
	NextPageToken string
}

// Search pages through the directory until the budget is met or pages run
// out. Candidates whose id is in excludeIDs are dropped before being
// returned, not down-ranked, so no place is ever scored twice across
// pages of the same fingerprint. Duplicates within the fetched set are
// dropped the same way.
func (s *Service) Search(
	ctx context.Context,
	cat category.Type,
	bounds geo.Bounds,
	biasKeywords []string,
	excludeIDs map[string]struct{},
	pageToken string,
) (Result, error) {
	var out Result
	seen := make(map[string]struct{}, s.budget)
	token := pageToken

	for len(out.Candidates) < s.budget {
		page, err := s.directory.SearchText(ctx, cat, bounds, biasKeywords, token, directoryPageSize)
		if err != nil {
			return Result{}, fmt.Errorf("directory search: %w", err)
		}

		for _, cand := range page.Candidates {
			if cand.ID == "" {
				continue
			}
			if _, ok := excludeIDs[cand.ID]; ok {
				continue
			}
			if _, ok := seen[cand.ID]; ok {
				continue
			}
			seen[cand.ID] = struct{}{}
			out.Candidates = append(out.Candidates, cand)
			if len(out.Candidates) == s.budget {
				break
			}
		}

		token = page.NextPageToken
		if token == "" {
			break
		}
	}

	out.NextPageToken = token
	s.logger.Debug("candidate retrieval complete",
		zap.Int("candidates", len(out.Candidates)),
		zap.Bool("has_more", token != ""),
	)
	return out, nil
}
