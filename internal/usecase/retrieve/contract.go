package retrieve

import (
	"context"

	"github.com/kindred-places/kindred/internal/domain/category"
	"github.com/kindred-places/kindred/internal/domain/geo"
	"github.com/kindred-places/kindred/internal/transport/places"
)

// Directory is the place directory search contract.
type Directory interface {
	SearchText(
		ctx context.Context,
		cat category.Type,
		bounds geo.Bounds,
		biasKeywords []string,
		pageToken string,
		pageSize int,
	) (places.SearchPage, error)
}
