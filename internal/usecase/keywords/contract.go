package keywords

import "context"

// FreeTextDistiller turns the user's free-text hint into up to two search
// keywords via the reasoning service.
type FreeTextDistiller interface {
	DistillKeywords(ctx context.Context, freeText string) ([]string, error)
}
