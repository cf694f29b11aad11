package ratelimit

import (
	"context"

	"github.com/kindred-places/kindred/internal/repository/ratelimit"
)

// RecordStore persists per-identity window records.
type RecordStore interface {
	Get(ctx context.Context, identity string) (ratelimit.Record, bool, error)
	Put(ctx context.Context, identity string, rec ratelimit.Record) error
}
