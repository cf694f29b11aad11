// Package ratelimit admits searches under a fixed-window quota per
// identity. A request is checked against both the authenticated-user
// identity and the IP identity when both are known; either limit blocks.
// Store failures fail closed: an unreachable counter store never grants
// unlimited searches.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kindred-places/kindred/internal/domain"
	"github.com/kindred-places/kindred/internal/metrics"
	repo "github.com/kindred-places/kindred/internal/repository/ratelimit"
)

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	// BlockedBy is set when Allowed is false; user-limit violations are
	// attributed before IP-limit violations.
	BlockedBy domain.RateLimitScope
}

// Service implements the fixed-window limiter.
type Service struct {
	store  RecordStore
	max    int
	window time.Duration
	logger *zap.Logger
}

// New creates a limiter. max searches per window, both from deployment
// configuration.
func New(store RecordStore, max int, window time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, max: max, window: window, logger: logger}
}

// identity wraps an identity key with its attribution scope.
type identity struct {
	key   string
	scope domain.RateLimitScope
}

// CheckAndConsume evaluates the request against every known identity and
// consumes one search from each only when all of them allow it. Rejected
// checks do not increment any counter. A store error returns
// Allowed=false along with the error (fail closed).
func (s *Service) CheckAndConsume(
	ctx context.Context, userID, ip string, now time.Time,
) (Decision, error) {
	ids := make([]identity, 0, 2)
	if userID != "" {
		ids = append(ids, identity{key: userID, scope: domain.ScopeUser})
	}
	if ip != "" {
		ids = append(ids, identity{key: "ip-" + ip, scope: domain.ScopeIP})
	}
	if len(ids) == 0 {
		return Decision{}, fmt.Errorf("rate limit check requires an identity")
	}

	type pending struct {
		identity identity
		rec      repo.Record
	}

	// First pass: evaluate without persisting, so a rejection on the
	// second identity never consumes from the first.
	updates := make([]pending, 0, len(ids))
	decision := Decision{Allowed: true, Remaining: s.max}
	for _, id := range ids {
		rec, found, err := s.store.Get(ctx, id.key)
		if err != nil {
			// Fail closed: an unreachable store denies the search.
			s.logger.Error("rate limit store unavailable, denying search",
				zap.String("identity", id.key), zap.Error(err))
			return Decision{Allowed: false, BlockedBy: id.scope},
				fmt.Errorf("rate limit store: %w", err)
		}

		if !found || now.Sub(rec.WindowStart) >= s.window {
			rec = repo.Record{WindowStart: now, Count: 0}
		}

		if rec.Count+1 > s.max {
			metrics.RateLimitRejectionsTotal.WithLabelValues(string(id.scope)).Inc()
			return Decision{
				Allowed:   false,
				Remaining: 0,
				ResetAt:   rec.WindowStart.Add(s.window),
				BlockedBy: id.scope,
			}, nil
		}

		rec.Count++
		updates = append(updates, pending{identity: id, rec: rec})

		if remaining := s.max - rec.Count; remaining < decision.Remaining {
			decision.Remaining = remaining
			decision.ResetAt = rec.WindowStart.Add(s.window)
		}
	}

	// Second pass: persist the consumed counts.
	for _, u := range updates {
		if err := s.store.Put(ctx, u.identity.key, u.rec); err != nil {
			s.logger.Error("rate limit store write failed, denying search",
				zap.String("identity", u.identity.key), zap.Error(err))
			return Decision{Allowed: false, BlockedBy: u.identity.scope},
				fmt.Errorf("rate limit store: %w", err)
		}
	}

	return decision, nil
}
