package search

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// sessionIdleTTL is how long an identity keeps its orchestrator after
// its last request. Idle entries are evicted opportunistically on the
// next For call, so anonymous ip-keyed identities cannot grow the
// registry without bound.
const sessionIdleTTL = 30 * time.Minute

type session struct {
	orch     *Orchestrator
	lastSeen time.Time
}

// Sessions hands out one orchestrator per caller identity, so the
// in-flight guard applies per user rather than per process. Entries are
// created lazily, reused across requests, and dropped once idle past
// sessionIdleTTL.
type Sessions struct {
	mu      sync.Mutex
	deps    Deps
	cfg     Config
	entries map[string]*session
	now     func() time.Time
}

// NewSessions creates the registry.
func NewSessions(deps Deps, cfg Config) *Sessions {
	return &Sessions{
		deps:    deps,
		cfg:     cfg,
		entries: make(map[string]*session),
		now:     time.Now,
	}
}

// For returns the orchestrator bound to an identity, creating it on
// first use. The user id wins over the IP as the registry key.
func (s *Sessions) For(id Identity) *Orchestrator {
	key := sessionKey(id)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictIdle()

	if e, ok := s.entries[key]; ok {
		e.lastSeen = s.now()
		return e.orch
	}
	deps := s.deps
	if deps.Logger != nil {
		deps.Logger = deps.Logger.With(zap.String("session_key", key))
	}
	o := NewOrchestrator(deps, s.cfg)
	s.entries[key] = &session{orch: o, lastSeen: s.now()}
	return o
}

// Dispose drops an identity's orchestrator. A later For builds a fresh
// one in the Idle stage.
func (s *Sessions) Dispose(id Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionKey(id))
}

// evictIdle removes entries idle past the TTL. An orchestrator with a
// search in flight is kept whatever its age. Caller holds mu.
func (s *Sessions) evictIdle() {
	cutoff := s.now().Add(-sessionIdleTTL)
	for key, e := range s.entries {
		if e.lastSeen.Before(cutoff) && !e.orch.inFlight.Load() {
			delete(s.entries, key)
		}
	}
}

func sessionKey(id Identity) string {
	if id.UserID != "" {
		return id.UserID
	}
	return "ip-" + id.IP
}
