// Package cache holds the two cache policies used by the search orchestrator.
//
// SessionSlot is a single global slot remembering only the most recent
// first-stage session for the broadcast mode. OutcomeCache is a keyed,
// size-bounded memo for two-round outcomes. Both expire entries lazily on read;
// neither runs a background sweeper.
package cache

import (
	"context"
	"time"

	"github.com/kailas-cloud/obirdex/internal/domain"
	"github.com/kailas-cloud/obirdex/internal/metrics"
)

// DefaultSessionTTL is the age after which a session entry reads as absent.
const DefaultSessionTTL = 600000 * time.Millisecond

// Cache policy labels for metrics.
const (
	policySession = "session"
	policyOutcome = "outcome"
)

// SessionEntry is one first-stage session: its results and, once fetched, its path pair.
type SessionEntry struct {
	CacheKey  string               `json:"cache_key"`
	Results   []domain.MatchRecord `json:"results"`
	Paths     *domain.PathPair     `json:"paths,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}

// SessionSlot stores exactly one session. Put replaces the whole slot regardless of key.
type SessionSlot interface {
	Put(ctx context.Context, key string, entry SessionEntry) error
	Get(ctx context.Context, key string) (SessionEntry, bool, error)
}

// SlotOption configures a session slot.
type SlotOption func(*slotConfig)

type slotConfig struct {
	now func() time.Time
}

// WithClock overrides the time source used for stamping and expiry.
func WithClock(now func() time.Time) SlotOption {
	return func(c *slotConfig) { c.now = now }
}

func newSlotConfig(opts []SlotOption) slotConfig {
	cfg := slotConfig{now: time.Now}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

func normalizeTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultSessionTTL
	}
	return ttl
}

// stamp sets the key and, for a new entry, the creation time.
func stamp(key string, entry SessionEntry, now time.Time) SessionEntry {
	entry.CacheKey = key
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	return entry
}

// lookup applies the key match and lazy TTL check shared by all slot backends.
func lookup(e *SessionEntry, key string, ttl time.Duration, now time.Time) (SessionEntry, bool) {
	if e == nil || e.CacheKey != key {
		metrics.CacheTotal.WithLabelValues(policySession, "miss").Inc()
		return SessionEntry{}, false
	}
	if now.Sub(e.CreatedAt) >= ttl {
		metrics.CacheTotal.WithLabelValues(policySession, "expired").Inc()
		return SessionEntry{}, false
	}
	metrics.CacheTotal.WithLabelValues(policySession, "hit").Inc()
	return *e, true
}
