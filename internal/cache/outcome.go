package cache

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kailas-cloud/obirdex/internal/metrics"
)

type outcomeEntry[V any] struct {
	value     V
	createdAt time.Time
}

// OutcomeCache memoises values by key with LRU eviction and lazy TTL expiry.
type OutcomeCache[V any] struct {
	cache *lru.Cache[string, outcomeEntry[V]]
	ttl   time.Duration
	now   func() time.Time
}

// NewOutcomeCache creates a cache holding up to size entries. A non-positive ttl never expires.
func NewOutcomeCache[V any](size int, ttl time.Duration, opts ...SlotOption) (*OutcomeCache[V], error) {
	c, err := lru.New[string, outcomeEntry[V]](size)
	if err != nil {
		return nil, fmt.Errorf("create outcome cache: %w", err)
	}
	cfg := newSlotConfig(opts)
	return &OutcomeCache[V]{cache: c, ttl: ttl, now: cfg.now}, nil
}

// Get returns the cached value for key. Expired entries are removed on read.
func (c *OutcomeCache[V]) Get(key string) (V, bool) {
	var zero V
	e, ok := c.cache.Get(key)
	if !ok {
		metrics.CacheTotal.WithLabelValues(policyOutcome, "miss").Inc()
		return zero, false
	}
	if c.ttl > 0 && c.now().Sub(e.createdAt) >= c.ttl {
		c.cache.Remove(key)
		metrics.CacheTotal.WithLabelValues(policyOutcome, "expired").Inc()
		return zero, false
	}
	metrics.CacheTotal.WithLabelValues(policyOutcome, "hit").Inc()
	return e.value, true
}

// Put adds or replaces the value for key.
func (c *OutcomeCache[V]) Put(key string, value V) {
	c.cache.Add(key, outcomeEntry[V]{value: value, createdAt: c.now()})
}

// Len returns the current number of entries, expired ones included.
func (c *OutcomeCache[V]) Len() int {
	return c.cache.Len()
}
