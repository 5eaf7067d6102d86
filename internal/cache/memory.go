package cache

import (
	"context"
	"sync/atomic"
	"time"
)

// Compile-time check: MemorySlot implements SessionSlot.
var _ SessionSlot = (*MemorySlot)(nil)

// MemorySlot is a process-local session slot. Concurrent writers race and the last Put wins.
type MemorySlot struct {
	ttl time.Duration
	now func() time.Time
	cur atomic.Pointer[SessionEntry]
}

// NewMemorySlot creates an empty slot. A non-positive ttl selects DefaultSessionTTL.
func NewMemorySlot(ttl time.Duration, opts ...SlotOption) *MemorySlot {
	cfg := newSlotConfig(opts)
	return &MemorySlot{ttl: normalizeTTL(ttl), now: cfg.now}
}

// Put replaces the slot with entry stored under key.
func (s *MemorySlot) Put(_ context.Context, key string, entry SessionEntry) error {
	e := stamp(key, entry, s.now())
	s.cur.Store(&e)
	return nil
}

// Get returns the entry if the slot holds key and it is younger than the TTL.
func (s *MemorySlot) Get(_ context.Context, key string) (SessionEntry, bool, error) {
	e, ok := lookup(s.cur.Load(), key, s.ttl, s.now())
	return e, ok, nil
}
