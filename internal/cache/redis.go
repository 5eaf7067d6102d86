package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/obirdex/internal/db"
)

// DefaultRedisKey is the Redis key holding the shared session slot.
const DefaultRedisKey = "obirdex:session"

// Compile-time check: RedisSlot implements SessionSlot.
var _ SessionSlot = (*RedisSlot)(nil)

// RedisSlot keeps the session slot in one Redis key so gateway replicas share it.
// The key carries no Redis expiry; age is checked from the stored creation time.
type RedisSlot struct {
	store db.KVStore
	key   string
	ttl   time.Duration
	now   func() time.Time
}

// NewRedisSlot creates a slot backed by store under key (DefaultRedisKey when empty).
func NewRedisSlot(store db.KVStore, key string, ttl time.Duration, opts ...SlotOption) *RedisSlot {
	if key == "" {
		key = DefaultRedisKey
	}
	cfg := newSlotConfig(opts)
	return &RedisSlot{store: store, key: key, ttl: normalizeTTL(ttl), now: cfg.now}
}

// Put serialises entry and overwrites the Redis key.
func (s *RedisSlot) Put(ctx context.Context, key string, entry SessionEntry) error {
	e := stamp(key, entry, s.now())
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.store.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Get loads the slot and applies the key match and TTL check.
// An absent Redis key is a miss, not an error.
func (s *RedisSlot) Get(ctx context.Context, key string) (SessionEntry, bool, error) {
	data, err := s.store.Get(ctx, s.key)
	if errors.Is(err, db.ErrKeyNotFound) {
		e, ok := lookup(nil, key, s.ttl, s.now())
		return e, ok, nil
	}
	if err != nil {
		return SessionEntry{}, false, fmt.Errorf("load session: %w", err)
	}

	var e SessionEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return SessionEntry{}, false, fmt.Errorf("decode session: %w", err)
	}
	got, ok := lookup(&e, key, s.ttl, s.now())
	return got, ok, nil
}
