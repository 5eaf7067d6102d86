package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/obirdex/internal/cache"
	"github.com/kailas-cloud/obirdex/internal/domain"
	"github.com/kailas-cloud/obirdex/internal/domain/path"
	"github.com/kailas-cloud/obirdex/internal/normalize"
	"github.com/kailas-cloud/obirdex/internal/stats"
)

// BroadcastItem is one first-stage result with the path pair applied to it.
type BroadcastItem struct {
	Record domain.MatchRecord
	// Raw is the backend payload, kept for presentation fields the record does not model.
	Raw   map[string]any
	Paths *domain.PathPair
}

// BroadcastOutcome is the result of a first-stage search with the session path pair.
type BroadcastOutcome struct {
	Items    []BroadcastItem
	CacheKey string
	TimeCost any
	// Paths is the session-wide pair; nil when none could be obtained.
	Paths      *domain.PathPair
	Comparison *path.Comparison
	Rollup     stats.Rollup
	// FromCache reports that the pair came from the session slot.
	FromCache bool
}

// HasPathInfo reports whether a session-wide path pair was obtained.
func (o BroadcastOutcome) HasPathInfo() bool { return o.Paths != nil }

// BasicSearch runs the first stage, then obtains the session path pair (slot
// first, then the index) and applies it uniformly to every result.
// A missing pair never fails the call.
func (s *Service) BasicSearch(ctx context.Context, q domain.SearchQuery) (BroadcastOutcome, error) {
	page, err := s.backend.FirstStage(ctx, q)
	if err != nil {
		return BroadcastOutcome{}, fmt.Errorf("first stage: %w", err)
	}
	if page.Status != domain.StatusSuccess {
		return BroadcastOutcome{}, &domain.BackendStatusError{
			Endpoint: domain.EndpointFirstStage,
			Status:   page.Status,
			Message:  page.Error,
		}
	}
	records, err := normalize.All(page.InitialResults)
	if err != nil {
		return BroadcastOutcome{}, fmt.Errorf("first stage: %w", err)
	}

	out := BroadcastOutcome{CacheKey: page.CacheKey, TimeCost: page.TimeCost}

	var createdAt time.Time
	if page.CacheKey != "" {
		if e, ok := s.sessionLookup(ctx, page.CacheKey); ok && e.Paths != nil {
			out.Paths = e.Paths
			out.FromCache = true
			createdAt = e.CreatedAt
		} else if pair, ok := s.FetchPathComparisonByCacheKey(ctx, page.CacheKey); ok {
			out.Paths = &pair
		}
	}

	out.Items = make([]BroadcastItem, len(records))
	var pairs []stats.Pair
	for i, rec := range records {
		item := BroadcastItem{Record: rec, Raw: page.InitialResults[i], Paths: out.Paths}
		if item.Paths == nil {
			if own, ok := normalize.EmbeddedPaths(item.Raw); ok {
				item.Paths = &own
			}
		}
		if item.Paths != nil {
			pairs = append(pairs, stats.Pair{Before: item.Paths.Before, After: item.Paths.After})
		}
		out.Items[i] = item
	}
	out.Rollup = stats.RollupPairs(pairs)
	if out.Paths != nil {
		cmp := path.Compare(out.Paths.Before.Nodes, out.Paths.After.Nodes)
		out.Comparison = &cmp
	}

	if page.CacheKey != "" && s.slot != nil {
		entry := cache.SessionEntry{Results: records, Paths: out.Paths, CreatedAt: createdAt}
		if err := s.slot.Put(ctx, page.CacheKey, entry); err != nil {
			s.logger.Warn("Failed to store search session", zap.String("cache_key", page.CacheKey), zap.Error(err))
		}
	}
	return out, nil
}

// FetchPathComparisonByCacheKey fetches the before/after path pair of a
// first-stage session with one index call. Any failure reads as absent.
// Concurrent lookups of the same key share one call, which is detached from
// the caller that started it; each caller still returns when its own ctx ends.
func (s *Service) FetchPathComparisonByCacheKey(ctx context.Context, cacheKey string) (domain.PathPair, bool) {
	if cacheKey == "" {
		return domain.PathPair{}, false
	}
	shared := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(cacheKey, func() (any, error) {
		return s.fetchPathPair(shared, cacheKey), nil
	})

	select {
	case <-ctx.Done():
		return domain.PathPair{}, false
	case res := <-ch:
		pair, ok := res.Val.(*domain.PathPair)
		if !ok || pair == nil {
			return domain.PathPair{}, false
		}
		return *pair, true
	}
}

// ApplyPathComparison obtains the path pair of cacheKey (slot first, then the
// index) and applies it uniformly to every record. With nil records the
// results remembered in the session slot for cacheKey are used. It reports
// false when no pair is available.
func (s *Service) ApplyPathComparison(
	ctx context.Context, cacheKey string, records []domain.MatchRecord,
) (BroadcastOutcome, bool) {
	if cacheKey == "" {
		return BroadcastOutcome{}, false
	}
	out := BroadcastOutcome{CacheKey: cacheKey}

	entry, cached := s.sessionLookup(ctx, cacheKey)
	if records == nil && cached {
		records = entry.Results
	}
	if cached && entry.Paths != nil {
		out.Paths = entry.Paths
		out.FromCache = true
	} else {
		pair, ok := s.FetchPathComparisonByCacheKey(ctx, cacheKey)
		if !ok {
			return BroadcastOutcome{}, false
		}
		out.Paths = &pair
		if cached {
			entry.Paths = &pair
			if err := s.slot.Put(ctx, cacheKey, entry); err != nil {
				s.logger.Warn("Failed to store session path pair", zap.String("cache_key", cacheKey), zap.Error(err))
			}
		}
	}

	out.Items = make([]BroadcastItem, len(records))
	pairs := make([]stats.Pair, len(records))
	for i, rec := range records {
		out.Items[i] = BroadcastItem{Record: rec, Paths: out.Paths}
		pairs[i] = stats.Pair{Before: out.Paths.Before, After: out.Paths.After}
	}
	out.Rollup = stats.RollupPairs(pairs)
	cmp := path.Compare(out.Paths.Before.Nodes, out.Paths.After.Nodes)
	out.Comparison = &cmp
	return out, true
}

func (s *Service) fetchPathPair(ctx context.Context, cacheKey string) *domain.PathPair {
	page, err := s.backend.SecondStage(ctx, cacheKey)
	if err != nil {
		s.logger.Warn("Path info unavailable", zap.String("cache_key", cacheKey), zap.Error(err))
		return nil
	}
	if page.Status != domain.StatusSuccess {
		s.logger.Debug("Path info not successful",
			zap.String("cache_key", cacheKey),
			zap.String("status", page.Status),
			zap.String("error", page.Error),
		)
		return nil
	}
	before, errB := normalize.Snapshot(page.PathBefore)
	after, errA := normalize.Snapshot(page.PathAfter)
	if err := errors.Join(errB, errA); err != nil {
		s.logger.Warn("Path info malformed", zap.String("cache_key", cacheKey), zap.Error(err))
		return nil
	}
	return &domain.PathPair{Before: before, After: after}
}

// sessionLookup reads the slot; store failures count as a miss.
func (s *Service) sessionLookup(ctx context.Context, key string) (cache.SessionEntry, bool) {
	if s.slot == nil {
		return cache.SessionEntry{}, false
	}
	e, ok, err := s.slot.Get(ctx, key)
	if err != nil {
		s.logger.Warn("Session cache read failed", zap.String("cache_key", key), zap.Error(err))
		return cache.SessionEntry{}, false
	}
	return e, ok
}
