package search

import (
	"context"

	"github.com/kailas-cloud/obirdex/internal/cache"
	"github.com/kailas-cloud/obirdex/internal/domain"
)

// Backend is the index service contract used by the orchestrator.
type Backend interface {
	TopK(ctx context.Context, q domain.SearchQuery) (*domain.TopKPage, error)
	FirstStage(ctx context.Context, q domain.SearchQuery) (*domain.FirstStagePage, error)
	SecondStage(ctx context.Context, cacheKey string) (*domain.SecondStagePage, error)
	InitInfo(ctx context.Context) (*domain.InitInfo, error)
	OramInfo(ctx context.Context) (*domain.OramInfo, error)
}

// SessionCache is the single-slot cache used by the broadcast mode.
type SessionCache interface {
	Put(ctx context.Context, key string, entry cache.SessionEntry) error
	Get(ctx context.Context, key string) (cache.SessionEntry, bool, error)
}

// OutcomeStore memoises two-round outcomes by query key.
type OutcomeStore interface {
	Get(key string) (Outcome, bool)
	Put(key string, o Outcome)
}
