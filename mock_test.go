package obirdex

import (
	"context"

	"github.com/kailas-cloud/obirdex/internal/domain"
	searchuc "github.com/kailas-cloud/obirdex/internal/usecase/search"
)

// --- searchUseCase mock ---

type mockSearchUC struct {
	twoRoundFn func(ctx context.Context, q domain.SearchQuery) (searchuc.Outcome, error)
	basicFn    func(ctx context.Context, q domain.SearchQuery) (searchuc.BroadcastOutcome, error)
	pathsFn    func(ctx context.Context, cacheKey string) (domain.PathPair, bool)
	applyFn    func(ctx context.Context, cacheKey string, records []domain.MatchRecord) (searchuc.BroadcastOutcome, bool)
	initFn     func(ctx context.Context) (*domain.InitInfo, error)
	oramFn     func(ctx context.Context) (*domain.OramInfo, error)
}

func (m *mockSearchUC) TwoRoundSearch(ctx context.Context, q domain.SearchQuery) (searchuc.Outcome, error) {
	return m.twoRoundFn(ctx, q)
}

func (m *mockSearchUC) BasicSearch(ctx context.Context, q domain.SearchQuery) (searchuc.BroadcastOutcome, error) {
	return m.basicFn(ctx, q)
}

func (m *mockSearchUC) FetchPathComparisonByCacheKey(ctx context.Context, cacheKey string) (domain.PathPair, bool) {
	return m.pathsFn(ctx, cacheKey)
}

func (m *mockSearchUC) ApplyPathComparison(
	ctx context.Context, cacheKey string, records []domain.MatchRecord,
) (searchuc.BroadcastOutcome, bool) {
	return m.applyFn(ctx, cacheKey, records)
}

func (m *mockSearchUC) InitInfo(ctx context.Context) (*domain.InitInfo, error) {
	return m.initFn(ctx)
}

func (m *mockSearchUC) OramInfo(ctx context.Context) (*domain.OramInfo, error) {
	return m.oramFn(ctx)
}
