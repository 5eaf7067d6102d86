package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kailas-cloud/obirdex/internal/cache"
	"github.com/kailas-cloud/obirdex/internal/domain"
	"github.com/kailas-cloud/obirdex/internal/domain/path"
)

// --- Mocks ---

type mockBackend struct {
	topKFn        func(ctx context.Context, q domain.SearchQuery) (*domain.TopKPage, error)
	firstStageFn  func(ctx context.Context, q domain.SearchQuery) (*domain.FirstStagePage, error)
	secondStageFn func(ctx context.Context, cacheKey string) (*domain.SecondStagePage, error)
	initInfoFn    func(ctx context.Context) (*domain.InitInfo, error)
	oramInfoFn    func(ctx context.Context) (*domain.OramInfo, error)

	secondStageCalls atomic.Int32
}

func (m *mockBackend) TopK(ctx context.Context, q domain.SearchQuery) (*domain.TopKPage, error) {
	return m.topKFn(ctx, q)
}

func (m *mockBackend) FirstStage(ctx context.Context, q domain.SearchQuery) (*domain.FirstStagePage, error) {
	return m.firstStageFn(ctx, q)
}

func (m *mockBackend) SecondStage(ctx context.Context, cacheKey string) (*domain.SecondStagePage, error) {
	m.secondStageCalls.Add(1)
	return m.secondStageFn(ctx, cacheKey)
}

func (m *mockBackend) InitInfo(ctx context.Context) (*domain.InitInfo, error) {
	return m.initInfoFn(ctx)
}

func (m *mockBackend) OramInfo(ctx context.Context) (*domain.OramInfo, error) {
	return m.oramInfoFn(ctx)
}

type mapOutcomes struct {
	mu sync.Mutex
	m  map[string]Outcome
}

func (c *mapOutcomes) Get(key string) (Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.m[key]
	return o, ok
}

func (c *mapOutcomes) Put(key string, o Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = o
}

// --- Helpers ---

func topkRecord(id int, kw string, x float64, p ...int) map[string]any {
	nodes := make([]any, len(p))
	for i, n := range p {
		nodes[i] = float64(n)
	}
	return map[string]any{
		"rect_id": float64(id), "keyword": kw, "center_x": x, "center_y": x * 2, "orampath": nodes,
	}
}

func page(results ...map[string]any) *domain.TopKPage {
	return &domain.TopKPage{Status: domain.StatusSuccess, Count: len(results), Results: results}
}

func query(t *testing.T) domain.SearchQuery {
	t.Helper()
	q, err := domain.NewQuery("cafe", 10, 20, 2)
	if err != nil {
		t.Fatal(err)
	}
	return q
}

func isRound1(q domain.SearchQuery) bool { return q.K() != 1 }

// --- TwoRoundSearch ---

func TestTwoRoundSearch_CafeScenario(t *testing.T) {
	backend := &mockBackend{topKFn: func(_ context.Context, q domain.SearchQuery) (*domain.TopKPage, error) {
		if isRound1(q) {
			return page(topkRecord(1, "cafe", 1, 1, 2), topkRecord(2, "cafe", 2, 1, 3)), nil
		}
		if q.Point().X == 1 {
			return page(topkRecord(1, "cafe", 1, 1, 2)), nil
		}
		return nil, &domain.TransportError{Endpoint: domain.EndpointTopK, Timeout: true}
	}}

	o, err := New(backend, nil).TwoRoundSearch(context.Background(), query(t))
	if err != nil {
		t.Fatalf("TwoRoundSearch: %v", err)
	}

	if o.Summary.Identical != 1 || o.Summary.Different != 1 {
		t.Errorf("Summary = %+v, want identical 1 different 1", o.Summary)
	}
	if o.Summary.Unknown != 1 {
		t.Errorf("Unknown = %d, want 1", o.Summary.Unknown)
	}
	if len(o.Round2) != len(o.Round1) || len(o.Comparisons) != len(o.Round1) {
		t.Fatalf("lengths round1=%d round2=%d comparisons=%d", len(o.Round1), len(o.Round2), len(o.Comparisons))
	}
	if !o.Comparisons[0].Identical() {
		t.Errorf("comparison 0 = %+v, want identical", o.Comparisons[0].Differences())
	}
	if o.Comparisons[1].Status() != path.Unknown || len(o.Comparisons[1].Differences()) != 0 {
		t.Errorf("comparison 1 status = %q diffs = %v", o.Comparisons[1].Status(), o.Comparisons[1].Differences())
	}
	if o.Round2[1].ID != 2 || len(o.Round2[1].AccessPath) != 0 {
		t.Errorf("degraded record = %+v", o.Round2[1])
	}
	if o.SubQueries != 2 || o.Degraded != 1 {
		t.Errorf("SubQueries = %d, Degraded = %d", o.SubQueries, o.Degraded)
	}
	if o.RunID == "" {
		t.Error("RunID is empty")
	}
}

func TestTwoRoundSearch_RollupSkipsUnknown(t *testing.T) {
	backend := &mockBackend{topKFn: func(_ context.Context, q domain.SearchQuery) (*domain.TopKPage, error) {
		if isRound1(q) {
			return page(topkRecord(1, "cafe", 1, 1, 2), topkRecord(2, "cafe", 2, 1, 3, 5, 8)), nil
		}
		if q.Point().X == 1 {
			return page(topkRecord(1, "cafe", 1, 1, 2, 4)), nil
		}
		return nil, &domain.TransportError{Endpoint: domain.EndpointTopK, StatusCode: 502}
	}}

	o, err := New(backend, nil).TwoRoundSearch(context.Background(), query(t))
	if err != nil {
		t.Fatalf("TwoRoundSearch: %v", err)
	}
	if o.Rollup.DepthDelta != 1 {
		t.Errorf("DepthDelta = %d, want 1", o.Rollup.DepthDelta)
	}
}

func TestTwoRoundSearch_SubQueryUsesRecordKeywordAndCenter(t *testing.T) {
	var mu sync.Mutex
	var seen []domain.SearchQuery
	backend := &mockBackend{topKFn: func(_ context.Context, q domain.SearchQuery) (*domain.TopKPage, error) {
		if isRound1(q) {
			return page(topkRecord(5, "espresso", 3.5, 7)), nil
		}
		mu.Lock()
		seen = append(seen, q)
		mu.Unlock()
		return page(topkRecord(5, "espresso", 3.5, 7)), nil
	}}

	if _, err := New(backend, nil).TwoRoundSearch(context.Background(), query(t)); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 1 {
		t.Fatalf("sub-queries = %d", len(seen))
	}
	if seen[0].Keyword() != "espresso" || seen[0].Point() != (domain.Point{X: 3.5, Y: 7}) || seen[0].K() != 1 {
		t.Errorf("sub-query = %q %+v k=%d", seen[0].Keyword(), seen[0].Point(), seen[0].K())
	}
}

func TestTwoRoundSearch_Round1Failure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"transport", &domain.TransportError{Endpoint: domain.EndpointTopK, StatusCode: 500}, domain.ErrTransport},
		{"backend status", &domain.BackendStatusError{Endpoint: domain.EndpointTopK, Status: "error"}, domain.ErrBackendStatus},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			backend := &mockBackend{topKFn: func(context.Context, domain.SearchQuery) (*domain.TopKPage, error) {
				return nil, tc.err
			}}
			_, err := New(backend, nil).TwoRoundSearch(context.Background(), query(t))
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestTwoRoundSearch_Round1NormalizationError(t *testing.T) {
	backend := &mockBackend{topKFn: func(context.Context, domain.SearchQuery) (*domain.TopKPage, error) {
		return page(map[string]any{"keyword": "no id"}), nil
	}}
	_, err := New(backend, nil).TwoRoundSearch(context.Background(), query(t))
	if !errors.Is(err, domain.ErrNormalization) {
		t.Errorf("err = %v, want ErrNormalization", err)
	}
}

func TestTwoRoundSearch_Round1InvalidPathFailsCall(t *testing.T) {
	backend := &mockBackend{topKFn: func(_ context.Context, q domain.SearchQuery) (*domain.TopKPage, error) {
		if isRound1(q) {
			return page(map[string]any{"rect_id": 1.0, "keyword": "cafe", "orampath": []any{1.0, -1.0, 3.0}}), nil
		}
		return page(topkRecord(1, "cafe", 1, 1, 3)), nil
	}}
	_, err := New(backend, nil).TwoRoundSearch(context.Background(), query(t))
	var ne *domain.NormalizationError
	if !errors.As(err, &ne) || ne.Field != "orampath" {
		t.Errorf("err = %v, want orampath normalization error", err)
	}
}

func TestTwoRoundSearch_EmptyRound1(t *testing.T) {
	backend := &mockBackend{topKFn: func(context.Context, domain.SearchQuery) (*domain.TopKPage, error) {
		return page(), nil
	}}
	o, err := New(backend, nil).TwoRoundSearch(context.Background(), query(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(o.Round1) != 0 || len(o.Round2) != 0 || o.Summary.Total != 0 || o.SubQueries != 0 {
		t.Errorf("outcome = %+v", o)
	}
}

func TestTwoRoundSearch_Round2DegradedCases(t *testing.T) {
	tests := []struct {
		name string
		resp *domain.TopKPage
		err  error
	}{
		{"empty result list", page(), nil},
		{"backend status", nil, &domain.BackendStatusError{Endpoint: domain.EndpointTopK, Status: "error"}},
		{"unnormalizable", page(map[string]any{"rect_id": 1}), nil},
		{"invalid path element", page(map[string]any{
			"rect_id": 1.0, "keyword": "cafe", "orampath": []any{4.0, -1.0, 5.0},
		}), nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			backend := &mockBackend{topKFn: func(_ context.Context, q domain.SearchQuery) (*domain.TopKPage, error) {
				if isRound1(q) {
					return page(topkRecord(1, "cafe", 1, 4, 5)), nil
				}
				return tc.resp, tc.err
			}}
			o, err := New(backend, nil).TwoRoundSearch(context.Background(), query(t))
			if err != nil {
				t.Fatalf("round-2 failure must not fail the call: %v", err)
			}
			if o.Comparisons[0].Status() != path.Unknown {
				t.Errorf("status = %q, want unknown", o.Comparisons[0].Status())
			}
			if len(o.Round2[0].AccessPath) != 0 || o.Round2[0].ID != 1 {
				t.Errorf("round2 = %+v", o.Round2[0])
			}
		})
	}
}

func TestTwoRoundSearch_CardinalityUnderArbitraryFailures(t *testing.T) {
	const n = 5
	for mask := 0; mask < 1<<n; mask++ {
		backend := &mockBackend{topKFn: func(_ context.Context, q domain.SearchQuery) (*domain.TopKPage, error) {
			if isRound1(q) {
				results := make([]map[string]any, n)
				for i := range results {
					results[i] = topkRecord(i, "cafe", float64(i), i, i+1)
				}
				return page(results...), nil
			}
			i := int(q.Point().X)
			if mask&(1<<i) != 0 {
				return nil, &domain.TransportError{Endpoint: domain.EndpointTopK}
			}
			return page(topkRecord(i, "cafe", float64(i), i, i+1)), nil
		}}

		o, err := New(backend, nil).TwoRoundSearch(context.Background(), query(t))
		if err != nil {
			t.Fatalf("mask %b: %v", mask, err)
		}
		if len(o.Round2) != n || len(o.Comparisons) != n {
			t.Fatalf("mask %b: round2=%d comparisons=%d", mask, len(o.Round2), len(o.Comparisons))
		}
		failed := 0
		for i := 0; i < n; i++ {
			if mask&(1<<i) != 0 {
				failed++
			}
		}
		if o.Summary.Identical != n-failed || o.Summary.Different != failed || o.Degraded != failed {
			t.Errorf("mask %b: summary = %+v degraded = %d", mask, o.Summary, o.Degraded)
		}
	}
}

func TestTwoRoundSearch_PreservesRound1Order(t *testing.T) {
	backend := &mockBackend{topKFn: func(_ context.Context, q domain.SearchQuery) (*domain.TopKPage, error) {
		if isRound1(q) {
			return page(
				topkRecord(10, "a", 0, 1),
				topkRecord(20, "b", 1, 2),
				topkRecord(30, "c", 2, 3),
			), nil
		}
		i := int(q.Point().X)
		// Earlier records finish later.
		time.Sleep(time.Duration(3-i) * 15 * time.Millisecond)
		return page(topkRecord((i+1)*10, q.Keyword(), q.Point().X, i+1)), nil
	}}

	o, err := New(backend, nil).TwoRoundSearch(context.Background(), query(t))
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []int64{10, 20, 30} {
		if o.Round1[i].ID != want || o.Round2[i].ID != want {
			t.Errorf("index %d: round1=%d round2=%d, want %d", i, o.Round1[i].ID, o.Round2[i].ID, want)
		}
	}
}

func TestTwoRoundSearch_MaxConcurrentSubQueries(t *testing.T) {
	var inFlight, peak atomic.Int32
	backend := &mockBackend{topKFn: func(_ context.Context, q domain.SearchQuery) (*domain.TopKPage, error) {
		if isRound1(q) {
			results := make([]map[string]any, 8)
			for i := range results {
				results[i] = topkRecord(i, "cafe", float64(i), i)
			}
			return page(results...), nil
		}
		cur := inFlight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return page(topkRecord(int(q.Point().X), "cafe", q.Point().X, int(q.Point().X))), nil
	}}

	o, err := New(backend, nil).WithMaxConcurrentSubQueries(2).TwoRoundSearch(context.Background(), query(t))
	if err != nil {
		t.Fatal(err)
	}
	if p := peak.Load(); p > 2 {
		t.Errorf("peak in-flight = %d, want <= 2", p)
	}
	if o.Summary.Identical != 8 {
		t.Errorf("Identical = %d, want 8", o.Summary.Identical)
	}
}

func TestTwoRoundSearch_OutcomeCache(t *testing.T) {
	var calls atomic.Int32
	fail := atomic.Bool{}
	backend := &mockBackend{topKFn: func(_ context.Context, q domain.SearchQuery) (*domain.TopKPage, error) {
		calls.Add(1)
		if !isRound1(q) && fail.Load() {
			return nil, &domain.TransportError{Endpoint: domain.EndpointTopK}
		}
		return page(topkRecord(1, "cafe", 1, 1, 2)), nil
	}}
	store := &mapOutcomes{m: map[string]Outcome{}}
	svc := New(backend, nil).WithOutcomeCache(store)

	first, err := svc.TwoRoundSearch(context.Background(), query(t))
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.TwoRoundSearch(context.Background(), query(t))
	if err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 {
		t.Errorf("backend calls = %d, want 2 (second search served from cache)", calls.Load())
	}
	if first.RunID != second.RunID {
		t.Error("cached outcome should be returned as stored")
	}

	first.Round1[0].Keyword = "MUTATED"
	first.Round1[0].AccessPath[0] = 99
	second.Round2[0].AccessPath[0] = 98
	second.Comparisons[0].Before()[0] = 97
	third, err := svc.TwoRoundSearch(context.Background(), query(t))
	if err != nil {
		t.Fatal(err)
	}
	if third.Round1[0].Keyword != "cafe" || third.Round1[0].AccessPath[0] != 1 ||
		third.Round2[0].AccessPath[0] != 1 || third.Comparisons[0].Before()[0] != 1 {
		t.Errorf("cached outcome was modified through a returned copy: %+v", third)
	}

	fail.Store(true)
	q2, _ := domain.NewQuery("cafe", 10, 20, 3)
	if _, err := svc.TwoRoundSearch(context.Background(), q2); err != nil {
		t.Fatal(err)
	}
	if _, ok := store.Get(q2.Key()); ok {
		t.Error("degraded outcome must not be cached")
	}
}

// --- BasicSearch ---

func firstStage(cacheKey string, results ...map[string]any) *domain.FirstStagePage {
	return &domain.FirstStagePage{
		Status:         domain.StatusSuccess,
		InitialResults: results,
		CacheKey:       cacheKey,
		TimeCost:       0.12,
	}
}

func mapped(id int, title string) map[string]any {
	return map[string]any{"id": float64(id), "title": title, "lng": 116.4, "lat": 39.9}
}

func pairPage() *domain.SecondStagePage {
	return &domain.SecondStagePage{
		Status:     domain.StatusSuccess,
		PathBefore: map[string]any{"path": []any{1.0, 2.0, 3.0}, "access_count": 4.0},
		PathAfter:  map[string]any{"path": []any{1.0, 5.0}, "access_count": 6.0},
	}
}

func TestBasicSearch_BroadcastsPair(t *testing.T) {
	backend := &mockBackend{
		firstStageFn: func(context.Context, domain.SearchQuery) (*domain.FirstStagePage, error) {
			return firstStage("key-1", mapped(1, "A"), mapped(2, "B")), nil
		},
		secondStageFn: func(_ context.Context, key string) (*domain.SecondStagePage, error) {
			if key != "key-1" {
				t.Errorf("cacheKey = %q", key)
			}
			return pairPage(), nil
		},
	}
	slot := cache.NewMemorySlot(cache.DefaultSessionTTL)

	o, err := New(backend, slot).BasicSearch(context.Background(), query(t))
	if err != nil {
		t.Fatalf("BasicSearch: %v", err)
	}
	if !o.HasPathInfo() || o.FromCache {
		t.Fatalf("HasPathInfo = %v FromCache = %v", o.HasPathInfo(), o.FromCache)
	}
	for i, item := range o.Items {
		if item.Paths != o.Paths {
			t.Errorf("item %d does not carry the broadcast pair", i)
		}
	}
	if o.Comparison == nil || o.Comparison.Identical() {
		t.Errorf("Comparison = %+v", o.Comparison)
	}
	// Two items, each |2-3| = 1 depth change and 4+6 accesses.
	if o.Rollup.DepthDelta != 2 || o.Rollup.TotalAccess != 20 {
		t.Errorf("Rollup = %+v", o.Rollup)
	}

	e, ok, _ := slot.Get(context.Background(), "key-1")
	if !ok || e.Paths == nil || len(e.Results) != 2 {
		t.Errorf("session not stored: ok=%v entry=%+v", ok, e)
	}
}

func TestBasicSearch_SessionHitSkipsSecondStage(t *testing.T) {
	backend := &mockBackend{
		firstStageFn: func(context.Context, domain.SearchQuery) (*domain.FirstStagePage, error) {
			return firstStage("key-1", mapped(1, "A")), nil
		},
		secondStageFn: func(context.Context, string) (*domain.SecondStagePage, error) {
			return pairPage(), nil
		},
	}
	svc := New(backend, cache.NewMemorySlot(cache.DefaultSessionTTL))

	if _, err := svc.BasicSearch(context.Background(), query(t)); err != nil {
		t.Fatal(err)
	}
	o, err := svc.BasicSearch(context.Background(), query(t))
	if err != nil {
		t.Fatal(err)
	}
	if n := backend.secondStageCalls.Load(); n != 1 {
		t.Errorf("second-stage calls = %d, want 1", n)
	}
	if !o.FromCache || !o.HasPathInfo() {
		t.Errorf("FromCache = %v HasPathInfo = %v", o.FromCache, o.HasPathInfo())
	}
}

func TestBasicSearch_SecondStageFailureIsSilent(t *testing.T) {
	tests := []struct {
		name string
		resp *domain.SecondStagePage
		err  error
	}{
		{"transport", nil, &domain.TransportError{Endpoint: domain.EndpointSecondStage, Timeout: true}},
		{"status", &domain.SecondStagePage{Status: "error", Error: "expired"}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			backend := &mockBackend{
				firstStageFn: func(context.Context, domain.SearchQuery) (*domain.FirstStagePage, error) {
					return firstStage("key-1", mapped(1, "A")), nil
				},
				secondStageFn: func(context.Context, string) (*domain.SecondStagePage, error) {
					return tc.resp, tc.err
				},
			}
			o, err := New(backend, cache.NewMemorySlot(0)).BasicSearch(context.Background(), query(t))
			if err != nil {
				t.Fatalf("BasicSearch: %v", err)
			}
			if o.HasPathInfo() || o.Items[0].Paths != nil || o.Comparison != nil {
				t.Errorf("outcome = %+v", o)
			}
		})
	}
}

func TestBasicSearch_EmbeddedPathsFallback(t *testing.T) {
	raw := mapped(1, "A")
	raw["path_before"] = []any{1.0, 2.0}
	raw["path_after"] = []any{1.0, 2.0, 3.0}
	backend := &mockBackend{
		firstStageFn: func(context.Context, domain.SearchQuery) (*domain.FirstStagePage, error) {
			return firstStage("", raw, mapped(2, "B")), nil
		},
	}

	o, err := New(backend, nil).BasicSearch(context.Background(), query(t))
	if err != nil {
		t.Fatal(err)
	}
	if backend.secondStageCalls.Load() != 0 {
		t.Error("second stage must not be called without a cache key")
	}
	if o.Items[0].Paths == nil || len(o.Items[0].Paths.After.Nodes) != 3 {
		t.Errorf("item 0 paths = %+v", o.Items[0].Paths)
	}
	if o.Items[1].Paths != nil {
		t.Errorf("item 1 paths = %+v, want nil", o.Items[1].Paths)
	}
	if o.Rollup.DepthDelta != 1 {
		t.Errorf("DepthDelta = %d, want 1", o.Rollup.DepthDelta)
	}
}

func TestBasicSearch_FirstStageErrors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		backend := &mockBackend{firstStageFn: func(context.Context, domain.SearchQuery) (*domain.FirstStagePage, error) {
			return &domain.FirstStagePage{Status: "error", Error: "keyword not indexed"}, nil
		}}
		_, err := New(backend, nil).BasicSearch(context.Background(), query(t))
		var bse *domain.BackendStatusError
		if !errors.As(err, &bse) || bse.Message != "keyword not indexed" {
			t.Errorf("err = %v", err)
		}
	})
	t.Run("transport", func(t *testing.T) {
		backend := &mockBackend{firstStageFn: func(context.Context, domain.SearchQuery) (*domain.FirstStagePage, error) {
			return nil, &domain.TransportError{Endpoint: domain.EndpointFirstStage}
		}}
		_, err := New(backend, nil).BasicSearch(context.Background(), query(t))
		if !errors.Is(err, domain.ErrTransport) {
			t.Errorf("err = %v", err)
		}
	})
}

// --- FetchPathComparisonByCacheKey ---

func TestFetchPathComparisonByCacheKey(t *testing.T) {
	backend := &mockBackend{secondStageFn: func(_ context.Context, key string) (*domain.SecondStagePage, error) {
		switch key {
		case "ok":
			return pairPage(), nil
		case "fail":
			return &domain.SecondStagePage{Status: "error"}, nil
		default:
			return nil, fmt.Errorf("wrapped: %w", &domain.TransportError{Endpoint: domain.EndpointSecondStage})
		}
	}}
	svc := New(backend, nil)

	pair, ok := svc.FetchPathComparisonByCacheKey(context.Background(), "ok")
	if !ok || pair.Before.Depth() != 3 || pair.After.AccessCount != 6 {
		t.Errorf("pair = %+v ok = %v", pair, ok)
	}
	for _, key := range []string{"fail", "down"} {
		if _, ok := svc.FetchPathComparisonByCacheKey(context.Background(), key); ok {
			t.Errorf("key %q: want absent", key)
		}
	}

	calls := backend.secondStageCalls.Load()
	if _, ok := svc.FetchPathComparisonByCacheKey(context.Background(), ""); ok {
		t.Error("empty key: want absent")
	}
	if backend.secondStageCalls.Load() != calls {
		t.Error("empty key must not reach the backend")
	}
}

func TestFetchPathComparisonByCacheKey_MalformedPair(t *testing.T) {
	backend := &mockBackend{secondStageFn: func(context.Context, string) (*domain.SecondStagePage, error) {
		p := pairPage()
		p.PathAfter = []any{1.0, -5.0}
		return p, nil
	}}
	if _, ok := New(backend, nil).FetchPathComparisonByCacheKey(context.Background(), "k1"); ok {
		t.Error("a pair with an invalid node must read as absent")
	}
}

func TestFetchPathComparisonByCacheKey_CancelledCallerDoesNotAffectOthers(t *testing.T) {
	started := make(chan struct{})
	var startOnce sync.Once
	release := make(chan struct{})
	backend := &mockBackend{secondStageFn: func(ctx context.Context, _ string) (*domain.SecondStagePage, error) {
		startOnce.Do(func() { close(started) })
		select {
		case <-release:
			return pairPage(), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}}
	svc := New(backend, nil)

	ctxA, cancelA := context.WithCancel(context.Background())
	resA := make(chan bool, 1)
	go func() {
		_, ok := svc.FetchPathComparisonByCacheKey(ctxA, "k1")
		resA <- ok
	}()
	<-started

	resB := make(chan bool, 1)
	go func() {
		_, ok := svc.FetchPathComparisonByCacheKey(context.Background(), "k1")
		resB <- ok
	}()
	time.Sleep(50 * time.Millisecond) // let B join the in-flight call

	cancelA()
	if <-resA {
		t.Error("cancelled caller: want absent")
	}
	close(release)
	if !<-resB {
		t.Error("live caller: want the pair after another caller cancelled")
	}
	if n := backend.secondStageCalls.Load(); n != 1 {
		t.Errorf("second-stage calls = %d, want 1 shared call", n)
	}
}

// --- ApplyPathComparison ---

func TestApplyPathComparison_UsesSessionResults(t *testing.T) {
	backend := &mockBackend{
		firstStageFn: func(context.Context, domain.SearchQuery) (*domain.FirstStagePage, error) {
			return firstStage("k1", mapped(1, "A"), mapped(2, "B")), nil
		},
		secondStageFn: func(context.Context, string) (*domain.SecondStagePage, error) {
			return &domain.SecondStagePage{Status: "error", Error: "not ready"}, nil
		},
	}
	slot := cache.NewMemorySlot(cache.DefaultSessionTTL)
	svc := New(backend, slot)

	if _, err := svc.BasicSearch(context.Background(), query(t)); err != nil {
		t.Fatal(err)
	}
	backend.secondStageFn = func(context.Context, string) (*domain.SecondStagePage, error) {
		return pairPage(), nil
	}

	o, ok := svc.ApplyPathComparison(context.Background(), "k1", nil)
	if !ok {
		t.Fatal("want pair")
	}
	if len(o.Items) != 2 || o.Items[0].Record.ID != 1 || o.Items[1].Record.ID != 2 {
		t.Fatalf("items = %+v", o.Items)
	}
	for i, item := range o.Items {
		if item.Paths != o.Paths || item.Paths.Before.Depth() != 3 {
			t.Errorf("item %d does not carry the pair: %+v", i, item.Paths)
		}
	}
	if o.FromCache || o.Comparison == nil || o.Comparison.Identical() {
		t.Errorf("FromCache = %v Comparison = %+v", o.FromCache, o.Comparison)
	}
	if o.Rollup.DepthDelta != 2 || o.Rollup.TotalAccess != 20 {
		t.Errorf("Rollup = %+v", o.Rollup)
	}

	// The fetched pair is remembered, so a second lookup is served from the slot.
	again, ok := svc.ApplyPathComparison(context.Background(), "k1", nil)
	if !ok || !again.FromCache || len(again.Items) != 2 {
		t.Errorf("second lookup: ok=%v FromCache=%v items=%d", ok, again.FromCache, len(again.Items))
	}
	if n := backend.secondStageCalls.Load(); n != 2 {
		t.Errorf("second-stage calls = %d, want 2", n)
	}
}

func TestApplyPathComparison_CallerRecords(t *testing.T) {
	backend := &mockBackend{secondStageFn: func(context.Context, string) (*domain.SecondStagePage, error) {
		return pairPage(), nil
	}}
	records := []domain.MatchRecord{{ID: 7, Keyword: "x"}, {ID: 8, Keyword: "y"}, {ID: 9, Keyword: "z"}}

	o, ok := New(backend, nil).ApplyPathComparison(context.Background(), "k2", records)
	if !ok || len(o.Items) != 3 {
		t.Fatalf("ok = %v items = %d", ok, len(o.Items))
	}
	for i, item := range o.Items {
		if item.Record.ID != records[i].ID || item.Paths == nil || item.Paths.After.AccessCount != 6 {
			t.Errorf("item %d = %+v", i, item)
		}
	}
}

func TestApplyPathComparison_Absent(t *testing.T) {
	backend := &mockBackend{secondStageFn: func(context.Context, string) (*domain.SecondStagePage, error) {
		return nil, &domain.TransportError{Endpoint: domain.EndpointSecondStage, Timeout: true}
	}}
	svc := New(backend, cache.NewMemorySlot(0))
	if _, ok := svc.ApplyPathComparison(context.Background(), "k3", []domain.MatchRecord{{ID: 1}}); ok {
		t.Error("want absent when the index has no pair")
	}
	if _, ok := svc.ApplyPathComparison(context.Background(), "", nil); ok {
		t.Error("empty key: want absent")
	}
}

// --- Info ---

func TestInfoPassThrough(t *testing.T) {
	backend := &mockBackend{
		initInfoFn: func(context.Context) (*domain.InitInfo, error) {
			return &domain.InitInfo{Status: "success", Message: "ready"}, nil
		},
		oramInfoFn: func(context.Context) (*domain.OramInfo, error) {
			return nil, &domain.TransportError{Endpoint: domain.EndpointOramInfo, StatusCode: 502}
		},
	}
	svc := New(backend, nil)

	info, err := svc.InitInfo(context.Background())
	if err != nil || info.Message != "ready" {
		t.Errorf("InitInfo = %+v, %v", info, err)
	}
	if _, err := svc.OramInfo(context.Background()); !errors.Is(err, domain.ErrTransport) {
		t.Errorf("OramInfo err = %v", err)
	}
}
