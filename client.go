package obirdex

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/kailas-cloud/obirdex/internal/cache"
	"github.com/kailas-cloud/obirdex/internal/domain"
	"github.com/kailas-cloud/obirdex/internal/transport/obir"
	searchuc "github.com/kailas-cloud/obirdex/internal/usecase/search"
)

// searchUseCase is the orchestrator surface, swapped in tests.
type searchUseCase interface {
	TwoRoundSearch(ctx context.Context, q domain.SearchQuery) (searchuc.Outcome, error)
	BasicSearch(ctx context.Context, q domain.SearchQuery) (searchuc.BroadcastOutcome, error)
	FetchPathComparisonByCacheKey(ctx context.Context, cacheKey string) (domain.PathPair, bool)
	ApplyPathComparison(
		ctx context.Context, cacheKey string, records []domain.MatchRecord,
	) (searchuc.BroadcastOutcome, bool)
	InitInfo(ctx context.Context) (*domain.InitInfo, error)
	OramInfo(ctx context.Context) (*domain.OramInfo, error)
}

// Client is the obirdex entry point.
type Client struct {
	baseURL string
	svc     searchUseCase
	obs     *observer
}

// New creates a Client. No connection is made until the first call.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{baseURL: obir.DefaultBaseURL}
	for _, o := range opts {
		o.apply(cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	backend := obir.NewClient(obir.Config{
		BaseURL:      cfg.baseURL,
		Timeout:      cfg.timeout,
		RateLimitRPS: cfg.rateLimitRPS,
		HTTPClient:   cfg.httpClient,
	})

	svc := searchuc.New(backend, cache.NewMemorySlot(cfg.sessionTTL)).
		WithMaxConcurrentSubQueries(cfg.maxConcurrent)
	if cfg.outcomeSize > 0 {
		outcomes, err := cache.NewOutcomeCache[searchuc.Outcome](cfg.outcomeSize, cfg.outcomeTTL)
		if err != nil {
			return nil, fmt.Errorf("obirdex: outcome cache: %w", err)
		}
		svc = svc.WithOutcomeCache(outcomes)
	}

	return &Client{baseURL: backend.BaseURL(), svc: svc, obs: obs}, nil
}

func (c *clientConfig) validate() error {
	u, err := url.Parse(c.baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("obirdex: invalid base URL %q", c.baseURL)
	}
	if c.maxConcurrent < 0 {
		return errors.New("obirdex: max concurrent sub-queries must be >= 0")
	}
	if c.outcomeSize < 0 {
		return errors.New("obirdex: outcome cache size must be >= 0")
	}
	if c.rateLimitRPS < 0 {
		return errors.New("obirdex: rate limit must be >= 0")
	}
	return nil
}

// BaseURL returns the index service address.
func (c *Client) BaseURL() string { return c.baseURL }

// TwoRoundSearch runs the round-1 query and one k=1 verification query per
// result, comparing the access paths of both rounds. Only a round-1 failure
// returns an error; failed verification queries yield StatusUnknown comparisons.
func (c *Client) TwoRoundSearch(
	ctx context.Context, keyword string, x, y float64, k int,
) (res TwoRoundResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("two_round_search", start, statusOf(err), err) }()

	q, err := domain.NewQuery(keyword, x, y, k)
	if err != nil {
		return TwoRoundResult{}, fmt.Errorf("two-round search: %w", err)
	}
	res, err = c.svc.TwoRoundSearch(ctx, q)
	if err != nil {
		return TwoRoundResult{}, fmt.Errorf("two-round search: %w", err)
	}
	return res, nil
}

// BasicSearch runs the first-stage query and applies the session path pair
// to every result. A missing pair does not fail the call.
func (c *Client) BasicSearch(
	ctx context.Context, keyword string, x, y float64, k int,
) (res BasicResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("basic_search", start, statusOf(err), err) }()

	q, err := domain.NewQuery(keyword, x, y, k)
	if err != nil {
		return BasicResult{}, fmt.Errorf("basic search: %w", err)
	}
	res, err = c.svc.BasicSearch(ctx, q)
	if err != nil {
		return BasicResult{}, fmt.Errorf("basic search: %w", err)
	}
	return res, nil
}

// PathComparison fetches the path pair of a first-stage session.
// It reports false when the index has no pair for cacheKey or cannot be reached.
func (c *Client) PathComparison(ctx context.Context, cacheKey string) (PathPair, bool) {
	start := time.Now()
	pair, ok := c.svc.FetchPathComparisonByCacheKey(ctx, cacheKey)
	status := "ok"
	if !ok {
		status = "miss"
	}
	c.obs.observe("path_comparison", start, status, nil)
	return pair, ok
}

// ApplyPathComparison fetches the path pair of a first-stage session and
// applies it to every record. With nil records, the results this client
// remembered from its last BasicSearch under cacheKey are used.
func (c *Client) ApplyPathComparison(ctx context.Context, cacheKey string, records []Record) (BasicResult, bool) {
	start := time.Now()
	res, ok := c.svc.ApplyPathComparison(ctx, cacheKey, records)
	status := "ok"
	if !ok {
		status = "miss"
	}
	c.obs.observe("apply_path_comparison", start, status, nil)
	return res, ok
}

// InitInfo returns index initialisation info.
func (c *Client) InitInfo(ctx context.Context) (info *InitInfo, err error) {
	start := time.Now()
	defer func() { c.obs.observe("init_info", start, statusOf(err), err) }()

	return c.svc.InitInfo(ctx)
}

// OramInfo returns index runtime counters.
func (c *Client) OramInfo(ctx context.Context) (info *OramInfo, err error) {
	start := time.Now()
	defer func() { c.obs.observe("oram_info", start, statusOf(err), err) }()

	return c.svc.OramInfo(ctx)
}
