package obir

import (
	"context"
	"net/url"

	"github.com/kailas-cloud/obirdex/internal/domain"
)

// TopK runs a round query. A non-success status is rejected with *domain.BackendStatusError.
func (c *Client) TopK(ctx context.Context, q domain.SearchQuery) (*domain.TopKPage, error) {
	var resp domain.TopKPage
	if err := c.get(ctx, EndpointTopK, queryParams(q), &resp); err != nil {
		return nil, err
	}
	if resp.Status != domain.StatusSuccess {
		return nil, &domain.BackendStatusError{
			Endpoint: EndpointTopK,
			Status:   resp.Status,
			Message:  resp.Error,
		}
	}
	return &resp, nil
}

// FirstStage runs the first stage of the broadcast protocol. The status is not checked here.
func (c *Client) FirstStage(ctx context.Context, q domain.SearchQuery) (*domain.FirstStagePage, error) {
	var resp domain.FirstStagePage
	if err := c.get(ctx, EndpointFirstStage, queryParams(q), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SecondStage fetches the path pair for a first-stage cache key. The status is not checked here.
func (c *Client) SecondStage(ctx context.Context, cacheKey string) (*domain.SecondStagePage, error) {
	var resp domain.SecondStagePage
	if err := c.get(ctx, EndpointSecondStage, url.Values{"cacheKey": {cacheKey}}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// InitInfo fetches index initialisation info.
func (c *Client) InitInfo(ctx context.Context) (*domain.InitInfo, error) {
	var resp domain.InitInfo
	if err := c.get(ctx, EndpointInitInfo, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// OramInfo fetches index runtime counters.
func (c *Client) OramInfo(ctx context.Context) (*domain.OramInfo, error) {
	var resp domain.OramInfo
	if err := c.get(ctx, EndpointOramInfo, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
