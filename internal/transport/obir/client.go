// Package obir is the HTTP client for the remote OBIR-Tree index service.
package obir

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/obirdex/internal/domain"
	"github.com/kailas-cloud/obirdex/internal/metrics"
)

// Defaults for the index service connection.
const (
	DefaultBaseURL = "http://localhost:8080"
	DefaultTimeout = 10 * time.Second
)

// Index service endpoints.
const (
	EndpointFirstStage  = domain.EndpointFirstStage
	EndpointSecondStage = domain.EndpointSecondStage
	EndpointTopK        = domain.EndpointTopK
	EndpointInitInfo    = domain.EndpointInitInfo
	EndpointOramInfo    = domain.EndpointOramInfo
)

// Config holds the index client settings.
type Config struct {
	BaseURL string
	// Timeout bounds every call, including time spent waiting on the rate limiter.
	Timeout time.Duration
	// RateLimitRPS throttles outgoing requests; 0 disables throttling.
	RateLimitRPS float64
	HTTPClient   *http.Client
	Logger       *zap.Logger
}

// Client talks to the index service over HTTP GET with query parameters.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates an index client. Zero-valued fields fall back to defaults.
func NewClient(cfg Config) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		http:    cfg.HTTPClient,
		logger:  cfg.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if cfg.RateLimitRPS > 0 {
		burst := max(1, int(cfg.RateLimitRPS))
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}
	return c
}

// BaseURL returns the index service address.
func (c *Client) BaseURL() string { return c.baseURL }

func queryParams(q domain.SearchQuery) url.Values {
	p := q.Point()
	return url.Values{
		"keyword": {q.Keyword()},
		"x":       {strconv.FormatFloat(p.X, 'f', -1, 64)},
		"y":       {strconv.FormatFloat(p.Y, 'f', -1, 64)},
		"k":       {strconv.Itoa(q.K())},
	}
}

// get performs a GET request and decodes the JSON response into out.
// Every failure is returned as a *domain.TransportError.
func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return c.fail(endpoint, start, "timeout", &domain.TransportError{
				Endpoint: endpoint, Timeout: true, Err: err,
			})
		}
	}

	u := c.baseURL + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return c.fail(endpoint, start, "network", &domain.TransportError{Endpoint: endpoint, Err: err})
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return c.fail(endpoint, start, "timeout", &domain.TransportError{
				Endpoint: endpoint, Timeout: true, Err: err,
			})
		}
		return c.fail(endpoint, start, "network", &domain.TransportError{Endpoint: endpoint, Err: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.fail(endpoint, start, "http_error", &domain.TransportError{
			Endpoint: endpoint, StatusCode: resp.StatusCode,
		})
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		if isTimeout(ctx, err) {
			return c.fail(endpoint, start, "timeout", &domain.TransportError{
				Endpoint: endpoint, Timeout: true, Err: err,
			})
		}
		return c.fail(endpoint, start, "decode", &domain.TransportError{
			Endpoint: endpoint, Err: fmt.Errorf("decode response: %w", err),
		})
	}

	duration := time.Since(start)
	metrics.BackendRequestsTotal.WithLabelValues(endpoint, "ok").Inc()
	metrics.BackendRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
	c.logger.Debug("Index request completed",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", duration),
	)
	return nil
}

func (c *Client) fail(endpoint string, start time.Time, class string, err *domain.TransportError) error {
	duration := time.Since(start)
	metrics.BackendRequestsTotal.WithLabelValues(endpoint, class).Inc()
	metrics.BackendRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
	c.logger.Debug("Index request failed",
		zap.String("endpoint", endpoint),
		zap.String("class", class),
		zap.Duration("duration", duration),
		zap.Error(err),
	)
	return err
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
