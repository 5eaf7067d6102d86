package obirdex

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	baseURL      string
	timeout      time.Duration
	httpClient   *http.Client
	rateLimitRPS float64

	maxConcurrent int
	outcomeSize   int
	outcomeTTL    time.Duration
	sessionTTL    time.Duration

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithBaseURL sets the index service address. Default: http://localhost:8080.
func WithBaseURL(u string) Option {
	return optionFunc(func(c *clientConfig) {
		c.baseURL = u
	})
}

// WithTimeout bounds every index call. Default: 10s.
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.timeout = d
	})
}

// WithHTTPClient replaces the HTTP client used for index calls.
func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(c *clientConfig) {
		c.httpClient = hc
	})
}

// WithRateLimit throttles outgoing index calls to rps requests per second.
func WithRateLimit(rps float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.rateLimitRPS = rps
	})
}

// WithMaxConcurrentSubQueries bounds in-flight round-2 calls.
// Default: 0, one concurrent call per round-1 result.
func WithMaxConcurrentSubQueries(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxConcurrent = n
	})
}

// WithOutcomeCache memoises up to size fully successful two-round results for ttl.
// Disabled by default.
func WithOutcomeCache(size int, ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.outcomeSize = size
		c.outcomeTTL = ttl
	})
}

// WithSessionTTL sets how long a BasicSearch session pair is reused. Default: 10m.
func WithSessionTTL(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.sessionTTL = d
	})
}

// WithLogger enables structured logging for client operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
