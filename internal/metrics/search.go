package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search orchestration Prometheus metrics.
var (
	BackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "obirdex",
			Name:      "backend_requests_total",
			Help:      "Total number of requests sent to the OBIR index",
		},
		[]string{"endpoint", "status"}, // status: "ok" / "http_error" / "timeout" / "network" / "decode"
	)

	BackendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "obirdex",
			Name:      "backend_request_duration_seconds",
			Help:      "OBIR index request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"},
	)

	SubQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "obirdex",
			Name:      "sub_queries_total",
			Help:      "Round-2 verification sub-queries by outcome",
		},
		[]string{"result"}, // "ok" / "degraded"
	)

	PathComparisonsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "obirdex",
			Name:      "path_comparisons_total",
			Help:      "Access path comparisons by status",
		},
		[]string{"status"}, // "identical" / "differs" / "unknown"
	)

	CacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "obirdex",
			Name:      "cache_total",
			Help:      "Cache hits and misses per cache policy",
		},
		[]string{"policy", "result"}, // policy: "session" / "outcome"; result: "hit" / "miss" / "expired"
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers the search Prometheus metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(BackendRequestsTotal)
	prometheus.MustRegister(BackendRequestDuration)
	prometheus.MustRegister(SubQueriesTotal)
	prometheus.MustRegister(PathComparisonsTotal)
	prometheus.MustRegister(CacheTotal)
	searchMetricsRegistered = true
}
