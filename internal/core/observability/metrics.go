// Package observability holds the service's Prometheus collectors.
package observability

import (
	"errors"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of GeoServer calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream", "request"},
	)

	redisOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Duration of Redis operations.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op", "result"},
	)

	cacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Cache lookups by tier and outcome.",
		},
		[]string{"tier", "outcome"},
	)

	classifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deal_classifications_total",
			Help: "Deals classified by community consultation kind.",
		},
		[]string{"kind"},
	)

	filterSelections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filter_selections_total",
			Help: "Country filter requests, split by whether a filter was produced.",
		},
		[]string{"kind"},
	)

	kafkaConsumerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_consumer_errors_total",
			Help: "Invalidation consumer errors by kind.",
		},
		[]string{"kind"},
	)

	inspectEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inspect_events_total",
			Help: "Inspect events handed to the producer, by outcome.",
		},
		[]string{"outcome"},
	)
)

var initMu sync.Mutex

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal,
		httpRequestDurationSeconds,
		upstreamLatencySeconds,
		redisOpDuration,
		cacheResults,
		classifications,
		filterSelections,
		kafkaConsumerErrors,
		inspectEvents,
	}
}

// Init registers the collectors on reg. Registering twice on the same
// registry is a no-op.
func Init(reg prometheus.Registerer, enabled bool) {
	if !enabled || reg == nil {
		return
	}
	initMu.Lock()
	defer initMu.Unlock()
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			panic(err)
		}
	}
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream, request string, durationSeconds float64) {
	if request == "" {
		request = "unknown"
	}
	upstreamLatencySeconds.WithLabelValues(upstream, request).Observe(durationSeconds)
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	redisOpDuration.WithLabelValues(op, result).Observe(durationSeconds)
}

func AddCacheHits(tier string, n int) {
	if n > 0 {
		cacheResults.WithLabelValues(tier, "hit").Add(float64(n))
	}
}

func AddCacheMisses(tier string, n int) {
	if n > 0 {
		cacheResults.WithLabelValues(tier, "miss").Add(float64(n))
	}
}

func AddClassifications(kind string, n int) {
	if n > 0 {
		classifications.WithLabelValues(kind).Add(float64(n))
	}
}

// IncFilterSelection counts one filter build; filtered is false for the
// all selection.
func IncFilterSelection(filtered bool) {
	kind := "all"
	if filtered {
		kind = "country"
	}
	filterSelections.WithLabelValues(kind).Inc()
}

func IncKafkaConsumerError(kind string) {
	kafkaConsumerErrors.WithLabelValues(kind).Inc()
}

func IncInspectEvent(outcome string) {
	inspectEvents.WithLabelValues(outcome).Inc()
}
