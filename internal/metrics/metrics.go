// Package metrics defines the process-wide Prometheus collectors exposed at
// GET /metrics, registered once at package init and
// incremented from whichever package owns the event, the same way
// internal/toolloop registers and increments tool_calls_total itself rather
// than routing every increment through a central metrics façade.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// ChatTurnTotal counts completed chat turns, emitted by the gateway's
	// Post stage.
	ChatTurnTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_turn_total",
		Help: "Total chat turns completed by the gateway.",
	})

	// ProviderLatencyMs observes per-call latency to a model provider,
	// labeled by provider id.
	ProviderLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_latency_ms",
			Help:    "Latency in milliseconds of calls to a model provider.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"provider"},
	)

	// CacheHitTotal / CacheMissTotal count Telemetry/Cache Service lookups.
	CacheHitTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hit_total",
		Help: "Total cache lookups that found a live entry.",
	})
	CacheMissTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_miss_total",
		Help: "Total cache lookups that found no live entry.",
	})

	// RateLimitedTotal counts requests rejected by the gateway's token
	// bucket.
	RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rate_limited_total",
		Help: "Total requests rejected by the rate limiter.",
	})

	// PipelineTimeoutTotal counts requests that exceeded the configured
	// global pipeline timeout.
	PipelineTimeoutTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_timeout_total",
		Help: "Total requests that exceeded the configured pipeline timeout.",
	})
)

func init() {
	prometheus.MustRegister(ChatTurnTotal, ProviderLatencyMs, CacheHitTotal, CacheMissTotal, RateLimitedTotal, PipelineTimeoutTotal)
}
