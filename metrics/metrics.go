// Package metrics provides Prometheus collectors for the PromptHub service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "prompthub"

var (
	// httpRequestsTotal is a counter of handled HTTP requests.
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of handled HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// httpRequestDuration is a histogram of HTTP request duration in seconds.
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets, // .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
		},
		[]string{"method", "route"},
	)

	// sceneResolvesTotal is a counter of scene resolutions.
	sceneResolvesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scene_resolves_total",
			Help:      "Total number of scene resolutions",
		},
		[]string{"status"}, // status: success, error
	)

	// sceneResolveDuration is a histogram of scene resolution duration.
	sceneResolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scene_resolve_duration_seconds",
			Help:      "Histogram of scene resolution duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"status"},
	)

	// sceneResolveSteps is a histogram of steps evaluated per resolution.
	sceneResolveSteps = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scene_resolve_steps",
			Help:      "Histogram of pipeline steps evaluated per scene resolution",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
		},
	)

	// renderErrorsTotal is a counter of template render failures by reason.
	renderErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_errors_total",
			Help:      "Total number of template render failures",
		},
		[]string{"reason"}, // reason: variables_missing, variable_invalid, template_undefined, ...
	)

	// llmRequestsTotal is a counter of LLM API calls.
	llmRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM API calls",
		},
		[]string{"operation", "status"}, // status: success, error
	)

	// llmRequestDuration is a histogram of LLM API call duration.
	llmRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of LLM API calls in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	// llmTokensTotal is a counter of tokens consumed by LLM calls.
	llmTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Total tokens consumed by LLM calls",
		},
		[]string{"operation", "type"}, // type: prompt, completion
	)

	// cacheHitsTotal is a counter of cache hits.
	cacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache"},
	)

	// cacheMissesTotal is a counter of cache misses.
	cacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache"},
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		httpRequestsTotal,
		httpRequestDuration,
		sceneResolvesTotal,
		sceneResolveDuration,
		sceneResolveSteps,
		renderErrorsTotal,
		llmRequestsTotal,
		llmRequestDuration,
		llmTokensTotal,
		cacheHitsTotal,
		cacheMissesTotal,
	}
)

// RecordHTTPRequest records a handled HTTP request.
func RecordHTTPRequest(method, route, status string, durationSeconds float64) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(durationSeconds)
}

// RecordSceneResolve records a scene resolution.
func RecordSceneResolve(status string, durationSeconds float64, steps int) {
	sceneResolvesTotal.WithLabelValues(status).Inc()
	sceneResolveDuration.WithLabelValues(status).Observe(durationSeconds)
	sceneResolveSteps.Observe(float64(steps))
}

// RecordRenderError records a template render failure.
func RecordRenderError(reason string) {
	renderErrorsTotal.WithLabelValues(reason).Inc()
}

// RecordLLMRequest records an LLM API call.
func RecordLLMRequest(operation, status string, durationSeconds float64) {
	llmRequestDuration.WithLabelValues(operation).Observe(durationSeconds)
	llmRequestsTotal.WithLabelValues(operation, status).Inc()
}

// RecordLLMTokens records token consumption from an LLM call.
func RecordLLMTokens(operation string, promptTokens, completionTokens int) {
	if promptTokens > 0 {
		llmTokensTotal.WithLabelValues(operation, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		llmTokensTotal.WithLabelValues(operation, "completion").Add(float64(completionTokens))
	}
}

// RecordCacheHit records a cache hit.
func RecordCacheHit(cache string) {
	cacheHitsTotal.WithLabelValues(cache).Inc()
}

// RecordCacheMiss records a cache miss.
func RecordCacheMiss(cache string) {
	cacheMissesTotal.WithLabelValues(cache).Inc()
}
