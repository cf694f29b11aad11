package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline metrics. Registered explicitly from the composition root via
// RegisterPipelineMetrics (no init()) so tests can construct pipeline
// components without touching the default registry.
var (
	// StageDuration tracks wall-clock time per orchestrator stage.
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kindred",
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Duration of each search pipeline stage",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10},
		},
		[]string{"stage"},
	)

	// ExternalCallsTotal counts calls to external collaborators by outcome.
	ExternalCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kindred",
			Name:      "external_calls_total",
			Help:      "Calls to external services (places, geocode, history, reasoning, vision)",
		},
		[]string{"service", "status"},
	)

	// RateLimitRejectionsTotal counts blocked searches by identity scope.
	RateLimitRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kindred",
			Name:      "ratelimit_rejections_total",
			Help:      "Searches rejected by the rate limiter",
		},
		[]string{"scope"},
	)

	// CacheLookupsTotal counts results-cache reads by outcome (hit/miss).
	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kindred",
			Name:      "results_cache_lookups_total",
			Help:      "Results cache lookups",
		},
		[]string{"result"},
	)

	// EnrichmentTimeoutsTotal counts image-analysis calls dropped on deadline.
	EnrichmentTimeoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kindred",
			Name:      "enrichment_image_timeouts_total",
			Help:      "Image analysis calls abandoned at the per-call deadline",
		},
	)
)

// RegisterPipelineMetrics registers pipeline metrics with the default registry.
func RegisterPipelineMetrics() {
	prometheus.MustRegister(
		StageDuration,
		ExternalCallsTotal,
		RateLimitRejectionsTotal,
		CacheLookupsTotal,
		EnrichmentTimeoutsTotal,
	)
}
