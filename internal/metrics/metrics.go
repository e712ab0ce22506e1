package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the briefing service
type Metrics struct {
	// Pipeline run metrics
	RunsStarted   prometheus.Counter
	RunsCompleted prometheus.Counter
	RunsFailed    prometheus.Counter
	RunsCancelled prometheus.Counter
	ActiveRuns    prometheus.Gauge
	RunDuration   prometheus.Histogram

	// Collector metrics
	ItemsCollected    *prometheus.CounterVec
	CollectorFailures *prometheus.CounterVec
	CollectDuration   *prometheus.HistogramVec

	// Ranking metrics
	CorpusSize        prometheus.Histogram
	DuplicatesDropped prometheus.Counter

	// Script synthesis metrics
	ScriptCorrections prometheus.Counter
	ScriptWords       prometheus.Histogram
	DurationDeviation prometheus.Histogram

	// Audio rendering metrics
	SegmentsRendered  *prometheus.CounterVec
	ProviderFallbacks prometheus.Counter
	RenderDuration    prometheus.Histogram
	AudioBytes        prometheus.Histogram

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics on the default registry
func NewMetrics() *Metrics {
	return New(prometheus.DefaultRegisterer)
}

// New creates all metrics and registers them on the given registerer
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Pipeline run metrics
		RunsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "briefing_runs_started_total",
			Help: "Total number of briefing runs started",
		}),
		RunsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "briefing_runs_completed_total",
			Help: "Total number of briefing runs that produced audio",
		}),
		RunsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "briefing_runs_failed_total",
			Help: "Total number of briefing runs that ended in an error",
		}),
		RunsCancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: "briefing_runs_cancelled_total",
			Help: "Total number of briefing runs cancelled by the caller",
		}),
		ActiveRuns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "briefing_active_runs",
			Help: "Current number of in-flight briefing runs",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "briefing_run_duration_seconds",
			Help:    "End to end duration of briefing runs",
			Buckets: prometheus.ExponentialBuckets(1, 2, 9), // 1s to ~8.5 minutes
		}),

		// Collector metrics
		ItemsCollected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "briefing_items_collected_total",
			Help: "Total number of content items fetched per source",
		}, []string{"source"}),
		CollectorFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "briefing_collector_failures_total",
			Help: "Total number of collector failures per source",
		}, []string{"source"}),
		CollectDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "briefing_collect_duration_seconds",
			Help:    "Duration of collection per source",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}, []string{"source"}),

		// Ranking metrics
		CorpusSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "briefing_corpus_size",
			Help:    "Number of items in the ranked corpus after deduplication",
			Buckets: prometheus.LinearBuckets(0, 2, 13), // 0 to 24 items
		}),
		DuplicatesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "briefing_duplicates_dropped_total",
			Help: "Total number of items dropped as cross-source duplicates",
		}),

		// Script synthesis metrics
		ScriptCorrections: factory.NewCounter(prometheus.CounterOpts{
			Name: "briefing_script_corrections_total",
			Help: "Total number of correction prompts sent after an off-target draft",
		}),
		ScriptWords: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "briefing_script_words",
			Help:    "Word count of accepted scripts",
			Buckets: prometheus.LinearBuckets(50, 50, 12), // 50 to 600 words
		}),
		DurationDeviation: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "briefing_duration_deviation_ratio",
			Help:    "Relative deviation of rendered audio from the requested duration",
			Buckets: prometheus.LinearBuckets(0, 0.05, 11), // 0% to 50%
		}),

		// Audio rendering metrics
		SegmentsRendered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "briefing_segments_rendered_total",
			Help: "Total number of audio segments rendered per provider",
		}, []string{"provider"}),
		ProviderFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "briefing_provider_fallbacks_total",
			Help: "Total number of whole-run failovers to the fallback voice provider",
		}),
		RenderDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "briefing_render_duration_seconds",
			Help:    "Duration of audio rendering per run",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 9), // 0.5s to ~2 minutes
		}),
		AudioBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "briefing_audio_bytes",
			Help:    "Size of final briefing audio in bytes",
			Buckets: prometheus.ExponentialBuckets(262144, 2, 9), // 256KB to ~64MB
		}),

		// Cache metrics
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "briefing_cache_hits_total",
			Help: "Total number of briefing cache hits",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "briefing_cache_misses_total",
			Help: "Total number of briefing cache misses",
		}),

		// HTTP API metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "briefing_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "briefing_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// RecordRunStarted increments the started counter and the active gauge
func (m *Metrics) RecordRunStarted() {
	if m == nil {
		return
	}
	m.RunsStarted.Inc()
	m.ActiveRuns.Inc()
}

// RecordRunCompleted records a successful run
func (m *Metrics) RecordRunCompleted(durationSeconds, deviation float64) {
	if m == nil {
		return
	}
	m.RunsCompleted.Inc()
	m.ActiveRuns.Dec()
	m.RunDuration.Observe(durationSeconds)
	m.DurationDeviation.Observe(deviation)
}

// RecordRunFailed records a failed run
func (m *Metrics) RecordRunFailed(durationSeconds float64) {
	if m == nil {
		return
	}
	m.RunsFailed.Inc()
	m.ActiveRuns.Dec()
	m.RunDuration.Observe(durationSeconds)
}

// RecordRunCancelled records a cancelled run
func (m *Metrics) RecordRunCancelled() {
	if m == nil {
		return
	}
	m.RunsCancelled.Inc()
	m.ActiveRuns.Dec()
}

// RecordCollection records items fetched from one source
func (m *Metrics) RecordCollection(source string, items int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.ItemsCollected.WithLabelValues(source).Add(float64(items))
	m.CollectDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordCollectorFailure increments the failure counter for one source
func (m *Metrics) RecordCollectorFailure(source string) {
	if m == nil {
		return
	}
	m.CollectorFailures.WithLabelValues(source).Inc()
}

// RecordRanking records the corpus shape after merge and dedup
func (m *Metrics) RecordRanking(corpusSize, duplicatesDropped int) {
	if m == nil {
		return
	}
	m.CorpusSize.Observe(float64(corpusSize))
	m.DuplicatesDropped.Add(float64(duplicatesDropped))
}

// RecordScriptCorrection increments the correction prompt counter
func (m *Metrics) RecordScriptCorrection() {
	if m == nil {
		return
	}
	m.ScriptCorrections.Inc()
}

// RecordScriptAccepted records the word count of an accepted script
func (m *Metrics) RecordScriptAccepted(words int) {
	if m == nil {
		return
	}
	m.ScriptWords.Observe(float64(words))
}

// RecordSegmentRendered increments the per-provider segment counter
func (m *Metrics) RecordSegmentRendered(provider string) {
	if m == nil {
		return
	}
	m.SegmentsRendered.WithLabelValues(provider).Inc()
}

// RecordProviderFallback increments the failover counter
func (m *Metrics) RecordProviderFallback() {
	if m == nil {
		return
	}
	m.ProviderFallbacks.Inc()
}

// RecordRender records a finished render pass
func (m *Metrics) RecordRender(durationSeconds float64, audioBytes int) {
	if m == nil {
		return
	}
	m.RenderDuration.Observe(durationSeconds)
	m.AudioBytes.Observe(float64(audioBytes))
}

// RecordCacheHit increments the cache hit counter
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

// RecordCacheMiss increments the cache miss counter
func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.CacheMisses.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}
