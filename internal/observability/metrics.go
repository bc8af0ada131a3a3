package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the thesis service.
// Metrics are organized by subsystem: research runs, queries, searches, sources,
// uploads, and LLM operations. All counters and histograms are
// registered via promauto for automatic registration with the default Prometheus registry.
type Metrics struct {
	// RunsStarted counts the total number of research runs initiated.
	RunsStarted prometheus.Counter

	// RunsCompleted counts the total number of runs that finished successfully.
	RunsCompleted prometheus.Counter

	// RunsFailed counts the total number of runs that ended in failure.
	RunsFailed prometheus.Counter

	// RunDuration observes the end-to-end duration of research runs in seconds.
	RunDuration prometheus.Histogram

	// QueriesGenerated counts the total number of search queries generated across all runs.
	QueriesGenerated prometheus.Counter

	// QueriesPerRun observes the distribution of query counts per run.
	QueriesPerRun prometheus.Histogram

	// SearchesStarted counts searches initiated, labeled by provider.
	SearchesStarted *prometheus.CounterVec

	// SearchesCompleted counts successful searches, labeled by provider.
	SearchesCompleted *prometheus.CounterVec

	// SearchesFailed counts failed searches, labeled by provider.
	SearchesFailed *prometheus.CounterVec

	// SearchDuration observes search duration in seconds, labeled by provider.
	SearchDuration *prometheus.HistogramVec

	// SourcesPerSearch observes the distribution of sources returned per search, labeled by provider.
	SourcesPerSearch *prometheus.HistogramVec

	// SourcesFound counts the total number of unique sources discovered.
	SourcesFound prometheus.Counter

	// SourcesByProvider counts sources discovered, labeled by provider.
	SourcesByProvider *prometheus.CounterVec

	// SourcesDuplicate counts the total number of duplicate sources removed during deduplication.
	SourcesDuplicate prometheus.Counter

	// SourcesRanked counts the total number of sources scored by the ranking stage.
	SourcesRanked prometheus.Counter

	// SourcesSelected counts the total number of sources chosen for ingestion.
	SourcesSelected prometheus.Counter

	// SourcesReplaced counts the total number of failed sources replaced by alternates.
	SourcesReplaced prometheus.Counter

	// UploadsStarted counts source uploads initiated.
	UploadsStarted prometheus.Counter

	// UploadsCompleted counts source uploads that completed successfully.
	UploadsCompleted prometheus.Counter

	// UploadsFailed counts source uploads that failed.
	UploadsFailed prometheus.Counter

	// UploadDuration observes upload duration in seconds, including retrieval-store processing.
	UploadDuration prometheus.Histogram

	// LLMRequestsTotal counts LLM API requests, labeled by operation and model.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMRequestsFailed counts failed LLM API requests, labeled by operation, model, and error type.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMRequestDuration observes LLM API request duration in seconds, labeled by operation and model.
	LLMRequestDuration *prometheus.HistogramVec

	// LLMTokensUsed counts tokens consumed by LLM operations, labeled by operation, model, and token type.
	LLMTokensUsed *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Research runs
		RunsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of research runs started",
		}),
		RunsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_completed_total",
			Help:      "Total number of research runs completed successfully",
		}),
		RunsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_failed_total",
			Help:      "Total number of research runs that failed",
		}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of research runs in seconds",
			Buckets:   []float64{30, 60, 120, 300, 600, 1200, 1800, 3600},
		}),

		// Queries
		QueriesGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_generated_total",
			Help:      "Total number of search queries generated",
		}),
		QueriesPerRun: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "queries_per_run",
			Help:      "Number of search queries generated per run",
			Buckets:   []float64{4, 8, 16, 24, 32, 48, 64},
		}),

		// Searches
		SearchesStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_started_total",
			Help:      "Total number of searches started by provider",
		}, []string{"provider"}),
		SearchesCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_completed_total",
			Help:      "Total number of searches completed by provider",
		}, []string{"provider"}),
		SearchesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_failed_total",
			Help:      "Total number of searches failed by provider",
		}, []string{"provider"}),
		SearchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of provider searches in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),
		SourcesPerSearch: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sources_per_search",
			Help:      "Number of sources returned per search",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100},
		}, []string{"provider"}),

		// Sources
		SourcesFound: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sources_found_total",
			Help:      "Total number of unique sources discovered",
		}),
		SourcesByProvider: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sources_by_provider_total",
			Help:      "Total number of sources discovered by provider",
		}, []string{"provider"}),
		SourcesDuplicate: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sources_duplicate_total",
			Help:      "Total number of duplicate sources removed",
		}),
		SourcesRanked: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sources_ranked_total",
			Help:      "Total number of sources scored by ranking",
		}),
		SourcesSelected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sources_selected_total",
			Help:      "Total number of sources selected for ingestion",
		}),
		SourcesReplaced: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sources_replaced_total",
			Help:      "Total number of failed sources replaced by alternates",
		}),

		// Uploads
		UploadsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_started_total",
			Help:      "Total number of source uploads started",
		}),
		UploadsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_completed_total",
			Help:      "Total number of source uploads completed successfully",
		}),
		UploadsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_failed_total",
			Help:      "Total number of source uploads that failed",
		}),
		UploadDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_duration_seconds",
			Help:      "Duration of source uploads in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),

		// LLM
		LLMRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests by operation",
		}, []string{"operation", "model"}),
		LLMRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_failed_total",
			Help:      "Total number of failed LLM requests by operation",
		}, []string{"operation", "model", "error_type"}),
		LLMRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of LLM requests in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"operation", "model"}),
		LLMTokensUsed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used by LLM operations",
		}, []string{"operation", "model", "token_type"}),
	}
}

// RecordRunStarted records that a research run has started.
func (m *Metrics) RecordRunStarted() {
	m.RunsStarted.Inc()
}

// RecordRunCompleted records that a research run has completed.
func (m *Metrics) RecordRunCompleted(durationSeconds float64) {
	m.RunsCompleted.Inc()
	m.RunDuration.Observe(durationSeconds)
}

// RecordRunFailed records that a research run has failed.
func (m *Metrics) RecordRunFailed(durationSeconds float64) {
	m.RunsFailed.Inc()
	m.RunDuration.Observe(durationSeconds)
}

// RecordQueriesGenerated records query generation results.
func (m *Metrics) RecordQueriesGenerated(count int) {
	m.QueriesGenerated.Add(float64(count))
	m.QueriesPerRun.Observe(float64(count))
}

// RecordSearchStarted records that a search has started.
func (m *Metrics) RecordSearchStarted(provider string) {
	m.SearchesStarted.WithLabelValues(provider).Inc()
}

// RecordSearchCompleted records that a search has completed.
func (m *Metrics) RecordSearchCompleted(provider string, sourceCount int, durationSeconds float64) {
	m.SearchesCompleted.WithLabelValues(provider).Inc()
	m.SearchDuration.WithLabelValues(provider).Observe(durationSeconds)
	m.SourcesPerSearch.WithLabelValues(provider).Observe(float64(sourceCount))
}

// RecordSearchFailed records that a search has failed.
func (m *Metrics) RecordSearchFailed(provider string, durationSeconds float64) {
	m.SearchesFailed.WithLabelValues(provider).Inc()
	m.SearchDuration.WithLabelValues(provider).Observe(durationSeconds)
}

// RecordSourcesFound records sources discovered from a provider.
func (m *Metrics) RecordSourcesFound(provider string, count int) {
	m.SourcesFound.Add(float64(count))
	m.SourcesByProvider.WithLabelValues(provider).Add(float64(count))
}

// RecordSourceDuplicates records duplicate sources removed during deduplication.
func (m *Metrics) RecordSourceDuplicates(count int) {
	m.SourcesDuplicate.Add(float64(count))
}

// RecordSourcesRanked records sources scored by the ranking stage.
func (m *Metrics) RecordSourcesRanked(count int) {
	m.SourcesRanked.Add(float64(count))
}

// RecordSourcesSelected records sources chosen for ingestion.
func (m *Metrics) RecordSourcesSelected(count int) {
	m.SourcesSelected.Add(float64(count))
}

// RecordSourceReplaced records a failed source replaced by an alternate.
func (m *Metrics) RecordSourceReplaced() {
	m.SourcesReplaced.Inc()
}

// RecordUploadStarted records that a source upload has started.
func (m *Metrics) RecordUploadStarted() {
	m.UploadsStarted.Inc()
}

// RecordUploadCompleted records that a source upload has completed.
func (m *Metrics) RecordUploadCompleted(durationSeconds float64) {
	m.UploadsCompleted.Inc()
	m.UploadDuration.Observe(durationSeconds)
}

// RecordUploadFailed records that a source upload has failed.
func (m *Metrics) RecordUploadFailed() {
	m.UploadsFailed.Inc()
}

// RecordLLMRequest records an LLM request.
func (m *Metrics) RecordLLMRequest(operation, model string, durationSeconds float64, inputTokens, outputTokens int) {
	m.LLMRequestsTotal.WithLabelValues(operation, model).Inc()
	m.LLMRequestDuration.WithLabelValues(operation, model).Observe(durationSeconds)
	m.LLMTokensUsed.WithLabelValues(operation, model, "input").Add(float64(inputTokens))
	m.LLMTokensUsed.WithLabelValues(operation, model, "output").Add(float64(outputTokens))
}

// RecordLLMRequestFailed records a failed LLM request.
func (m *Metrics) RecordLLMRequestFailed(operation, model, errorType string) {
	m.LLMRequestsFailed.WithLabelValues(operation, model, errorType).Inc()
}
