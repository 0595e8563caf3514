package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	questionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_questions_total",
			Help: "Total number of natural-language questions processed, by classified query kind.",
		},
		[]string{"kind"},
	)
	unsafeQueriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askdb_unsafe_queries_total",
			Help: "Total number of candidate queries rejected by the read-only check.",
		},
	)
	generationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_generation_failures_total",
			Help: "Total number of text-generation failures by pipeline stage.",
		},
		[]string{"stage"},
	)
	llmLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdb_llm_latency_ms",
			Help:    "Text-generation call latency in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000, 20000},
		},
	)
	previewDurationMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdb_preview_duration_ms",
			Help:    "Preview query execution latency in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		},
	)
	previewCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_preview_cache_total",
			Help: "Preview cache lookups by result (hit, miss, refresh).",
		},
		[]string{"result"},
	)
	introspectionDurationMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdb_introspection_duration_ms",
			Help:    "Schema introspection pass latency in milliseconds.",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 5000, 15000, 60000},
		},
	)
	schemaTables = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "askdb_schema_tables",
			Help: "Number of tables in the active schema snapshot.",
		},
	)
	historyArchivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askdb_history_archived_total",
			Help: "Total number of history entries written to the archive.",
		},
	)
	archiveFilesDeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askdb_archive_files_deleted_total",
			Help: "Total number of archive files deleted by retention runs.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		questionsTotal,
		unsafeQueriesTotal,
		generationFailuresTotal,
		llmLatencyMs,
		previewDurationMs,
		previewCacheTotal,
		introspectionDurationMs,
		schemaTables,
		historyArchivedTotal,
		archiveFilesDeletedTotal,
	)
}

func ObserveQuestion(kind string) {
	if kind == "" {
		kind = "UNKNOWN"
	}
	questionsTotal.WithLabelValues(kind).Inc()
}

func IncrementUnsafeQuery() {
	unsafeQueriesTotal.Inc()
}

func IncrementGenerationFailure(stage string) {
	generationFailuresTotal.WithLabelValues(stage).Inc()
}

func ObserveLLMLatency(elapsed time.Duration) {
	llmLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func ObservePreview(elapsed time.Duration) {
	previewDurationMs.Observe(float64(elapsed.Milliseconds()))
}

func ObservePreviewCache(result string) {
	previewCacheTotal.WithLabelValues(result).Inc()
}

func ObserveIntrospection(elapsed time.Duration, tables int) {
	introspectionDurationMs.Observe(float64(elapsed.Milliseconds()))
	if tables < 0 {
		tables = 0
	}
	schemaTables.Set(float64(tables))
}

func AddHistoryArchived(count int) {
	if count > 0 {
		historyArchivedTotal.Add(float64(count))
	}
}

func AddArchiveFilesDeleted(count int) {
	if count > 0 {
		archiveFilesDeletedTotal.Add(float64(count))
	}
}
