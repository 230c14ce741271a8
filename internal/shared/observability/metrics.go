package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ParsingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pyintel_parsing_seconds",
		Help:    "Time spent parsing a Python source file.",
		Buckets: prometheus.DefBuckets,
	})

	ParseDiagnosticsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pyintel_parse_diagnostics_total",
		Help: "Total number of syntax diagnostics reported by the parser.",
	})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pyintel_analysis_seconds",
		Help:    "Time spent on analysis tasks.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})

	AnalysisIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pyintel_analysis_iterations",
		Help:    "Fixed-point iterations needed per module pass.",
		Buckets: []float64{1, 2, 3, 4, 6, 8, 12, 16},
	})

	RecoveredPanicsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pyintel_analysis_recovered_panics_total",
		Help: "Total number of statements whose evaluation panicked and degraded to unknown.",
	})

	CallContextCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pyintel_call_context_cache_hits_total",
		Help: "Call-context lookups answered from the per-pass cache.",
	})

	CallContextCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pyintel_call_context_cache_misses_total",
		Help: "Call-context lookups that required walking the function body.",
	})

	ProjectEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pyintel_project_entries_total",
		Help: "Total number of module entries registered in the project state.",
	})

	DependencyEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pyintel_dependency_edges_total",
		Help: "Total number of import edges in the project dependency index.",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pyintel_analysis_queue_depth",
		Help: "Current number of entries waiting for analysis.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pyintel_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	PersistedRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pyintel_persisted_records_total",
		Help: "Module records written or rehydrated by the type database.",
	}, []string{"op"})

	PersistenceErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pyintel_persistence_errors_total",
		Help: "Type database failures by error code.",
	}, []string{"code"})
)
