package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "shootings_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// reconciliation pipeline.
type Metrics struct {
	RowsLoaded       *prometheus.CounterVec // labels: source={events,facts,dictionary,homicides,spending,boundaries}
	EventsReconciled *prometheus.CounterVec // labels: match_source={spatial,key,none}
	IncomeBackfills  prometheus.Counter
	ValidationIssues prometheus.Counter
	PipelineRunning  prometheus.Gauge
	RunDuration      prometheus.Histogram
	LastRunSuccess   prometheus.Gauge

	// Sink metrics.
	SinkWrites *prometheus.CounterVec // labels: sink
	SinkErrors *prometheus.CounterVec // labels: sink

	// Locator cache metrics.
	LocatorCache *prometheus.CounterVec // labels: result={hit,miss}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RowsLoaded,
		m.EventsReconciled,
		m.IncomeBackfills,
		m.ValidationIssues,
		m.PipelineRunning,
		m.RunDuration,
		m.LastRunSuccess,
		m.SinkWrites,
		m.SinkErrors,
		m.LocatorCache,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RowsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_loaded_total",
			Help:      "Rows read from each input dataset.",
		}, []string{"source"}),
		EventsReconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_reconciled_total",
			Help:      "Events by the reconciliation pass that assigned their county.",
		}, []string{"match_source"}),
		IncomeBackfills: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "income_backfills_total",
			Help:      "Events whose income came from the state summary row.",
		}),
		ValidationIssues: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_issues_total",
			Help:      "Event fields that failed validation (reported, not dropped).",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is in progress.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete load-reconcile-sink run.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		LastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the most recent run completed without error.",
		}),
		SinkWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_writes_total",
			Help:      "Records written by each sink.",
		}, []string{"sink"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Failed batch writes by sink.",
		}, []string{"sink"}),
		LocatorCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locator_cache_total",
			Help:      "County locator cache lookups by result.",
		}, []string{"result"}),
	}
}

// CacheHit and CacheMiss let Metrics observe the county locator cache.
func (m *Metrics) CacheHit() { m.LocatorCache.WithLabelValues("hit").Inc() }

func (m *Metrics) CacheMiss() { m.LocatorCache.WithLabelValues("miss").Inc() }
