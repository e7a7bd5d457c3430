package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// compliance pipeline.
type Metrics struct {
	ReadingsFetched    prometheus.Counter
	FetchErrors        prometheus.Counter
	ValidationFailures prometheus.Counter
	ReadingsQuarantined *prometheus.CounterVec // labels: pollutant
	PipelineRunning    prometheus.Gauge

	WindowUpdates        prometheus.Counter
	ClassificationEvents *prometheus.CounterVec // labels: tier
	EventsDeduplicated   prometheus.Counter

	LedgerAppends       prometheus.Counter
	LedgerAppendFailures prometheus.Counter

	PollCycleDuration prometheus.Histogram
	InversionFlags    prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the
// default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ReadingsFetched,
		m.FetchErrors,
		m.ValidationFailures,
		m.ReadingsQuarantined,
		m.PipelineRunning,
		m.WindowUpdates,
		m.ClassificationEvents,
		m.EventsDeduplicated,
		m.LedgerAppends,
		m.LedgerAppendFailures,
		m.PollCycleDuration,
		m.InversionFlags,
	)
	return m
}

// NewMetricsForTesting creates Metrics without touching the default
// registry, avoiding "already registered" panics across tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ReadingsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "greenpulse",
			Name:      "readings_fetched_total",
			Help:      "Total readings fetched from the ingestion connector.",
		}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "greenpulse",
			Name:      "fetch_errors_total",
			Help:      "Total failed ingestion fetches (skipped cycles per station).",
		}),
		ValidationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "greenpulse",
			Name:      "validation_failures_total",
			Help:      "Total readings rejected by the validator.",
		}),
		ReadingsQuarantined: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "greenpulse",
			Name:      "readings_quarantined_total",
			Help:      "Total pollutant values quarantined by the confidence scorer.",
		}, []string{"pollutant"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "greenpulse",
			Name:      "pipeline_running",
			Help:      "1 when the polling pipeline is active, 0 when shut down.",
		}),
		WindowUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "greenpulse",
			Name:      "window_updates_total",
			Help:      "Total readings ingested into window buffers.",
		}),
		ClassificationEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "greenpulse",
			Name:      "classification_events_total",
			Help:      "Total classification events emitted, by tier.",
		}, []string{"tier"}),
		EventsDeduplicated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "greenpulse",
			Name:      "events_deduplicated_total",
			Help:      "Total classification events suppressed as duplicates.",
		}),
		LedgerAppends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "greenpulse",
			Name:      "ledger_appends_total",
			Help:      "Total audit ledger entries appended.",
		}),
		LedgerAppendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "greenpulse",
			Name:      "ledger_append_failures_total",
			Help:      "Total failed audit ledger appends (fatal to the cycle).",
		}),
		PollCycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "greenpulse",
			Name:      "poll_cycle_duration_seconds",
			Help:      "Duration of a complete fetch-validate-classify poll cycle.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		InversionFlags: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "greenpulse",
			Name:      "inversion_flags_total",
			Help:      "Total poll cycles annotated with a likely temperature inversion.",
		}),
	}
}
