package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for exports and grid ingestion.
type Metrics struct {
	// Config export metrics.
	ConfigExports        *prometheus.CounterVec   // labels: artifact, outcome={success,error}
	ConfigExportDuration *prometheus.HistogramVec // labels: artifact

	// Grid ingestion metrics.
	GridIngests        *prometheus.CounterVec // labels: outcome={created,existing,error}
	GridIngestDuration prometheus.Histogram

	// Validation metrics.
	ValidationFailures *prometheus.CounterVec // labels: form
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}
	return &Metrics{
		ConfigExports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weathervis",
			Name:      "config_exports_total",
			Help:      help("Config artifact exports by artifact and outcome."),
		}, []string{"artifact", "outcome"}),
		ConfigExportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "weathervis",
			Name:      "config_export_duration_seconds",
			Help:      help("Duration of a single config artifact export."),
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"artifact"}),
		GridIngests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weathervis",
			Name:      "grid_ingest_total",
			Help:      help("Model grid ingestions by outcome."),
		}, []string{"outcome"}),
		GridIngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "weathervis",
			Name:      "grid_ingest_duration_seconds",
			Help:      help("Duration of a model grid ingestion, including download."),
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60},
		}),
		ValidationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weathervis",
			Name:      "validation_failures_total",
			Help:      help("Rejected station and domain forms."),
		}, []string{"form"}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(
		m.ConfigExports,
		m.ConfigExportDuration,
		m.GridIngests,
		m.GridIngestDuration,
		m.ValidationFailures,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}
