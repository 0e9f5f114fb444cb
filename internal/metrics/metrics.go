// Package metrics exposes Prometheus collectors for the map service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DatasetLoadSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "comunas_dataset_load_seconds",
		Help:    "Time spent fetching and deriving the topology dataset",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})
	DatasetLoadFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "comunas_dataset_load_failures_total",
		Help: "Total failed dataset loads",
	})
	DatasetRegions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "comunas_dataset_regions",
		Help: "Number of region records in the loaded dataset",
	})
	DatasetLabelsSkipped = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "comunas_dataset_labels_skipped",
		Help: "Regions without a label point (missing or degenerate geometry)",
	})
	MutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comunas_mutations_total",
		Help: "Assignment and legend mutations by operation",
	}, []string{"op"})
	StorageErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comunas_storage_errors_total",
		Help: "Storage read/write failures by operation",
	}, []string{"op"})
	CSVImportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comunas_csv_imports_total",
		Help: "CSV imports by result",
	}, []string{"result"})
	CSVExportsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "comunas_csv_exports_total",
		Help: "Total CSV exports",
	})
)

func init() {
	prometheus.MustRegister(DatasetLoadSeconds)
	prometheus.MustRegister(DatasetLoadFailuresTotal)
	prometheus.MustRegister(DatasetRegions)
	prometheus.MustRegister(DatasetLabelsSkipped)
	prometheus.MustRegister(MutationsTotal)
	prometheus.MustRegister(StorageErrorsTotal)
	prometheus.MustRegister(CSVImportsTotal)
	prometheus.MustRegister(CSVExportsTotal)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
