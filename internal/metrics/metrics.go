package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for grid file acquisitions.
const (
	FetchCached       = "cached"
	FetchDownloaded   = "downloaded"
	FetchNotPublished = "not_published"
	FetchFailed       = "failed"
)

// Collector holds the service's prometheus metrics. A nil *Collector is valid
// and records nothing.
type Collector struct {
	// Acquisition
	FetchesTotal  *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	FetchBytes    *prometheus.CounterVec

	// Datasets
	DatasetBuildsTotal *prometheus.CounterVec
	DatasetBuild       prometheus.Histogram
	DatasetSlices      *prometheus.GaugeVec

	// Forecasts
	ForecastsTotal *prometheus.CounterVec

	// Grid file cache
	CleanupDeletedTotal prometheus.Counter
	PrimaryRun          *prometheus.GaugeVec
}

// NewCollector registers the metrics on reg under namespace.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		FetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "grid_fetches_total",
				Help:      "Grid file acquisitions by product and outcome",
			},
			[]string{"product", "outcome"},
		),

		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "grid_fetch_duration_seconds",
				Help:      "Duration of grid file downloads from the provider",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"product"},
		),

		FetchBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "grid_fetch_bytes_total",
				Help:      "Bytes of grid data downloaded by product",
			},
			[]string{"product"},
		),

		DatasetBuildsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dataset_builds_total",
				Help:      "Basin dataset assemblies by outcome",
			},
			[]string{"outcome"},
		),

		DatasetBuild: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dataset_build_duration_seconds",
				Help:      "Duration of basin dataset assembly",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			},
		),

		DatasetSlices: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dataset_slices",
				Help:      "Time slices held by the cached dataset of a target",
			},
			[]string{"target"},
		),

		ForecastsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "forecasts_total",
				Help:      "Station forecast requests by product and result status",
			},
			[]string{"product", "status"},
		),

		CleanupDeletedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "grid_cleanup_deleted_total",
				Help:      "Grid files deleted because their model run was superseded",
			},
		),

		PrimaryRun: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "primary_run_timestamp_seconds",
				Help:      "Nominal time of the current primary model run",
			},
			[]string{"run"},
		),
	}
}

// Timer measures one operation.
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

// NewTimer starts a timer reporting to observer. observer may be nil.
func NewTimer(observer prometheus.Observer) *Timer {
	return &Timer{start: time.Now(), observer: observer}
}

// ObserveDuration records the elapsed time since the timer started.
func (t *Timer) ObserveDuration() time.Duration {
	d := time.Since(t.start)
	if t.observer != nil {
		t.observer.Observe(d.Seconds())
	}
	return d
}

// FetchTimer starts a timer for one download of product.
func (c *Collector) FetchTimer(product string) *Timer {
	if c == nil {
		return NewTimer(nil)
	}
	return NewTimer(c.FetchDuration.WithLabelValues(product))
}

// RecordFetch counts one acquisition outcome.
func (c *Collector) RecordFetch(product, outcome string, bytes int) {
	if c == nil {
		return
	}
	c.FetchesTotal.WithLabelValues(product, outcome).Inc()
	if bytes > 0 {
		c.FetchBytes.WithLabelValues(product).Add(float64(bytes))
	}
}

// BuildTimer starts a timer for one dataset assembly.
func (c *Collector) BuildTimer() *Timer {
	if c == nil {
		return NewTimer(nil)
	}
	return NewTimer(c.DatasetBuild)
}

// RecordBuild counts one dataset assembly and the slices it produced.
func (c *Collector) RecordBuild(target, outcome string, slices int) {
	if c == nil {
		return
	}
	c.DatasetBuildsTotal.WithLabelValues(outcome).Inc()
	if slices >= 0 {
		c.DatasetSlices.WithLabelValues(target).Set(float64(slices))
	}
}

// RecordForecast counts one station forecast result.
func (c *Collector) RecordForecast(product, status string) {
	if c == nil {
		return
	}
	c.ForecastsTotal.WithLabelValues(product, status).Inc()
}

// RecordCleanup counts deleted grid files.
func (c *Collector) RecordCleanup(deleted int) {
	if c == nil || deleted <= 0 {
		return
	}
	c.CleanupDeletedTotal.Add(float64(deleted))
}

// SetPrimaryRun exposes the current primary run, replacing the previous one.
func (c *Collector) SetPrimaryRun(label string, nominal time.Time) {
	if c == nil {
		return
	}
	c.PrimaryRun.Reset()
	c.PrimaryRun.WithLabelValues(label).Set(float64(nominal.Unix()))
}
