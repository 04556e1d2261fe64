package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("test", reg)

	c.RecordFetch("gfswave", FetchDownloaded, 2048)
	c.RecordFetch("gfswave", FetchDownloaded, 1024)
	c.RecordFetch("gfswave", FetchNotPublished, 0)
	c.RecordBuild("atlantic", "ok", 41)
	c.RecordBuild("atlantic", "failed", -1)
	c.RecordForecast("wave", "partial")
	c.RecordForecast("wave", "partial")
	c.RecordCleanup(3)
	c.RecordCleanup(0)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"downloaded fetches", testutil.ToFloat64(c.FetchesTotal.WithLabelValues("gfswave", FetchDownloaded)), 2},
		{"not published fetches", testutil.ToFloat64(c.FetchesTotal.WithLabelValues("gfswave", FetchNotPublished)), 1},
		{"fetched bytes", testutil.ToFloat64(c.FetchBytes.WithLabelValues("gfswave")), 3072},
		{"ok builds", testutil.ToFloat64(c.DatasetBuildsTotal.WithLabelValues("ok")), 1},
		{"failed builds", testutil.ToFloat64(c.DatasetBuildsTotal.WithLabelValues("failed")), 1},
		{"slices kept from last good build", testutil.ToFloat64(c.DatasetSlices.WithLabelValues("atlantic")), 41},
		{"partial forecasts", testutil.ToFloat64(c.ForecastsTotal.WithLabelValues("wave", "partial")), 2},
		{"deleted files", testutil.ToFloat64(c.CleanupDeletedTotal), 3},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	if n, err := testutil.GatherAndCount(reg, "test_grid_fetches_total"); err != nil || n != 2 {
		t.Errorf("expected 2 fetch series, got %d (%v)", n, err)
	}
}

func TestSetPrimaryRunReplacesLabel(t *testing.T) {
	c := NewCollector("test", prometheus.NewRegistry())
	first := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	c.SetPrimaryRun("20240501 12z", first)
	c.SetPrimaryRun("20240501 18z", first.Add(6*time.Hour))

	if n := testutil.CollectAndCount(c.PrimaryRun); n != 1 {
		t.Fatalf("expected one primary run series, got %d", n)
	}
	if got := testutil.ToFloat64(c.PrimaryRun.WithLabelValues("20240501 18z")); got != float64(first.Add(6*time.Hour).Unix()) {
		t.Errorf("primary run = %v", got)
	}
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.RecordFetch("gfs_wind", FetchFailed, 10)
	c.RecordBuild("atlantic", "ok", 1)
	c.RecordForecast("wind", "ok")
	c.RecordCleanup(1)
	c.SetPrimaryRun("20240501 12z", time.Now())
	if d := c.FetchTimer("gfs_wind").ObserveDuration(); d < 0 {
		t.Errorf("negative duration %v", d)
	}
	c.BuildTimer().ObserveDuration()
}
