package gridcache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/i474232898/offshore-forecast/internal/modelrun"
)

func TestPathForIsDeterministic(t *testing.T) {
	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	run := modelrun.Run{Date: "20240501", Cycle: 12}

	a := c.PathFor("gfs_wind", "44025", run, 3)
	b := c.PathFor("gfs_wind", "44025", run, 3)
	if a != b {
		t.Fatalf("PathFor not deterministic: %q vs %q", a, b)
	}
	if got := filepath.Base(a); got != "gfs_wind_44025_20240501_12z_f003.grib2" {
		t.Fatalf("unexpected file name %q", got)
	}
	if c.PathFor("gfs_wind", "44025", run, 6) == a {
		t.Fatal("different hours must map to different files")
	}
	if got := filepath.Base(c.PathFor("gfswave", "../x", run, 0)); strings.Contains(got, "/") || strings.HasPrefix(got, "..") {
		t.Fatalf("target not sanitized: %q", got)
	}
}

func TestSaveAndValid(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	path := c.PathFor("gfswave", "atlantic", modelrun.Run{Date: "20240501", Cycle: 0}, 0)

	if c.Valid(path) {
		t.Fatal("file should not be valid before it is saved")
	}
	if err := c.Save(path, []byte("GRIB payload")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !c.Valid(path) {
		t.Fatal("file should be valid after save")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected only the final file, found %d entries", len(entries))
	}
}

func TestCleanupKeepsCurrentRuns(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	old := modelrun.Run{Date: "20240501", Cycle: 0}
	prev := modelrun.Run{Date: "20240501", Cycle: 6}
	cur := modelrun.Run{Date: "20240501", Cycle: 12}

	for _, run := range []modelrun.Run{old, prev, cur} {
		for _, h := range []int{0, 3} {
			if err := c.Save(c.PathFor("gfs_wind", "44025", run, h), []byte("x")); err != nil {
				t.Fatalf("Save: %v", err)
			}
		}
	}
	partial := filepath.Join(dir, "gfs_wind_44025_20240501_00z_f006.grib2.part-123")
	if err := os.WriteFile(partial, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if n := c.Cleanup(cur, prev); n != 2 {
		t.Fatalf("Cleanup deleted %d files, want 2", n)
	}
	for _, h := range []int{0, 3} {
		if c.Valid(c.PathFor("gfs_wind", "44025", old, h)) {
			t.Errorf("old run hour %d should be deleted", h)
		}
		if !c.Valid(c.PathFor("gfs_wind", "44025", cur, h)) {
			t.Errorf("current run hour %d should be kept", h)
		}
		if !c.Valid(c.PathFor("gfs_wind", "44025", prev, h)) {
			t.Errorf("fallback run hour %d should be kept", h)
		}
	}
	if _, err := os.Stat(partial); err != nil {
		t.Errorf("in-flight temp file should not be touched: %v", err)
	}

	if n := c.Cleanup(cur); n != 2 {
		t.Fatalf("second Cleanup deleted %d files, want 2", n)
	}
}
