package stations

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sample = `[
  {"id": "44025", "name": "Long Island", "location": {"type": "Point", "coordinates": [-73.164, 40.251]}},
  {"id": "41001", "name": "East Hatteras", "location": {"type": "Point", "coordinates": [-72.317, 34.724]}},
  {"id": "44025", "name": "duplicate", "location": {"type": "Point", "coordinates": [0, 0]}}
]`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stations.json")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 stations, got %d", r.Len())
	}
	s, ok := r.Get("44025")
	if !ok || s.Name != "Long Island" || s.Lat() != 40.251 || s.Lon() != -73.164 {
		t.Fatalf("unexpected station %+v", s)
	}
	if _, ok := r.Get("nope"); ok {
		t.Fatal("expected unknown station to be missing")
	}

	all := r.All()
	all[0].Name = "changed"
	if s, _ := r.Get("44025"); s.Name != "Long Island" {
		t.Fatal("All must return a copy")
	}
}

func TestNewRejectsBadCoordinates(t *testing.T) {
	_, err := New([]Station{{ID: "x", Location: Point{Coordinates: []float64{1}}}})
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	_, err = New([]Station{{ID: "x", Location: Point{Coordinates: []float64{-70, 95}}}})
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestGeoJSON(t *testing.T) {
	fc := GeoJSON([]Station{{ID: "44025", Name: "Long Island", Location: Point{Type: "Point", Coordinates: []float64{-73.1, 40.2}}}})
	if fc.Type != "FeatureCollection" || len(fc.Features) != 1 {
		t.Fatalf("unexpected collection %+v", fc)
	}
	f := fc.Features[0]
	if f.Type != "Feature" || f.Properties["id"] != "44025" || f.Geometry.Coordinates[0] != -73.1 {
		t.Fatalf("unexpected feature %+v", f)
	}
}
