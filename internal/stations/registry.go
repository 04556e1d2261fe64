package stations

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

// ErrInvalid is returned for registry entries without a usable id or location.
var ErrInvalid = errors.New("invalid station")

// Point is a GeoJSON point. Coordinates are [lon, lat].
type Point struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// Station is one monitoring station.
type Station struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location Point  `json:"location"`
	Type     string `json:"type,omitempty"`
}

// Lat is the station latitude.
func (s Station) Lat() float64 { return s.Location.Coordinates[1] }

// Lon is the station longitude (signed).
func (s Station) Lon() float64 { return s.Location.Coordinates[0] }

func (s Station) validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalid)
	}
	if len(s.Location.Coordinates) != 2 {
		return fmt.Errorf("%w: %s has %d coordinates", ErrInvalid, s.ID, len(s.Location.Coordinates))
	}
	lon, lat := s.Location.Coordinates[0], s.Location.Coordinates[1]
	if lat < -90 || lat > 90 || lon < -180 || lon > 360 {
		return fmt.Errorf("%w: %s at (%v, %v)", ErrInvalid, s.ID, lon, lat)
	}
	return nil
}

// Registry is the read-only station list.
type Registry struct {
	mu       sync.RWMutex
	stations []Station
	byID     map[string]Station
}

// New builds a Registry. Duplicate ids keep the first entry.
func New(list []Station) (*Registry, error) {
	r := &Registry{byID: make(map[string]Station, len(list))}
	for _, s := range list {
		if err := s.validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byID[s.ID]; dup {
			continue
		}
		if s.Location.Type == "" {
			s.Location.Type = "Point"
		}
		r.byID[s.ID] = s
		r.stations = append(r.stations, s)
	}
	return r, nil
}

// Load reads a JSON array of stations from path.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stations: %w", err)
	}
	var list []Station
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse stations %s: %w", path, err)
	}
	return New(list)
}

// All returns every station in file order.
func (r *Registry) All() []Station {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Station, len(r.stations))
	copy(result, r.stations)
	return result
}

// Get returns a station by id.
func (r *Registry) Get(id string) (Station, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byID[id]
	return s, ok
}

// Len is the number of stations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stations)
}

// Feature is a GeoJSON feature for one station.
type Feature struct {
	Type       string            `json:"type"`
	Geometry   Point             `json:"geometry"`
	Properties map[string]string `json:"properties"`
}

// FeatureCollection is a GeoJSON feature collection.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// GeoJSON renders stations as a FeatureCollection.
func GeoJSON(list []Station) FeatureCollection {
	fc := FeatureCollection{Type: "FeatureCollection", Features: make([]Feature, 0, len(list))}
	for _, s := range list {
		fc.Features = append(fc.Features, Feature{
			Type:       "Feature",
			Geometry:   s.Location,
			Properties: map[string]string{"id": s.ID, "name": s.Name},
		})
	}
	return fc
}
