// Package grid holds decoded forecast data as time slices of named 2-D fields
// and extracts point series from them.
package grid

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/i474232898/offshore-forecast/internal/grib2"
	"github.com/i474232898/offshore-forecast/internal/modelrun"
)

// Sentinel is the smallest magnitude the providers use for "no value".
const Sentinel = 9.999e20

// ErrEmpty is returned when a file holds no fields.
var ErrEmpty = errors.New("no fields in grid file")

// Key identifies a variable within a slice. Rank is zero for plain fields and
// 1, 2, 3... for ordered components such as swell partitions.
type Key struct {
	Name string
	Rank int
}

func (k Key) String() string {
	if k.Rank == 0 {
		return k.Name
	}
	return fmt.Sprintf("%s#%d", k.Name, k.Rank)
}

// Slice is every field valid at one instant on one latitude/longitude grid.
type Slice struct {
	Time time.Time
	Run  modelrun.Run
	Hour int

	Lats []float64
	Lons []float64 // [0, 360)

	// Fields are stored row-major, index row*len(Lons)+col.
	Fields map[Key][]float64
}

// FromFields groups decoded fields by valid time. Fields on a grid different
// from the first field of their instant are dropped. Repeated fields without an
// ordered-sequence surface keep their first occurrence.
func FromFields(run modelrun.Run, fields []*grib2.Field) ([]*Slice, error) {
	if len(fields) == 0 {
		return nil, ErrEmpty
	}

	byTime := make(map[time.Time]*Slice)
	var order []time.Time
	for _, f := range fields {
		t := f.ValidTime().UTC()
		s, ok := byTime[t]
		if !ok {
			s = &Slice{
				Time:   t,
				Run:    run,
				Hour:   int(f.ForecastTime / time.Hour),
				Lats:   f.Grid.Lats(),
				Lons:   f.Grid.Lons(),
				Fields: make(map[Key][]float64),
			}
			byTime[t] = s
			order = append(order, t)
		}
		if len(f.Values) != len(s.Lats)*len(s.Lons) || f.Grid.Ni != len(s.Lons) {
			continue
		}

		key := Key{Name: f.Name()}
		if f.SurfaceType == grib2.SurfaceOrderedSequence {
			key.Rank = int(f.SurfaceValue)
		}
		if _, dup := s.Fields[key]; dup {
			continue
		}
		s.Fields[key] = f.Values
	}

	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })
	out := make([]*Slice, 0, len(order))
	for _, t := range order {
		out = append(out, byTime[t])
	}
	return out, nil
}

// Load decodes the grid file at path into slices.
func Load(run modelrun.Run, path string) ([]*Slice, error) {
	fields, err := grib2.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return FromFields(run, fields)
}

// SameGrid reports whether two slices share their coordinates.
func (s *Slice) SameGrid(o *Slice) bool {
	return equalAxis(s.Lats, o.Lats) && equalAxis(s.Lons, o.Lons)
}

func equalAxis(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-6 {
			return false
		}
	}
	return true
}

// Value returns the field value at (row, col) and whether it is present.
func (s *Slice) Value(key Key, row, col int) (float64, bool) {
	vals, ok := s.Fields[key]
	if !ok || row < 0 || col < 0 || row >= len(s.Lats) || col >= len(s.Lons) {
		return 0, false
	}
	return present(vals[row*len(s.Lons)+col])
}

// Locate returns the nearest grid index to a point.
func (s *Slice) Locate(lat, lon float64) (row, col int) {
	return NearestIndex(s.Lats, s.Lons, lat, lon)
}

func present(v float64) (float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) >= Sentinel {
		return 0, false
	}
	return v, true
}
