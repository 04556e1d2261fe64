package grid

import (
	"math"
	"time"

	"github.com/i474232898/offshore-forecast/internal/grib2"
)

// Sample is one value of a point series. Valid is false when the provider had
// no value for that instant.
type Sample struct {
	Time  time.Time
	Value float64
	Valid bool
}

// NearestIndex finds the grid index closest to (lat, lon) with two independent
// one-dimensional searches. lon may use either the signed or the 0-360
// convention; lons must use 0-360.
func NearestIndex(lats, lons []float64, lat, lon float64) (row, col int) {
	return Nearest(lats, lat), Nearest(lons, grib2.NormalizeLon(lon))
}

// Nearest returns the index of the axis value with the smallest absolute
// difference from v. Ties go to the lower index. It returns -1 for an empty axis.
func Nearest(axis []float64, v float64) int {
	best, bestDiff := -1, math.Inf(1)
	for i, a := range axis {
		if d := math.Abs(a - v); d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return best
}

// Extract returns the series of key at (row, col), one sample per slice and in
// slice order. Slices lacking the field yield invalid samples.
func Extract(slices []*Slice, row, col int, key Key) []Sample {
	out := make([]Sample, len(slices))
	for i, s := range slices {
		v, ok := s.Value(key, row, col)
		out[i] = Sample{Time: s.Time, Value: v, Valid: ok}
	}
	return out
}

// Point holds every field of a slice sampled at one grid cell.
type Point struct {
	Time   time.Time
	Values map[Key]float64
}

// Get returns the value of key and whether it is present.
func (p Point) Get(key Key) (float64, bool) {
	v, ok := p.Values[key]
	return v, ok
}

// SamplePoint samples every field of s at the grid cell nearest to (lat, lon).
func SamplePoint(s *Slice, lat, lon float64) Point {
	row, col := s.Locate(lat, lon)
	return sampleAt(s, row, col)
}

// SampleAll samples every slice at (row, col).
func SampleAll(slices []*Slice, row, col int) []Point {
	out := make([]Point, len(slices))
	for i, s := range slices {
		out[i] = sampleAt(s, row, col)
	}
	return out
}

func sampleAt(s *Slice, row, col int) Point {
	p := Point{Time: s.Time, Values: make(map[Key]float64, len(s.Fields))}
	for key := range s.Fields {
		if v, ok := s.Value(key, row, col); ok {
			p.Values[key] = v
		}
	}
	return p
}
