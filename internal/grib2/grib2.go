// Package grib2 adapts GRIB edition 2 messages decoded by griblib into fields
// on a regular latitude/longitude grid.
//
// Only grid definition 3.0 and product definitions sharing the 4.0 header (4.0,
// 4.1, 4.8 and 4.11) are kept. Messages using any other template are skipped.
package grib2

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/nilsmagnus/grib/griblib"
)

var (
	// ErrNotGRIB2 is returned when the input holds no GRIB edition 2 message.
	ErrNotGRIB2 = errors.New("no GRIB2 message found")
	// ErrUnsupported is returned when every field in the input uses an unsupported template.
	ErrUnsupported = errors.New("unsupported GRIB2 template")

	errSkip = errors.New("skip field")
)

// Field is one decoded 2-D field.
type Field struct {
	Discipline int
	Category   int
	Number     int

	RefTime      time.Time
	ForecastTime time.Duration

	// First fixed surface (code table 4.5) and its scaled value, e.g. 103/10 for
	// 10 m above ground or 241/2 for the second member of an ordered sequence.
	SurfaceType  int
	SurfaceValue float64

	Grid Grid

	// Values holds Grid.Ni*Grid.Nj points in scanning order (index j*Ni+i).
	// Points masked out by the bitmap are NaN.
	Values []float64
}

// Name returns the NCEP abbreviation of the field's parameter, or a
// "var<d>_<c>_<n>" placeholder for parameters without one.
func (f *Field) Name() string {
	if name, ok := paramNames[[3]int{f.Discipline, f.Category, f.Number}]; ok {
		return name
	}
	return fmt.Sprintf("var%d_%d_%d", f.Discipline, f.Category, f.Number)
}

// ValidTime is the reference time plus the forecast time.
func (f *Field) ValidTime() time.Time {
	return f.RefTime.Add(f.ForecastTime)
}

// Grid describes a regular latitude/longitude grid (template 3.0).
type Grid struct {
	Ni, Nj     int
	Lat1, Lon1 float64
	Lat2, Lon2 float64
	ScanMode   byte
}

// Lats returns the latitude of every row j.
func (g Grid) Lats() []float64 {
	return axis(g.Lat1, g.Lat2, g.Nj)
}

// Lons returns the longitude of every column i, normalized to [0, 360).
func (g Grid) Lons() []float64 {
	lon2 := g.Lon2
	if g.ScanMode&0x80 == 0 && lon2 < g.Lon1 {
		lon2 += 360
	}
	if g.ScanMode&0x80 != 0 && lon2 > g.Lon1 {
		lon2 -= 360
	}
	lons := axis(g.Lon1, lon2, g.Ni)
	for i, v := range lons {
		lons[i] = NormalizeLon(v)
	}
	return lons
}

// NormalizeLon maps a longitude onto the provider's [0, 360) convention.
func NormalizeLon(lon float64) float64 {
	lon = math.Mod(lon, 360)
	if lon < 0 {
		lon += 360
	}
	return lon
}

func axis(first, last float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = first
		return out
	}
	step := (last - first) / float64(n-1)
	for k := range out {
		out[k] = first + step*float64(k)
	}
	return out
}

// ReadFile decodes every supported field in the file at path.
func ReadFile(path string) ([]*Field, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Read(data)
}

// Read decodes every supported field in data, which may hold several
// concatenated messages.
func Read(data []byte) ([]*Field, error) {
	start, err := frame(data)
	if err != nil {
		return nil, err
	}

	msgs, err := griblib.ReadMessages(bytes.NewReader(data[start:]))
	if err != nil {
		return nil, fmt.Errorf("decoding GRIB2: %w", err)
	}
	if len(msgs) == 0 {
		return nil, ErrNotGRIB2
	}

	fields := make([]*Field, 0, len(msgs))
	for _, m := range msgs {
		f, err := fromMessage(m)
		if errors.Is(err, errSkip) {
			continue
		}
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		return nil, ErrUnsupported
	}
	return fields, nil
}

// frame returns the offset of the first message after checking that every
// message is edition 2 and complete.
func frame(data []byte) (int, error) {
	start := bytes.Index(data, []byte("GRIB"))
	if start < 0 {
		return 0, ErrNotGRIB2
	}
	for off := start; off < len(data); {
		if len(data)-off < 16 || string(data[off:off+4]) != "GRIB" {
			return 0, fmt.Errorf("truncated GRIB indicator section at offset %d", off)
		}
		if data[off+7] != 2 {
			return 0, fmt.Errorf("GRIB edition %d at offset %d: %w", data[off+7], off, ErrNotGRIB2)
		}
		total := binary.BigEndian.Uint64(data[off+8 : off+16])
		if total < 16 || uint64(len(data)-off) < total {
			return 0, fmt.Errorf("GRIB2 message at offset %d declares %d bytes, %d available", off, total, len(data)-off)
		}
		off += int(total)
	}
	return start, nil
}

func fromMessage(m *griblib.Message) (*Field, error) {
	if m.Section3.TemplateNumber != 0 {
		return nil, fmt.Errorf("grid template 3.%d: %w", m.Section3.TemplateNumber, errSkip)
	}
	g, ok := m.Section3.Definition.(*griblib.Grid0)
	if !ok {
		return nil, fmt.Errorf("grid template 3.0 definition %T: %w", m.Section3.Definition, errSkip)
	}
	switch m.Section4.ProductDefinitionTemplateNumber {
	case 0, 1, 8, 11:
	default:
		return nil, fmt.Errorf("product template 4.%d: %w", m.Section4.ProductDefinitionTemplateNumber, errSkip)
	}

	p := m.Section4.ProductDefinitionTemplate
	unit, err := timeUnit(int(p.TimeUnitIndicator))
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, errSkip)
	}

	grid := Grid{
		Ni:       int(g.Ni),
		Nj:       int(g.Nj),
		Lat1:     degrees(int64(g.La1)),
		Lon1:     degrees(int64(g.Lo1)),
		Lat2:     degrees(int64(g.La2)),
		Lon2:     degrees(int64(g.Lo2)),
		ScanMode: byte(g.ScanningMode),
	}
	values, err := unmask(m.Data(), int(m.Section6.BitmapIndicator), m.Section6.Bitmap, grid.Ni*grid.Nj)
	if err != nil {
		return nil, err
	}

	rt := m.Section1.ReferenceTime
	return &Field{
		Discipline:   int(m.Section0.Discipline),
		Category:     int(p.ParameterCategory),
		Number:       int(p.ParameterNumber),
		RefTime:      time.Date(int(rt.Year), time.Month(rt.Month), int(rt.Day), int(rt.Hour), int(rt.Minute), int(rt.Second), 0, time.UTC),
		ForecastTime: time.Duration(p.ForecastTime) * unit,
		SurfaceType:  int(p.FirstSurface.Type),
		SurfaceValue: scaled(float64(p.FirstSurface.Value), int(int8(p.FirstSurface.Scale))),
		Grid:         grid,
		Values:       values,
	}, nil
}

// unmask spreads the decoded values over the n grid points, leaving NaN where
// the bitmap clears a point. Simple packing can leave a few padding values
// after the last point; they are dropped.
func unmask(data []float64, indicator int, bitmap []byte, n int) ([]float64, error) {
	if indicator != 0 {
		if len(data) < n {
			return nil, fmt.Errorf("decoded %d values for %d grid points", len(data), n)
		}
		return data[:n], nil
	}
	if len(bitmap)*8 < n {
		return nil, fmt.Errorf("bitmap covers %d of %d grid points", len(bitmap)*8, n)
	}

	present := 0
	for k := 0; k < n; k++ {
		if bitmap[k/8]&(0x80>>(k%8)) != 0 {
			present++
		}
	}
	expanded := len(data) == n && present != n
	if !expanded && len(data) < present {
		return nil, fmt.Errorf("bitmap marks %d points for %d decoded values", present, len(data))
	}

	out := make([]float64, n)
	next := 0
	for k := range out {
		out[k] = math.NaN()
		if bitmap[k/8]&(0x80>>(k%8)) == 0 {
			continue
		}
		if expanded {
			out[k] = data[k]
			continue
		}
		out[k] = data[next]
		next++
	}
	return out, nil
}

// degrees converts a template 3.0 coordinate in microdegrees. GRIB2 stores
// signed values as sign and magnitude; read back as a plain integer they land
// far outside any valid coordinate.
func degrees(v int64) float64 {
	switch {
	case v < -(1 << 30):
		v = -(int64(uint32(v)) & 0x7fffffff)
	case v >= 1<<31:
		v = -(v & 0x7fffffff)
	}
	return float64(v) * 1e-6
}

func scaled(value float64, scale int) float64 {
	if scale == 0 {
		return value
	}
	return value / math.Pow(10, float64(scale))
}

// timeUnit maps code table 4.4 onto a duration.
func timeUnit(code int) (time.Duration, error) {
	switch code {
	case 0:
		return time.Minute, nil
	case 1:
		return time.Hour, nil
	case 2:
		return 24 * time.Hour, nil
	case 10:
		return 3 * time.Hour, nil
	case 11:
		return 6 * time.Hour, nil
	case 12:
		return 12 * time.Hour, nil
	case 13:
		return time.Second, nil
	}
	return 0, fmt.Errorf("time range unit %d not supported", code)
}
