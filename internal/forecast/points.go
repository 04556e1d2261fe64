package forecast

import (
	"sort"
	"time"

	"github.com/i474232898/offshore-forecast/internal/grid"
	"github.com/i474232898/offshore-forecast/internal/units"
)

// SwellRanks is the number of swell partitions the wave model reports.
const SwellRanks = 3

// Grid keys read by the builders.
var (
	keyWindSpeed = grid.Key{Name: "WIND"}
	keyWindDir   = grid.Key{Name: "WDIR"}
	keyU         = grid.Key{Name: "UGRD"}
	keyV         = grid.Key{Name: "VGRD"}
	keyGust      = grid.Key{Name: "GUST"}

	keyHeight    = grid.Key{Name: "HTSGW"}
	keyPeriod    = grid.Key{Name: "PERPW"}
	keyDirection = grid.Key{Name: "DIRPW"}

	keyWindWaveHeight = grid.Key{Name: "WVHGT"}
	keyWindWavePeriod = grid.Key{Name: "WVPER"}
	keyWindWaveDir    = grid.Key{Name: "WVDIR"}
)

func swellKeys(rank int) (height, period, direction grid.Key) {
	return grid.Key{Name: "SWELL", Rank: rank},
		grid.Key{Name: "SWPER", Rank: rank},
		grid.Key{Name: "SWDIR", Rank: rank}
}

// Builder turns the raw values of one instant into a forecast point.
type Builder func(p grid.Point) Point

// BuildPoints applies build to every sample, renders times in loc and sorts the
// result by time. Later duplicates of a timestamp are dropped.
func BuildPoints(samples []grid.Point, build Builder, loc *time.Location) []Point {
	if loc == nil {
		loc = time.UTC
	}
	out := make([]Point, 0, len(samples))
	for _, s := range samples {
		p := build(s)
		p.Time = s.Time.In(loc)
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	dedup := out[:0]
	for _, p := range out {
		if n := len(dedup); n > 0 && dedup[n-1].Time.Equal(p.Time) {
			continue
		}
		dedup = append(dedup, p)
	}
	return dedup
}

// WavePoint builds a point from GFS-Wave fields: wind speed and direction,
// primary wave, wind waves and up to three swell partitions.
func WavePoint(p grid.Point) Point {
	out := Point{Swell: []Swell{}}

	speed, okS := p.Get(keyWindSpeed)
	dir, okD := p.Get(keyWindDir)
	if okS && okD {
		out.Wind = &Wind{Speed: units.MPH(speed), Direction: units.Bearing(dir)}
	}

	wave := &Wave{}
	if v, ok := p.Get(keyHeight); ok {
		wave.Height = ptr(units.FeetFromMeters(v))
	}
	if v, ok := p.Get(keyPeriod); ok {
		wave.Period = ptr(units.Round1(v))
	}
	if v, ok := p.Get(keyDirection); ok {
		wave.Direction = ptr(units.Bearing(v))
	}

	wh, okH := p.Get(keyWindWaveHeight)
	wp, okP := p.Get(keyWindWavePeriod)
	wd, okW := p.Get(keyWindWaveDir)
	if okH && okP && okW {
		wave.WindHeight = ptr(units.FeetFromMeters(wh))
		wave.WindPeriod = ptr(units.Round1(wp))
		wave.WindDirection = ptr(units.Bearing(wd))
	}
	if !wave.empty() {
		out.Wave = wave
	}

	for rank := 1; rank <= SwellRanks; rank++ {
		hk, pk, dk := swellKeys(rank)
		h, okH := p.Get(hk)
		per, okP := p.Get(pk)
		d, okD := p.Get(dk)
		if !okH || !okP || !okD {
			continue
		}
		out.Swell = append(out.Swell, Swell{
			Height:    units.FeetFromMeters(h),
			Period:    units.Round1(per),
			Direction: units.Bearing(d),
		})
	}
	return out
}

// WindPoint builds a point from GFS 10 m wind components and surface gust.
func WindPoint(p grid.Point) Point {
	out := Point{Swell: []Swell{}}

	u, okU := p.Get(keyU)
	v, okV := p.Get(keyV)
	if okU && okV {
		speed, dir := units.WindFromUV(u, v)
		out.Wind = &Wind{Speed: units.MPH(speed), Direction: units.Bearing(dir)}
		if g, ok := p.Get(keyGust); ok {
			out.Wind.Gust = ptr(units.MPH(g))
		}
	}
	return out
}

func ptr(v float64) *float64 { return &v }
