// Package nomads builds NOMADS grib filter requests for the GFS atmosphere and
// GFS-Wave products.
package nomads

import (
	"fmt"
	"math"
	"net/url"
	"strconv"

	"github.com/i474232898/offshore-forecast/internal/grib2"
	"github.com/i474232898/offshore-forecast/internal/modelrun"
)

const (
	DefaultWindURL = "https://nomads.ncep.noaa.gov/cgi-bin/filter_gfs_0p25.pl"
	DefaultWaveURL = "https://nomads.ncep.noaa.gov/cgi-bin/filter_gfswave.pl"

	DefaultBuffer   = 0.15
	DefaultWaveGrid = "atlocn.0p16"
)

// WaveVars are the GFS-Wave parameters a station forecast reads.
var WaveVars = []string{
	"WIND", "WDIR",
	"HTSGW", "PERPW", "DIRPW",
	"WVHGT", "WVPER", "WVDIR",
	"SWELL", "SWPER", "SWDIR",
}

// Target is what a request covers: a station with its coordinates, or a whole
// basin identified by name.
type Target struct {
	ID  string
	Lat float64
	Lon float64
}

// BBox is a subregion in degrees. Longitudes may be signed.
type BBox struct {
	Top, Bottom float64
	Left, Right float64
}

// set writes the subregion in the filter's 0-360 convention. A box spanning
// the prime meridian keeps its western edge negative so leftlon < rightlon.
func (b BBox) set(v url.Values) {
	left, right := grib2.NormalizeLon(b.Left), grib2.NormalizeLon(b.Right)
	if left > right {
		left -= 360
	}
	v.Set("subregion", "")
	v.Set("toplat", coord(b.Top))
	v.Set("bottomlat", coord(b.Bottom))
	v.Set("leftlon", coord(left))
	v.Set("rightlon", coord(right))
}

// Wind requests 10 m wind components and surface gust from the 0.25 degree GFS
// for a small box around a station.
type Wind struct {
	BaseURL string
	Buffer  float64
}

// Product is the file name prefix of wind files.
func (Wind) Product() string { return "gfs_wind" }

// URL builds the subset request for one forecast hour.
func (w Wind) URL(t Target, run modelrun.Run, hour int) string {
	buf := w.Buffer
	if buf <= 0 {
		buf = DefaultBuffer
	}
	base := w.BaseURL
	if base == "" {
		base = DefaultWindURL
	}

	v := url.Values{}
	v.Set("dir", fmt.Sprintf("/gfs.%s/%s/atmos", run.Date, run.CycleString()))
	v.Set("file", fmt.Sprintf("gfs.t%sz.pgrb2.0p25.f%03d", run.CycleString(), hour))
	v.Set("var_UGRD", "on")
	v.Set("var_VGRD", "on")
	v.Set("var_GUST", "on")
	v.Set("lev_10_m_above_ground", "on")
	v.Set("lev_surface", "on")
	BBox{Top: t.Lat + buf, Bottom: t.Lat - buf, Left: t.Lon - buf, Right: t.Lon + buf}.set(v)
	return base + "?" + v.Encode()
}

// Wave requests the GFS-Wave basin grid. Without a BBox the whole basin is returned.
type Wave struct {
	BaseURL string
	Grid    string
	Vars    []string
	BBox    *BBox
}

// Product is the file name prefix of wave files.
func (Wave) Product() string { return "gfswave" }

// URL builds the basin request for one forecast hour. The target only names the
// cache entry; the basin is fixed by Grid.
func (w Wave) URL(_ Target, run modelrun.Run, hour int) string {
	base := w.BaseURL
	if base == "" {
		base = DefaultWaveURL
	}
	grid := w.Grid
	if grid == "" {
		grid = DefaultWaveGrid
	}
	vars := w.Vars
	if len(vars) == 0 {
		vars = WaveVars
	}

	v := url.Values{}
	v.Set("dir", fmt.Sprintf("/gfs.%s/%s/wave/gridded", run.Date, run.CycleString()))
	v.Set("file", fmt.Sprintf("gfswave.t%sz.%s.f%03d.grib2", run.CycleString(), grid, hour))
	for _, name := range vars {
		v.Set("var_"+name, "on")
	}
	v.Set("all_lev", "on")
	if w.BBox != nil {
		w.BBox.set(v)
	}
	return base + "?" + v.Encode()
}

func coord(deg float64) string {
	return strconv.FormatFloat(math.Round(deg*1e4)/1e4, 'f', -1, 64)
}
