package forecast

import (
	"time"

	"github.com/i474232898/offshore-forecast/internal/stations"
)

// Status summarizes how complete a forecast response is.
type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial" // some requested forecast hours are missing
	StatusStale   Status = "stale"   // served from an older cycle after a failed refresh
	StatusNoData  Status = "no_data"
)

// Wind is present only when both speed and direction are known.
type Wind struct {
	Speed     float64  `json:"speed"`     // mph
	Direction float64  `json:"direction"` // degrees, blowing from
	Gust      *float64 `json:"gust,omitempty"`
}

// Wave holds the primary wave fields, each optional, and the wind-wave fields,
// which are either all present or all absent.
type Wave struct {
	Height    *float64 `json:"height,omitempty"` // ft
	Period    *float64 `json:"period,omitempty"` // s
	Direction *float64 `json:"direction,omitempty"`

	WindHeight    *float64 `json:"wind_height,omitempty"`
	WindPeriod    *float64 `json:"wind_period,omitempty"`
	WindDirection *float64 `json:"wind_direction,omitempty"`
}

func (w *Wave) empty() bool {
	return w.Height == nil && w.Period == nil && w.Direction == nil && w.WindHeight == nil
}

// Swell is one fully populated swell partition.
type Swell struct {
	Height    float64 `json:"height"` // ft
	Period    float64 `json:"period"`
	Direction float64 `json:"direction"`
}

// Point is the forecast at one instant.
type Point struct {
	Time  time.Time `json:"time"`
	Wind  *Wind     `json:"wind,omitempty"`
	Wave  *Wave     `json:"wave,omitempty"`
	Swell []Swell   `json:"swell"`
}

// Response is a station forecast. Points are strictly ordered by time.
type Response struct {
	StationID string         `json:"station_id"`
	Name      string         `json:"name"`
	Location  stations.Point `json:"location"`
	ModelRun  string         `json:"model_run"`
	Status    Status         `json:"status"`

	HoursRequested int `json:"hours_requested"`
	HoursAcquired  int `json:"hours_acquired"`

	Forecasts []Point `json:"forecasts"`
}
