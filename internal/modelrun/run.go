package modelrun

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoCycle is returned when no forecast cycle has cleared its publish latency yet.
var ErrNoCycle = errors.New("no model cycle currently available")

const dateLayout = "20060102"

// Run identifies one forecast generation: a publication date and a nominal cycle hour (UTC).
// Runs are plain values and compare with ==.
type Run struct {
	Date  string `json:"date"`  // YYYYMMDD
	Cycle int    `json:"cycle"` // 0, 6, 12 or 18 for a 6-hour spacing
}

// At returns the Run whose nominal time is t, truncated to the hour.
func At(t time.Time) Run {
	t = t.UTC()
	return Run{Date: t.Format(dateLayout), Cycle: t.Hour()}
}

// Parse builds a Run from a YYYYMMDD date and a cycle hour.
func Parse(date string, cycle int) (Run, error) {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return Run{}, fmt.Errorf("invalid run date %q: %w", date, err)
	}
	if cycle < 0 || cycle > 23 {
		return Run{}, fmt.Errorf("invalid cycle hour %d", cycle)
	}
	return Run{Date: date, Cycle: cycle}, nil
}

// Time is the nominal cycle time.
func (r Run) Time() time.Time {
	d, err := time.Parse(dateLayout, r.Date)
	if err != nil {
		return time.Time{}
	}
	return d.Add(time.Duration(r.Cycle) * time.Hour)
}

// ValidTime is the absolute time a forecast-hour offset of this run represents.
func (r Run) ValidTime(hour int) time.Time {
	return r.Time().Add(time.Duration(hour) * time.Hour)
}

// IsZero reports whether r is the zero Run.
func (r Run) IsZero() bool {
	return r == Run{}
}

// CycleString is the two-digit cycle hour used in provider paths.
func (r Run) CycleString() string {
	return fmt.Sprintf("%02d", r.Cycle)
}

// Key is the canonical identifier used for file names and cache keys, e.g. "20240501_12z".
func (r Run) Key() string {
	return r.Date + "_" + r.CycleString() + "z"
}

// Label is the human-readable run label carried in responses, e.g. "20240501 12z".
func (r Run) Label() string {
	return r.Date + " " + r.CycleString() + "z"
}

func (r Run) String() string {
	return r.Date + " " + r.CycleString() + "Z"
}
